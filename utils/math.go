package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians, XYZ euler order (R = Rz * Ry * Rx)
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

// input in radians, XYZ euler order
func EulerToQuat(v mgl32.Vec3) (q mgl32.Quat) {
	sx, cx := math.Sincos(float64(v[0]) * 0.5)
	sy, cy := math.Sincos(float64(v[1]) * 0.5)
	sz, cz := math.Sincos(float64(v[2]) * 0.5)

	q.V[0] = float32(sx*cy*cz - cx*sy*sz)
	q.V[1] = float32(cx*sy*cz + sx*cy*sz)
	q.V[2] = float32(cx*cy*sz - sx*sy*cz)
	q.W = float32(cx*cy*cz + sx*sy*sz)

	return q.Normalize()
}

func RadiansToDegreeV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// Compose builds translation * rotation * scale
func Compose(location, rotation, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(location[0], location[1], location[2]).
		Mul4(EulerToQuat(rotation).Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// Decompose splits affine matrix without shear into location, euler rotation and scale
func Decompose(m mgl32.Mat4) (location, rotation, scale mgl32.Vec3) {
	location = m.Col(3).Vec3()

	cols := [3]mgl32.Vec3{m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()}
	for i := range cols {
		scale[i] = cols[i].Len()
		if scale[i] != 0 {
			cols[i] = cols[i].Mul(1 / scale[i])
		}
	}

	// negative determinant means mirrored basis
	if cols[0].Cross(cols[1]).Dot(cols[2]) < 0 {
		scale[0] = -scale[0]
		cols[0] = cols[0].Mul(-1)
	}

	r := mgl32.Mat4FromCols(cols[0].Vec4(0), cols[1].Vec4(0), cols[2].Vec4(0), mgl32.Vec4{0, 0, 0, 1})
	rotation = QuatToEuler(mgl32.Mat4ToQuat(r).Normalize())
	return
}

func TransformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(1)).Vec3()
}

func FloatArray32to64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func NearlyEqual(a, b, epsilon float32) bool {
	return float32(math.Abs(float64(a-b))) <= epsilon*float32(math.Max(1, math.Max(math.Abs(float64(a)), math.Abs(float64(b)))))
}
