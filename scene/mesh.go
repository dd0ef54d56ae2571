package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Mesh struct {
	Name     string
	Vertices []mgl32.Vec3
	Faces    [][]int
	Smooth   []bool
}

func (m *Mesh) IsFaceSmooth(face int) bool {
	return face < len(m.Smooth) && m.Smooth[face]
}
