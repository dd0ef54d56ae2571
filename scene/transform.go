package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/twentybeeraces/SanitizeRigify/utils"
)

func (d *Document) depth(o *Object) int {
	n := 0
	for p := d.Object(o.Parent); p != nil && n <= len(d.objects); p = d.Object(p.Parent) {
		n++
	}
	return n
}

// ApplyTransforms bakes each object's local transform into its data
// (bone heads/tails or mesh vertices), resets the transform to identity and
// compensates direct children so their world placement does not move.
func (d *Document) ApplyTransforms(objects []*Object) {
	ordered := append([]*Object(nil), objects...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return d.depth(ordered[i]) < d.depth(ordered[j])
	})

	for _, o := range ordered {
		m := o.Matrix()
		if m.ApproxEqual(mgl32.Ident4()) {
			continue
		}

		switch o.Kind {
		case KindArmature:
			for _, b := range o.Armature.Bones() {
				b.Head = utils.TransformPoint(m, b.Head)
				b.Tail = utils.TransformPoint(m, b.Tail)
			}
		case KindMesh:
			for i, v := range o.Mesh.Vertices {
				o.Mesh.Vertices[i] = utils.TransformPoint(m, v)
			}
		}

		for _, c := range d.Children(o) {
			c.SetMatrix(m.Mul4(c.Matrix()))
		}
		o.ResetTransform()
	}
}

// WorldMatrix composes the parent chain
func (d *Document) WorldMatrix(o *Object) mgl32.Mat4 {
	m := o.Matrix()
	for p := d.Object(o.Parent); p != nil; p = d.Object(p.Parent) {
		m = p.Matrix().Mul4(m)
	}
	return m
}
