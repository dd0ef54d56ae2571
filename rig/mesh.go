package rig

import (
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Reparent binds meshes to newRig only: armature modifiers toward either rig
// are replaced by a single one toward newRig and the mesh transform is reset.
func Reparent(doc *scene.Document, newRig, oldRig *scene.Object, meshes []*scene.Object) {
	for _, mesh := range meshes {
		for _, m := range append([]*scene.Modifier(nil), mesh.Modifiers...) {
			if m.Kind == scene.ModifierArmature && (m.Object == newRig.Id || m.Object == oldRig.Id) {
				mesh.RemoveModifier(m)
			}
		}
		mesh.Parent = newRig.Id
		mesh.ResetTransform()
		mesh.AddModifier(newRig.Name, scene.ModifierArmature).Object = newRig.Id
	}
}

// DedupVertexGroups keeps the last group of each name.
// TODO: confirm with rig authors that the newest group is the right one to keep
func DedupVertexGroups(objects []*scene.Object) {
	for _, o := range objects {
		seen := make(map[string]struct{})
		var removed []*scene.VertexGroup
		for i := len(o.VertexGroups) - 1; i >= 0; i-- {
			vg := o.VertexGroups[i]
			if _, ok := seen[vg.Name]; ok {
				removed = append(removed, vg)
				continue
			}
			seen[vg.Name] = struct{}{}
		}
		for _, vg := range removed {
			o.RemoveVertexGroup(vg)
		}
	}
}
