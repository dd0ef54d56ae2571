package rig

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Rescale switches the scene to targetUnitScale while keeping the rig visually
// unchanged: transforms are scaled and applied, NLA location curves scaled.
// Calling it again with the previous unit scale undoes it.
func Rescale(doc *scene.Document, rig *scene.Object, meshes []*scene.Object, targetUnitScale float32) error {
	if targetUnitScale <= 0 {
		return errors.Errorf("Invalid unit scale %v", targetUnitScale)
	}
	DeselectAll(doc)
	factor := doc.UnitScale / targetUnitScale

	prevAutoKey := doc.AutoKeyframe
	doc.AutoKeyframe = false
	defer func() { doc.AutoKeyframe = prevAutoKey }()

	doc.UnitScale = targetUnitScale
	rig.Scale = rig.Scale.Mul(factor)
	rig.Location = rig.Location.Mul(factor)

	objects := make([]*scene.Object, 0, len(meshes)+1)
	for _, m := range meshes {
		m.SetSelected(true)
		objects = append(objects, m)
	}
	rig.SetSelected(true)
	doc.SetActive(rig)
	objects = append(objects, rig)
	doc.ApplyTransforms(objects)

	for _, a := range stripActions(rig) {
		for _, fc := range a.FCurves {
			if !strings.HasSuffix(fc.DataPath, "location") {
				continue
			}
			for _, k := range fc.Keyframes {
				k.Co[1] *= factor
				k.HandleLeft[1] *= factor
				k.HandleRight[1] *= factor
			}
		}
	}
	return nil
}

// stripActions lists the distinct actions referenced by the NLA strips of rig
func stripActions(rig *scene.Object) []*scene.Action {
	actions := make([]*scene.Action, 0)
	if rig.AnimData == nil {
		return actions
	}
	seen := make(map[*scene.Action]struct{})
	for _, t := range rig.AnimData.Tracks {
		for _, s := range t.Strips {
			if s.Action == nil {
				continue
			}
			if _, ok := seen[s.Action]; ok {
				continue
			}
			seen[s.Action] = struct{}{}
			actions = append(actions, s.Action)
		}
	}
	return actions
}
