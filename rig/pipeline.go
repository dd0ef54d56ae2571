package rig

import (
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/export"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// generatedRig returns the rig generated from obj when the mutual link holds
// and the rig is still in the scene
func generatedRig(doc *scene.Document, obj *scene.Object) *scene.Object {
	if obj == nil || obj.Settings == nil {
		return nil
	}
	gen := doc.Object(obj.Settings.GeneratedRig)
	if gen == nil || !doc.InScene(gen) || gen.Origin != obj.Id {
		return nil
	}
	return gen
}

// CanPreview is true when obj has no valid generated rig
func CanPreview(doc *scene.Document, obj *scene.Object) bool {
	return obj != nil && generatedRig(doc, obj) == nil
}

func CanUnpreview(doc *scene.Document, obj *scene.Object) bool {
	return obj != nil && !CanPreview(doc, obj)
}

func IsPreviewing(doc *scene.Document, obj *scene.Object) bool {
	return CanUnpreview(doc, obj)
}

func CanExport(ctx *Context) bool {
	if ctx.Prefs == nil {
		return false
	}
	return ctx.Prefs.AllowExportWithoutPreview || IsPreviewing(ctx.Doc, ctx.Rig)
}

// Preview generates the export rig of ctx.Rig and bakes its animation
func Preview(ctx *Context) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	if !CanPreview(ctx.Doc, ctx.Rig) {
		return cancelled("%s is already previewing", ctx.Rig.Name), nil
	}
	doc, source := ctx.Doc, ctx.Rig
	settings := settingsOf(source, ctx.Prefs)

	DeselectAll(doc)
	prevLocation, prevRotation := source.Location, source.Rotation
	if settings.Recenter {
		source.Location = mgl32.Vec3{}
		source.Rotation = mgl32.Vec3{}
	}

	gen, err := Generate(doc, source, ctx.Prefs)
	if err != nil {
		return Report{}, errors.Wrapf(err, "Can't generate rig from %q", source.Name)
	}
	if settings.ExportMode != scene.ExportArmature {
		if err := BakeTracks(doc, source, gen, ctx.Prefs); err != nil {
			return Report{}, errors.Wrapf(err, "Can't bake animations of %q", source.Name)
		}
	}
	ToggleConstraints(gen, ctx.Prefs, false)

	gen.SetSelected(true)
	doc.SetActive(gen)
	if err := doc.SetMode(scene.ModeObject); err != nil {
		return Report{}, err
	}

	source.Location, source.Rotation = prevLocation, prevRotation
	source.Hidden = true
	return finished("Preview done"), nil
}

// Unpreview binds the meshes back to ctx.Rig and deletes the generated rig with its actions
func Unpreview(ctx *Context) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	if !CanUnpreview(ctx.Doc, ctx.Rig) {
		return cancelled("%s is not previewing", ctx.Rig.Name), nil
	}
	doc, source := ctx.Doc, ctx.Rig
	gen := generatedRig(doc, source)

	DeselectAll(doc)
	RestoreDeformPrefix(doc, gen, ctx.Prefs)
	Reparent(doc, source, gen, childMeshes(doc, gen))
	deleteRig(doc, gen, true)
	source.Settings.GeneratedRig = scene.NilObject

	source.Hidden = false
	source.SetSelected(true)
	doc.SetActive(source)
	return finished("Unpreview done"), nil
}

// deleteRig removes the rig data with every object using it, then optionally
// the actions of its NLA strips that nothing else uses
func deleteRig(doc *scene.Document, rig *scene.Object, deleteActions bool) {
	var actions []*scene.Action
	if deleteActions {
		actions = stripActions(rig)
	}
	doc.RemoveArmature(rig.Armature)
	for _, a := range actions {
		if users := actionUsers(doc, a); users != 0 {
			log.Printf("[rig] keeping action %q: %d other users", a.Name, users)
			continue
		}
		doc.RemoveAction(a)
	}
}

func actionUsers(doc *scene.Document, a *scene.Action) int {
	users := 0
	for _, o := range doc.Objects() {
		if o.AnimData == nil {
			continue
		}
		if o.AnimData.Action == a {
			users++
		}
		for _, t := range o.AnimData.Tracks {
			for _, s := range t.Strips {
				if s.Action == a {
					users++
				}
			}
		}
	}
	return users
}

// renameMatching moves an object out of the way of name and returns it
func renameMatching(doc *scene.Document, name string, except *scene.Object, prefs *config.Preferences) *scene.Object {
	o := doc.ObjectByName(name)
	if o == nil || o == except {
		return nil
	}
	doc.RenameObject(o, prefs.Prefix+o.Name)
	return o
}

func renameMatchingArmature(doc *scene.Document, name string, except *scene.Armature, prefs *config.Preferences) *scene.Armature {
	a := doc.ArmatureByName(name)
	if a == nil || a == except {
		return nil
	}
	doc.RenameArmature(a, prefs.Prefix+a.Name)
	return a
}

// Export writes the generated rig of ctx.Rig to path, previewing first when
// needed and reverting everything it changed afterwards
func Export(ctx *Context, path string, savePath bool) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	if !CanExport(ctx) {
		return cancelled("Preview first before exporting"), nil
	}
	doc, source, prefs := ctx.Doc, ctx.Rig, ctx.Prefs
	writer := ctx.Writer
	if writer == nil {
		writer = &export.DispatchWriter{Prefs: prefs}
	}

	sel := DeselectAll(doc)
	settings := settingsOf(source, prefs)
	if savePath {
		settings.Path = path
	}

	autoPreview := false
	if !IsPreviewing(doc, source) {
		if _, err := Preview(ctx); err != nil {
			return Report{}, err
		}
		autoPreview = true
	}
	gen := generatedRig(doc, source)
	if gen == nil {
		return Report{}, errors.Errorf("No generated rig for %q", source.Name)
	}

	meshes := childMeshes(doc, gen)
	for _, m := range meshes {
		m.Hidden = false
	}

	armatureName := settings.ArmatureName
	if armatureName == "" {
		armatureName = prefs.DefaultArmatureName
	}
	renamedObject := renameMatching(doc, armatureName, gen, prefs)
	renamedArmature := renameMatchingArmature(doc, armatureName, gen.Armature, prefs)
	genName, genDataName := gen.Name, gen.Armature.Name
	doc.RenameObject(gen, armatureName)
	doc.RenameArmature(gen.Armature, armatureName)

	if gen.AnimData != nil {
		for _, t := range gen.AnimData.Tracks {
			t.Solo = false
			t.Mute = false
		}
	}

	prevUnitScale := doc.UnitScale
	if err := Rescale(doc, gen, meshes, prefs.ExportScale); err != nil {
		return Report{}, err
	}

	// skeleton only exports the bare armature
	DeselectAll(doc)
	if settings.ExportMode != scene.ExportArmature {
		for _, m := range meshes {
			m.SetSelected(true)
		}
	}
	gen.SetSelected(true)
	doc.SetActive(gen)

	if err := writer.Write(doc, path, export.ParamsFor(settings.ExportMode)); err != nil {
		return Report{}, errors.Wrapf(err, "Export of %q failed", source.Name)
	}

	doc.RenameObject(gen, genName)
	doc.RenameArmature(gen.Armature, genDataName)
	if renamedObject != nil {
		doc.RenameObject(renamedObject, armatureName)
	}
	if renamedArmature != nil {
		doc.RenameArmature(renamedArmature, armatureName)
	}

	if err := Rescale(doc, gen, meshes, prevUnitScale); err != nil {
		return Report{}, err
	}
	if autoPreview {
		if _, err := Unpreview(ctx); err != nil {
			return Report{}, err
		}
	}
	RestoreSelection(doc, sel)
	return finished("Export done"), nil
}
