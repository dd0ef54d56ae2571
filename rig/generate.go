package rig

import (
	"log"
	"strings"

	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

const (
	copyLocationName = "COPY_LOCATION"
	copyRotationName = "COPY_ROTATION"
)

// visibleMeshes are the non hidden mesh children of a rig
func visibleMeshes(doc *scene.Document, rig *scene.Object) []*scene.Object {
	meshes := make([]*scene.Object, 0)
	for _, c := range doc.Children(rig) {
		if c.Kind == scene.KindMesh && !c.Hidden {
			meshes = append(meshes, c)
		}
	}
	return meshes
}

func childMeshes(doc *scene.Document, rig *scene.Object) []*scene.Object {
	meshes := make([]*scene.Object, 0)
	for _, c := range doc.Children(rig) {
		if c.Kind == scene.KindMesh {
			meshes = append(meshes, c)
		}
	}
	return meshes
}

func settingsOf(rig *scene.Object, prefs *config.Preferences) *scene.RigSettings {
	if rig.Settings == nil {
		rig.Settings = scene.NewRigSettings(prefs.DefaultArmatureName)
	}
	return rig.Settings
}

// LinkToCollection moves obj into the named collection, creating it on first use
func LinkToCollection(doc *scene.Document, obj *scene.Object, name string) {
	c := doc.Collection(name)
	if c == nil {
		c = doc.NewCollection(name)
	}
	for _, other := range doc.Collections() {
		doc.Unlink(other, obj)
	}
	doc.Link(c, obj)
}

// PutBonesOnLayer leaves every bone and the armature itself on layer index only
func PutBonesOnLayer(arm *scene.Armature, index int) {
	for _, b := range arm.Bones() {
		for i := range b.Layers {
			b.Layers[i] = i == index
		}
	}
	for i := range arm.Layers {
		arm.Layers[i] = i == index
	}
}

func constrainToSource(rig, source *scene.Object, prefs *config.Preferences) {
	for _, pb := range rig.PoseBones() {
		loc := pb.NewConstraint(scene.ConstraintCopyLocation, prefs.Prefix+copyLocationName)
		loc.Target = source.Id
		loc.Subtarget = pb.Name
		rot := pb.NewConstraint(scene.ConstraintCopyRotation, prefs.Prefix+copyRotationName)
		rot.Target = source.Id
		rot.Subtarget = pb.Name
	}
}

// ToggleConstraints enables or disables the tracking constraints toward the source rig
func ToggleConstraints(rig *scene.Object, prefs *config.Preferences, enabled bool) {
	names := map[string]struct{}{
		prefs.Prefix + copyLocationName: {},
		prefs.Prefix + copyRotationName: {},
	}
	for _, pb := range rig.PoseBones() {
		for _, c := range pb.Constraints {
			if _, ok := names[c.Name]; ok {
				c.Enabled = enabled
			}
		}
	}
}

// StripDeformPrefix removes the DEF marker from deform bones and flags them
func StripDeformPrefix(doc *scene.Document, rig *scene.Object, prefs *config.Preferences) {
	for _, b := range rig.Armature.Bones() {
		if !b.UseDeform || !strings.HasPrefix(b.Name, prefs.DefPrefix) {
			continue
		}
		name := strings.TrimPrefix(b.Name, prefs.DefPrefix)
		if err := doc.RenameBone(rig, b, name); err != nil {
			log.Printf("[rig] keeping %q: %v", b.Name, err)
			continue
		}
		b.IsPrefixed = true
	}
}

// RestoreDeformPrefix puts back the marker removed by StripDeformPrefix
func RestoreDeformPrefix(doc *scene.Document, rig *scene.Object, prefs *config.Preferences) {
	for _, b := range rig.Armature.Bones() {
		if !b.UseDeform || !b.IsPrefixed {
			continue
		}
		if err := doc.RenameBone(rig, b, prefs.DefPrefix+b.Name); err != nil {
			log.Printf("[rig] can't restore prefix of %q: %v", b.Name, err)
			continue
		}
		b.IsPrefixed = false
	}
}

// Generate builds the deform only rig of source and binds the source meshes to it
func Generate(doc *scene.Document, source *scene.Object, prefs *config.Preferences) (*scene.Object, error) {
	DeselectAll(doc)
	settings := settingsOf(source, prefs)
	meshes := visibleMeshes(doc, source)

	data := source.Armature.Copy()
	name := prefs.Prefix + source.Armature.Name
	rig, err := doc.NewObject(name, data)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't create rig object for %q", source.Name)
	}
	doc.RenameArmature(data, name)

	if !settings.Recenter {
		rig.Location = source.Location
		rig.Rotation = source.Rotation
	}
	LinkToCollection(doc, rig, prefs.CollectionName)
	delete(data.Props, prefs.RigifyIDProp)

	rig.SetSelected(true)
	doc.SetActive(rig)
	if err := doc.SetMode(scene.ModeEdit); err != nil {
		return nil, err
	}

	var additional []string
	if settings.HaveAdditionalBones {
		additional = settings.AdditionalBones
	}
	desc := Extract(data, settings.DisconnectAllBones, additional, prefs)
	data.ClearAnimationData()

	for _, b := range append([]*scene.Bone(nil), data.Bones()...) {
		if !desc.Mentions(b.Name) {
			data.RemoveBone(b)
		}
	}
	PutBonesOnLayer(data, 0)
	Restore(data, desc)

	if err := doc.SetMode(scene.ModePose); err != nil {
		return nil, err
	}
	for _, b := range data.Bones() {
		b.Hide = false
		b.BBoneSegments = 1
	}
	constrainToSource(rig, source, prefs)

	if err := doc.SetMode(scene.ModeObject); err != nil {
		return nil, err
	}
	Reparent(doc, rig, source, meshes)
	DedupVertexGroups(meshes)
	StripDeformPrefix(doc, rig, prefs)

	rig.Origin = source.Id
	settings.GeneratedRig = rig.Id
	log.Printf("[rig] generated %q from %q: %d bones, %d meshes", rig.Name, source.Name, len(data.Bones()), len(meshes))
	return rig, nil
}
