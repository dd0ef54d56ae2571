package rig

import (
	"github.com/twentybeeraces/SanitizeRigify/export"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// AddAdditionalBone appends a bone to keep even when it does not deform.
// An empty name uses the pending bone name of the rig settings.
func AddAdditionalBone(ctx *Context, name string) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	settings := settingsOf(ctx.Rig, ctx.Prefs)
	if name == "" {
		name = settings.AdditionalBonesToAdd
	}
	if name == "" {
		return cancelled("No bone to add"), nil
	}
	if !ctx.Rig.Armature.HasBone(name) {
		return cancelled("Idem (%s) is not a bone of %s", name, ctx.Rig.Name), nil
	}
	for _, b := range settings.AdditionalBones {
		if b == name {
			return cancelled("Bone (%s) already added", name), nil
		}
	}
	settings.AdditionalBones = append(settings.AdditionalBones, name)
	return finished("Bone (%s) added", name), nil
}

func RemoveAdditionalBone(ctx *Context, index int) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	settings := settingsOf(ctx.Rig, ctx.Prefs)
	if len(settings.AdditionalBones) == 0 {
		return cancelled("No additional bones"), nil
	}
	if index < 0 || index >= len(settings.AdditionalBones) {
		return cancelled("No additional bone at index %d", index), nil
	}
	settings.AdditionalBones = append(settings.AdditionalBones[:index], settings.AdditionalBones[index+1:]...)

	cursor := settings.AdditionalBonesIndex
	if cursor > len(settings.AdditionalBones)-1 {
		cursor = len(settings.AdditionalBones) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	settings.AdditionalBonesIndex = cursor
	return finished("Additional bone removed"), nil
}

func ClearAdditionalBones(ctx *Context) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	settings := settingsOf(ctx.Rig, ctx.Prefs)
	if len(settings.AdditionalBones) == 0 {
		return cancelled("Already empty"), nil
	}
	settings.AdditionalBones = nil
	settings.AdditionalBonesToAdd = ""
	return finished("Additional bones cleared"), nil
}

func ResetArmatureName(ctx *Context) (Report, error) {
	if err := ctx.validate(); err != nil {
		return Report{}, err
	}
	settingsOf(ctx.Rig, ctx.Prefs).ArmatureName = ctx.Prefs.DefaultArmatureName
	return finished("Armature name reset to %s", ctx.Prefs.DefaultArmatureName), nil
}

// Hierarchy extracts the descriptor the next preview would use, without changing anything
func Hierarchy(ctx *Context) (Descriptor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}
	settings := ctx.Rig.Settings
	if settings == nil {
		settings = scene.NewRigSettings(ctx.Prefs.DefaultArmatureName)
	}
	var additional []string
	if settings.HaveAdditionalBones {
		additional = settings.AdditionalBones
	}
	return Extract(ctx.Rig.Armature, settings.DisconnectAllBones, additional, ctx.Prefs), nil
}

// DefaultFilePath is the saved export path, or <path><rig name>.fbx when
// the saved path does not name a file yet
func DefaultFilePath(obj *scene.Object) string {
	path := ""
	if obj.Settings != nil {
		path = obj.Settings.Path
	}
	if !export.IsExportPath(path) {
		return path + obj.Name + ".fbx"
	}
	return path
}
