package rig

import (
	"log"
	"strings"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Entry is the saved hierarchy state of one bone
type Entry struct {
	Bone            string
	Parent          string
	Connect         bool
	LocalLocation   bool
	InheritRotation bool
	InheritScale    scene.InheritScale
}

// Descriptor is the ordered deform hierarchy captured before pruning
type Descriptor []Entry

// Entry returns the entry of a bone
func (d Descriptor) Entry(bone string) (Entry, bool) {
	for _, e := range d {
		if e.Bone == bone {
			return e, true
		}
	}
	return Entry{}, false
}

// Mentions reports whether name appears as a bone or as a parent
func (d Descriptor) Mentions(name string) bool {
	for _, e := range d {
		if e.Bone == name || e.Parent == name {
			return true
		}
	}
	return false
}

// EffectiveParent walks up the ancestors of bone until a deforming one is found.
// A non deforming ancestor named with the ORG marker is replaced by its DEF
// counterpart when that one exists, deforms and is not the bone itself.
// Returns nil for the root bone and the root bone when no ancestor deforms.
func EffectiveParent(arm *scene.Armature, bone *scene.Bone, prefs *config.Preferences) *scene.Bone {
	root := arm.Root()
	if bone == root {
		return nil
	}
	current := bone
	for candidate := bone.Parent(); candidate != nil; candidate = candidate.Parent() {
		if candidate.UseDeform {
			return candidate
		}
		if strings.HasPrefix(candidate.Name, prefs.OrgPrefix) {
			swapped := strings.Replace(candidate.Name, prefs.OrgPrefix, prefs.DefPrefix, -1)
			if swapped != current.Name {
				if alt := arm.Bone(swapped); alt != nil && alt.UseDeform {
					return alt
				}
			}
		}
		current = candidate
	}
	return root
}

func entryFor(arm *scene.Armature, b *scene.Bone, disconnectAll bool, prefs *config.Preferences) Entry {
	e := Entry{
		Bone:            b.Name,
		Connect:         b.UseConnect && !disconnectAll,
		LocalLocation:   b.UseLocalLocation,
		InheritRotation: b.UseInheritRotation,
		InheritScale:    b.InheritScale,
	}
	if p := EffectiveParent(arm, b, prefs); p != nil {
		e.Parent = p.Name
	}
	return e
}

// Extract describes the hierarchy of every deform bone, then of every
// additional bone that exists in arm and is not described yet.
func Extract(arm *scene.Armature, disconnectAll bool, additionalBones []string, prefs *config.Preferences) Descriptor {
	desc := make(Descriptor, 0)
	for _, b := range arm.Bones() {
		if b.UseDeform {
			desc = append(desc, entryFor(arm, b, disconnectAll, prefs))
		}
	}
	for _, name := range additionalBones {
		b := arm.Bone(name)
		if b == nil {
			continue
		}
		if _, ok := desc.Entry(name); ok {
			continue
		}
		desc = append(desc, entryFor(arm, b, disconnectAll, prefs))
	}
	return desc
}

// Restore reapplies a descriptor. Entries whose bone or named parent is
// missing from arm are skipped. The root entry has no parent: only its flags
// are applied.
func Restore(arm *scene.Armature, desc Descriptor) {
	for _, e := range desc {
		bone := arm.Bone(e.Bone)
		if bone == nil {
			continue
		}
		parent := arm.Bone(e.Parent)
		if e.Parent != "" && parent == nil {
			continue
		}
		if parent != nil && bone != parent {
			if !arm.SetParent(bone, parent) {
				log.Printf("[rig] can't parent %q to %q: would create a cycle", e.Bone, e.Parent)
			}
		}
		bone.UseConnect = e.Connect
		bone.UseLocalLocation = e.LocalLocation
		bone.UseInheritRotation = e.InheritRotation
		bone.InheritScale = e.InheritScale
	}
}
