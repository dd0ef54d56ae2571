package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/twentybeeraces/SanitizeRigify/utils"
)

type Kind string

const (
	KindArmature Kind = "ARMATURE"
	KindMesh     Kind = "MESH"
)

type ExportMode string

const (
	ExportArmature ExportMode = "ARMATURE"
	ExportNLA      ExportMode = "NLA"
	ExportAll      ExportMode = "ALL"
)

type AnimationNaming string

const (
	NamingTrack AnimationNaming = "TRACK"
	NamingStrip AnimationNaming = "STRIP"
)

// RigSettings is the per-rig configuration stored on a source armature object
type RigSettings struct {
	ExportMode           ExportMode
	DisconnectAllBones   bool
	Recenter             bool
	AnimationNaming      AnimationNaming
	ArmatureName         string
	Path                 string
	HaveAdditionalBones  bool
	AdditionalBones      []string
	AdditionalBonesToAdd string
	AdditionalBonesIndex int
	GeneratedRig         ObjectID
}

func NewRigSettings(armatureName string) *RigSettings {
	return &RigSettings{
		ExportMode:         ExportAll,
		DisconnectAllBones: true,
		Recenter:           true,
		AnimationNaming:    NamingTrack,
		ArmatureName:       armatureName,
	}
}

type ModifierKind string

const ModifierArmature ModifierKind = "ARMATURE"

type Modifier struct {
	Name   string
	Kind   ModifierKind
	Object ObjectID
}

type VertexGroup struct {
	Name    string
	Weights map[int]float32
}

type Object struct {
	Id       ObjectID
	Name     string
	Kind     Kind
	Parent   ObjectID
	Location mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
	Hidden   bool
	selected bool

	Armature *Armature
	Pose     *Pose
	AnimData *AnimData

	Mesh         *Mesh
	VertexGroups []*VertexGroup
	Modifiers    []*Modifier

	Settings *RigSettings
	Origin   ObjectID
}

func (o *Object) Selected() bool        { return o.selected }
func (o *Object) SetSelected(sel bool) { o.selected = sel }

func (o *Object) Matrix() mgl32.Mat4 {
	return utils.Compose(o.Location, o.Rotation, o.Scale)
}

func (o *Object) SetMatrix(m mgl32.Mat4) {
	o.Location, o.Rotation, o.Scale = utils.Decompose(m)
}

func (o *Object) ResetTransform() {
	o.Location = mgl32.Vec3{}
	o.Rotation = mgl32.Vec3{}
	o.Scale = mgl32.Vec3{1, 1, 1}
}

func (o *Object) EnsureAnimData() *AnimData {
	if o.AnimData == nil {
		o.AnimData = &AnimData{}
	}
	return o.AnimData
}

// PoseBone returns the pose channel of an armature bone, creating it on demand
func (o *Object) PoseBone(name string) *PoseBone {
	if o.Armature == nil || !o.Armature.HasBone(name) {
		return nil
	}
	if o.Pose == nil {
		o.Pose = &Pose{}
	}
	return o.Pose.bone(name)
}

// PoseBones lists pose channels in armature bone order, dropping channels of removed bones
func (o *Object) PoseBones() []*PoseBone {
	if o.Armature == nil {
		return nil
	}
	if o.Pose == nil {
		o.Pose = &Pose{}
	}
	o.Pose.sync(o.Armature)
	list := make([]*PoseBone, 0, len(o.Armature.bones))
	for _, b := range o.Armature.bones {
		list = append(list, o.Pose.bone(b.Name))
	}
	return list
}

// RenameBone renames an armature bone together with its pose channel
func (o *Object) RenameBone(b *Bone, name string) error {
	old := b.Name
	if err := o.Armature.RenameBone(b, name); err != nil {
		return err
	}
	if o.Pose != nil {
		o.Pose.rename(old, name)
	}
	return nil
}

func (o *Object) VertexGroup(name string) *VertexGroup {
	for _, vg := range o.VertexGroups {
		if vg.Name == name {
			return vg
		}
	}
	return nil
}

func (o *Object) RemoveVertexGroup(vg *VertexGroup) {
	for i, other := range o.VertexGroups {
		if other == vg {
			o.VertexGroups = append(o.VertexGroups[:i], o.VertexGroups[i+1:]...)
			return
		}
	}
}

func (o *Object) AddModifier(name string, kind ModifierKind) *Modifier {
	m := &Modifier{Name: name, Kind: kind}
	o.Modifiers = append(o.Modifiers, m)
	return m
}

func (o *Object) RemoveModifier(m *Modifier) {
	for i, other := range o.Modifiers {
		if other == m {
			o.Modifiers = append(o.Modifiers[:i], o.Modifiers[i+1:]...)
			return
		}
	}
}
