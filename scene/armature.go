package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

type InheritScale string

const (
	InheritScaleFull       InheritScale = "FULL"
	InheritScaleFixShear   InheritScale = "FIX_SHEAR"
	InheritScaleAverage    InheritScale = "AVERAGE"
	InheritScaleAligned    InheritScale = "ALIGNED"
	InheritScaleNone       InheritScale = "NONE"
	InheritScaleNoneLegacy InheritScale = "NONE_LEGACY"
)

const LayersCount = 32

type Bone struct {
	Name   string
	parent *Bone

	Head mgl32.Vec3
	Tail mgl32.Vec3
	Roll float32

	UseDeform          bool
	UseConnect         bool
	UseLocalLocation   bool
	UseInheritRotation bool
	InheritScale       InheritScale

	Layers        [LayersCount]bool
	Hide          bool
	BBoneSegments int

	// set when a naming marker was stripped from the bone for export
	IsPrefixed bool
}

func (b *Bone) Parent() *Bone { return b.parent }

func (b *Bone) IsAncestorOf(other *Bone) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == b {
			return true
		}
	}
	return false
}

// Armature is the skeleton data block: an ordered bone graph indexed by name
type Armature struct {
	Name    string
	Props   map[string]string
	Layers  [LayersCount]bool
	Drivers []*FCurve

	bones  []*Bone
	byName map[string]*Bone
}

func NewArmature(name string) *Armature {
	a := &Armature{
		Name:   name,
		Props:  make(map[string]string),
		byName: make(map[string]*Bone),
	}
	a.Layers[0] = true
	return a
}

func (a *Armature) Bones() []*Bone { return a.bones }

// Root is the first bone in traversal order
func (a *Armature) Root() *Bone {
	if len(a.bones) == 0 {
		return nil
	}
	return a.bones[0]
}

func (a *Armature) Bone(name string) *Bone { return a.byName[name] }

func (a *Armature) HasBone(name string) bool {
	_, ok := a.byName[name]
	return ok
}

// AddBone appends a bone with host defaults
func (a *Armature) AddBone(name string, parent *Bone) (*Bone, error) {
	if a.HasBone(name) {
		return nil, errors.Errorf("Bone %q already exists in %q", name, a.Name)
	}
	if parent != nil && a.byName[parent.Name] != parent {
		return nil, errors.Errorf("Parent %q is not a bone of %q", parent.Name, a.Name)
	}
	b := &Bone{
		Name:               name,
		parent:             parent,
		Tail:               mgl32.Vec3{0, 0.1, 0},
		UseDeform:          true,
		UseLocalLocation:   true,
		UseInheritRotation: true,
		InheritScale:       InheritScaleFull,
		BBoneSegments:      1,
	}
	b.Layers[0] = true
	a.bones = append(a.bones, b)
	a.byName[name] = b
	return b, nil
}

// RemoveBone deletes the bone; its children are attached to its parent and disconnected
func (a *Armature) RemoveBone(b *Bone) {
	if a.byName[b.Name] != b {
		return
	}
	for _, other := range a.bones {
		if other.parent == b {
			other.parent = b.parent
			other.UseConnect = false
		}
	}
	delete(a.byName, b.Name)
	for i, other := range a.bones {
		if other == b {
			a.bones = append(a.bones[:i], a.bones[i+1:]...)
			break
		}
	}
	b.parent = nil
}

// SetParent refuses to create cycles and reports whether the link was changed
func (a *Armature) SetParent(b, parent *Bone) bool {
	if parent != nil && (parent == b || b.IsAncestorOf(parent)) {
		return false
	}
	b.parent = parent
	return true
}

func (a *Armature) RenameBone(b *Bone, name string) error {
	if b.Name == name {
		return nil
	}
	if a.HasBone(name) {
		return errors.Errorf("Can't rename %q: bone %q already exists in %q", b.Name, name, a.Name)
	}
	delete(a.byName, b.Name)
	b.Name = name
	a.byName[name] = b
	return nil
}

// Copy returns an independent deep copy of the skeleton data
func (a *Armature) Copy() *Armature {
	c := NewArmature(a.Name)
	c.Layers = a.Layers
	for k, v := range a.Props {
		c.Props[k] = v
	}
	for _, fc := range a.Drivers {
		c.Drivers = append(c.Drivers, fc.Copy())
	}
	mapping := make(map[*Bone]*Bone, len(a.bones))
	for _, b := range a.bones {
		nb := *b
		mapping[b] = &nb
		c.bones = append(c.bones, &nb)
		c.byName[nb.Name] = &nb
	}
	for _, nb := range c.bones {
		if nb.parent != nil {
			nb.parent = mapping[nb.parent]
		}
	}
	return c
}

func (a *Armature) ClearAnimationData() {
	a.Drivers = nil
}
