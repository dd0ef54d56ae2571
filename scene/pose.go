package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ConstraintKind string

const (
	ConstraintCopyLocation ConstraintKind = "COPY_LOCATION"
	ConstraintCopyRotation ConstraintKind = "COPY_ROTATION"
)

type Constraint struct {
	Name      string
	Kind      ConstraintKind
	Target    ObjectID
	Subtarget string
	Enabled   bool
}

type PoseBone struct {
	Name        string
	Location    mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	Constraints []*Constraint
}

func (pb *PoseBone) NewConstraint(kind ConstraintKind, name string) *Constraint {
	c := &Constraint{Name: name, Kind: kind, Enabled: true}
	pb.Constraints = append(pb.Constraints, c)
	return c
}

// Channels is the evaluated transform of one pose bone
type Channels struct {
	Location mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func (pb *PoseBone) channels() Channels {
	return Channels{Location: pb.Location, Rotation: pb.Rotation, Scale: pb.Scale}
}

type Pose struct {
	bones map[string]*PoseBone
}

func (p *Pose) bone(name string) *PoseBone {
	if p.bones == nil {
		p.bones = make(map[string]*PoseBone)
	}
	pb, ok := p.bones[name]
	if !ok {
		pb = &PoseBone{Name: name, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
		p.bones[name] = pb
	}
	return pb
}

func (p *Pose) sync(a *Armature) {
	for name := range p.bones {
		if !a.HasBone(name) {
			delete(p.bones, name)
		}
	}
}

func (p *Pose) rename(old, name string) {
	if pb, ok := p.bones[old]; ok {
		delete(p.bones, old)
		pb.Name = name
		p.bones[name] = pb
	}
}
