package scene

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type ObjectID uuid.UUID

var NilObject ObjectID

func (id ObjectID) IsNil() bool     { return id == NilObject }
func (id ObjectID) String() string { return uuid.UUID(id).String() }

type Mode string

const (
	ModeObject Mode = "OBJECT"
	ModeEdit   Mode = "EDIT"
	ModePose   Mode = "POSE"
)

type Collection struct {
	Name    string
	objects []ObjectID
}

func (c *Collection) Objects() []ObjectID { return c.objects }

func (c *Collection) Has(id ObjectID) bool {
	for _, o := range c.objects {
		if o == id {
			return true
		}
	}
	return false
}

// Document is the mutable scene store every operation works against.
type Document struct {
	UnitScale    float32
	AutoKeyframe bool
	FrameRate    float32

	objects     map[ObjectID]*Object
	order       []ObjectID
	collections []*Collection
	actions     []*Action

	active ObjectID
	mode   Mode
}

func NewDocument() *Document {
	return &Document{
		UnitScale: 1,
		FrameRate: 24,
		objects:   make(map[ObjectID]*Object),
		mode:      ModeObject,
	}
}

func (d *Document) newUniqueId() ObjectID {
	for {
		newId, err := uuid.NewRandom()
		if err != nil {
			panic(err)
		}
		if _, exists := d.objects[ObjectID(newId)]; !exists {
			return ObjectID(newId)
		}
	}
}

// uniqueName follows the host convention of appending .001, .002, ...
func uniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	base := name
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i == 4 {
		if _, err := fmt.Sscanf(name[i+1:], "%03d", new(int)); err == nil {
			base = name[:i]
		}
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%03d", base, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// NewObject creates an object that is not linked to any collection yet.
// For armature objects data must be *Armature, for meshes *Mesh.
func (d *Document) NewObject(name string, data interface{}) (*Object, error) {
	o := &Object{
		Id:    d.newUniqueId(),
		Name:  uniqueName(name, func(s string) bool { return d.ObjectByName(s) != nil }),
		Scale: [3]float32{1, 1, 1},
	}
	switch v := data.(type) {
	case *Armature:
		o.Kind = KindArmature
		o.Armature = v
		o.Pose = &Pose{}
	case *Mesh:
		o.Kind = KindMesh
		o.Mesh = v
	default:
		return nil, errors.Errorf("Unsupported object data %T for %q", data, name)
	}
	d.objects[o.Id] = o
	d.order = append(d.order, o.Id)
	return o, nil
}

func (d *Document) Object(id ObjectID) *Object {
	if id.IsNil() {
		return nil
	}
	return d.objects[id]
}

func (d *Document) ObjectByName(name string) *Object {
	for _, id := range d.order {
		if o := d.objects[id]; o.Name == name {
			return o
		}
	}
	return nil
}

func (d *Document) Objects() []*Object {
	list := make([]*Object, 0, len(d.order))
	for _, id := range d.order {
		list = append(list, d.objects[id])
	}
	return list
}

// RenameObject returns the name actually assigned
func (d *Document) RenameObject(o *Object, name string) string {
	if o.Name == name {
		return name
	}
	o.Name = uniqueName(name, func(s string) bool { return d.ObjectByName(s) != nil })
	return o.Name
}

func (d *Document) Children(o *Object) []*Object {
	children := make([]*Object, 0)
	for _, id := range d.order {
		if c := d.objects[id]; c.Parent == o.Id {
			children = append(children, c)
		}
	}
	return children
}

func (d *Document) RemoveObject(o *Object) {
	if _, ok := d.objects[o.Id]; !ok {
		return
	}
	for _, c := range d.collections {
		c.unlink(o.Id)
	}
	for _, other := range d.objects {
		if other.Parent == o.Id {
			other.Parent = NilObject
		}
		for _, m := range other.Modifiers {
			if m.Object == o.Id {
				m.Object = NilObject
			}
		}
		if other.Origin == o.Id {
			other.Origin = NilObject
		}
		if other.Settings != nil && other.Settings.GeneratedRig == o.Id {
			other.Settings.GeneratedRig = NilObject
		}
		if other.Pose != nil {
			for _, pb := range other.Pose.bones {
				for _, c := range pb.Constraints {
					if c.Target == o.Id {
						c.Target = NilObject
					}
				}
			}
		}
	}
	delete(d.objects, o.Id)
	for i, id := range d.order {
		if id == o.Id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.active == o.Id {
		d.active = NilObject
		d.mode = ModeObject
	}
}

// BoundMeshes lists meshes having an armature modifier targeting o
func (d *Document) BoundMeshes(o *Object) []*Object {
	list := make([]*Object, 0)
	for _, m := range d.Objects() {
		for _, mod := range m.Modifiers {
			if mod.Kind == ModifierArmature && mod.Object == o.Id {
				list = append(list, m)
				break
			}
		}
	}
	return list
}

// RenameBone renames a bone of an armature object and the first matching
// vertex group of every mesh bound to it. A mesh already holding a group
// with the new name keeps both groups untouched.
func (d *Document) RenameBone(o *Object, b *Bone, name string) error {
	old := b.Name
	if err := o.RenameBone(b, name); err != nil {
		return err
	}
	for _, m := range d.BoundMeshes(o) {
		if m.VertexGroup(name) != nil {
			continue
		}
		if vg := m.VertexGroup(old); vg != nil {
			vg.Name = name
		}
	}
	return nil
}

func (d *Document) Armatures() []*Armature {
	list := make([]*Armature, 0)
	seen := make(map[*Armature]struct{})
	for _, o := range d.Objects() {
		if o.Armature != nil {
			if _, ok := seen[o.Armature]; !ok {
				seen[o.Armature] = struct{}{}
				list = append(list, o.Armature)
			}
		}
	}
	return list
}

func (d *Document) ArmatureByName(name string) *Armature {
	for _, a := range d.Armatures() {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func (d *Document) RenameArmature(a *Armature, name string) string {
	if a.Name == name {
		return name
	}
	a.Name = uniqueName(name, func(s string) bool { return d.ArmatureByName(s) != nil })
	return a.Name
}

// RemoveArmature deletes the skeleton data together with every object using it
func (d *Document) RemoveArmature(a *Armature) {
	for _, o := range d.Objects() {
		if o.Armature == a {
			d.RemoveObject(o)
		}
	}
}

func (d *Document) Collections() []*Collection { return d.collections }

func (d *Document) Collection(name string) *Collection {
	for _, c := range d.collections {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (d *Document) NewCollection(name string) *Collection {
	c := &Collection{Name: uniqueName(name, func(s string) bool { return d.Collection(s) != nil })}
	d.collections = append(d.collections, c)
	return c
}

func (d *Document) Link(c *Collection, o *Object) {
	if !c.Has(o.Id) {
		c.objects = append(c.objects, o.Id)
	}
}

func (c *Collection) unlink(id ObjectID) {
	for i, o := range c.objects {
		if o == id {
			c.objects = append(c.objects[:i], c.objects[i+1:]...)
			return
		}
	}
}

func (d *Document) Unlink(c *Collection, o *Object) { c.unlink(o.Id) }

// InScene reports whether the object is still linked into the scene
func (d *Document) InScene(o *Object) bool {
	if o == nil || d.Object(o.Id) != o {
		return false
	}
	for _, c := range d.collections {
		if c.Has(o.Id) {
			return true
		}
	}
	return false
}

func (d *Document) Actions() []*Action { return d.actions }

func (d *Document) Action(name string) *Action {
	for _, a := range d.actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func (d *Document) NewAction(name string) *Action {
	a := &Action{Name: uniqueName(name, func(s string) bool { return d.Action(s) != nil })}
	d.actions = append(d.actions, a)
	return a
}

// RemoveAction drops the action and clears every reference to it
func (d *Document) RemoveAction(a *Action) {
	for i, other := range d.actions {
		if other == a {
			d.actions = append(d.actions[:i], d.actions[i+1:]...)
			break
		}
	}
	for _, o := range d.objects {
		if o.AnimData == nil {
			continue
		}
		if o.AnimData.Action == a {
			o.AnimData.Action = nil
		}
		for _, t := range o.AnimData.Tracks {
			for _, s := range t.Strips {
				if s.Action == a {
					s.Action = nil
				}
			}
		}
	}
}

func (d *Document) Active() *Object { return d.Object(d.active) }

func (d *Document) SetActive(o *Object) {
	if o == nil {
		d.active = NilObject
		return
	}
	d.active = o.Id
}

func (d *Document) SelectedObjects() []*Object {
	list := make([]*Object, 0)
	for _, o := range d.Objects() {
		if o.selected {
			list = append(list, o)
		}
	}
	return list
}

func (d *Document) DeselectAll() {
	for _, o := range d.objects {
		o.selected = false
	}
}

func (d *Document) Mode() Mode { return d.mode }

// SetMode switches the interaction mode of the active object
func (d *Document) SetMode(mode Mode) error {
	switch mode {
	case ModeObject:
		d.mode = mode
		return nil
	case ModeEdit, ModePose:
		active := d.Active()
		if active == nil {
			return errors.Errorf("Can't switch to %s mode: no active object", mode)
		}
		if active.Kind != KindArmature {
			return errors.Errorf("Can't switch to %s mode: %q is not an armature", mode, active.Name)
		}
		if !d.InScene(active) {
			return errors.Errorf("Can't switch to %s mode: %q is not in the scene", mode, active.Name)
		}
		d.mode = mode
		return nil
	default:
		return errors.Errorf("Unknown mode %q", mode)
	}
}

func (d *Document) logf(format string, args ...interface{}) {
	log.Printf("[scene] "+format, args...)
}
