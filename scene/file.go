package scene

import (
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// scene file layout; objects reference each other by name

type fileKeyframe struct {
	Co          [2]float32  `yaml:"co,flow"`
	HandleLeft  *[2]float32 `yaml:"handle_left,omitempty,flow"`
	HandleRight *[2]float32 `yaml:"handle_right,omitempty,flow"`
}

type fileFCurve struct {
	DataPath  string         `yaml:"data_path"`
	Index     int            `yaml:"index"`
	Keyframes []fileKeyframe `yaml:"keyframes"`
}

type fileAction struct {
	Name    string       `yaml:"name"`
	FCurves []fileFCurve `yaml:"fcurves,omitempty"`
}

type fileBone struct {
	Name            string       `yaml:"name"`
	Parent          string       `yaml:"parent,omitempty"`
	Head            [3]float32   `yaml:"head,flow"`
	Tail            [3]float32   `yaml:"tail,flow"`
	Roll            float32      `yaml:"roll,omitempty"`
	Deform          bool         `yaml:"deform"`
	Connect         bool         `yaml:"connect,omitempty"`
	LocalLocation   *bool        `yaml:"local_location,omitempty"`
	InheritRotation *bool        `yaml:"inherit_rotation,omitempty"`
	InheritScale    InheritScale `yaml:"inherit_scale,omitempty"`
	Layers          []int        `yaml:"layers,omitempty,flow"`
	Hide            bool         `yaml:"hide,omitempty"`
	BBoneSegments   int          `yaml:"bbone_segments,omitempty"`
	Prefixed        bool         `yaml:"prefixed,omitempty"`
}

type fileArmature struct {
	Name    string            `yaml:"name"`
	Props   map[string]string `yaml:"props,omitempty"`
	Layers  []int             `yaml:"layers,omitempty,flow"`
	Drivers []fileFCurve      `yaml:"drivers,omitempty"`
	Bones   []fileBone        `yaml:"bones"`
}

type fileConstraint struct {
	Name      string         `yaml:"name"`
	Kind      ConstraintKind `yaml:"type"`
	Target    string         `yaml:"target,omitempty"`
	Subtarget string         `yaml:"subtarget,omitempty"`
	Enabled   bool           `yaml:"enabled"`
}

type filePoseBone struct {
	Bone        string           `yaml:"bone"`
	Location    *[3]float32      `yaml:"location,omitempty,flow"`
	Rotation    *[4]float32      `yaml:"rotation,omitempty,flow"`
	Scale       *[3]float32      `yaml:"scale,omitempty,flow"`
	Constraints []fileConstraint `yaml:"constraints,omitempty"`
}

type fileStrip struct {
	Name       string  `yaml:"name"`
	Action     string  `yaml:"action,omitempty"`
	FrameStart float32 `yaml:"frame_start"`
	FrameEnd   float32 `yaml:"frame_end"`
}

type fileTrack struct {
	Name   string      `yaml:"name"`
	Mute   bool        `yaml:"mute,omitempty"`
	Solo   bool        `yaml:"solo,omitempty"`
	Strips []fileStrip `yaml:"strips,omitempty"`
}

type fileAnimData struct {
	Action string      `yaml:"action,omitempty"`
	Tracks []fileTrack `yaml:"tracks,omitempty"`
}

type fileVertexGroup struct {
	Name    string          `yaml:"name"`
	Weights map[int]float32 `yaml:"weights,omitempty,flow"`
}

type fileMesh struct {
	Name     string       `yaml:"name,omitempty"`
	Vertices [][3]float32 `yaml:"vertices,flow"`
	Faces    [][]int      `yaml:"faces,flow"`
	Smooth   []bool       `yaml:"smooth,omitempty,flow"`
}

type fileModifier struct {
	Name   string       `yaml:"name"`
	Kind   ModifierKind `yaml:"type"`
	Object string       `yaml:"object,omitempty"`
}

type fileSettings struct {
	ExportMode           ExportMode      `yaml:"export_mode"`
	DisconnectAllBones   bool            `yaml:"disconnect_all_bones"`
	Recenter             bool            `yaml:"recenter"`
	AnimationNaming      AnimationNaming `yaml:"animation_naming"`
	ArmatureName         string          `yaml:"armature_name"`
	Path                 string          `yaml:"path,omitempty"`
	HaveAdditionalBones  bool            `yaml:"have_additional_bones,omitempty"`
	AdditionalBones      []string        `yaml:"additional_bones,omitempty"`
	AdditionalBonesToAdd string          `yaml:"additional_bones_toadd,omitempty"`
	AdditionalBonesIndex int             `yaml:"additional_bones_index,omitempty"`
	GeneratedRig         string          `yaml:"generated_rig,omitempty"`
}

type fileObject struct {
	Name         string            `yaml:"name"`
	Kind         Kind              `yaml:"type"`
	Parent       string            `yaml:"parent,omitempty"`
	Location     [3]float32        `yaml:"location,flow"`
	Rotation     [3]float32        `yaml:"rotation,flow"`
	Scale        *[3]float32       `yaml:"scale,omitempty,flow"`
	Hidden       bool              `yaml:"hidden,omitempty"`
	Selected     bool              `yaml:"selected,omitempty"`
	Armature     *fileArmature     `yaml:"armature,omitempty"`
	Pose         []filePoseBone    `yaml:"pose,omitempty"`
	Animation    *fileAnimData     `yaml:"animation,omitempty"`
	Mesh         *fileMesh         `yaml:"mesh,omitempty"`
	VertexGroups []fileVertexGroup `yaml:"vertex_groups,omitempty"`
	Modifiers    []fileModifier    `yaml:"modifiers,omitempty"`
	Settings     *fileSettings     `yaml:"settings,omitempty"`
	Origin       string            `yaml:"origin,omitempty"`
}

type fileCollection struct {
	Name    string   `yaml:"name"`
	Objects []string `yaml:"objects,flow"`
}

type fileScene struct {
	UnitScale    float32          `yaml:"unit_scale"`
	AutoKeyframe bool             `yaml:"auto_keyframe,omitempty"`
	FrameRate    float32          `yaml:"frame_rate,omitempty"`
	Active       string           `yaml:"active,omitempty"`
	Mode         Mode             `yaml:"mode,omitempty"`
	Collections  []fileCollection `yaml:"collections"`
	Objects      []fileObject     `yaml:"objects"`
	Actions      []fileAction     `yaml:"actions,omitempty"`
}

func nfc(s string) string { return norm.NFC.String(s) }

func layersFromList(list []int) (layers [LayersCount]bool, err error) {
	for _, l := range list {
		if l < 0 || l >= LayersCount {
			return layers, errors.Errorf("Layer index %d out of range", l)
		}
		layers[l] = true
	}
	return layers, nil
}

func layersToList(layers [LayersCount]bool) []int {
	list := make([]int, 0)
	for i, on := range layers {
		if on {
			list = append(list, i)
		}
	}
	return list
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func fcurvesFromFile(list []fileFCurve) []*FCurve {
	out := make([]*FCurve, 0, len(list))
	for _, ffc := range list {
		fc := &FCurve{DataPath: nfc(ffc.DataPath), Index: ffc.Index}
		for _, fk := range ffc.Keyframes {
			k := &Keyframe{Co: fk.Co, HandleLeft: fk.Co, HandleRight: fk.Co}
			if fk.HandleLeft != nil {
				k.HandleLeft = *fk.HandleLeft
			}
			if fk.HandleRight != nil {
				k.HandleRight = *fk.HandleRight
			}
			fc.Keyframes = append(fc.Keyframes, k)
		}
		out = append(out, fc)
	}
	return out
}

func fcurvesToFile(list []*FCurve) []fileFCurve {
	out := make([]fileFCurve, 0, len(list))
	for _, fc := range list {
		ffc := fileFCurve{DataPath: fc.DataPath, Index: fc.Index}
		for _, k := range fc.Keyframes {
			hl, hr := [2]float32(k.HandleLeft), [2]float32(k.HandleRight)
			ffc.Keyframes = append(ffc.Keyframes, fileKeyframe{Co: k.Co, HandleLeft: &hl, HandleRight: &hr})
		}
		out = append(out, ffc)
	}
	return out
}

func Load(r io.Reader) (*Document, error) {
	var fs fileScene
	if err := yaml.NewDecoder(r).Decode(&fs); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode scene")
	}

	d := NewDocument()
	if fs.UnitScale != 0 {
		d.UnitScale = fs.UnitScale
	}
	if fs.FrameRate != 0 {
		d.FrameRate = fs.FrameRate
	}
	d.AutoKeyframe = fs.AutoKeyframe

	for _, fa := range fs.Actions {
		name := nfc(fa.Name)
		if d.Action(name) != nil {
			return nil, errors.Errorf("Duplicate action %q", name)
		}
		a := d.NewAction(name)
		a.FCurves = fcurvesFromFile(fa.FCurves)
	}

	armatures := make(map[string]*Armature)
	for i := range fs.Objects {
		fo := &fs.Objects[i]
		fo.Name = nfc(fo.Name)
		if d.ObjectByName(fo.Name) != nil {
			return nil, errors.Errorf("Duplicate object %q", fo.Name)
		}

		var data interface{}
		switch fo.Kind {
		case KindArmature:
			if fo.Armature == nil {
				return nil, errors.Errorf("Armature object %q has no armature data", fo.Name)
			}
			a, err := armatureFromFile(fo.Armature, armatures)
			if err != nil {
				return nil, errors.Wrapf(err, "Failed to load armature of %q", fo.Name)
			}
			data = a
		case KindMesh:
			if fo.Mesh == nil {
				return nil, errors.Errorf("Mesh object %q has no mesh data", fo.Name)
			}
			m := &Mesh{Name: nfc(fo.Mesh.Name), Faces: fo.Mesh.Faces, Smooth: fo.Mesh.Smooth}
			for _, v := range fo.Mesh.Vertices {
				m.Vertices = append(m.Vertices, v)
			}
			for _, face := range m.Faces {
				for _, vi := range face {
					if vi < 0 || vi >= len(m.Vertices) {
						return nil, errors.Errorf("Mesh %q face references vertex %d out of range", fo.Name, vi)
					}
				}
			}
			data = m
		default:
			return nil, errors.Errorf("Unknown object type %q of %q", fo.Kind, fo.Name)
		}

		o, err := d.NewObject(fo.Name, data)
		if err != nil {
			return nil, err
		}
		o.Location = fo.Location
		o.Rotation = fo.Rotation
		if fo.Scale != nil {
			o.Scale = *fo.Scale
		}
		o.Hidden = fo.Hidden
		o.selected = fo.Selected

		for _, fvg := range fo.VertexGroups {
			vg := &VertexGroup{Name: nfc(fvg.Name), Weights: fvg.Weights}
			if vg.Weights == nil {
				vg.Weights = make(map[int]float32)
			}
			o.VertexGroups = append(o.VertexGroups, vg)
		}

		if fo.Animation != nil {
			ad := o.EnsureAnimData()
			if fo.Animation.Action != "" {
				if ad.Action = d.Action(nfc(fo.Animation.Action)); ad.Action == nil {
					return nil, errors.Errorf("Object %q references unknown action %q", fo.Name, fo.Animation.Action)
				}
			}
			for _, ft := range fo.Animation.Tracks {
				t := &Track{Name: nfc(ft.Name), Mute: ft.Mute, Solo: ft.Solo}
				for _, fstrip := range ft.Strips {
					s := &Strip{Name: nfc(fstrip.Name), FrameStart: fstrip.FrameStart, FrameEnd: fstrip.FrameEnd}
					if fstrip.Action != "" {
						if s.Action = d.Action(nfc(fstrip.Action)); s.Action == nil {
							return nil, errors.Errorf("Strip %q references unknown action %q", s.Name, fstrip.Action)
						}
					}
					t.Strips = append(t.Strips, s)
				}
				ad.Tracks = append(ad.Tracks, t)
			}
		}
	}

	// second pass: cross-object references
	for i := range fs.Objects {
		fo := &fs.Objects[i]
		o := d.ObjectByName(fo.Name)
		resolve := func(name, what string) (ObjectID, error) {
			if name == "" {
				return NilObject, nil
			}
			ref := d.ObjectByName(nfc(name))
			if ref == nil {
				return NilObject, errors.Errorf("Object %q references unknown %s %q", fo.Name, what, name)
			}
			return ref.Id, nil
		}

		var err error
		if o.Parent, err = resolve(fo.Parent, "parent"); err != nil {
			return nil, err
		}
		if o.Origin, err = resolve(fo.Origin, "origin"); err != nil {
			return nil, err
		}
		for _, fm := range fo.Modifiers {
			m := o.AddModifier(nfc(fm.Name), fm.Kind)
			if m.Object, err = resolve(fm.Object, "modifier target"); err != nil {
				return nil, err
			}
		}
		for _, fpb := range fo.Pose {
			pb := o.PoseBone(nfc(fpb.Bone))
			if pb == nil {
				return nil, errors.Errorf("Pose of %q references unknown bone %q", fo.Name, fpb.Bone)
			}
			if fpb.Location != nil {
				pb.Location = *fpb.Location
			}
			if fpb.Rotation != nil {
				pb.Rotation = mgl32.Quat{W: fpb.Rotation[0], V: mgl32.Vec3{fpb.Rotation[1], fpb.Rotation[2], fpb.Rotation[3]}}
			}
			if fpb.Scale != nil {
				pb.Scale = *fpb.Scale
			}
			for _, fc := range fpb.Constraints {
				c := pb.NewConstraint(fc.Kind, nfc(fc.Name))
				c.Subtarget = nfc(fc.Subtarget)
				c.Enabled = fc.Enabled
				if c.Target, err = resolve(fc.Target, "constraint target"); err != nil {
					return nil, err
				}
			}
		}
		if fset := fo.Settings; fset != nil {
			o.Settings = &RigSettings{
				ExportMode:           fset.ExportMode,
				DisconnectAllBones:   fset.DisconnectAllBones,
				Recenter:             fset.Recenter,
				AnimationNaming:      fset.AnimationNaming,
				ArmatureName:         nfc(fset.ArmatureName),
				Path:                 fset.Path,
				HaveAdditionalBones:  fset.HaveAdditionalBones,
				AdditionalBonesToAdd: nfc(fset.AdditionalBonesToAdd),
				AdditionalBonesIndex: fset.AdditionalBonesIndex,
			}
			for _, name := range fset.AdditionalBones {
				o.Settings.AdditionalBones = append(o.Settings.AdditionalBones, nfc(name))
			}
			if o.Settings.ExportMode == "" {
				o.Settings.ExportMode = ExportAll
			}
			if o.Settings.AnimationNaming == "" {
				o.Settings.AnimationNaming = NamingTrack
			}
			if o.Settings.GeneratedRig, err = resolve(fset.GeneratedRig, "generated rig"); err != nil {
				return nil, err
			}
		}
	}

	for _, fc := range fs.Collections {
		c := d.NewCollection(nfc(fc.Name))
		for _, name := range fc.Objects {
			o := d.ObjectByName(nfc(name))
			if o == nil {
				return nil, errors.Errorf("Collection %q references unknown object %q", fc.Name, name)
			}
			d.Link(c, o)
		}
	}

	if fs.Active != "" {
		if active := d.ObjectByName(nfc(fs.Active)); active != nil {
			d.SetActive(active)
		}
	}
	if fs.Mode != "" {
		if err := d.SetMode(fs.Mode); err != nil {
			return nil, errors.Wrapf(err, "Failed to restore mode")
		}
	}

	return d, nil
}

func armatureFromFile(fa *fileArmature, loaded map[string]*Armature) (*Armature, error) {
	name := nfc(fa.Name)
	if _, exists := loaded[name]; exists {
		return nil, errors.Errorf("Duplicate armature data %q", name)
	}
	a := NewArmature(name)
	loaded[name] = a
	for k, v := range fa.Props {
		a.Props[k] = v
	}
	if fa.Layers != nil {
		layers, err := layersFromList(fa.Layers)
		if err != nil {
			return nil, err
		}
		a.Layers = layers
	}
	a.Drivers = fcurvesFromFile(fa.Drivers)

	for _, fb := range fa.Bones {
		b, err := a.AddBone(nfc(fb.Name), nil)
		if err != nil {
			return nil, err
		}
		b.Head, b.Tail, b.Roll = fb.Head, fb.Tail, fb.Roll
		b.UseDeform = fb.Deform
		b.UseConnect = fb.Connect
		b.UseLocalLocation = boolOr(fb.LocalLocation, true)
		b.UseInheritRotation = boolOr(fb.InheritRotation, true)
		if fb.InheritScale != "" {
			b.InheritScale = fb.InheritScale
		}
		if fb.Layers != nil {
			if b.Layers, err = layersFromList(fb.Layers); err != nil {
				return nil, errors.Wrapf(err, "Bone %q", b.Name)
			}
		}
		b.Hide = fb.Hide
		if fb.BBoneSegments > 0 {
			b.BBoneSegments = fb.BBoneSegments
		}
		b.IsPrefixed = fb.Prefixed
	}
	for _, fb := range fa.Bones {
		if fb.Parent == "" {
			continue
		}
		parent := a.Bone(nfc(fb.Parent))
		if parent == nil {
			return nil, errors.Errorf("Bone %q references unknown parent %q", fb.Name, fb.Parent)
		}
		if !a.SetParent(a.Bone(nfc(fb.Name)), parent) {
			return nil, errors.Errorf("Bone %q can't be parented to %q", fb.Name, fb.Parent)
		}
	}
	return a, nil
}

func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open scene %q", path)
	}
	defer f.Close()
	return Load(f)
}

func (d *Document) name(id ObjectID) string {
	if o := d.Object(id); o != nil {
		return o.Name
	}
	return ""
}

func (d *Document) Save(w io.Writer) error {
	fs := fileScene{
		UnitScale:    d.UnitScale,
		AutoKeyframe: d.AutoKeyframe,
		FrameRate:    d.FrameRate,
		Active:       d.name(d.active),
		Mode:         d.mode,
	}

	for _, a := range d.actions {
		fs.Actions = append(fs.Actions, fileAction{Name: a.Name, FCurves: fcurvesToFile(a.FCurves)})
	}
	for _, c := range d.collections {
		fc := fileCollection{Name: c.Name, Objects: make([]string, 0, len(c.objects))}
		for _, id := range c.objects {
			fc.Objects = append(fc.Objects, d.name(id))
		}
		fs.Collections = append(fs.Collections, fc)
	}

	for _, o := range d.Objects() {
		scale := [3]float32(o.Scale)
		fo := fileObject{
			Name:     o.Name,
			Kind:     o.Kind,
			Parent:   d.name(o.Parent),
			Location: o.Location,
			Rotation: o.Rotation,
			Scale:    &scale,
			Hidden:   o.Hidden,
			Selected: o.selected,
			Origin:   d.name(o.Origin),
		}

		if a := o.Armature; a != nil {
			fa := &fileArmature{Name: a.Name, Props: a.Props, Layers: layersToList(a.Layers), Drivers: fcurvesToFile(a.Drivers)}
			for _, b := range a.Bones() {
				local, inherit := b.UseLocalLocation, b.UseInheritRotation
				fb := fileBone{
					Name: b.Name, Head: b.Head, Tail: b.Tail, Roll: b.Roll,
					Deform: b.UseDeform, Connect: b.UseConnect,
					LocalLocation: &local, InheritRotation: &inherit, InheritScale: b.InheritScale,
					Layers: layersToList(b.Layers), Hide: b.Hide, BBoneSegments: b.BBoneSegments,
					Prefixed: b.IsPrefixed,
				}
				if b.Parent() != nil {
					fb.Parent = b.Parent().Name
				}
				fa.Bones = append(fa.Bones, fb)
			}
			fo.Armature = fa

			for _, pb := range o.PoseBones() {
				loc, scl := [3]float32(pb.Location), [3]float32(pb.Scale)
				rot := [4]float32{pb.Rotation.W, pb.Rotation.V[0], pb.Rotation.V[1], pb.Rotation.V[2]}
				fpb := filePoseBone{Bone: pb.Name, Location: &loc, Rotation: &rot, Scale: &scl}
				for _, c := range pb.Constraints {
					fpb.Constraints = append(fpb.Constraints, fileConstraint{
						Name: c.Name, Kind: c.Kind, Target: d.name(c.Target), Subtarget: c.Subtarget, Enabled: c.Enabled,
					})
				}
				fo.Pose = append(fo.Pose, fpb)
			}
		}

		if ad := o.AnimData; ad != nil {
			fad := &fileAnimData{}
			if ad.Action != nil {
				fad.Action = ad.Action.Name
			}
			for _, t := range ad.Tracks {
				ft := fileTrack{Name: t.Name, Mute: t.Mute, Solo: t.Solo}
				for _, s := range t.Strips {
					fstrip := fileStrip{Name: s.Name, FrameStart: s.FrameStart, FrameEnd: s.FrameEnd}
					if s.Action != nil {
						fstrip.Action = s.Action.Name
					}
					ft.Strips = append(ft.Strips, fstrip)
				}
				fad.Tracks = append(fad.Tracks, ft)
			}
			fo.Animation = fad
		}

		if m := o.Mesh; m != nil {
			fm := &fileMesh{Name: m.Name, Faces: m.Faces, Smooth: m.Smooth}
			for _, v := range m.Vertices {
				fm.Vertices = append(fm.Vertices, v)
			}
			fo.Mesh = fm
		}
		for _, vg := range o.VertexGroups {
			fo.VertexGroups = append(fo.VertexGroups, fileVertexGroup{Name: vg.Name, Weights: vg.Weights})
		}
		for _, m := range o.Modifiers {
			fo.Modifiers = append(fo.Modifiers, fileModifier{Name: m.Name, Kind: m.Kind, Object: d.name(m.Object)})
		}

		if s := o.Settings; s != nil {
			fo.Settings = &fileSettings{
				ExportMode:           s.ExportMode,
				DisconnectAllBones:   s.DisconnectAllBones,
				Recenter:             s.Recenter,
				AnimationNaming:      s.AnimationNaming,
				ArmatureName:         s.ArmatureName,
				Path:                 s.Path,
				HaveAdditionalBones:  s.HaveAdditionalBones,
				AdditionalBones:      s.AdditionalBones,
				AdditionalBonesToAdd: s.AdditionalBonesToAdd,
				AdditionalBonesIndex: s.AdditionalBonesIndex,
				GeneratedRig:         d.name(s.GeneratedRig),
			}
		}

		fs.Objects = append(fs.Objects, fo)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&fs); err != nil {
		return errors.Wrapf(err, "Failed to marshal yaml")
	}
	return errors.Wrapf(enc.Close(), "Failed to close yaml encoder")
}

func (d *Document) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create scene %q", path)
	}
	defer f.Close()
	return d.Save(f)
}
