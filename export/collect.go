package export

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/utils"
)

func axisVector(name string) (mgl32.Vec3, error) {
	switch name {
	case "X":
		return mgl32.Vec3{1, 0, 0}, nil
	case "Y":
		return mgl32.Vec3{0, 1, 0}, nil
	case "Z":
		return mgl32.Vec3{0, 0, 1}, nil
	case "-X":
		return mgl32.Vec3{-1, 0, 0}, nil
	case "-Y":
		return mgl32.Vec3{0, -1, 0}, nil
	case "-Z":
		return mgl32.Vec3{0, 0, -1}, nil
	}
	return mgl32.Vec3{}, errors.Errorf("Unknown axis %q", name)
}

// space converts host coordinates (Z up, Y forward) into the output axes
type space struct {
	axis    mgl32.Mat4
	axisInv mgl32.Mat4
	rot     mgl32.Quat
	scale   float32

	forward, up mgl32.Vec3
}

func newSpace(p *Params) (*space, error) {
	f, err := axisVector(p.AxisForward)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid forward axis")
	}
	u, err := axisVector(p.AxisUp)
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid up axis")
	}
	if f.Cross(u).Len() == 0 {
		return nil, errors.Errorf("Forward axis %s and up axis %s are parallel", p.AxisForward, p.AxisUp)
	}
	axis := mgl32.Mat4FromCols(f.Cross(u).Vec4(0), f.Vec4(0), u.Vec4(0), mgl32.Vec4{0, 0, 0, 1})
	s := &space{
		axis:    axis,
		axisInv: axis.Transpose(),
		rot:     mgl32.Mat4ToQuat(axis),
		scale:   p.GlobalScale,
		forward: f,
		up:      u,
	}
	if s.scale == 0 {
		s.scale = 1
	}
	return s, nil
}

func (s *space) point(v mgl32.Vec3) mgl32.Vec3 {
	return utils.TransformPoint(s.axis, v).Mul(s.scale)
}

func (s *space) matrix(m mgl32.Mat4) mgl32.Mat4 {
	c := s.axis.Mul4(m).Mul4(s.axisInv)
	c.SetCol(3, c.Col(3).Vec3().Mul(s.scale).Vec4(1))
	return c
}

func (s *space) quat(q mgl32.Quat) mgl32.Quat {
	return s.rot.Mul(q).Mul(s.rot.Conjugate())
}

// exportBone is a bone with its converted rest placement
type exportBone struct {
	bone   *scene.Bone
	name   string
	parent int
	// offset from parent head (or armature origin) in output space
	local mgl32.Vec3
	// rest matrix in output world space
	global mgl32.Mat4
}

type exportRig struct {
	obj    *scene.Object
	name   string
	global mgl32.Mat4
	bones  []*exportBone
	index  map[string]int
	meshes []*exportMesh
}

type exportMesh struct {
	obj    *scene.Object
	name   string
	rig    *exportRig
	global mgl32.Mat4
}

type exportScene struct {
	doc    *scene.Document
	params *Params
	space  *space
	rigs   []*exportRig
	meshes []*exportMesh
	names  func(string) (string, error)
}

func encodeNames(prefs *config.Preferences) func(string) (string, error) {
	return func(name string) (string, error) {
		if prefs == nil {
			return name, nil
		}
		bs, err := prefs.EncodeName(name)
		if err != nil {
			return "", err
		}
		return string(bs), nil
	}
}

func (es *exportScene) candidates() []*scene.Object {
	var list []*scene.Object
	if es.params.UseSelection {
		list = es.doc.SelectedObjects()
	} else {
		for _, o := range es.doc.Objects() {
			if es.doc.InScene(o) {
				list = append(list, o)
			}
		}
	}
	filtered := list[:0]
	for _, o := range list {
		if es.params.exports(o.Kind) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// boundRig finds the exported rig deforming a mesh: parent first, then modifiers
func (es *exportScene) boundRig(m *scene.Object) *exportRig {
	for _, r := range es.rigs {
		if m.Parent == r.obj.Id {
			return r
		}
	}
	for _, mod := range m.Modifiers {
		if mod.Kind != scene.ModifierArmature {
			continue
		}
		for _, r := range es.rigs {
			if mod.Object == r.obj.Id {
				return r
			}
		}
	}
	return nil
}

func collect(doc *scene.Document, params *Params, prefs *config.Preferences) (*exportScene, error) {
	sp, err := newSpace(params)
	if err != nil {
		return nil, err
	}
	es := &exportScene{doc: doc, params: params, space: sp, names: encodeNames(prefs)}

	objects := es.candidates()
	if len(objects) == 0 {
		return nil, errors.Errorf("Nothing to export")
	}

	for _, o := range objects {
		if o.Kind != scene.KindArmature {
			continue
		}
		r, err := es.collectRig(o)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't export rig %q", o.Name)
		}
		es.rigs = append(es.rigs, r)
	}
	for _, o := range objects {
		if o.Kind != scene.KindMesh {
			continue
		}
		name, err := es.names(o.Name)
		if err != nil {
			return nil, err
		}
		m := &exportMesh{
			obj:    o,
			name:   name,
			rig:    es.boundRig(o),
			global: sp.matrix(doc.WorldMatrix(o)),
		}
		if m.rig != nil {
			m.rig.meshes = append(m.rig.meshes, m)
		}
		es.meshes = append(es.meshes, m)
	}
	return es, nil
}

func (es *exportScene) collectRig(o *scene.Object) (*exportRig, error) {
	name, err := es.names(o.Name)
	if err != nil {
		return nil, err
	}
	r := &exportRig{
		obj:    o,
		name:   name,
		global: es.space.matrix(es.doc.WorldMatrix(o)),
		index:  make(map[string]int),
	}

	for _, b := range o.Armature.Bones() {
		if es.params.UseArmatureDeformOnly && !b.UseDeform {
			continue
		}
		bname, err := es.names(b.Name)
		if err != nil {
			return nil, err
		}
		r.index[b.Name] = len(r.bones)
		r.bones = append(r.bones, &exportBone{bone: b, name: bname, parent: -1})
	}

	// parents may come after children in armature order
	for _, eb := range r.bones {
		head := eb.bone.Head
		for p := eb.bone.Parent(); p != nil; p = p.Parent() {
			if i, ok := r.index[p.Name]; ok {
				eb.parent = i
				head = head.Sub(p.Head)
				break
			}
		}
		eb.local = es.space.point(head)
		eb.global = r.global.Mul4(mgl32.Translate3D(es.space.point(eb.bone.Head).Elem()))
	}
	return r, nil
}

// children lists bone indices whose parent is i, -1 for top level bones
func (r *exportRig) children(i int) []int {
	list := make([]int, 0)
	for j, b := range r.bones {
		if b.parent == i {
			list = append(list, j)
		}
	}
	return list
}

// skinWeights returns per vertex (bone index, weight) pairs sorted by weight
func (m *exportMesh) skinWeights() [][]skinWeight {
	weights := make([][]skinWeight, len(m.obj.Mesh.Vertices))
	if m.rig == nil {
		return weights
	}
	for _, vg := range m.obj.VertexGroups {
		bi, ok := m.rig.index[vg.Name]
		if !ok {
			continue
		}
		for vi, w := range vg.Weights {
			if vi < 0 || vi >= len(weights) || w <= 0 {
				continue
			}
			weights[vi] = append(weights[vi], skinWeight{bone: bi, weight: w})
		}
	}
	for _, list := range weights {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].weight == list[j].weight {
				return list[i].bone < list[j].bone
			}
			return list[i].weight > list[j].weight
		})
	}
	return weights
}

type skinWeight struct {
	bone   int
	weight float32
}

// tracks lists exported clips of a rig: NLA strips when baking strips,
// otherwise the active action
func (es *exportScene) tracks(r *exportRig) []clip {
	ad := r.obj.AnimData
	if !es.params.BakeAnim || ad == nil {
		return nil
	}
	clips := make([]clip, 0)
	if es.params.BakeAnimUseNLAStrips {
		for _, t := range ad.Tracks {
			if t.Mute || len(t.Strips) == 0 || t.Strips[0].Action == nil {
				continue
			}
			clips = append(clips, clip{name: t.Name, action: t.Strips[0].Action})
		}
	}
	if len(clips) == 0 && ad.Action != nil {
		clips = append(clips, clip{name: ad.Action.Name, action: ad.Action})
	}
	if es.params.BakeAnimUseAllActions {
		seen := make(map[*scene.Action]struct{})
		for _, c := range clips {
			seen[c.action] = struct{}{}
		}
		for _, a := range es.doc.Actions() {
			if _, ok := seen[a]; !ok {
				clips = append(clips, clip{name: a.Name, action: a})
			}
		}
	}
	return clips
}

type clip struct {
	name   string
	action *scene.Action
}

// frames lists sampled frames of a clip, always including both ends when forced
func (es *exportScene) frames(c clip) []float32 {
	start, end := c.action.FrameRange()
	step := es.params.BakeAnimStep
	if step <= 0 {
		step = 1
	}
	frames := make([]float32, 0, int((end-start)/step)+2)
	for f := start; f <= end; f += step {
		frames = append(frames, f)
	}
	if es.params.BakeAnimForceStartEndKeying && frames[len(frames)-1] != end {
		frames = append(frames, end)
	}
	return frames
}

// animatedBones is the set of bone indices getting curves for a clip
func (es *exportScene) animatedBones(r *exportRig, c clip) []int {
	list := make([]int, 0, len(r.bones))
	animated := c.action.AnimatedBones()
	for i, b := range r.bones {
		if _, ok := animated[b.bone.Name]; ok || es.params.BakeAnimUseAllBones {
			list = append(list, i)
		}
	}
	return list
}

// poseSample is a bone local transform in output space
type poseSample struct {
	translation mgl32.Vec3
	rotation    mgl32.Quat
	scale       mgl32.Vec3
}

func (es *exportScene) sample(r *exportRig, c clip, frame float32) []poseSample {
	names := make([]string, len(r.bones))
	for i, b := range r.bones {
		names[i] = b.bone.Name
	}
	pose := scene.SampleAction(c.action, frame, names)
	samples := make([]poseSample, len(r.bones))
	for i, b := range r.bones {
		ch := pose[b.bone.Name]
		samples[i] = poseSample{
			translation: b.local.Add(es.space.point(ch.Location)),
			rotation:    es.space.quat(ch.Rotation),
			scale:       ch.Scale,
		}
	}
	return samples
}
