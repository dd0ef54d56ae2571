package export

import (
	"log"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/utils"
	"github.com/twentybeeraces/SanitizeRigify/utils/gltfutils"
)

// GLTFWriter writes binary gltf, one skin per exported rig
type GLTFWriter struct {
	Prefs *config.Preferences
}

type gltfRig struct {
	rig    *exportRig
	node   uint32
	joints []uint32
	skin   uint32
}

func (w *GLTFWriter) Write(doc *scene.Document, path string, params Params) error {
	es, err := collect(doc, &params, w.Prefs)
	if err != nil {
		return err
	}

	gdoc := gltfutils.NewDocument()
	if err := w.build(gdoc, es); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	defer file.Close()
	if err := gltfutils.ExportBinary(file, gdoc); err != nil {
		return errors.Wrapf(err, "Failed to write gltf %q", path)
	}
	log.Printf("[export] gltf %q written: %d rigs, %d meshes", path, len(es.rigs), len(es.meshes))
	return nil
}

func trs(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	loc, rot, scl := utils.Decompose(m)
	return loc, utils.EulerToQuat(rot), scl
}

func (w *GLTFWriter) build(gdoc *gltf.Document, es *exportScene) error {
	rigs := make(map[*exportRig]*gltfRig)
	for _, r := range es.rigs {
		gr := w.addRig(gdoc, r)
		rigs[r] = gr
		gdoc.Scenes[0].Nodes = append(gdoc.Scenes[0].Nodes, gr.node)
	}

	for _, m := range es.meshes {
		var gr *gltfRig
		if m.rig != nil {
			gr = rigs[m.rig]
		}
		node := w.addMesh(gdoc, es, m, gr)
		if gr != nil {
			gdoc.Nodes[gr.node].Children = append(gdoc.Nodes[gr.node].Children, node)
		} else {
			gdoc.Scenes[0].Nodes = append(gdoc.Scenes[0].Nodes, node)
		}
	}

	for _, r := range es.rigs {
		for _, c := range es.tracks(r) {
			if err := w.addClip(gdoc, es, rigs[r], c); err != nil {
				return errors.Wrapf(err, "Can't export clip %q of %q", c.name, r.obj.Name)
			}
		}
	}
	return nil
}

func (w *GLTFWriter) addRig(gdoc *gltf.Document, r *exportRig) *gltfRig {
	gr := &gltfRig{rig: r, joints: make([]uint32, len(r.bones))}

	loc, rot, scl := trs(r.global)
	gr.node = gltfutils.AddNode(gdoc, &gltf.Node{
		Name:        r.name,
		Translation: loc,
		Rotation:    rot.V.Vec4(rot.W),
		Scale:       scl,
	})

	for i, b := range r.bones {
		gr.joints[i] = gltfutils.AddNode(gdoc, &gltf.Node{
			Name:        b.name,
			Translation: b.local,
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
		})
	}

	ibms := make([]mgl32.Mat4, len(r.bones))
	for i, b := range r.bones {
		parent := gr.node
		if b.parent >= 0 {
			parent = gr.joints[b.parent]
		}
		gdoc.Nodes[parent].Children = append(gdoc.Nodes[parent].Children, gr.joints[i])
		// joints are relative to the rig node, meshes are children of it too
		ibms[i] = mgl32.Translate3D(b.local.Elem()).Inv()
		for p := b.parent; p >= 0; p = r.bones[p].parent {
			ibms[i] = ibms[i].Mul4(mgl32.Translate3D(r.bones[p].local.Elem()).Inv())
		}
	}

	if len(r.bones) != 0 {
		gdoc.Skins = append(gdoc.Skins, &gltf.Skin{
			Name:                r.name,
			Joints:              gr.joints,
			InverseBindMatrices: gltf.Index(gltfutils.WriteInverseBindMatrices(gdoc, ibms)),
			Skeleton:            gltf.Index(gr.node),
		})
		gr.skin = uint32(len(gdoc.Skins) - 1)
	}
	return gr
}

// triangulate fans polygons around their first vertex
func triangulate(faces [][]int) []uint32 {
	indices := make([]uint32, 0, len(faces)*3)
	for _, face := range faces {
		for i := 2; i < len(face); i++ {
			indices = append(indices, uint32(face[0]), uint32(face[i-1]), uint32(face[i]))
		}
	}
	return indices
}

// jointsAndWeights keeps 4 strongest influences per vertex, normalized.
// Unweighted vertices are bound to the first joint.
func jointsAndWeights(weights [][]skinWeight) ([][4]uint16, [][4]float32) {
	joints := make([][4]uint16, len(weights))
	values := make([][4]float32, len(weights))
	for vi, list := range weights {
		if len(list) > 4 {
			list = list[:4]
		}
		var total float32
		for _, sw := range list {
			total += sw.weight
		}
		if total == 0 {
			values[vi][0] = 1
			continue
		}
		for i, sw := range list {
			joints[vi][i] = uint16(sw.bone)
			values[vi][i] = sw.weight / total
		}
	}
	return joints, values
}

func (w *GLTFWriter) addMesh(gdoc *gltf.Document, es *exportScene, m *exportMesh, gr *gltfRig) uint32 {
	positions := make([][3]float32, len(m.obj.Mesh.Vertices))
	for i, v := range m.obj.Mesh.Vertices {
		positions[i] = es.space.point(v)
	}

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(gdoc, positions),
	}
	if gr != nil && len(gr.joints) != 0 {
		joints, weights := jointsAndWeights(m.skinWeights())
		attributes["JOINTS_0"] = modeler.WriteJoints(gdoc, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(gdoc, weights)
	}
	indices := modeler.WriteIndices(gdoc, triangulate(m.obj.Mesh.Faces))

	gdoc.Meshes = append(gdoc.Meshes, &gltf.Mesh{
		Name: m.name,
		Primitives: []*gltf.Primitive{
			&gltf.Primitive{
				Indices:    &indices,
				Attributes: attributes,
			},
		},
	})

	local := m.global
	if gr != nil {
		local = gr.rig.global.Inv().Mul4(m.global)
	}
	loc, rot, scl := trs(local)
	node := &gltf.Node{
		Name:        m.name,
		Mesh:        gltf.Index(uint32(len(gdoc.Meshes) - 1)),
		Translation: loc,
		Rotation:    rot.V.Vec4(rot.W),
		Scale:       scl,
	}
	if gr != nil && len(gr.joints) != 0 {
		node.Skin = gltf.Index(gr.skin)
	}
	return gltfutils.AddNode(gdoc, node)
}

func (w *GLTFWriter) addClip(gdoc *gltf.Document, es *exportScene, gr *gltfRig, c clip) error {
	name, err := es.names(c.name)
	if err != nil {
		return err
	}
	fps := es.doc.FrameRate
	if fps <= 0 {
		return errors.Errorf("Invalid frame rate %v", fps)
	}

	frames := es.frames(c)
	times := make([]float32, len(frames))
	for i, frame := range frames {
		times[i] = (frame - frames[0]) / fps
	}
	samples := make([][]poseSample, len(frames))
	for i, frame := range frames {
		samples[i] = es.sample(gr.rig, c, frame)
	}

	bones := es.animatedBones(gr.rig, c)
	if len(bones) == 0 {
		log.Printf("[export] clip %q has no animated bones, skipped", c.name)
		return nil
	}

	anim := &gltf.Animation{Name: name}
	input := modeler.WriteAccessor(gdoc, gltf.TargetNone, times)
	for _, bi := range bones {
		translations := make([][3]float32, len(frames))
		rotations := make([][4]float32, len(frames))
		scales := make([][3]float32, len(frames))
		for i := range frames {
			s := samples[i][bi]
			translations[i] = s.translation
			rotations[i] = s.rotation.V.Vec4(s.rotation.W)
			scales[i] = s.scale
		}
		gltfutils.AddSampler(gdoc, anim, input, translations, gr.joints[bi], gltf.TRSTranslation)
		gltfutils.AddSampler(gdoc, anim, input, rotations, gr.joints[bi], gltf.TRSRotation)
		gltfutils.AddSampler(gdoc, anim, input, scales, gr.joints[bi], gltf.TRSScale)
	}
	gdoc.Animations = append(gdoc.Animations, anim)
	return nil
}
