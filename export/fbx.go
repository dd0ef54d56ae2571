package export

import (
	"log"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/utils"
	"github.com/twentybeeraces/SanitizeRigify/utils/fbxbuilder"
)

type FBXWriter struct {
	Prefs *config.Preferences
}

// object builds an id/name/class record of the Objects section
func object(kind string, id int64, name, class string) *fbx.Node {
	return fbxbuilder.Node(kind, id, name, class)
}

func matrixToF64(m mgl32.Mat4) []float64 {
	return utils.FloatArray32to64(m[:])
}

func vecP(name string, v mgl32.Vec3) *fbx.Node {
	return bfbx73.P(name, name, "", "A", float64(v[0]), float64(v[1]), float64(v[2]))
}

// axisSetting returns index and sign of the dominant component of v
func axisSetting(v mgl32.Vec3) (int32, int32) {
	for i := 0; i < 3; i++ {
		if v[i] != 0 {
			if v[i] < 0 {
				return int32(i), -1
			}
			return int32(i), 1
		}
	}
	return 0, 1
}

func (w *FBXWriter) options(es *exportScene) fbxbuilder.Options {
	opts := fbxbuilder.DefaultOptions()
	opts.Metadata = es.params.UseMetadata
	opts.UpAxis, opts.UpAxisSign = axisSetting(es.space.up)
	opts.FrontAxis, opts.FrontAxisSign = axisSetting(es.space.forward.Mul(-1))
	opts.CoordAxis, opts.CoordAxisSign = axisSetting(es.space.forward.Cross(es.space.up))
	if es.params.ApplyUnitScale {
		// fbx units are centimeters
		opts.UnitScaleFactor = float64(es.doc.UnitScale) * 100
	}
	return opts
}

type fbxRig struct {
	rig   *exportRig
	model *fbx.Node
	bones []*fbx.Node
}

func (w *FBXWriter) Write(doc *scene.Document, path string, params Params) error {
	es, err := collect(doc, &params, w.Prefs)
	if err != nil {
		return err
	}
	f := fbxbuilder.NewFBXBuilder(path, w.options(es))
	if err := w.build(f, es); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create %q", path)
	}
	defer file.Close()
	if err := f.Write(file); err != nil {
		return errors.Wrapf(err, "Failed to write fbx %q", path)
	}
	log.Printf("[export] fbx %q written: %d rigs, %d meshes", path, len(es.rigs), len(es.meshes))
	return nil
}

func (w *FBXWriter) build(f *fbxbuilder.FBXBuilder, es *exportScene) error {
	rigs := make(map[*exportRig]*fbxRig)
	for _, r := range es.rigs {
		fr := w.addRig(f, es, r)
		rigs[r] = fr
	}

	meshModels := make(map[*exportMesh]*fbx.Node)
	for _, m := range es.meshes {
		model, geometry := w.addMesh(f, es, m)
		meshModels[m] = model
		if m.rig != nil {
			f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(model), fbxbuilder.Id(rigs[m.rig].model)))
			w.addSkin(f, m, geometry, rigs[m.rig])
		} else {
			f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(model), int64(0)))
		}
	}

	for _, r := range es.rigs {
		w.addBindPose(f, rigs[r], meshModels)
		for _, c := range es.tracks(r) {
			if err := w.addClip(f, es, rigs[r], c); err != nil {
				return errors.Wrapf(err, "Can't export clip %q of %q", c.name, r.obj.Name)
			}
		}
	}
	return nil
}

func modelNode(id int64, name, class string, local mgl32.Mat4) *fbx.Node {
	loc, rot, scl := utils.Decompose(local)
	rot = utils.RadiansToDegreeV3(rot)
	return bfbx73.Model(id, fbxbuilder.Name(name, "Model"), class).AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("InheritType", "enum", "", "", int32(1)),
			bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
			vecP("Lcl Translation", loc),
			vecP("Lcl Rotation", rot),
			vecP("Lcl Scaling", scl),
		),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
}

func (w *FBXWriter) addRig(f *fbxbuilder.FBXBuilder, es *exportScene, r *exportRig) *fbxRig {
	fr := &fbxRig{rig: r, bones: make([]*fbx.Node, len(r.bones))}

	// armature as null node, bones as limb nodes under it
	fr.model = modelNode(f.GenerateId(), r.name, "Null", r.global)
	attr := bfbx73.NodeAttribute(f.GenerateId(), fbxbuilder.Name(r.name, "NodeAttribute"), "Null").AddNodes(
		bfbx73.TypeFlags("Null"),
	)
	f.AddObjects(fr.model, attr)
	f.AddConnections(
		bfbx73.C("OO", fbxbuilder.Id(attr), fbxbuilder.Id(fr.model)),
		bfbx73.C("OO", fbxbuilder.Id(fr.model), int64(0)),
	)

	for i, b := range r.bones {
		fr.bones[i] = w.addLimb(f, b.name, b.local)
	}
	for i, b := range r.bones {
		parent := fr.model
		if b.parent >= 0 {
			parent = fr.bones[b.parent]
		}
		f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(fr.bones[i]), fbxbuilder.Id(parent)))

		if es.params.AddLeafBones && len(r.children(i)) == 0 {
			leaf := w.addLimb(f, b.name+"_end", es.space.point(b.bone.Tail.Sub(b.bone.Head)))
			f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(leaf), fbxbuilder.Id(fr.bones[i])))
		}
	}
	return fr
}

func (w *FBXWriter) addLimb(f *fbxbuilder.FBXBuilder, name string, local mgl32.Vec3) *fbx.Node {
	model := modelNode(f.GenerateId(), name, "LimbNode", mgl32.Translate3D(local.Elem()))
	attr := bfbx73.NodeAttribute(f.GenerateId(), fbxbuilder.Name(name, "NodeAttribute"), "LimbNode").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Size", "double", "Number", "", float64(1)),
		),
		bfbx73.TypeFlags("Skeleton"),
	)
	f.AddObjects(model, attr)
	f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(attr), fbxbuilder.Id(model)))
	return model
}

func (w *FBXWriter) addMesh(f *fbxbuilder.FBXBuilder, es *exportScene, m *exportMesh) (*fbx.Node, *fbx.Node) {
	mesh := m.obj.Mesh

	vertices := make([]float64, 0, len(mesh.Vertices)*3)
	for _, v := range mesh.Vertices {
		p := es.space.point(v)
		vertices = append(vertices, float64(p[0]), float64(p[1]), float64(p[2]))
	}

	indexes := make([]int32, 0)
	smoothing := make([]int32, 0, len(mesh.Faces))
	for iFace, face := range mesh.Faces {
		for i, vi := range face {
			if i == len(face)-1 {
				// last index of a polygon is stored as -(index)-1
				indexes = append(indexes, -int32(vi)-1)
			} else {
				indexes = append(indexes, int32(vi))
			}
		}
		if mesh.IsFaceSmooth(iFace) {
			smoothing = append(smoothing, 1)
		} else {
			smoothing = append(smoothing, 0)
		}
	}

	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(f.GenerateId(), fbxbuilder.Name(m.name, "Geometry"), "Mesh").AddNodes(
		bfbx73.Properties70(),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
	)
	if es.params.MeshSmoothType == SmoothFace {
		geometry.AddNode(
			fbxbuilder.Node("LayerElementSmoothing", int32(0)).AddNodes(
				bfbx73.Version(102),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByPolygon"),
				bfbx73.ReferenceInformationType("Direct"),
				fbxbuilder.Node("Smoothing", smoothing),
			),
		)
		geometryLayer.AddNode(
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementSmoothing"),
				bfbx73.TypedIndex(0),
			),
		)
	}
	geometry.AddNode(geometryLayer)

	local := m.global
	if m.rig != nil {
		local = m.rig.global.Inv().Mul4(m.global)
	}
	model := modelNode(f.GenerateId(), m.name, "Mesh", local)
	f.AddObjects(model, geometry)
	f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(geometry), fbxbuilder.Id(model)))
	return model, geometry
}

func (w *FBXWriter) addSkin(f *fbxbuilder.FBXBuilder, m *exportMesh, geometry *fbx.Node, fr *fbxRig) {
	weights := m.skinWeights()

	indexes := make([][]int32, len(fr.bones))
	values := make([][]float64, len(fr.bones))
	for vi, list := range weights {
		for _, sw := range list {
			indexes[sw.bone] = append(indexes[sw.bone], int32(vi))
			values[sw.bone] = append(values[sw.bone], float64(sw.weight))
		}
	}

	skin := object("Deformer", f.GenerateId(), fbxbuilder.Name(m.name, "Deformer"), "Skin").AddNodes(
		bfbx73.Version(101),
		fbxbuilder.Node("Link_DeformAcuracy", float64(50)),
	)
	f.AddObjects(skin)
	f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(skin), fbxbuilder.Id(geometry)))

	for bi, b := range fr.rig.bones {
		if len(indexes[bi]) == 0 {
			continue
		}
		cluster := object("Deformer", f.GenerateId(), fbxbuilder.Name(b.name, "SubDeformer"), "Cluster").AddNodes(
			bfbx73.Version(100),
			fbxbuilder.Node("UserData", "", ""),
			fbxbuilder.Node("Indexes", indexes[bi]),
			fbxbuilder.Node("Weights", values[bi]),
			fbxbuilder.Node("Transform", matrixToF64(b.global.Inv().Mul4(m.global))),
			fbxbuilder.Node("TransformLink", matrixToF64(b.global)),
		)
		f.AddObjects(cluster)
		f.AddConnections(
			bfbx73.C("OO", fbxbuilder.Id(cluster), fbxbuilder.Id(skin)),
			bfbx73.C("OO", fbxbuilder.Id(fr.bones[bi]), fbxbuilder.Id(cluster)),
		)
	}
}

func (w *FBXWriter) addBindPose(f *fbxbuilder.FBXBuilder, fr *fbxRig, meshModels map[*exportMesh]*fbx.Node) {
	poseNode := func(model *fbx.Node, m mgl32.Mat4) *fbx.Node {
		return fbxbuilder.Node("PoseNode").AddNodes(
			fbxbuilder.Node("Node", fbxbuilder.Id(model)),
			fbxbuilder.Node("Matrix", matrixToF64(m)),
		)
	}

	nodes := []*fbx.Node{poseNode(fr.model, fr.rig.global)}
	for i, b := range fr.rig.bones {
		nodes = append(nodes, poseNode(fr.bones[i], b.global))
	}
	for _, m := range fr.rig.meshes {
		nodes = append(nodes, poseNode(meshModels[m], m.global))
	}

	pose := object("Pose", f.GenerateId(), fbxbuilder.Name(fr.rig.name, "Pose"), "BindPose").AddNodes(
		bfbx73.Type("BindPose"),
		bfbx73.Version(100),
		fbxbuilder.Node("NbPoseNodes", int32(len(nodes))),
	)
	pose.AddNodes(nodes...)
	f.AddObjects(pose)
}

func ktime(frame, fps float32) int64 {
	return int64(math.Round(float64(frame) / float64(fps) * float64(fbxbuilder.FBX_KTIME_SECOND)))
}

func (w *FBXWriter) addCurve(f *fbxbuilder.FBXBuilder, curveNode *fbx.Node, channel string, times []int64, values []float32) {
	curve := object("AnimationCurve", f.GenerateId(), fbxbuilder.Name("", "AnimCurve"), "").AddNodes(
		fbxbuilder.Node("Default", float64(values[0])),
		fbxbuilder.Node("KeyVer", int32(4009)),
		fbxbuilder.Node("KeyTime", times),
		fbxbuilder.Node("KeyValueFloat", values),
		// linear interpolation, constant tangents
		fbxbuilder.Node("KeyAttrFlags", []int32{4}),
		fbxbuilder.Node("KeyAttrDataFloat", []float32{0, 0, 0, 0}),
		fbxbuilder.Node("KeyAttrRefCount", []int32{int32(len(times))}),
	)
	f.AddObjects(curve)
	f.AddConnections(fbxbuilder.Node("C", "OP", fbxbuilder.Id(curve), fbxbuilder.Id(curveNode), channel))
}

func (w *FBXWriter) addClip(f *fbxbuilder.FBXBuilder, es *exportScene, fr *fbxRig, c clip) error {
	name, err := es.names(c.name)
	if err != nil {
		return err
	}
	fps := es.doc.FrameRate
	if fps <= 0 {
		return errors.Errorf("Invalid frame rate %v", fps)
	}

	frames := es.frames(c)
	times := make([]int64, len(frames))
	for i, frame := range frames {
		times[i] = ktime(frame-frames[0], fps)
	}
	start, stop := int64(0), times[len(times)-1]

	stack := object("AnimationStack", f.GenerateId(), fbxbuilder.Name(name, "AnimStack"), "").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("LocalStart", "KTime", "Time", "", start),
			bfbx73.P("LocalStop", "KTime", "Time", "", stop),
			bfbx73.P("ReferenceStart", "KTime", "Time", "", start),
			bfbx73.P("ReferenceStop", "KTime", "Time", "", stop),
		),
	)
	layer := object("AnimationLayer", f.GenerateId(), fbxbuilder.Name("BaseLayer", "AnimLayer"), "")
	f.AddObjects(stack, layer)
	f.AddConnections(bfbx73.C("OO", fbxbuilder.Id(layer), fbxbuilder.Id(stack)))

	samples := make([][]poseSample, len(frames))
	for i, frame := range frames {
		samples[i] = es.sample(fr.rig, c, frame)
	}

	for _, bi := range es.animatedBones(fr.rig, c) {
		channels := []struct {
			node     string
			property string
			value    func(s poseSample) mgl32.Vec3
		}{
			{"T", "Lcl Translation", func(s poseSample) mgl32.Vec3 { return s.translation }},
			{"R", "Lcl Rotation", func(s poseSample) mgl32.Vec3 { return utils.RadiansToDegreeV3(utils.QuatToEuler(s.rotation)) }},
			{"S", "Lcl Scaling", func(s poseSample) mgl32.Vec3 { return s.scale }},
		}
		for _, ch := range channels {
			values := [3][]float32{}
			for i := range frames {
				v := ch.value(samples[i][bi])
				for axis := 0; axis < 3; axis++ {
					values[axis] = append(values[axis], v[axis])
				}
			}
			curveNode := object("AnimationCurveNode", f.GenerateId(), fbxbuilder.Name(ch.node, "AnimCurveNode"), "").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("d|X", "Number", "", "A", float64(values[0][0])),
					bfbx73.P("d|Y", "Number", "", "A", float64(values[1][0])),
					bfbx73.P("d|Z", "Number", "", "A", float64(values[2][0])),
				),
			)
			f.AddObjects(curveNode)
			f.AddConnections(
				bfbx73.C("OO", fbxbuilder.Id(curveNode), fbxbuilder.Id(layer)),
				fbxbuilder.Node("C", "OP", fbxbuilder.Id(curveNode), fbxbuilder.Id(fr.bones[bi]), ch.property),
			)
			for axis, channel := range []string{"d|X", "d|Y", "d|Z"} {
				w.addCurve(f, curveNode, channel, times, values[axis])
			}
		}
	}

	f.AddTakes(fbxbuilder.Node("Take", name).AddNodes(
		fbxbuilder.Node("FileName", name+".tak"),
		fbxbuilder.Node("LocalTime", start, stop),
		fbxbuilder.Node("ReferenceTime", start, stop),
	))
	return nil
}
