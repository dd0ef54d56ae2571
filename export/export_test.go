package export

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

func testScene(t *testing.T) (*scene.Document, *scene.Object) {
	doc := scene.NewDocument()
	c := doc.NewCollection("Collection")

	arm := scene.NewArmature("RigData")
	root, err := arm.AddBone("root", nil)
	if err != nil {
		t.Fatal(err)
	}
	root.Tail = mgl32.Vec3{0, 0, 1}
	root.UseDeform = true
	spine, err := arm.AddBone("spine", root)
	if err != nil {
		t.Fatal(err)
	}
	spine.Head = mgl32.Vec3{0, 0, 1}
	spine.Tail = mgl32.Vec3{0, 0, 2}
	spine.UseDeform = true

	rig, err := doc.NewObject("Rig", arm)
	if err != nil {
		t.Fatal(err)
	}
	doc.Link(c, rig)

	mesh, err := doc.NewObject("Body", &scene.Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 2}, {0, 0, 2}},
		Faces:    [][]int{{0, 1, 2, 3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	mesh.Parent = rig.Id
	mesh.AddModifier("Armature", scene.ModifierArmature).Object = rig.Id
	mesh.VertexGroups = []*scene.VertexGroup{
		{Name: "root", Weights: map[int]float32{0: 1, 1: 1}},
		{Name: "spine", Weights: map[int]float32{2: 0.5, 3: 1}},
	}
	doc.Link(c, mesh)

	action := doc.NewAction("Walk")
	fc := action.EnsureFCurve(scene.PoseDataPath("spine", scene.PropLocation), 2)
	fc.Insert(1, 0)
	fc.Insert(3, 2)
	rig.EnsureAnimData().Action = action

	rig.SetSelected(true)
	mesh.SetSelected(true)
	return doc, rig
}

func TestParamsFor(t *testing.T) {
	for _, tc := range []struct {
		mode scene.ExportMode
		bake bool
	}{
		{scene.ExportArmature, false},
		{scene.ExportNLA, true},
		{scene.ExportAll, true},
	} {
		p := ParamsFor(tc.mode)
		if p.BakeAnim != tc.bake || p.BakeAnimUseAllBones != tc.bake || p.BakeAnimForceStartEndKeying != tc.bake {
			t.Errorf("mode %v: bake flags %v/%v/%v; expected %v", tc.mode,
				p.BakeAnim, p.BakeAnimUseAllBones, p.BakeAnimForceStartEndKeying, tc.bake)
		}
		if !p.UseSelection || p.AxisForward != "-Z" || p.AxisUp != "Y" || p.MeshSmoothType != SmoothFace {
			t.Errorf("mode %v: unexpected fixed profile %+v", tc.mode, p)
		}
		if p.UseArmatureDeformOnly || p.AddLeafBones || !p.BakeAnimUseNLAStrips {
			t.Errorf("mode %v: unexpected armature flags %+v", tc.mode, p)
		}
	}
}

func TestForPath(t *testing.T) {
	if _, ok := ForPath("out/rig.glb", nil).(*GLTFWriter); !ok {
		t.Errorf("glb path must give gltf writer")
	}
	if _, ok := ForPath("out/rig.FBX", nil).(*FBXWriter); !ok {
		t.Errorf("fbx path must give fbx writer")
	}
	if _, ok := ForPath("out/", nil).(*FBXWriter); !ok {
		t.Errorf("directory path must fall back to fbx writer")
	}
	for path, expected := range map[string]bool{
		"a/b.fbx": true,
		"a/b.glb": true,
		"a/b/":    false,
		"a/b.txt": false,
	} {
		if IsExportPath(path) != expected {
			t.Errorf("IsExportPath(%q) = %v", path, !expected)
		}
	}
}

func TestSpaceConvertsAxes(t *testing.T) {
	p := ParamsFor(scene.ExportAll)
	sp, err := newSpace(&p)
	if err != nil {
		t.Fatal(err)
	}
	got := sp.point(mgl32.Vec3{1, 2, 3})
	if !got.ApproxEqual(mgl32.Vec3{1, 3, -2}) {
		t.Errorf("point = %v; expected [1 3 -2]", got)
	}

	p.AxisUp = "Z"
	p.AxisForward = "-Z"
	if _, err := newSpace(&p); err == nil {
		t.Errorf("parallel axes accepted")
	}
}

func TestTriangulate(t *testing.T) {
	got := triangulate([][]int{{0, 1, 2, 3}, {4, 5, 6}, {7, 8}})
	expected := []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6}
	if len(got) != len(expected) {
		t.Fatalf("triangulate = %v; expected %v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("triangulate = %v; expected %v", got, expected)
			break
		}
	}
}

func TestJointsAndWeights(t *testing.T) {
	joints, weights := jointsAndWeights([][]skinWeight{
		{{bone: 2, weight: 3}, {bone: 1, weight: 1}},
		{},
		{{bone: 0, weight: .4}, {bone: 1, weight: .3}, {bone: 2, weight: .2}, {bone: 3, weight: .05}, {bone: 4, weight: .05}},
	})
	if joints[0] != [4]uint16{2, 1, 0, 0} || weights[0] != [4]float32{.75, .25, 0, 0} {
		t.Errorf("vertex 0: %v %v", joints[0], weights[0])
	}
	if joints[1] != [4]uint16{0, 0, 0, 0} || weights[1] != [4]float32{1, 0, 0, 0} {
		t.Errorf("unweighted vertex: %v %v", joints[1], weights[1])
	}
	var total float32
	for _, w := range weights[2] {
		total += w
	}
	if joints[2][3] != 3 || total < .999 || total > 1.001 {
		t.Errorf("vertex 2: %v %v (sum %v)", joints[2], weights[2], total)
	}
}

func TestCollect(t *testing.T) {
	doc, rig := testScene(t)
	p := ParamsFor(scene.ExportAll)
	es, err := collect(doc, &p, config.DefaultPreferences())
	if err != nil {
		t.Fatal(err)
	}
	if len(es.rigs) != 1 || len(es.meshes) != 1 {
		t.Fatalf("collected %d rigs, %d meshes", len(es.rigs), len(es.meshes))
	}
	r := es.rigs[0]
	if r.obj != rig || len(r.bones) != 2 || es.meshes[0].rig != r {
		t.Fatalf("unexpected rig %+v", r)
	}
	if r.bones[1].parent != 0 || !r.bones[1].local.ApproxEqual(mgl32.Vec3{0, 1, 0}) {
		t.Errorf("spine parent %d local %v", r.bones[1].parent, r.bones[1].local)
	}

	clips := es.tracks(r)
	if len(clips) != 1 || clips[0].name != "Walk" {
		t.Fatalf("clips = %+v", clips)
	}
	if frames := es.frames(clips[0]); len(frames) != 3 || frames[0] != 1 || frames[2] != 3 {
		t.Errorf("frames = %v", frames)
	}
	s := es.sample(r, clips[0], 3)
	// spine z location 2 goes up in output space
	if !s[1].translation.ApproxEqual(mgl32.Vec3{0, 3, 0}) {
		t.Errorf("sampled spine translation %v", s[1].translation)
	}

	doc.DeselectAll()
	if _, err := collect(doc, &p, nil); err == nil || !strings.Contains(err.Error(), "Nothing to export") {
		t.Errorf("empty selection: %v", err)
	}
}

func TestWriteFBX(t *testing.T) {
	doc, _ := testScene(t)
	path := filepath.Join(t.TempDir(), "rig.fbx")

	w := &FBXWriter{Prefs: config.DefaultPreferences()}
	if err := w.Write(doc, path, ParamsFor(scene.ExportAll)); err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("Kaydara FBX Binary")) {
		t.Errorf("missing fbx binary magic")
	}
}

func TestWriteGLTF(t *testing.T) {
	doc, _ := testScene(t)
	path := filepath.Join(t.TempDir(), "rig.glb")

	if err := (&DispatchWriter{}).Write(doc, path, ParamsFor(scene.ExportAll)); err != nil {
		t.Fatal(err)
	}
	gdoc, err := gltf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	// rig, two joints, mesh
	if len(gdoc.Nodes) != 4 {
		t.Errorf("nodes = %d; expected 4", len(gdoc.Nodes))
	}
	if len(gdoc.Skins) != 1 || len(gdoc.Skins[0].Joints) != 2 {
		t.Errorf("unexpected skins %+v", gdoc.Skins)
	}
	if len(gdoc.Animations) != 1 || gdoc.Animations[0].Name != "Walk" {
		t.Fatalf("unexpected animations %+v", gdoc.Animations)
	}
	if len(gdoc.Animations[0].Channels) != 6 {
		t.Errorf("channels = %d; expected 6", len(gdoc.Animations[0].Channels))
	}

	if err := (&DispatchWriter{}).Write(doc, path, ParamsFor(scene.ExportArmature)); err != nil {
		t.Fatal(err)
	}
	gdoc, err = gltf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(gdoc.Animations) != 0 {
		t.Errorf("armature mode exported %d animations", len(gdoc.Animations))
	}
}
