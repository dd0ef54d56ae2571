package rig

import (
	"sort"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/export"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

type recordWriter struct {
	calls     int
	path      string
	active    string
	armature  string
	unitScale float32
	selected  []string
	params    export.Params
	err       error
}

func (w *recordWriter) Write(doc *scene.Document, path string, params export.Params) error {
	w.calls++
	w.path = path
	if a := doc.Active(); a != nil {
		w.active = a.Name
		w.armature = a.Armature.Name
	}
	w.unitScale = doc.UnitScale
	w.selected = nil
	for _, o := range doc.SelectedObjects() {
		w.selected = append(w.selected, o.Name)
	}
	sort.Strings(w.selected)
	w.params = params
	return w.err
}

type fixture struct {
	doc    *scene.Document
	prefs  *config.Preferences
	source *scene.Object
	mesh   *scene.Object
	writer *recordWriter
	ctx    *Context
}

// newFixture builds a small rigify style rig:
// root -> DEF-spine -> ORG-chest -> DEF-chest, root -> MCH-ik
func newFixture(t *testing.T) *fixture {
	doc := scene.NewDocument()
	prefs := config.DefaultPreferences()
	c := doc.NewCollection("Collection")

	a := armature(t,
		boneDef{"root", "", false},
		boneDef{"DEF-spine", "root", true},
		boneDef{"ORG-chest", "DEF-spine", false},
		boneDef{"DEF-chest", "ORG-chest", true},
		boneDef{"MCH-ik", "root", false},
	)
	a.Props[prefs.RigifyIDProp] = "xyz"
	a.Bone("DEF-spine").Head = mgl32.Vec3{0, 0, 1}
	a.Bone("ORG-chest").Head = mgl32.Vec3{0, 0, 2}
	a.Bone("DEF-chest").Head = mgl32.Vec3{0, 0, 2}
	a.Bone("DEF-chest").Tail = mgl32.Vec3{0, 0, 3}
	a.Bone("DEF-chest").UseConnect = true
	a.Bone("DEF-chest").Hide = true
	a.Bone("DEF-chest").BBoneSegments = 4
	for _, b := range a.Bones() {
		b.Layers = [scene.LayersCount]bool{}
		b.Layers[3] = true
	}

	source, err := doc.NewObject("Rig", a)
	if err != nil {
		t.Fatal(err)
	}
	source.Settings = scene.NewRigSettings(prefs.DefaultArmatureName)
	source.Location = mgl32.Vec3{1, 2, 3}
	doc.Link(c, source)

	mesh, err := doc.NewObject("Body", &scene.Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 2}, {0, 0, 2}},
		Faces:    [][]int{{0, 1, 2, 3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	mesh.Parent = source.Id
	mesh.AddModifier("Rig", scene.ModifierArmature).Object = source.Id
	mesh.VertexGroups = []*scene.VertexGroup{
		{Name: "DEF-spine", Weights: map[int]float32{0: 1, 1: 1}},
		{Name: "DEF-chest", Weights: map[int]float32{2: 0.2}},
		{Name: "DEF-chest", Weights: map[int]float32{2: 1, 3: 1}},
	}
	doc.Link(c, mesh)

	walk := doc.NewAction("walk")
	fc := walk.EnsureFCurve(scene.PoseDataPath("DEF-spine", scene.PropLocation), 2)
	fc.Insert(1, 0)
	fc.Insert(3, 2)
	idle := doc.NewAction("idle")
	fc = idle.EnsureFCurve(scene.PoseDataPath("DEF-chest", scene.PropRotation), 0)
	fc.Insert(1, 1)
	fc.Insert(5, 1)

	ad := source.EnsureAnimData()
	walkTrack := ad.NewTrack()
	ad.RenameTrack(walkTrack, "Walk")
	walkTrack.NewStrip("walk_strip", 1, walk)
	idleTrack := ad.NewTrack()
	ad.RenameTrack(idleTrack, "Idle")
	idleTrack.NewStrip("idle_strip", 1, idle)
	idleTrack.Mute = true

	source.SetSelected(true)
	doc.SetActive(source)

	w := &recordWriter{}
	return &fixture{
		doc:    doc,
		prefs:  prefs,
		source: source,
		mesh:   mesh,
		writer: w,
		ctx:    &Context{Doc: doc, Prefs: prefs, Rig: source, Writer: w},
	}
}

func groupNames(o *scene.Object) []string {
	names := make([]string, len(o.VertexGroups))
	for i, vg := range o.VertexGroups {
		names[i] = vg.Name
	}
	return names
}

func boneNames(a *scene.Armature) []string {
	names := make([]string, 0)
	for _, b := range a.Bones() {
		names = append(names, b.Name)
	}
	return names
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	if !CanPreview(f.doc, f.source) || IsPreviewing(f.doc, f.source) {
		t.Fatalf("fresh rig must be previewable")
	}

	r, err := Preview(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != Finished || r.Message != "Preview done" {
		t.Errorf("report %v", r)
	}
	if CanPreview(f.doc, f.source) || !IsPreviewing(f.doc, f.source) || !CanUnpreview(f.doc, f.source) {
		t.Errorf("preview state not recorded")
	}

	gen := f.doc.Object(f.source.Settings.GeneratedRig)
	if gen == nil || gen.Origin != f.source.Id {
		t.Fatalf("mutual link missing")
	}
	if gen.Name != "SR_RigData" || gen.Armature.Name != "SR_RigData" {
		t.Errorf("generated names %q / %q", gen.Name, gen.Armature.Name)
	}
	if c := f.doc.Collection(f.prefs.CollectionName); c == nil || !c.Has(gen.Id) || f.doc.Collection("Collection").Has(gen.Id) {
		t.Errorf("generated rig not linked only to %q", f.prefs.CollectionName)
	}
	if _, ok := gen.Armature.Props[f.prefs.RigifyIDProp]; ok {
		t.Errorf("rig id property kept")
	}
	if _, ok := f.source.Armature.Props[f.prefs.RigifyIDProp]; !ok {
		t.Errorf("rig id property removed from source")
	}

	if got := strings.Join(boneNames(gen.Armature), ","); got != "root,spine,chest" {
		t.Errorf("generated bones %s", got)
	}
	if got := strings.Join(boneNames(f.source.Armature), ","); got != "root,DEF-spine,ORG-chest,DEF-chest,MCH-ik" {
		t.Errorf("source bones changed: %s", got)
	}
	chest := gen.Armature.Bone("chest")
	if chest.Parent() != gen.Armature.Bone("spine") || chest.UseConnect || !chest.IsPrefixed {
		t.Errorf("chest parent %v connect %v prefixed %v", chest.Parent(), chest.UseConnect, chest.IsPrefixed)
	}
	if chest.Hide || chest.BBoneSegments != 1 || !chest.Layers[0] || chest.Layers[3] || gen.Armature.Layers[1] {
		t.Errorf("chest display hide %v segments %d layers %v", chest.Hide, chest.BBoneSegments, chest.Layers)
	}
	if gen.Armature.Bone("root").IsPrefixed {
		t.Errorf("root marked as prefixed")
	}

	for _, pb := range gen.PoseBones() {
		if len(pb.Constraints) != 2 {
			t.Errorf("%s has %d constraints", pb.Name, len(pb.Constraints))
		}
		for _, c := range pb.Constraints {
			if c.Enabled || c.Target != f.source.Id || !strings.HasPrefix(c.Name, "SR_") {
				t.Errorf("%s constraint %+v", pb.Name, c)
			}
		}
	}

	if f.mesh.Parent != gen.Id || len(f.mesh.Modifiers) != 1 || f.mesh.Modifiers[0].Object != gen.Id {
		t.Errorf("mesh not bound to generated rig")
	}
	if got := strings.Join(groupNames(f.mesh), ","); got != "spine,chest" {
		t.Errorf("vertex groups %s", got)
	}
	if w := f.mesh.VertexGroup("chest").Weights; w[2] != 1 {
		t.Errorf("kept the older duplicate group %v", w)
	}

	if len(gen.AnimData.Tracks) != 1 || gen.AnimData.Tracks[0].Name != "Walk" {
		t.Fatalf("baked tracks %v", trackNames(gen.AnimData.Tracks))
	}
	fc := gen.AnimData.Tracks[0].Strips[0].Action.FCurve(scene.PoseDataPath("spine", scene.PropLocation), 2)
	if fc == nil || fc.Evaluate(2) != 1 || fc.Evaluate(3) != 2 {
		t.Errorf("baked spine curve %+v", fc)
	}

	if !f.source.Hidden || f.source.Location != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("source hidden %v location %v", f.source.Hidden, f.source.Location)
	}
	if f.doc.Active() != gen || !gen.Selected() {
		t.Errorf("generated rig not active")
	}

	r, err = Preview(f.ctx)
	if err != nil || r.Status != Cancelled {
		t.Errorf("second preview: %v %v", r, err)
	}
}

func TestPreviewArmatureModeSkipsBake(t *testing.T) {
	f := newFixture(t)
	f.source.Settings.ExportMode = scene.ExportArmature
	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	gen := generatedRig(f.doc, f.source)
	if gen.AnimData != nil && len(gen.AnimData.Tracks) != 0 {
		t.Errorf("armature mode baked %d tracks", len(gen.AnimData.Tracks))
	}
}

func TestPreviewUnpreviewRestoresMeshes(t *testing.T) {
	f := newFixture(t)
	actions := len(f.doc.Actions())

	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	genId := f.source.Settings.GeneratedRig

	r, err := Unpreview(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != Finished || r.Message != "Unpreview done" {
		t.Errorf("report %v", r)
	}
	if f.doc.Object(genId) != nil || f.doc.ObjectByName("SR_RigData") != nil {
		t.Errorf("generated rig still present")
	}
	if len(f.doc.Actions()) != actions || f.doc.Action("SR_Walk") != nil {
		t.Errorf("baked actions not deleted: %d actions", len(f.doc.Actions()))
	}
	if !f.source.Settings.GeneratedRig.IsNil() || !CanPreview(f.doc, f.source) {
		t.Errorf("link to generated rig kept")
	}

	if f.mesh.Parent != f.source.Id {
		t.Errorf("mesh parent not restored")
	}
	if len(f.mesh.Modifiers) != 1 || f.mesh.Modifiers[0].Object != f.source.Id {
		t.Errorf("mesh modifiers %+v", f.mesh.Modifiers)
	}
	if got := strings.Join(groupNames(f.mesh), ","); got != "DEF-spine,DEF-chest" {
		t.Errorf("vertex groups %s", got)
	}

	if f.source.Hidden || !f.source.Selected() || f.doc.Active() != f.source {
		t.Errorf("source not shown and selected")
	}

	r, err = Unpreview(f.ctx)
	if err != nil || r.Status != Cancelled {
		t.Errorf("second unpreview: %v %v", r, err)
	}
}

func TestPreviewUnpreviewKeepsCollidingGroups(t *testing.T) {
	f := newFixture(t)
	f.mesh.VertexGroups = append(f.mesh.VertexGroups, &scene.VertexGroup{Name: "spine", Weights: map[int]float32{3: 0.5}})
	user := f.mesh.VertexGroups[3]

	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(groupNames(f.mesh), ","); got != "DEF-spine,chest,spine" {
		t.Errorf("previewing vertex groups %s", got)
	}
	if _, err := Unpreview(f.ctx); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(groupNames(f.mesh), ","); got != "DEF-spine,DEF-chest,spine" {
		t.Errorf("vertex groups %s", got)
	}
	if vg := f.mesh.VertexGroup("spine"); vg != user || len(vg.Weights) != 1 || vg.Weights[3] != 0.5 {
		t.Errorf("user group changed: %+v", vg)
	}
	if vg := f.mesh.VertexGroup("DEF-spine"); vg == nil || vg.Weights[0] != 1 || vg.Weights[1] != 1 {
		t.Errorf("deform group changed: %+v", vg)
	}
}

func TestGeneratedRigRemovedFromScene(t *testing.T) {
	f := newFixture(t)
	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	gen := generatedRig(f.doc, f.source)
	f.doc.Unlink(f.doc.Collection(f.prefs.CollectionName), gen)
	if !CanPreview(f.doc, f.source) || IsPreviewing(f.doc, f.source) {
		t.Errorf("unlinked rig still counts as previewing")
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	collider, err := f.doc.NewObject("Armature", &scene.Mesh{})
	if err != nil {
		t.Fatal(err)
	}
	f.doc.Link(f.doc.Collection("Collection"), collider)
	other, err := f.doc.NewObject("Other", scene.NewArmature("Armature"))
	if err != nil {
		t.Fatal(err)
	}
	vertex := f.mesh.Mesh.Vertices[2]

	r, err := Export(f.ctx, "out/rig.fbx", true)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != Finished || r.Message != "Export done" {
		t.Errorf("report %v", r)
	}

	w := f.writer
	if w.calls != 1 || w.path != "out/rig.fbx" {
		t.Fatalf("writer calls %d path %q", w.calls, w.path)
	}
	if w.active != "Armature" || w.armature != "Armature" {
		t.Errorf("exported as %q / %q", w.active, w.armature)
	}
	if w.unitScale != f.prefs.ExportScale {
		t.Errorf("exported at unit scale %v", w.unitScale)
	}
	if strings.Join(w.selected, ",") != "Armature,Body" {
		t.Errorf("exported selection %v", w.selected)
	}
	if !w.params.BakeAnim || !w.params.BakeAnimUseAllBones || !w.params.BakeAnimForceStartEndKeying {
		t.Errorf("animation flags off for export mode all")
	}

	if collider.Name != "Armature" || other.Armature.Name != "Armature" {
		t.Errorf("colliding names not restored: %q / %q", collider.Name, other.Armature.Name)
	}
	if f.doc.UnitScale != 1 {
		t.Errorf("unit scale %v", f.doc.UnitScale)
	}
	if !CanPreview(f.doc, f.source) || f.doc.ObjectByName("SR_RigData") != nil {
		t.Errorf("automatic preview not reverted")
	}
	if f.source.Settings.Path != "out/rig.fbx" {
		t.Errorf("path not saved: %q", f.source.Settings.Path)
	}
	if f.mesh.Parent != f.source.Id || !f.mesh.Mesh.Vertices[2].ApproxEqualThreshold(vertex, 1e-4) {
		t.Errorf("mesh not restored: parent %v vertex %v", f.mesh.Parent, f.mesh.Mesh.Vertices[2])
	}
	if f.doc.Active() != f.source || !f.source.Selected() {
		t.Errorf("selection not restored")
	}
}

func TestExportWhilePreviewing(t *testing.T) {
	f := newFixture(t)
	f.source.Settings.ExportMode = scene.ExportArmature
	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	gen := generatedRig(f.doc, f.source)

	if _, err := Export(f.ctx, "rig.glb", false); err != nil {
		t.Fatal(err)
	}
	if strings.Join(f.writer.selected, ",") != "Armature" {
		t.Errorf("armature mode exported %v", f.writer.selected)
	}
	if f.writer.params.BakeAnim {
		t.Errorf("armature mode bakes animation")
	}
	if generatedRig(f.doc, f.source) != gen || gen.Name != "SR_RigData" {
		t.Errorf("preview not kept or not renamed back: %q", gen.Name)
	}
	if f.source.Settings.Path != "" {
		t.Errorf("path saved without save flag")
	}
}

func TestExportFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.writer.err = errors.Errorf("disk full")
	if _, err := Export(f.ctx, "rig.fbx", false); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("writer error not propagated: %v", err)
	}
}

func TestExportRequiresPreview(t *testing.T) {
	f := newFixture(t)
	f.prefs.AllowExportWithoutPreview = false
	if CanExport(f.ctx) {
		t.Errorf("export allowed without preview")
	}
	r, err := Export(f.ctx, "rig.fbx", true)
	if err != nil || r.Status != Cancelled || f.writer.calls != 0 {
		t.Errorf("report %v err %v calls %d", r, err, f.writer.calls)
	}
	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	if !CanExport(f.ctx) {
		t.Errorf("export refused while previewing")
	}
}

func TestRestoreSelectionIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.mesh.SetSelected(true)
	f.doc.SetActive(f.mesh)
	sel := DeselectAll(f.doc)
	if len(f.doc.SelectedObjects()) != 0 || f.doc.Active() != nil {
		t.Fatalf("deselect left a selection")
	}

	f.doc.RemoveObject(f.mesh)
	RestoreSelection(f.doc, sel)
	if !f.source.Selected() {
		t.Errorf("surviving object not reselected")
	}
}
