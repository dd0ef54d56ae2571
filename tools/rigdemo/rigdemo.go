package main

import (
	"flag"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/utils"
)

type boneDesc struct {
	name   string
	parent string
	head   mgl32.Vec3
	tail   mgl32.Vec3
	deform bool
}

// rigify style naming: DEF deforms, ORG and MCH drive it
var skeleton = []boneDesc{
	{"root", "", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0.5, 0}, false},
	{"ORG-spine", "root", mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1.3}, false},
	{"DEF-spine", "root", mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1.3}, true},
	{"DEF-chest", "ORG-spine", mgl32.Vec3{0, 0, 1.3}, mgl32.Vec3{0, 0, 1.6}, true},
	{"ORG-neck", "DEF-chest", mgl32.Vec3{0, 0, 1.6}, mgl32.Vec3{0, 0, 1.7}, false},
	{"DEF-head", "ORG-neck", mgl32.Vec3{0, 0, 1.7}, mgl32.Vec3{0, 0, 1.9}, true},
	{"ORG-upper_arm.L", "DEF-chest", mgl32.Vec3{0.2, 0, 1.55}, mgl32.Vec3{0.5, 0, 1.55}, false},
	{"DEF-upper_arm.L", "ORG-upper_arm.L", mgl32.Vec3{0.2, 0, 1.55}, mgl32.Vec3{0.5, 0, 1.55}, true},
	{"ORG-upper_arm.R", "DEF-chest", mgl32.Vec3{-0.2, 0, 1.55}, mgl32.Vec3{-0.5, 0, 1.55}, false},
	{"DEF-upper_arm.R", "ORG-upper_arm.R", mgl32.Vec3{-0.2, 0, 1.55}, mgl32.Vec3{-0.5, 0, 1.55}, true},
	{"MCH-ik_target.L", "root", mgl32.Vec3{0.5, 0, 1.55}, mgl32.Vec3{0.5, 0.1, 1.55}, false},
	{"MCH-ik_target.R", "root", mgl32.Vec3{-0.5, 0, 1.55}, mgl32.Vec3{-0.5, 0.1, 1.55}, false},
}

// box returns an axis aligned box mesh around the segment head-tail
func box(head, tail mgl32.Vec3, size float32) *scene.Mesh {
	m := &scene.Mesh{}
	for _, p := range []mgl32.Vec3{head, tail} {
		m.Vertices = append(m.Vertices,
			p.Add(mgl32.Vec3{-size, -size, 0}),
			p.Add(mgl32.Vec3{size, -size, 0}),
			p.Add(mgl32.Vec3{size, size, 0}),
			p.Add(mgl32.Vec3{-size, size, 0}),
		)
	}
	m.Faces = [][]int{
		{0, 3, 2, 1}, {4, 5, 6, 7},
		{0, 1, 5, 4}, {1, 2, 6, 5},
		{2, 3, 7, 6}, {3, 0, 4, 7},
	}
	m.Smooth = make([]bool, len(m.Faces))
	return m
}

func bind(doc *scene.Document, rig *scene.Object, name string, mesh *scene.Mesh, weights map[string]map[int]float32) (*scene.Object, error) {
	o, err := doc.NewObject(name, mesh)
	if err != nil {
		return nil, err
	}
	o.Parent = rig.Id
	o.AddModifier("Armature", scene.ModifierArmature).Object = rig.Id
	for _, b := range skeleton {
		if w, ok := weights[b.name]; ok {
			o.VertexGroups = append(o.VertexGroups, &scene.VertexGroup{Name: b.name, Weights: w})
		}
	}
	return o, nil
}

func all(n int) map[int]float32 {
	w := make(map[int]float32, n)
	for i := 0; i < n; i++ {
		w[i] = 1
	}
	return w
}

func keyWave(a *scene.Action, bone, prop string, index int, frames int, amplitude float32) {
	fc := a.EnsureFCurve(scene.PoseDataPath(bone, prop), index)
	for f := 1; f <= frames; f++ {
		phase := 2 * math.Pi * float64(f-1) / float64(frames-1)
		fc.Insert(float32(f), amplitude*float32(math.Sin(phase)))
	}
}

// buildScene creates the sample rig, its body mesh and props random props held in the hands
func buildScene(prefs *config.Preferences, props int) (*scene.Document, error) {
	doc := scene.NewDocument()
	coll := doc.NewCollection("Collection")
	names := utils.RandomNameGenerator{}

	arm := scene.NewArmature("RigData")
	arm.Props[prefs.RigifyIDProp] = "demo"
	for _, d := range skeleton {
		b, err := arm.AddBone(d.name, arm.Bone(d.parent))
		if err != nil {
			return nil, err
		}
		b.Head, b.Tail = d.head, d.tail
		b.UseDeform = d.deform
		b.BBoneSegments = 3
		b.Layers = [scene.LayersCount]bool{}
		b.Layers[3] = true
	}
	arm.Bone("DEF-chest").UseConnect = true

	rig, err := doc.NewObject("metarig", arm)
	if err != nil {
		return nil, err
	}
	rig.Location = mgl32.Vec3{2, 0, 0}
	rig.Settings = scene.NewRigSettings(prefs.DefaultArmatureName)
	doc.Link(coll, rig)

	body, err := bind(doc, rig, "Body", box(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1.9}, 0.15), map[string]map[int]float32{
		"DEF-spine": {0: 1, 1: 1, 2: 1, 3: 1},
		"DEF-head":  {4: 1, 5: 1, 6: 1, 7: 1},
	})
	if err != nil {
		return nil, err
	}
	// duplicated group name, as left behind by some weight transfer tools
	body.VertexGroups = append(body.VertexGroups, &scene.VertexGroup{Name: "DEF-spine", Weights: all(4)})
	doc.Link(coll, body)

	for i := 0; i < props; i++ {
		name := "prop_" + names.RandomName()
		side := "L"
		if i%2 == 1 {
			side = "R"
		}
		hand := arm.Bone("DEF-upper_arm." + side)
		b, err := arm.AddBone(name, hand)
		if err != nil {
			return nil, err
		}
		b.Head, b.Tail = hand.Tail, hand.Tail.Add(mgl32.Vec3{0, 0.2, 0})
		b.UseDeform = false
		rig.Settings.AdditionalBones = append(rig.Settings.AdditionalBones, name)

		mesh, err := bind(doc, rig, names.RandomName(), box(b.Head, b.Tail, 0.05), nil)
		if err != nil {
			return nil, err
		}
		mesh.VertexGroups = append(mesh.VertexGroups, &scene.VertexGroup{Name: name, Weights: all(8)})
		doc.Link(coll, mesh)
	}
	rig.Settings.HaveAdditionalBones = props != 0

	idle := doc.NewAction("idle")
	keyWave(idle, "DEF-chest", scene.PropRotation, 1, 25, 0.05)
	walk := doc.NewAction("walk")
	keyWave(walk, "DEF-spine", scene.PropLocation, 2, 13, 0.1)
	keyWave(walk, "DEF-upper_arm.L", scene.PropRotation, 2, 13, 0.3)
	keyWave(walk, "DEF-upper_arm.R", scene.PropRotation, 2, 13, -0.3)

	ad := rig.EnsureAnimData()
	for _, a := range []*scene.Action{idle, walk} {
		t := ad.NewTrack()
		ad.RenameTrack(t, a.Name)
		t.NewStrip(a.Name, 1, a)
	}

	rig.SetSelected(true)
	doc.SetActive(rig)
	return doc, nil
}

func main() {
	var out string
	var props int
	flag.StringVar(&out, "o", "rigdemo.yaml", "Output scene file")
	flag.IntVar(&props, "props", 2, "Count of random props attached to the hands")
	flag.Parse()

	doc, err := buildScene(config.DefaultPreferences(), props)
	if err != nil {
		log.Fatal(err)
	}
	if err := doc.SaveFile(out); err != nil {
		log.Fatal(err)
	}
	log.Printf("[rigdemo] %d objects saved to %q", len(doc.Objects()), out)
}
