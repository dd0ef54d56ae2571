package rig

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/twentybeeraces/SanitizeRigify/scene"
)

func tracksRig(tracks ...*scene.Track) *scene.Object {
	return &scene.Object{
		Kind:     scene.KindArmature,
		AnimData: &scene.AnimData{Tracks: tracks},
	}
}

func trackNames(tracks []*scene.Track) []string {
	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name
	}
	return names
}

func TestTracksToBake(t *testing.T) {
	for _, tc := range []struct {
		name     string
		tracks   []*scene.Track
		expected []string
	}{
		{"no tracks", nil, []string{}},
		{"all unmuted", []*scene.Track{{Name: "a"}, {Name: "b"}}, []string{"a", "b"}},
		{"muted skipped", []*scene.Track{{Name: "a", Mute: true}, {Name: "b"}}, []string{"b"}},
		{"solo wins", []*scene.Track{{Name: "a"}, {Name: "b", Solo: true}, {Name: "c"}}, []string{"b"}},
		{"muted solo", []*scene.Track{{Name: "a"}, {Name: "b", Solo: true, Mute: true}}, []string{"b"}},
	} {
		got := trackNames(TracksToBake(tracksRig(tc.tracks...)))
		if len(got) != len(tc.expected) {
			t.Errorf("%s: got %v; expected %v", tc.name, got, tc.expected)
			continue
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Errorf("%s: got %v; expected %v", tc.name, got, tc.expected)
				break
			}
		}
	}

	if got := TracksToBake(&scene.Object{Kind: scene.KindArmature}); len(got) != 0 {
		t.Errorf("rig without animation data: %v", got)
	}
}

func TestTrackName(t *testing.T) {
	withStrip := &scene.Track{Name: "track", Strips: []*scene.Strip{{Name: "first"}, {Name: "second"}}}
	empty := &scene.Track{Name: "empty"}

	for _, tc := range []struct {
		track    *scene.Track
		naming   scene.AnimationNaming
		expected string
	}{
		{withStrip, scene.NamingTrack, "track"},
		{withStrip, scene.NamingStrip, "first"},
		{empty, scene.NamingStrip, "empty"},
	} {
		if got := TrackName(tc.track, tc.naming); got != tc.expected {
			t.Errorf("TrackName(%q, %v) = %q; expected %q", tc.track.Name, tc.naming, got, tc.expected)
		}
	}
}

func TestTrackFrameRange(t *testing.T) {
	track := &scene.Track{Strips: []*scene.Strip{
		{FrameStart: 10, FrameEnd: 20.7},
		{FrameStart: 3.5, FrameEnd: 8},
	}}
	if start, end := TrackFrameRange(track); start != 3 || end != 20 {
		t.Errorf("range = [%d, %d]; expected [3, 20]", start, end)
	}
	if start, end := TrackFrameRange(&scene.Track{}); start <= end {
		t.Errorf("empty track range [%d, %d] is not empty", start, end)
	}
}

func TestBakeTracks(t *testing.T) {
	f := newFixture(t)
	idle := f.source.AnimData.Tracks[1]
	idle.Mute = false
	f.source.AnimData.SetSolo(idle, true)

	gen, err := Generate(f.doc, f.source, f.prefs)
	if err != nil {
		t.Fatal(err)
	}
	if err := BakeTracks(f.doc, f.source, gen, f.prefs); err != nil {
		t.Fatal(err)
	}

	if !idle.Solo {
		t.Errorf("solo state of %q not restored", idle.Name)
	}
	if gen.AnimData.Action != nil {
		t.Errorf("active action left on generated rig")
	}
	if len(gen.AnimData.Tracks) != 1 {
		t.Fatalf("baked tracks %v; expected only the solo one", trackNames(gen.AnimData.Tracks))
	}
	baked := gen.AnimData.Tracks[0]
	if baked.Name != "Idle" || baked.Strips[0].Name != "Idle" || baked.Strips[0].Action.Name != "SR_Idle" {
		t.Errorf("baked track %q strip %q action %q", baked.Name, baked.Strips[0].Name, baked.Strips[0].Action.Name)
	}
}

func TestBakeTracksEmptyTrack(t *testing.T) {
	f := newFixture(t)
	f.source.AnimData.Tracks = append(f.source.AnimData.Tracks, &scene.Track{Name: "Empty"})

	gen, err := Generate(f.doc, f.source, f.prefs)
	if err != nil {
		t.Fatal(err)
	}
	if err := BakeTracks(f.doc, f.source, gen, f.prefs); err != nil {
		t.Fatal(err)
	}
	names := trackNames(gen.AnimData.Tracks)
	if len(names) != 2 || names[0] != "Walk" || names[1] != "Empty" {
		t.Errorf("baked tracks %v", names)
	}
	if a := gen.AnimData.Tracks[1].Strips[0].Action; len(a.FCurves) != 0 {
		t.Errorf("empty track baked %d curves", len(a.FCurves))
	}
}

func TestRescaleRoundTrip(t *testing.T) {
	f := newFixture(t)
	if _, err := Preview(f.ctx); err != nil {
		t.Fatal(err)
	}
	gen := generatedRig(f.doc, f.source)
	meshes := childMeshes(f.doc, gen)
	f.doc.AutoKeyframe = true

	fc := gen.AnimData.Tracks[0].Strips[0].Action.FCurve(scene.PoseDataPath("spine", scene.PropLocation), 2)
	first := fc.Keyframes[0]
	first.HandleLeft[1] = first.Co[1] - 0.5
	first.HandleRight[1] = first.Co[1] + 0.25
	left, right := first.HandleLeft[1], first.HandleRight[1]

	type key struct{ co, left, right float32 }
	snapshot := func() []key {
		var keys []key
		for _, a := range stripActions(gen) {
			for _, fc := range a.FCurves {
				for _, k := range fc.Keyframes {
					keys = append(keys, key{k.Co[1], k.HandleLeft[1], k.HandleRight[1]})
				}
			}
		}
		return keys
	}
	original := snapshot()
	originalVertex := meshes[0].Mesh.Vertices[2]
	chestHead := gen.Armature.Bone("chest").Head

	if err := Rescale(f.doc, gen, meshes, 0.01); err != nil {
		t.Fatal(err)
	}
	if f.doc.UnitScale != 0.01 || !f.doc.AutoKeyframe {
		t.Errorf("unit scale %v autokey %v", f.doc.UnitScale, f.doc.AutoKeyframe)
	}
	if h := gen.Armature.Bone("chest").Head; !h.ApproxEqualThreshold(chestHead.Mul(100), 1e-3) {
		t.Errorf("scaled head %v", h)
	}
	if gen.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("transform not applied: scale %v", gen.Scale)
	}
	if v := fc.Evaluate(3); math.Abs(float64(v-200)) > 1e-3 {
		t.Errorf("scaled location key %v; expected 200", v)
	}
	if math.Abs(float64(first.HandleLeft[1]-left*100)) > 1e-3 || math.Abs(float64(first.HandleRight[1]-right*100)) > 1e-3 {
		t.Errorf("scaled handles %v %v; expected %v %v", first.HandleLeft[1], first.HandleRight[1], left*100, right*100)
	}

	if err := Rescale(f.doc, gen, meshes, 1); err != nil {
		t.Fatal(err)
	}
	if f.doc.UnitScale != 1 {
		t.Errorf("unit scale not restored: %v", f.doc.UnitScale)
	}
	for i, k := range snapshot() {
		o := original[i]
		if math.Abs(float64(k.co-o.co)) > 1e-4 || math.Abs(float64(k.left-o.left)) > 1e-4 || math.Abs(float64(k.right-o.right)) > 1e-4 {
			t.Errorf("key %d = %+v; expected %+v", i, k, o)
		}
	}
	if v := meshes[0].Mesh.Vertices[2]; !v.ApproxEqualThreshold(originalVertex, 1e-4) {
		t.Errorf("vertex %v; expected %v", v, originalVertex)
	}
}
