package rig

import (
	"testing"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

type boneDef struct {
	name   string
	parent string
	deform bool
}

func armature(t *testing.T, defs ...boneDef) *scene.Armature {
	a := scene.NewArmature("RigData")
	for _, d := range defs {
		var parent *scene.Bone
		if d.parent != "" {
			parent = a.Bone(d.parent)
			if parent == nil {
				t.Fatalf("fixture: parent %q of %q not defined yet", d.parent, d.name)
			}
		}
		b, err := a.AddBone(d.name, parent)
		if err != nil {
			t.Fatal(err)
		}
		b.UseDeform = d.deform
	}
	return a
}

func TestEffectiveParent(t *testing.T) {
	prefs := config.DefaultPreferences()

	for _, tc := range []struct {
		name     string
		bones    []boneDef
		bone     string
		expected string
	}{
		{
			name: "substitute equals self",
			bones: []boneDef{
				{"root", "", false},
				{"spine", "root", true},
				{"ORG-chest", "spine", false},
				{"DEF-chest", "ORG-chest", true},
			},
			bone:     "DEF-chest",
			expected: "spine",
		},
		{
			name: "substitute deform counterpart",
			bones: []boneDef{
				{"root", "", false},
				{"DEF-arm", "root", true},
				{"ORG-arm", "root", false},
				{"hand", "ORG-arm", true},
			},
			bone:     "hand",
			expected: "DEF-arm",
		},
		{
			name: "counterpart does not deform",
			bones: []boneDef{
				{"root", "", true},
				{"spine", "root", true},
				{"DEF-arm", "root", false},
				{"ORG-arm", "spine", false},
				{"hand", "ORG-arm", true},
			},
			bone:     "hand",
			expected: "spine",
		},
		{
			name: "no deforming ancestor",
			bones: []boneDef{
				{"root", "", false},
				{"MCH-a", "root", false},
				{"MCH-b", "MCH-a", false},
				{"leaf", "MCH-b", true},
			},
			bone:     "leaf",
			expected: "root",
		},
		{
			name: "orphan bone",
			bones: []boneDef{
				{"root", "", false},
				{"floating", "", true},
			},
			bone:     "floating",
			expected: "root",
		},
	} {
		a := armature(t, tc.bones...)
		p := EffectiveParent(a, a.Bone(tc.bone), prefs)
		if p == nil || p.Name != tc.expected {
			t.Errorf("%s: parent of %q = %v; expected %q", tc.name, tc.bone, p, tc.expected)
		}
	}
}

func TestExtractRootHasNoParent(t *testing.T) {
	prefs := config.DefaultPreferences()
	a := armature(t,
		boneDef{"root", "", true},
		boneDef{"spine", "root", true},
	)
	desc := Extract(a, true, nil, prefs)
	if len(desc) != 2 {
		t.Fatalf("descriptor %v", desc)
	}
	if e, _ := desc.Entry("root"); e.Parent != "" {
		t.Errorf("root parent = %q", e.Parent)
	}
	if e, _ := desc.Entry("spine"); e.Parent != "root" {
		t.Errorf("spine parent = %q", e.Parent)
	}
}

func TestExtractAdditionalBones(t *testing.T) {
	prefs := config.DefaultPreferences()
	a := armature(t,
		boneDef{"root", "", true},
		boneDef{"spine", "root", true},
		boneDef{"prop", "spine", false},
	)
	desc := Extract(a, true, []string{"prop", "missing", "spine", "prop"}, prefs)
	if len(desc) != 3 {
		t.Fatalf("descriptor %v; expected root, spine and prop", desc)
	}
	if desc[2].Bone != "prop" || desc[2].Parent != "spine" {
		t.Errorf("additional entry %+v", desc[2])
	}
}

func TestExtractRestoreRoundTrip(t *testing.T) {
	prefs := config.DefaultPreferences()
	a := armature(t,
		boneDef{"root", "", false},
		boneDef{"spine", "root", true},
		boneDef{"ORG-chest", "spine", false},
		boneDef{"DEF-chest", "ORG-chest", true},
		boneDef{"neck", "DEF-chest", true},
	)
	a.Bone("spine").UseLocalLocation = false
	a.Bone("DEF-chest").UseConnect = true
	a.Bone("DEF-chest").InheritScale = scene.InheritScaleAligned
	a.Bone("neck").UseConnect = true
	a.Bone("neck").UseInheritRotation = false

	type flags struct {
		connect, local, rotation bool
		scale                    scene.InheritScale
	}
	snapshot := func() map[string]flags {
		m := make(map[string]flags)
		for _, b := range a.Bones() {
			m[b.Name] = flags{b.UseConnect, b.UseLocalLocation, b.UseInheritRotation, b.InheritScale}
		}
		return m
	}
	original := snapshot()

	desc := Extract(a, false, nil, prefs)
	Restore(a, desc)
	for name, f := range snapshot() {
		if !a.Bone(name).UseDeform {
			continue
		}
		if f != original[name] {
			t.Errorf("%s flags %+v; expected %+v", name, f, original[name])
		}
	}

	for _, e := range Extract(a, true, nil, prefs) {
		if e.Connect {
			t.Errorf("%s connected with disconnect all", e.Bone)
		}
	}
}

func TestRestoreSkipsMissingBones(t *testing.T) {
	a := armature(t,
		boneDef{"root", "", true},
		boneDef{"spine", "root", true},
	)
	Restore(a, Descriptor{
		{Bone: "ghost", Parent: "root"},
		{Bone: "spine", Parent: "ghost", Connect: true},
		{Bone: "spine", Parent: "spine", LocalLocation: true, InheritRotation: true, InheritScale: scene.InheritScaleNone},
	})
	spine := a.Bone("spine")
	if spine.Parent() != a.Bone("root") {
		t.Errorf("spine reparented to %v", spine.Parent())
	}
	if spine.UseConnect {
		t.Errorf("entry with missing parent was applied")
	}
	if spine.InheritScale != scene.InheritScaleNone {
		t.Errorf("self parented entry flags not restored")
	}
}

func TestRestoreRootFlags(t *testing.T) {
	prefs := config.DefaultPreferences()
	a := armature(t,
		boneDef{"root", "", true},
		boneDef{"spine", "root", true},
	)
	a.Bone("root").UseConnect = true
	a.Bone("spine").UseConnect = true

	Restore(a, Extract(a, true, nil, prefs))
	for _, b := range a.Bones() {
		if b.UseConnect {
			t.Errorf("%s still connected with disconnect all", b.Name)
		}
	}
	if a.Bone("root").Parent() != nil || a.Bone("spine").Parent() != a.Bone("root") {
		t.Errorf("restore changed parents")
	}
}
