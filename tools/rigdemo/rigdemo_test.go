package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/rig"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

func TestBuildScenePreview(t *testing.T) {
	prefs := config.DefaultPreferences()
	doc, err := buildScene(prefs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Objects()) != 4 {
		t.Fatalf("objects = %d; expected rig, body and two props", len(doc.Objects()))
	}

	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := doc.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	doc, err = scene.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	source := doc.ObjectByName("metarig")
	if _, err := rig.Preview(&rig.Context{Doc: doc, Prefs: prefs, Rig: source}); err != nil {
		t.Fatal(err)
	}
	gen := doc.Object(source.Settings.GeneratedRig)
	if gen == nil {
		t.Fatalf("no generated rig")
	}

	parents := map[string]string{
		"spine":       "root",
		"chest":       "spine",
		"head":        "chest",
		"upper_arm.L": "chest",
		"upper_arm.R": "chest",
	}
	for _, b := range gen.Armature.Bones() {
		if strings.HasPrefix(b.Name, "ORG-") || strings.HasPrefix(b.Name, "MCH-") {
			t.Errorf("helper bone %q kept", b.Name)
		}
		if expected, ok := parents[b.Name]; ok && (b.Parent() == nil || b.Parent().Name != expected) {
			t.Errorf("parent of %q = %v; expected %q", b.Name, b.Parent(), expected)
		}
	}
	for _, name := range source.Settings.AdditionalBones {
		if b := gen.Armature.Bone(name); b == nil || !strings.HasPrefix(b.Parent().Name, "upper_arm.") {
			t.Errorf("prop bone %q not kept under a hand", name)
		}
	}
	if len(gen.Armature.Bones()) != 8 {
		t.Errorf("generated %d bones", len(gen.Armature.Bones()))
	}
	if body := doc.ObjectByName("Body"); len(body.VertexGroups) != 2 {
		t.Errorf("body groups %d; expected duplicates merged", len(body.VertexGroups))
	}
	if gen.AnimData == nil || len(gen.AnimData.Tracks) != 2 {
		t.Errorf("animation tracks not baked")
	}
}
