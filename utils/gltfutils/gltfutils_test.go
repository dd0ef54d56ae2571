package gltfutils

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func TestAnimationRoundTrip(t *testing.T) {
	doc := NewDocument()
	node := AddNode(doc, &gltf.Node{Name: "spine"})
	if node != 0 || AddNode(doc, &gltf.Node{Name: "chest"}) != 1 {
		t.Fatalf("unexpected node indices")
	}

	anim := &gltf.Animation{Name: "Walk"}
	times := modeler.WriteAccessor(doc, gltf.TargetNone, []float32{0, 1})
	AddSampler(doc, anim, times, [][3]float32{{0, 0, 0}, {0, 1, 0}}, node, gltf.TRSTranslation)
	AddSampler(doc, anim, times, [][4]float32{{0, 0, 0, 1}, {0, 0, 0, 1}}, node, gltf.TRSRotation)
	doc.Animations = append(doc.Animations, anim)

	ibm := WriteInverseBindMatrices(doc, []mgl32.Mat4{mgl32.Translate3D(0, -1, 0)})
	doc.Skins = append(doc.Skins, &gltf.Skin{Joints: []uint32{0, 1}, InverseBindMatrices: gltf.Index(ibm)})

	var buf bytes.Buffer
	if err := ExportBinary(&buf, doc); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Fatalf("missing binary magic")
	}

	var out gltf.Document
	if err := gltf.NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Animations) != 1 || len(out.Animations[0].Channels) != 2 || len(out.Animations[0].Samplers) != 2 {
		t.Fatalf("animation not kept: %+v", out.Animations)
	}
	ch := out.Animations[0].Channels[1]
	if *ch.Sampler != 1 || ch.Target.Path != gltf.TRSRotation || *ch.Target.Node != node {
		t.Errorf("channel %+v", ch)
	}
	if a := out.Accessors[*out.Skins[0].InverseBindMatrices]; a.Type != gltf.AccessorMat4 || a.Count != 1 {
		t.Errorf("inverse bind matrices accessor %+v", a)
	}
}
