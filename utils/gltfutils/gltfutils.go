package gltfutils

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// AddNode appends node and returns its index
func AddNode(doc *gltf.Document, node *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, node)
	return uint32(len(doc.Nodes) - 1)
}

// AddSampler writes a linear sampler over times/values and a channel animating node.
// values must be [][3]float32 for translation and scale, [][4]float32 for rotation.
func AddSampler(doc *gltf.Document, a *gltf.Animation, times uint32, values interface{}, node uint32, path gltf.TRSProperty) {
	output := modeler.WriteAccessor(doc, gltf.TargetNone, values)
	a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(times),
		Output:        gltf.Index(output),
		Interpolation: gltf.InterpolationLinear,
	})
	a.Channels = append(a.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(node),
			Path: path,
		},
	})
}

// WriteInverseBindMatrices stores column major matrices for a skin
func WriteInverseBindMatrices(doc *gltf.Document, matrices []mgl32.Mat4) uint32 {
	data := make([][4][4]float32, len(matrices))
	for i, m := range matrices {
		for c := 0; c < 4; c++ {
			col := m.Col(c)
			data[i][c] = [4]float32{col[0], col[1], col[2], col[3]}
		}
	}
	return modeler.WriteAccessor(doc, gltf.TargetNone, data)
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
