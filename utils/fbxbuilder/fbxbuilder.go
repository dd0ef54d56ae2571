package fbxbuilder

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const FBX_CREATOR = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
const FBX_APPLICATION_VENDOR = "twentybeeraces"
const FBX_APPLICATION_NAME = "SanitizeRigify"
const FBX_APPLICATION_VERSION = "1.0"
const FBX_DATE_TIME_GMT = "01/01/1970 00:00:00.000"
const FBX_CREATION_TIME = "1970-01-01 10:00:00:000"

// FBX_KTIME_SECOND is one second in fbx time units
const FBX_KTIME_SECOND int64 = 46186158000

var FBX_FILE_ID []byte = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

type Options struct {
	UnitScaleFactor float64
	// axis indices and signs of GlobalSettings
	UpAxis, UpAxisSign       int32
	FrontAxis, FrontAxisSign int32
	CoordAxis, CoordAxisSign int32
	Metadata                 bool
}

func DefaultOptions() Options {
	return Options{
		UnitScaleFactor: 1,
		UpAxis:          1, UpAxisSign: 1,
		FrontAxis: 2, FrontAxisSign: 1,
		CoordAxis: 0, CoordAxisSign: 1,
		Metadata: true,
	}
}

type FBXBuilder struct {
	f      *fbx.FBX
	lastId int64

	objects     *fbx.Node
	connections *fbx.Node
	takes       *fbx.Node
}

func NewFBXBuilder(filename string, opts Options) *FBXBuilder {
	f := &FBXBuilder{
		lastId:      1000000,
		f:           fbx.NewFBX(7400),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
		takes:       bfbx73.Takes().AddNodes(bfbx73.Current("")),
	}
	f.createHeaders(filename, opts)
	return f
}

// Node builds a node for record types that have no dedicated builder
func Node(name string, properties ...interface{}) *fbx.Node {
	return &fbx.Node{Name: name, Properties: properties}
}

// Name formats an object name with its fbx class suffix
func Name(name, class string) string {
	return name + "\x00\x01" + class
}

func (f *FBXBuilder) sceneInfo(filename string) *fbx.Node {
	return bfbx73.SceneInfo(Name("GlobalInfo", "SceneInfo"), "UserData").AddNodes(
		bfbx73.Type("UserData"),
		bfbx73.Version(100),
		bfbx73.MetaData().AddNodes(
			bfbx73.Version(100),
			bfbx73.Title(""),
			bfbx73.Subject(""),
			bfbx73.Author(""),
			bfbx73.Keywords(""),
			bfbx73.Revision(""),
			bfbx73.Comment(""),
		),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
			bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
			bfbx73.P("Original", "Compound", "", ""),
			bfbx73.P("Original|ApplicationVendor", "KString", "", "", FBX_APPLICATION_VENDOR),
			bfbx73.P("Original|ApplicationName", "KString", "", "", FBX_APPLICATION_NAME),
			bfbx73.P("Original|ApplicationVersion", "KString", "", "", FBX_APPLICATION_VERSION),
			bfbx73.P("Original|DateTime_GMT", "DateTime", "", "", FBX_DATE_TIME_GMT),
			bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)),
			bfbx73.P("LastSaved", "Compound", "", ""),
			bfbx73.P("LastSaved|ApplicationVendor", "KString", "", "", FBX_APPLICATION_VENDOR),
			bfbx73.P("LastSaved|ApplicationName", "KString", "", "", FBX_APPLICATION_NAME),
			bfbx73.P("LastSaved|ApplicationVersion", "KString", "", "", FBX_APPLICATION_VERSION),
			bfbx73.P("LastSaved|DateTime_GMT", "DateTime", "", "", FBX_DATE_TIME_GMT),
		),
	)
}

func (f *FBXBuilder) createHeaders(filename string, opts Options) {
	header := bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(7400),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Year(1970),
			bfbx73.Month(1),
			bfbx73.Day(1),
			bfbx73.Hour(10),
			bfbx73.Minute(0),
			bfbx73.Second(0),
			bfbx73.Millisecond(0),
		),
		bfbx73.Creator(FBX_CREATOR),
	)
	if opts.Metadata {
		header.AddNode(f.sceneInfo(filename))
	}

	f.Root().AddNodes(
		header,
		bfbx73.FileId(FBX_FILE_ID),
		bfbx73.CreationTime(FBX_CREATION_TIME),
		bfbx73.Creator(FBX_CREATOR),
		bfbx73.GlobalSettings().AddNodes(
			bfbx73.Version(1000),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("UpAxis", "int", "Integer", "", opts.UpAxis),
				bfbx73.P("UpAxisSign", "int", "Integer", "", opts.UpAxisSign),
				bfbx73.P("FrontAxis", "int", "Integer", "", opts.FrontAxis),
				bfbx73.P("FrontAxisSign", "int", "Integer", "", opts.FrontAxisSign),
				bfbx73.P("CoordAxis", "int", "Integer", "", opts.CoordAxis),
				bfbx73.P("CoordAxisSign", "int", "Integer", "", opts.CoordAxisSign),
				bfbx73.P("OriginalUpAxis", "int", "Integer", "", int32(2)),
				bfbx73.P("OriginalUpAxisSign", "int", "Integer", "", int32(1)),
				bfbx73.P("UnitScaleFactor", "double", "Number", "", opts.UnitScaleFactor),
				bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", opts.UnitScaleFactor),
				bfbx73.P("AmbientColor", "ColorRGB", "Color", "", float64(0), float64(0), float64(0)),
				bfbx73.P("DefaultCamera", "KString", "", "", "Producer Perspective"),
				bfbx73.P("TimeMode", "enum", "", "", int32(11)),
			),
		),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		bfbx73.Definitions().AddNodes(
			bfbx73.Version(100),
			bfbx73.Count(1),
			bfbx73.ObjectType("GlobalSettings").AddNodes(
				bfbx73.Count(1),
			),
			bfbx73.ObjectType("Model").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxNode").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("QuaternionInterpolate", "enum", "", "", int32(0)),
						bfbx73.P("RotationOrder", "enum", "", "", int32(0)),
						bfbx73.P("InheritType", "enum", "", "", int32(0)),
						bfbx73.P("Show", "bool", "", "", int32(1)),
						bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
						bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
						bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
						bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
						bfbx73.P("Visibility Inheritance", "Visibility Inheritance", "", "", int32(1)),
					),
				),
			),
			bfbx73.ObjectType("Geometry").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxMesh").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
						bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
						bfbx73.P("Casts Shadows", "bool", "", "", int32(1)),
						bfbx73.P("Receive Shadows", "bool", "", "", int32(1)),
					),
				),
			),
			bfbx73.ObjectType("NodeAttribute").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxSkeleton").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Color", "ColorRGB", "Color", "", float64(0.8), float64(0.8), float64(0.8)),
						bfbx73.P("Size", "double", "Number", "", float64(100)),
						bfbx73.P("LimbLength", "double", "Number", "H", float64(1)),
					),
				),
			),
			bfbx73.ObjectType("AnimationStack").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxAnimStack").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Description", "KString", "", "", ""),
						bfbx73.P("LocalStart", "KTime", "Time", "", int64(0)),
						bfbx73.P("LocalStop", "KTime", "Time", "", int64(0)),
						bfbx73.P("ReferenceStart", "KTime", "Time", "", int64(0)),
						bfbx73.P("ReferenceStop", "KTime", "Time", "", int64(0)),
					),
				),
			),
			bfbx73.ObjectType("AnimationLayer").AddNodes(
				bfbx73.Count(0),
				bfbx73.PropertyTemplate("FbxAnimLayer").AddNodes(
					bfbx73.Properties70().AddNodes(
						bfbx73.P("Weight", "Number", "", "A", float64(100)),
						bfbx73.P("Mute", "bool", "", "", int32(0)),
						bfbx73.P("Solo", "bool", "", "", int32(0)),
						bfbx73.P("Lock", "bool", "", "", int32(0)),
					),
				),
			),
		),
		f.objects,
		f.connections,
		f.takes,
	)
}

func (f *FBXBuilder) countDefinitions() {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}

	definitions := f.Root().GetNode("Definitions")
	totalCount := int32(1) // 1 for GlobalSettings

	for name, count := range counts {
		totalCount += count

		var objectType *fbx.Node
		for _, ot := range definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			definitions.AddNode(objectType)
		}

		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}

	definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = totalCount
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.f.Root
}

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

// Id of an object node created by the builders (first property)
func Id(n *fbx.Node) int64 {
	return n.Properties[0].(int64)
}

// fbx.Write needs a seekable stream, so go through a temp file
func (f *FBXBuilder) Write(w io.Writer) error {
	f.countDefinitions()

	tempFile, err := ioutil.TempFile("", "fbxexport.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temp file")
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if err := fbx.Write(tempFile, f.f); err != nil {
		return errors.Wrapf(err, "Unable to encode fbx")
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	_, err = io.Copy(w, tempFile)
	return err
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }
func (f *FBXBuilder) AddTakes(nodes ...*fbx.Node)       { f.takes.AddNodes(nodes...) }

// Objects gives read access to the object list, mostly for tests
func (f *FBXBuilder) Objects() []*fbx.Node { return f.objects.Nodes }

func (f *FBXBuilder) Connections() []*fbx.Node { return f.connections.Nodes }
