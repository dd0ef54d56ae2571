package export

import (
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Params is the fixed parameter profile handed to a writer
type Params struct {
	UseSelection bool
	ObjectTypes  []scene.Kind

	AxisForward       string
	AxisUp            string
	PrimaryBoneAxis   string
	SecondaryBoneAxis string

	GlobalScale        float32
	ApplyScaleOptions  string
	ApplyUnitScale     bool
	BakeSpaceTransform bool

	MeshSmoothType   string
	UseSubsurf       bool
	UseMeshModifiers bool
	UseMeshEdges     bool
	UseTSpace        bool

	UseCustomProps        bool
	ArmatureNodeType      string
	UseArmatureDeformOnly bool
	AddLeafBones          bool

	BakeAnim                    bool
	BakeAnimUseAllBones         bool
	BakeAnimForceStartEndKeying bool
	BakeAnimUseNLAStrips        bool
	BakeAnimUseAllActions       bool
	BakeAnimStep                float32
	BakeAnimSimplifyFactor      float32

	UseMetadata bool
}

const (
	ScaleNone     = "FBX_SCALE_NONE"
	SmoothFace    = "FACE"
	ArmatureNull  = "NULL"
	defaultFwd    = "-Z"
	defaultUp     = "Y"
	defaultBoneY  = "Y"
	defaultBoneX  = "X"
	defaultFormat = ".fbx"
)

// ParamsFor returns the export profile of a rig export mode.
// Only the animation baking flags depend on the mode.
func ParamsFor(mode scene.ExportMode) Params {
	p := Params{
		UseSelection:          true,
		ObjectTypes:           []scene.Kind{scene.KindArmature, scene.KindMesh},
		AxisForward:           defaultFwd,
		AxisUp:                defaultUp,
		PrimaryBoneAxis:       defaultBoneY,
		SecondaryBoneAxis:     defaultBoneX,
		GlobalScale:           1.0,
		ApplyScaleOptions:     ScaleNone,
		ApplyUnitScale:        true,
		MeshSmoothType:        SmoothFace,
		UseMeshModifiers:      true,
		ArmatureNodeType:      ArmatureNull,
		BakeAnimUseNLAStrips:  true,
		BakeAnimStep:          1.0,
		UseMetadata:           true,
		UseArmatureDeformOnly: false,
		AddLeafBones:          false,
	}
	if mode != scene.ExportArmature {
		p.BakeAnim = true
		p.BakeAnimUseAllBones = true
		p.BakeAnimForceStartEndKeying = true
	}
	return p
}

func (p *Params) exports(k scene.Kind) bool {
	for _, t := range p.ObjectTypes {
		if t == k {
			return true
		}
	}
	return false
}
