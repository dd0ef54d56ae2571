package rig

import (
	"github.com/pkg/errors"
)

const (
	CmdPreview    = "preview"
	CmdUnpreview  = "unpreview"
	CmdExport     = "export"
	CmdAddBone    = "add-bone"
	CmdRemoveBone = "remove-bone"
	CmdClearBones = "clear-bones"
	CmdResetName  = "reset-name"
)

// Commands lists the names accepted by Dispatch
var Commands = []string{
	CmdPreview, CmdUnpreview, CmdExport,
	CmdAddBone, CmdRemoveBone, CmdClearBones, CmdResetName,
}

// Command is one user request, as parsed from flags or a web form.
// Path empty on export means DefaultFilePath of the rig.
type Command struct {
	Name  string
	Path  string
	Save  bool
	Bone  string
	Index int
}

// Mutates reports whether the command can change the document
func (c Command) Mutates() bool {
	for _, name := range Commands {
		if name == c.Name {
			return true
		}
	}
	return false
}

func Dispatch(ctx *Context, cmd Command) (Report, error) {
	switch cmd.Name {
	case CmdPreview:
		return Preview(ctx)
	case CmdUnpreview:
		return Unpreview(ctx)
	case CmdExport:
		if ctx.Rig == nil {
			return Report{}, errors.Errorf("No current rig")
		}
		path := cmd.Path
		if path == "" {
			path = DefaultFilePath(ctx.Rig)
		}
		return Export(ctx, path, cmd.Save)
	case CmdAddBone:
		return AddAdditionalBone(ctx, cmd.Bone)
	case CmdRemoveBone:
		return RemoveAdditionalBone(ctx, cmd.Index)
	case CmdClearBones:
		return ClearAdditionalBones(ctx)
	case CmdResetName:
		return ResetArmatureName(ctx)
	default:
		return Report{}, errors.Errorf("Unknown command %q", cmd.Name)
	}
}
