package rig

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/export"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/status"
)

type Status int

const (
	Finished Status = iota
	Cancelled
)

func (s Status) String() string {
	if s == Cancelled {
		return "CANCELLED"
	}
	return "FINISHED"
}

type Level int

const (
	Info Level = iota
	Warning
)

func (l Level) String() string {
	if l == Warning {
		return "WARNING"
	}
	return "INFO"
}

// Report is the outcome of a command as shown to the user
type Report struct {
	Status  Status
	Level   Level
	Message string
}

func (r Report) String() string {
	return fmt.Sprintf("%s %s: %s", r.Status, r.Level, r.Message)
}

// Context is everything a command operates on.
// Rig is the current source rig, Writer the output format backend.
type Context struct {
	Doc    *scene.Document
	Prefs  *config.Preferences
	Rig    *scene.Object
	Writer export.Writer
}

func (ctx *Context) validate() error {
	if ctx.Doc == nil {
		return errors.Errorf("No document")
	}
	if ctx.Prefs == nil {
		return errors.Errorf("No preferences")
	}
	if ctx.Rig == nil {
		return errors.Errorf("No current rig")
	}
	if ctx.Rig.Kind != scene.KindArmature {
		return errors.Errorf("%q is not an armature", ctx.Rig.Name)
	}
	return nil
}

func finished(format string, args ...interface{}) Report {
	r := Report{Status: Finished, Level: Info, Message: fmt.Sprintf(format, args...)}
	log.Printf("[rig] %s", r.Message)
	status.Info("%s", r.Message)
	return r
}

func cancelled(format string, args ...interface{}) Report {
	r := Report{Status: Cancelled, Level: Warning, Message: fmt.Sprintf(format, args...)}
	log.Printf("[rig] cancelled: %s", r.Message)
	status.Warning("%s", r.Message)
	return r
}
