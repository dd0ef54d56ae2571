package export

import (
	"path/filepath"
	"strings"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Writer turns the selected objects of a document into an interchange file
type Writer interface {
	Write(doc *scene.Document, path string, params Params) error
}

// ForPath picks the writer by output file extension, fbx when unknown
func ForPath(path string, prefs *config.Preferences) Writer {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glb":
		return &GLTFWriter{Prefs: prefs}
	default:
		return &FBXWriter{Prefs: prefs}
	}
}

// IsExportPath reports whether path already names an output file
func IsExportPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case defaultFormat, ".glb":
		return true
	}
	return false
}

// DispatchWriter selects the concrete writer on every call from the output path
type DispatchWriter struct {
	Prefs *config.Preferences
}

func (w *DispatchWriter) Write(doc *scene.Document, path string, params Params) error {
	return ForPath(path, w.Prefs).Write(doc, path, params)
}
