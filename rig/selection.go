package rig

import (
	"log"

	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/scene"
)

// Selection is a snapshot of active object, selected objects and mode
type Selection struct {
	Active   *scene.Object
	Selected []*scene.Object
	Mode     scene.Mode
}

// DeselectAll snapshots the selection state, goes back to object mode and
// clears both selection and active object.
func DeselectAll(doc *scene.Document) Selection {
	sel := Selection{
		Selected: doc.SelectedObjects(),
		Active:   doc.Active(),
		Mode:     doc.Mode(),
	}
	if sel.Mode != scene.ModeObject {
		doc.SetMode(scene.ModeObject)
	}
	doc.DeselectAll()
	doc.SetActive(nil)
	return sel
}

// RestoreSelection is best effort: failures are logged and never returned
func RestoreSelection(doc *scene.Document, sel Selection) {
	DeselectAll(doc)
	if len(sel.Selected) == 0 {
		return
	}
	if err := restoreSelection(doc, sel); err != nil {
		log.Printf("[rig] selection restore failed: %v", err)
	}
}

func restoreSelection(doc *scene.Document, sel Selection) error {
	for _, o := range sel.Selected {
		// deleted objects simply stay unselected
		if doc.Object(o.Id) == o {
			o.SetSelected(true)
		}
	}
	if sel.Active != nil && doc.Object(sel.Active.Id) != sel.Active {
		return errors.Errorf("Active object %q was deleted", sel.Active.Name)
	}
	doc.SetActive(sel.Active)
	if err := doc.SetMode(sel.Mode); err != nil {
		return errors.Wrapf(err, "Can't restore mode")
	}
	return nil
}
