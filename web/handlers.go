package web

import (
	"bytes"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/twentybeeraces/SanitizeRigify/rig"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/status"
	"github.com/twentybeeraces/SanitizeRigify/utils"
	"github.com/twentybeeraces/SanitizeRigify/webutils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type jObject struct {
	Name       string
	Type       scene.Kind
	Parent     string `json:",omitempty"`
	Hidden     bool
	Selected   bool
	Active     bool
	Previewing bool
}

type jBone struct {
	Name     string
	Parent   string `json:",omitempty"`
	Deform   bool
	Prefixed bool
}

type jSettings struct {
	ExportMode           scene.ExportMode
	DisconnectAllBones   bool
	Recenter             bool
	AnimationNaming      scene.AnimationNaming
	ArmatureName         string
	Path                 string
	HaveAdditionalBones  bool
	AdditionalBones      []string
	AdditionalBonesToAdd string
	AdditionalBonesIndex int
	GeneratedRig         string `json:",omitempty"`
}

type jRig struct {
	Name         string
	Armature     string
	Bones        []jBone
	Settings     *jSettings `json:",omitempty"`
	CanPreview   bool
	IsPreviewing bool
	CanExport    bool
	DefaultPath  string
	Hierarchy    rig.Descriptor
}

type jReport struct {
	Status  string
	Level   string
	Message string
}

func rigContext(rigName string) (*rig.Context, error) {
	if ServerScene == nil || ServerPrefs == nil {
		return nil, errors.Errorf("No scene loaded")
	}
	obj := ServerScene.ObjectByName(rigName)
	if obj == nil {
		return nil, errors.Errorf("Object %q not found", rigName)
	}
	if obj.Kind != scene.KindArmature {
		return nil, errors.Errorf("Object %q is not an armature", rigName)
	}
	return &rig.Context{Doc: ServerScene, Prefs: ServerPrefs, Rig: obj}, nil
}

func HandlerJsonScene(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if ServerScene == nil {
		webutils.WriteError(w, errors.Errorf("No scene loaded"), http.StatusNotFound)
		return
	}
	active := ServerScene.Active()
	objects := make([]jObject, 0)
	for _, o := range ServerScene.Objects() {
		jo := jObject{
			Name:     o.Name,
			Type:     o.Kind,
			Hidden:   o.Hidden,
			Selected: o.Selected(),
			Active:   o == active,
		}
		if p := ServerScene.Object(o.Parent); p != nil {
			jo.Parent = p.Name
		}
		if o.Kind == scene.KindArmature {
			jo.Previewing = rig.IsPreviewing(ServerScene, o)
		}
		objects = append(objects, jo)
	}
	webutils.WriteJson(w, objects)
}

func HandlerJsonRig(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	ctx, err := rigContext(mux.Vars(r)["rig"])
	if err != nil {
		webutils.WriteError(w, err, http.StatusNotFound)
		return
	}
	desc, err := rig.Hierarchy(ctx)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	obj := ctx.Rig
	jr := jRig{
		Name:         obj.Name,
		Armature:     obj.Armature.Name,
		Bones:        make([]jBone, 0, len(obj.Armature.Bones())),
		CanPreview:   rig.CanPreview(ctx.Doc, obj),
		IsPreviewing: rig.IsPreviewing(ctx.Doc, obj),
		CanExport:    rig.CanExport(ctx),
		DefaultPath:  rig.DefaultFilePath(obj),
		Hierarchy:    desc,
	}
	for _, b := range obj.Armature.Bones() {
		jb := jBone{Name: b.Name, Deform: b.UseDeform, Prefixed: b.IsPrefixed}
		if p := b.Parent(); p != nil {
			jb.Parent = p.Name
		}
		jr.Bones = append(jr.Bones, jb)
	}
	if s := obj.Settings; s != nil {
		jr.Settings = &jSettings{
			ExportMode:           s.ExportMode,
			DisconnectAllBones:   s.DisconnectAllBones,
			Recenter:             s.Recenter,
			AnimationNaming:      s.AnimationNaming,
			ArmatureName:         s.ArmatureName,
			Path:                 s.Path,
			HaveAdditionalBones:  s.HaveAdditionalBones,
			AdditionalBones:      s.AdditionalBones,
			AdditionalBonesToAdd: s.AdditionalBonesToAdd,
			AdditionalBonesIndex: s.AdditionalBonesIndex,
		}
		if gen := ctx.Doc.Object(s.GeneratedRig); gen != nil {
			jr.Settings.GeneratedRig = gen.Name
		}
	}
	webutils.WriteJson(w, jr)
}

func HandlerActionRig(w http.ResponseWriter, r *http.Request) {
	rigName := mux.Vars(r)["rig"]
	cmd := rig.Command{
		Name: mux.Vars(r)["action"],
		Path: r.FormValue("path"),
		Bone: r.FormValue("bone"),
	}
	if save := r.FormValue("save"); save != "" {
		v, err := strconv.ParseBool(save)
		if err != nil {
			webutils.WriteError(w, errors.Errorf("param 'save' %q is not boolean", save))
			return
		}
		cmd.Save = v
	}
	if index := r.FormValue("index"); index != "" {
		v, err := strconv.Atoi(index)
		if err != nil {
			webutils.WriteError(w, errors.Errorf("param 'index' %q is not integer", index))
			return
		}
		cmd.Index = v
	}

	serverLock.Lock()
	defer serverLock.Unlock()

	ctx, err := rigContext(rigName)
	if err != nil {
		webutils.WriteError(w, err, http.StatusNotFound)
		return
	}
	report, err := rig.Dispatch(ctx, cmd)
	if err != nil {
		status.Error("%s of %s failed: %v", cmd.Name, rigName, err)
		webutils.WriteError(w, errors.Wrapf(err, "Command %q failed", cmd.Name), http.StatusInternalServerError)
		return
	}

	if report.Status == rig.Finished && cmd.Mutates() && ServerScenePath != "" {
		if err := ServerScene.SaveFile(ServerScenePath); err != nil {
			log.Printf("[web] Can't save scene %q: %v", ServerScenePath, err)
			status.Error("Can't save scene: %v", err)
		}
	}
	webutils.WriteJson(w, &jReport{
		Status:  report.Status.String(),
		Level:   report.Level.String(),
		Message: report.Message,
	})
}

func HandlerDumpRig(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	ctx, err := rigContext(mux.Vars(r)["rig"])
	if err != nil {
		webutils.WriteError(w, err, http.StatusNotFound)
		return
	}
	desc, err := rig.Hierarchy(ctx)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteText(w, utils.SDump(desc))
}

func HandlerDumpScene(w http.ResponseWriter, r *http.Request) {
	serverLock.Lock()
	defer serverLock.Unlock()

	if ServerScene == nil {
		webutils.WriteError(w, errors.Errorf("No scene loaded"), http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := ServerScene.Save(&buf); err != nil {
		webutils.WriteError(w, err, http.StatusInternalServerError)
		return
	}
	name := "scene.yaml"
	if ServerScenePath != "" {
		name = filepath.Base(ServerScenePath)
	}
	webutils.WriteFile(w, &buf, name)
}

func HandlerUploadScene(w http.ResponseWriter, r *http.Request) {
	data, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	doc, err := scene.Load(bytes.NewReader(data))
	if err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "Uploaded scene is invalid"))
		return
	}

	serverLock.Lock()
	defer serverLock.Unlock()
	ServerScene = doc
	log.Printf("[web] Scene replaced: %d objects", len(doc.Objects()))
	status.Info("Scene uploaded")
	webutils.WriteJson(w, len(doc.Objects()))
}

func HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	status.NewClient(conn)
}
