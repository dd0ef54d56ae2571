package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/rig"
	"github.com/twentybeeraces/SanitizeRigify/scene"
	"github.com/twentybeeraces/SanitizeRigify/utils"
	"github.com/twentybeeraces/SanitizeRigify/web"
)

const cmdHierarchy = "hierarchy"

func main() {
	var addr, scenePath, prefsPath, rigName, cmdName, out, bone string
	var index int
	var save bool
	flag.StringVar(&addr, "i", ":8000", "Address of server, used when -cmd is empty")
	flag.StringVar(&scenePath, "scene", "", "Path to scene yaml file")
	flag.StringVar(&prefsPath, "prefs", "", "Path to preferences yaml file, defaults when empty")
	flag.StringVar(&rigName, "rig", "", "Name of the source rig object, active object when empty")
	flag.StringVar(&cmdName, "cmd", "", "Command: "+strings.Join(append(rig.Commands, cmdHierarchy), "|"))
	flag.StringVar(&out, "o", "", "Export path (.fbx or .glb), saved rig path when empty")
	flag.StringVar(&bone, "bone", "", "Bone name for add-bone")
	flag.IntVar(&index, "index", 0, "List index for remove-bone")
	flag.BoolVar(&save, "save", false, "Remember -o as the rig export path")
	flag.Parse()

	if scenePath == "" {
		flag.PrintDefaults()
		return
	}

	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		log.Fatal(err)
	}
	doc, err := scene.LoadFile(scenePath)
	if err != nil {
		log.Fatal(err)
	}

	if cmdName == "" {
		if err := web.StartServer(addr, doc, prefs, scenePath); err != nil {
			log.Fatal(err)
		}
		return
	}

	obj := doc.Active()
	if rigName != "" {
		obj = doc.ObjectByName(rigName)
	}
	if obj == nil || obj.Kind != scene.KindArmature {
		log.Fatalf("[main] No source rig: pass -rig with the name of an armature object")
	}
	ctx := &rig.Context{Doc: doc, Prefs: prefs, Rig: obj}

	if cmdName == cmdHierarchy {
		desc, err := rig.Hierarchy(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(utils.SDump(desc))
		return
	}

	report, err := rig.Dispatch(ctx, rig.Command{
		Name:  cmdName,
		Path:  out,
		Save:  save,
		Bone:  bone,
		Index: index,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(report)
	if report.Status != rig.Finished {
		os.Exit(1)
	}
	if err := doc.SaveFile(scenePath); err != nil {
		log.Fatal(err)
	}
}
