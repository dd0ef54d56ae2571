package web

import (
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/twentybeeraces/SanitizeRigify/config"
	"github.com/twentybeeraces/SanitizeRigify/scene"
)

var (
	ServerScene     *scene.Document
	ServerPrefs     *config.Preferences
	ServerScenePath string

	// commands mutate ServerScene, one at a time
	serverLock sync.Mutex
)

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/action/{rig}/{action}", HandlerActionRig).Methods("POST")
	r.HandleFunc("/json/scene", HandlerJsonScene)
	r.HandleFunc("/json/rig/{rig}", HandlerJsonRig)
	r.HandleFunc("/dump/scene", HandlerDumpScene)
	r.HandleFunc("/dump/rig/{rig}", HandlerDumpRig)
	r.HandleFunc("/upload/scene", HandlerUploadScene).Methods("POST")
	r.HandleFunc("/ws/status", HandlerStatus)
	return r
}

// StartServer serves doc until the listener fails. When scenePath is not
// empty, every successful command saves the scene back to it.
func StartServer(addr string, doc *scene.Document, prefs *config.Preferences, scenePath string) error {
	ServerScene = doc
	ServerPrefs = prefs
	ServerScenePath = scenePath

	r := NewRouter()

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
