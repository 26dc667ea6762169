package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/httputil"
)

// VersionInfo describes the running build. Populated from ldflags at build
// time; zero values render as "unknown".
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	BuiltAt string `json:"builtAt"`
}

// VersionHandler serves the unauthenticated build info probe.
type VersionHandler struct {
	info VersionInfo
}

// NewVersionHandler creates a version handler.
func NewVersionHandler(info VersionInfo) *VersionHandler {
	if info.Version == "" {
		info.Version = "unknown"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return &VersionHandler{info: info}
}

// RegisterRoutes registers the version route.
func (h *VersionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(authz.VersionPath, h.getVersion).Methods("GET")
}

func (h *VersionHandler) getVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.info)
}
