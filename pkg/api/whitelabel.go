package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/auth"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
)

// WhitelabelHandler serves the frontend bootstrap document: operator-supplied
// branding keys from a static JSON file, merged with runtime keys the server
// computes (auth mode, provider list, login URL). Dynamic keys win on
// collision so operators cannot misrepresent the server's auth state.
type WhitelabelHandler struct {
	cfg       *config.Config
	providers *auth.ProviderRegistry
	logger    *observability.Logger

	mu     sync.RWMutex
	static map[string]interface{}

	watcher *fsnotify.Watcher
}

// NewWhitelabelHandler loads the static file (if configured) and starts the
// fsnotify watcher so edits apply without a restart.
func NewWhitelabelHandler(cfg *config.Config, providers *auth.ProviderRegistry, logger *observability.Logger) *WhitelabelHandler {
	h := &WhitelabelHandler{
		cfg:       cfg,
		providers: providers,
		logger:    logger,
		static:    map[string]interface{}{},
	}

	if cfg.Whitelabel.FilePath != "" {
		h.reload()
		if cfg.Whitelabel.WatchEnabled {
			h.watch()
		}
	}
	return h
}

// RegisterRoutes registers the whitelabel route.
func (h *WhitelabelHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(authz.WhitelabelPath, h.getWhitelabel).Methods("GET")
}

func (h *WhitelabelHandler) getWhitelabel(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	merged := make(map[string]interface{}, len(h.static)+4)
	for k, v := range h.static {
		merged[k] = v
	}
	h.mu.RUnlock()

	merged["authMode"] = string(h.cfg.Auth.Mode)
	merged["singleAuthEnabled"] = h.cfg.Auth.SingleAuthEnabled()
	merged["authProviders"] = h.providerList()
	if h.cfg.Auth.LoginURL != "" {
		merged["loginUrl"] = h.cfg.Auth.LoginURL
	} else if h.cfg.Auth.SingleAuthEnabled() {
		merged["loginUrl"] = authz.LoginPath
	}

	httputil.WriteSuccess(w, merged)
}

// providerList always renders as a JSON array, never null.
func (h *WhitelabelHandler) providerList() []auth.ProviderDescriptor {
	list := h.providers.ListProviders()
	if list == nil {
		return []auth.ProviderDescriptor{}
	}
	return list
}

// reload re-reads the static file. A broken file keeps the last good state.
func (h *WhitelabelHandler) reload() {
	data, err := os.ReadFile(h.cfg.Whitelabel.FilePath)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("failed to read whitelabel file")
		}
		return
	}

	var static map[string]interface{}
	if err := json.Unmarshal(data, &static); err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("invalid whitelabel file, keeping previous contents")
		}
		return
	}

	h.mu.Lock()
	h.static = static
	h.mu.Unlock()
}

// Close releases the file watcher; its event channels close and the watch
// goroutine exits.
func (h *WhitelabelHandler) Close() error {
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Close()
}

// watch reloads the static file whenever it changes. Editors often replace
// the file rather than writing in place, so the watch covers the directory
// and filters on the file name.
func (h *WhitelabelHandler) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("whitelabel watch unavailable")
		}
		return
	}

	dir := filepath.Dir(h.cfg.Whitelabel.FilePath)
	if err := watcher.Add(dir); err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("whitelabel watch unavailable")
		}
		watcher.Close()
		return
	}

	h.watcher = watcher
	target := filepath.Clean(h.cfg.Whitelabel.FilePath)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					h.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if h.logger != nil {
					h.logger.WithError(err).Warn("whitelabel watch error")
				}
			}
		}
	}()
}
