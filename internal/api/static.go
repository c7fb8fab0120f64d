package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yegors/geofs-atc/pkg/logger"
)

// defaultAsset is served for "/" so the userscript manager can install the overlay
const defaultAsset = "geofs-atc.user.js"

// StaticFileHandler serves the overlay script and its sounds from disk
type StaticFileHandler struct {
	staticDir string
	logger    *logger.Logger
}

// NewStaticFileHandler creates a new static file handler
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		staticDir: staticDir,
		logger:    log.Named("static-handler"),
	}
}

// ServeHTTP serves one file below the static directory
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = defaultAsset
	}

	root, err := filepath.Abs(h.staticDir)
	if err != nil {
		h.logger.Error("Failed to resolve static directory", logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	full := filepath.Join(root, filepath.FromSlash(name))

	// Join cleans "..", this catches anything that still escapes the root
	if rel, err := filepath.Rel(root, full); err != nil || strings.HasPrefix(rel, "..") {
		h.logger.Warn("Rejected path outside the static directory", logger.String("requested_path", r.URL.Path))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		h.logger.Debug("Static file not found", logger.String("path", full))
		http.NotFound(w, r)
		return
	}

	// Sounds never change; scripts are edited while developing the overlay
	switch strings.ToLower(filepath.Ext(full)) {
	case ".mp3", ".ogg", ".wav":
		w.Header().Set("Cache-Control", "public, max-age=86400")
	default:
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}

	http.ServeFile(w, r, full)
}
