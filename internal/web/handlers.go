package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
	"github.com/cjeanneret/SonoGo/internal/logic/track"
)

// Overrides holds scan parameters that can override config defaults.
type Overrides struct {
	Type       string  `json:"type"`
	X          float64 `json:"x_mm"`
	Y          float64 `json:"y_mm"`
	Z          float64 `json:"z_mm"`
	Resolution float64 `json:"resolution_mm"`
}

// Spec converts the overrides into a scan spec.
func (o Overrides) Spec() pattern.Spec {
	return pattern.Spec{
		Type: pattern.ScanType(o.Type),
		Dims: pattern.Dimensions{X: o.X, Y: o.Y, Z: o.Z, Resolution: o.Resolution},
	}
}

// RunScanFunc runs a scan with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunScanFunc func(ctx context.Context, overrides Overrides) error

// PositionFunc reports the probe's current tracked position.
type PositionFunc func() track.Position

// FormConfig holds default values for the scan form (from config).
type FormConfig struct {
	Type       string  `json:"type"`
	X          float64 `json:"x_mm"`
	Y          float64 `json:"y_mm"`
	Z          float64 `json:"z_mm"`
	Resolution float64 `json:"resolution_mm"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunScan      RunScanFunc
	Position     PositionFunc
	FormDefaults FormConfig
	runningMu    sync.Mutex
	running      bool
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runScan is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runScan RunScanFunc, position PositionFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunScan:      runScan,
		Position:     position,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// HandlePosition returns the probe's tracked position as JSON.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	if h.Position == nil {
		http.Error(w, "position tracking not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Position())
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a scan.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	// Validate by building the plan the scan would use.
	if _, err := pattern.BuildPlan(overrides.Spec()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunScan == nil {
		http.Error(w, "scanning not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "scan already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ctx := context.Background()
		if err := h.RunScan(ctx, overrides); err != nil {
			h.Broadcaster.Broadcast("error", "Scan failed: "+err.Error())
			log.Printf("scan failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Scan complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
