package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/geofs-atc/internal/airports"
	"github.com/yegors/geofs-atc/internal/atcchat"
	"github.com/yegors/geofs-atc/internal/controllers"
	"github.com/yegors/geofs-atc/internal/physics"
	"github.com/yegors/geofs-atc/internal/storage/sqlite"
	"github.com/yegors/geofs-atc/internal/telemetry"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// ControllerLookup exposes today's controllers without fetching
type ControllerLookup interface {
	Today(code string) controllers.Key
	Get(key controllers.Key) (controllers.Persona, controllers.Status)
	LastError(key controllers.Key) error
}

// ProximityState exposes the poller's view of the nearest airport
type ProximityState interface {
	Current() (airports.Fix, bool)
}

// RadioLogReader lists archived transmissions
type RadioLogReader interface {
	Recent(ctx context.Context, limit int) ([]sqlite.Transmission, error)
}

// Resetter is anything cleared on a session reset
type Resetter interface {
	Reset()
}

// ResetFunc adapts a plain function to Resetter
type ResetFunc func()

// Reset calls f
func (f ResetFunc) Reset() { f() }

// Deps groups what the handlers need. Proximity and RadioLog are optional.
type Deps struct {
	Chat        *atcchat.Service
	Airports    *airports.Registry
	Controllers ControllerLookup
	Telemetry   *telemetry.Store
	Proximity   ProximityState
	RadioLog    RadioLogReader
	// ResetOnSession is cleared, in order, by POST /session/reset
	ResetOnSession []Resetter
	Clients        func() int
}

// Handler handles API requests
type Handler struct {
	deps      Deps
	startedAt time.Time
	logger    *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	return &Handler{
		deps:      deps,
		startedAt: time.Now(),
		logger:    log.Named("api"),
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, atcchat.ErrEmptyMessage):
		status, code = http.StatusBadRequest, "empty_message"
	case errors.Is(err, airports.ErrUnknownFrequency):
		status, code = http.StatusNotFound, "unknown_frequency"
	case errors.Is(err, airports.ErrEmptyRegistry):
		status, code = http.StatusServiceUnavailable, "no_airports"
	case errors.Is(err, atcchat.ErrNoTelemetry):
		status, code = http.StatusConflict, "no_telemetry"
	case errors.Is(err, atcchat.ErrNoFrequency):
		status, code = http.StatusConflict, "no_frequency"
	case errors.Is(err, atcchat.ErrOutOfRange):
		status, code = http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, atcchat.ErrAirportClosed):
		status, code = http.StatusConflict, "airport_closed"
	case errors.Is(err, atcchat.ErrFrequencyBusy):
		status, code = http.StatusTooManyRequests, "frequency_busy"
	case errors.Is(err, atcchat.ErrServiceUnavailable):
		status, code = http.StatusBadGateway, "service_unavailable"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", logger.Error(err))
	}
	WriteJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// decodeBody reads a JSON request body into v, writing the error response
// itself when it returns false. Only application/json is accepted so pages on
// other origins cannot post form or text bodies without a preflight.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		http.Error(w, "content type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime_s": int(time.Since(h.startedAt).Seconds()),
		"airports": h.deps.Airports.Len(),
	})
}

// GetStatus returns the session status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"chat":              h.deps.Chat.Status(),
		"telemetry_updates": h.deps.Telemetry.Updates(),
	}
	if snap, err := h.deps.Telemetry.Latest(); err == nil {
		resp["telemetry_received_at"] = snap.ReceivedAt
	}
	if h.deps.Proximity != nil {
		if fix, ok := h.deps.Proximity.Current(); ok {
			resp["nearest"] = fixResponse(fix)
		}
	}
	if h.deps.Clients != nil {
		resp["overlay_clients"] = h.deps.Clients()
	}
	WriteJSON(w, http.StatusOK, resp)
}

type fixJSON struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceKm float64 `json:"distance_km"`
	DistanceNM float64 `json:"distance_nm"`
	BearingDeg float64 `json:"bearing_deg"`
}

func fixResponse(fix airports.Fix) fixJSON {
	return fixJSON{
		Code:       fix.Code(),
		Name:       fix.Airport.Name,
		Lat:        fix.Airport.Lat,
		Lon:        fix.Airport.Lon,
		DistanceKm: fix.DistanceKm,
		DistanceNM: physics.KmToNM(fix.DistanceKm),
		BearingDeg: fix.BearingDeg,
	}
}

// GetNearestAirport returns the airport closest to lat/lon query parameters,
// or to the aircraft when they are omitted
func (h *Handler) GetNearestAirport(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := h.position(r)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoTelemetry) {
			h.writeError(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fix, err := h.deps.Airports.Nearest(lat, lon)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fixResponse(fix))
}

func (h *Handler) position(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" && q.Get("lon") == "" {
		snap, err := h.deps.Telemetry.Latest()
		if err != nil {
			return 0, 0, err
		}
		return snap.Lat, snap.Lon, nil
	}

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, errors.New("invalid lon")
	}
	return lat, lon, nil
}

// GetAirport returns one airport, with its distance when telemetry is known
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ap, err := h.deps.Airports.Lookup(code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	snap, err := h.deps.Telemetry.Latest()
	if err != nil {
		WriteJSON(w, http.StatusOK, fixResponse(airports.Fix{Airport: ap}))
		return
	}
	fix, err := h.deps.Airports.Fix(ap.Code, snap.Lat, snap.Lon)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fixResponse(fix))
}

// GetAirportContext returns the conversation with an airport
func (h *Handler) GetAirportContext(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := h.deps.Airports.Lookup(code); err != nil {
		h.writeError(w, err)
		return
	}

	view, ok := h.deps.Chat.Context(code)
	if !ok {
		http.Error(w, "no conversation with "+airports.NormalizeCode(code), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

type controllerResponse struct {
	Airport string               `json:"airport"`
	Date    string               `json:"date"`
	Status  controllers.Status   `json:"status"`
	Persona *controllers.Persona `json:"persona,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// GetAirportController returns today's controller for an airport
func (h *Handler) GetAirportController(w http.ResponseWriter, r *http.Request) {
	ap, err := h.deps.Airports.Lookup(chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	key := h.deps.Controllers.Today(ap.Code)
	persona, status := h.deps.Controllers.Get(key)
	resp := controllerResponse{Airport: key.Code, Date: key.Date, Status: status}
	if status == controllers.StatusResolved {
		resp.Persona = &persona
	}
	if err := h.deps.Controllers.LastError(key); err != nil {
		resp.Error = err.Error()
	}
	WriteJSON(w, http.StatusOK, resp)
}

type frequencyRequest struct {
	Code string `json:"code"`
}

// GetFrequency returns the tuned airport
func (h *Handler) GetFrequency(w http.ResponseWriter, r *http.Request) {
	st := h.deps.Chat.Status()
	WriteJSON(w, http.StatusOK, map[string]any{"mode": st.Mode, "code": st.Frequency})
}

// SetFrequency tunes to an airport; an empty code returns to nearest mode
func (h *Handler) SetFrequency(w http.ResponseWriter, r *http.Request) {
	var req frequencyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ap, err := h.deps.Chat.Tune(req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ap.Code == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"mode": atcchat.ModeNearest})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"mode": atcchat.ModeTuned, "code": ap.Code, "name": ap.Name})
}

type talkRequest struct {
	Text string `json:"text"`
}

// Talk sends a pilot transmission and waits for the controller's reply
func (h *Handler) Talk(w http.ResponseWriter, r *http.Request) {
	var req talkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.deps.Chat.Talk(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// PostTelemetry stores a snapshot sent over HTTP instead of the socket
func (h *Handler) PostTelemetry(w http.ResponseWriter, r *http.Request) {
	var snap telemetry.Snapshot
	if !decodeBody(w, r, &snap) {
		return
	}
	h.deps.Telemetry.Update(snap)
	w.WriteHeader(http.StatusNoContent)
}

type speechErrorRequest struct {
	Error string `json:"error"`
}

// PostSpeechError narrates a browser speech recognition failure
func (h *Handler) PostSpeechError(w http.ResponseWriter, r *http.Request) {
	var req speechErrorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.deps.Chat.SpeechError(req.Error)
	w.WriteHeader(http.StatusNoContent)
}

// ResetSession forgets everything tied to the page session
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.deps.Chat.Reset()
	for _, rs := range h.deps.ResetOnSession {
		rs.Reset()
	}
	h.logger.Info("Session reset")
	w.WriteHeader(http.StatusNoContent)
}

// GetRadioLog returns archived transmissions, newest first
func (h *Handler) GetRadioLog(w http.ResponseWriter, r *http.Request) {
	if h.deps.RadioLog == nil {
		http.Error(w, "radio log disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.deps.RadioLog.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []sqlite.Transmission{}
	}
	WriteJSON(w, http.StatusOK, records)
}
