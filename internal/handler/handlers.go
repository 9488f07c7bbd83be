// Package handler provides the HTTP request handlers for the request-queue service.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ristijajohannesefestival/pela/internal/apperrors"
	"github.com/ristijajohannesefestival/pela/internal/service"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	queues       *service.QueueService
	search       *service.SearchService
	playback     *service.PlaybackService
	errorHandler *apperrors.Handler
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	queues *service.QueueService,
	search *service.SearchService,
	playback *service.PlaybackService,
	errorHandler *apperrors.Handler,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		queues:       queues,
		search:       search,
		playback:     playback,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// GetQueue handles GET /queue/{venueId} requests.
func (h *Handlers) GetQueue(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["venueId"]

	queue, err := h.queues.GetQueue(r.Context(), venueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"queue": queue})
}

// GetNowPlaying handles GET /now-playing/{venueId} requests. A venue without
// a snapshot answers with an explicit null.
func (h *Handlers) GetNowPlaying(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["venueId"]

	np, err := h.playback.NowPlaying(r.Context(), venueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"nowPlaying": np})
}

type voteRequest struct {
	VenueID   string `json:"venueId"`
	SongID    string `json:"songId"`
	SessionID string `json:"sessionId"`
}

// Vote handles POST /vote requests.
func (h *Handlers) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid JSON body", r.Header.Get("X-Request-ID"))
		return
	}

	hype, err := h.queues.Vote(r.Context(), req.VenueID, req.SongID, req.SessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"hype":    hype,
	})
}

type addSongRequest struct {
	VenueID   string                 `json:"venueId"`
	SessionID string                 `json:"sessionId"`
	Song      service.SongSubmission `json:"song"`
}

// AddSong handles POST /add-song requests.
func (h *Handlers) AddSong(w http.ResponseWriter, r *http.Request) {
	var req addSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid JSON body", r.Header.Get("X-Request-ID"))
		return
	}

	entry, err := h.queues.AddSong(r.Context(), req.VenueID, req.SessionID, req.Song)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"song":    entry,
	})
}

// SearchSpotify handles GET /search-spotify?q= requests.
func (h *Handlers) SearchSpotify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.search.Search(r.Context(), query)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"results": results})
}

// InitDemo handles POST /init-demo/{venueId} requests.
func (h *Handlers) InitDemo(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["venueId"]

	seeded, err := h.queues.InitDemo(r.Context(), venueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if !seeded {
		h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"message": "Venue already initialized",
		})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Demo data initialized",
	})
}

// ListDevices handles GET /spotify/devices/{venueId} requests.
func (h *Handlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["venueId"]

	devices, err := h.playback.Devices(r.Context(), venueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

type selectDeviceRequest struct {
	VenueID  string `json:"venueId"`
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}

// SelectDevice handles POST /spotify/select-device requests.
func (h *Handlers) SelectDevice(w http.ResponseWriter, r *http.Request) {
	var req selectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid JSON body", r.Header.Get("X-Request-ID"))
		return
	}

	if err := h.playback.SelectDevice(r.Context(), req.VenueID, req.DeviceID, req.Name); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true})
}

// PlayNext handles POST /play-next/{venueId} requests.
func (h *Handlers) PlayNext(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["venueId"]

	np, err := h.playback.PlayNext(r.Context(), venueID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"nowPlaying": np,
	})
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
