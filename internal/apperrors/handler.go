package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrorCodeCooldownActive      ErrorCode = "COOLDOWN_ACTIVE"
	ErrorCodeAlreadyVoted        ErrorCode = "ALREADY_VOTED"
	ErrorCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrorCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrorCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorCodeAuthExpired         ErrorCode = "AUTH_EXPIRED"
	ErrorCodeUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format. The
// cooldownMinutes and retryAfter field names are part of the frontend
// contract and must not change.
type ErrorResponse struct {
	Status          string    `json:"status"`
	ErrorCode       ErrorCode `json:"error_code"`
	Message         string    `json:"message"`
	RequestID       string    `json:"request_id,omitempty"`
	CooldownMinutes *int      `json:"cooldownMinutes,omitempty"`
	RetryAfter      *int      `json:"retryAfter,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError processes a service error and writes the appropriate HTTP
// response. Unknown errors become opaque 500s: upstream detail is logged
// here, never surfaced to the client.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	var validationErr *ValidationError
	var cooldownErr *CooldownActiveError
	var rateLimitErr *RateLimitedError
	var upstreamErr *UpstreamError

	switch {
	case errors.As(err, &validationErr):
		h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, validationErr.Message, requestID)

	case errors.As(err, &cooldownErr):
		h.writeResponse(w, http.StatusTooManyRequests, ErrorResponse{
			Status:          "error",
			ErrorCode:       ErrorCodeCooldownActive,
			Message:         "Cooldown active",
			RequestID:       requestID,
			CooldownMinutes: &cooldownErr.Minutes,
		})

	case errors.As(err, &rateLimitErr):
		h.writeResponse(w, http.StatusTooManyRequests, ErrorResponse{
			Status:     "error",
			ErrorCode:  ErrorCodeRateLimited,
			Message:    rateLimitErr.Error(),
			RequestID:  requestID,
			RetryAfter: &rateLimitErr.RetryAfter,
		})

	case errors.Is(err, ErrAlreadyVoted):
		h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeAlreadyVoted, "Already voted for this song", requestID)

	case errors.Is(err, ErrSongNotFound):
		h.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, "Song not found in queue", requestID)

	case errors.Is(err, ErrQueueEmpty):
		h.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, "Queue is empty", requestID)

	case errors.Is(err, ErrProviderUnavailable):
		h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeProviderUnavailable,
			"Spotify API not configured. Please add SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.", requestID)

	case errors.Is(err, ErrAuthExpired):
		h.WriteErrorResponse(w, http.StatusUnauthorized, ErrorCodeAuthExpired, "Authentication expired. Please try again.", requestID)

	case errors.As(err, &upstreamErr):
		h.logger.Error("upstream provider failure",
			zap.String("op", upstreamErr.Op),
			zap.Int("upstream_status", upstreamErr.Status),
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeUpstreamError, "Upstream provider error", requestID)

	default:
		h.logger.Error("internal error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, "Internal server error", requestID)
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.writeResponse(w, statusCode, ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	})
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

func (h *Handler) writeResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(resp.ErrorCode)),
		zap.String("message", resp.Message),
		zap.String("request_id", resp.RequestID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
