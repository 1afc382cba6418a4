package model

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodePrecondition  = "PRECONDITION_FAILED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// SessionConfig carries the recognized per-session pipeline options.
// Zero values fall back to server defaults.
type SessionConfig struct {
	// AutoSelect skips both human checkpoints, synthesizing a top-N
	// selection by relevance instead of pausing.
	AutoSelect bool `json:"auto_select,omitempty"`

	// CandidateLimit caps the candidate list each discovery stage publishes.
	CandidateLimit int `json:"candidate_limit,omitempty"`

	// MinArtistRelevance / MinArtworkRelevance drop candidates scoring
	// below the threshold before publication.
	MinArtistRelevance  float64 `json:"min_artist_relevance,omitempty"`
	MinArtworkRelevance float64 `json:"min_artwork_relevance,omitempty"`
}

// SubmitSessionRequest is the request body for POST /v1/sessions.
type SubmitSessionRequest struct {
	Brief  CuratorBrief  `json:"brief"`
	Config SessionConfig `json:"config,omitempty"`
}

// SubmitSessionResponse is the response for POST /v1/sessions.
type SubmitSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Phase     Phase     `json:"phase"`
	StreamURL string    `json:"stream_url"`
}

// SelectionRequest is the request body for the two selection endpoints.
type SelectionRequest struct {
	Indices []int `json:"indices"`
}

// SelectionResponse acknowledges an applied selection.
type SelectionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Selected  int       `json:"selected"`
}

// AuthTokenRequest is the request body for POST /auth/token.
type AuthTokenRequest struct {
	APIKey string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Uptime  int64  `json:"uptime_seconds"`
}
