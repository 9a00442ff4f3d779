// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

// Package api provides the standardized JSON response envelope used by
// the gatekeeper and the passthrough handlers behind it.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/voxgate/voxgate/internal/logging"
)

// Response is the envelope for all API responses.
type Response struct {
	// Success indicates whether the request was successful.
	Success bool `json:"success"`

	// Data contains the response payload (null on error).
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success).
	Error *Error `json:"error,omitempty"`

	// Meta contains optional response metadata.
	Meta *Meta `json:"meta,omitempty"`
}

// Error represents an error response.
type Error struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details carries structured context: the required tier set and
	// the caller's current tier on 403s, retry_after seconds on 429s.
	Details interface{} `json:"details,omitempty"`

	// RequestID is the request ID for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// Meta contains optional response metadata.
type Meta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes returned by the gatekeeper.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS"
	ErrCodeCSRFFailed      = "CSRF_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// WriteSuccess writes a 200 envelope with data.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now(),
		},
	})
}

// WriteError writes an error envelope with the given status and code.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	WriteErrorWithDetails(w, r, statusCode, code, message, nil)
}

// WriteErrorWithDetails writes an error envelope with structured details.
func WriteErrorWithDetails(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details interface{}) {
	requestID := logging.RequestIDFromContext(r.Context())
	writeJSON(w, statusCode, Response{
		Success: false,
		Error: &Error{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
		Meta: &Meta{
			RequestID: requestID,
			Timestamp: time.Now(),
		},
	})
}

// WriteUnauthorized writes a 401 with a deliberately generic message.
// The specific verification failure stays in the logs to avoid oracle
// leakage between expired, malformed, and forged credentials.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
}

// WriteRateLimited writes a 429 with the Retry-After header and the
// retry window in the error details.
func WriteRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteErrorWithDetails(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests,
		"rate limit exceeded", map[string]interface{}{"retry_after": secs})
}

// WriteInternalError writes an opaque 500. The cause is logged, never
// returned.
func WriteInternalError(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
