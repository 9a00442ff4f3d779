// Voxgate - Conversational AI SaaS Gatekeeper
// Copyright 2026 Voxgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/voxgate/voxgate

package logging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seenID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seenID == "" {
		t.Fatal("Handler saw no request ID")
	}
	if got := w.Header().Get(RequestIDHeader); got != seenID {
		t.Errorf("Response header %q = %q, want %q", RequestIDHeader, got, seenID)
	}
}

// Inbound request IDs must be ignored, not trusted.
func TestRequestIDIgnoresInboundHeader(t *testing.T) {
	var seenID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(RequestIDHeader, "forged-id")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seenID == "forged-id" {
		t.Error("Middleware trusted the inbound request ID")
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	t.Parallel()
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", got)
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-7")
	Ctx(ctx).Info().Msg("admitted")

	if !strings.Contains(buf.String(), `"request_id":"req-7"`) {
		t.Errorf("Log line missing request_id: %q", buf.String())
	}
}
