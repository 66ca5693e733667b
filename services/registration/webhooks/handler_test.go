// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundersday/platform/services/registration/observability"
	"github.com/foundersday/platform/services/registration/storage"
)

func newTestHandler(t *testing.T, queueCap int) (*gin.Engine, *Queue, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	verifier, err := NewVerifier(testSecret, testURL)
	require.NoError(t, err)

	queue := NewQueue(queueCap, nil)
	t.Cleanup(queue.Close)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := NewHandler(verifier, queue, store, metrics, nil, time.Hour)

	router := gin.New()
	router.POST("/webhooks/square", handler.Receive)
	return router, queue, store
}

func deliver(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Accepts(t *testing.T) {
	router, queue, _ := newTestHandler(t, 16)

	body := []byte(`{"event_id":"wh-1","type":"payment.created","data":{"object":{}}}`)
	w := deliver(router, body, sign(testSecret, testURL, body))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, queue.Len())
}

func TestHandler_RejectsBadSignature(t *testing.T) {
	router, queue, _ := newTestHandler(t, 16)

	body := []byte(`{"event_id":"wh-1","type":"payment.created","data":{"object":{}}}`)

	w := deliver(router, body, sign("wrong_secret", testURL, body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = deliver(router, body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, 0, queue.Len())
}

func TestHandler_RejectsMalformedBody(t *testing.T) {
	router, queue, _ := newTestHandler(t, 16)

	body := []byte(`{"type":"payment.created"}`) // no event_id
	w := deliver(router, body, sign(testSecret, testURL, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = []byte(`not json`)
	w = deliver(router, body, sign(testSecret, testURL, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, queue.Len())
}

func TestHandler_RejectsOversizedBody(t *testing.T) {
	router, _, _ := newTestHandler(t, 16)

	body := bytes.Repeat([]byte("x"), MaxBodyBytes+1)
	w := deliver(router, body, sign(testSecret, testURL, body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandler_DuplicateAcknowledgedOnce(t *testing.T) {
	router, queue, _ := newTestHandler(t, 16)

	body := []byte(`{"event_id":"wh-1","type":"payment.created","data":{"object":{}}}`)
	sig := sign(testSecret, testURL, body)

	w := deliver(router, body, sig)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// Redelivery of the same event id is acknowledged, not re-enqueued.
	w = deliver(router, body, sig)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, queue.Len())
}

func TestHandler_QueueFullShedsAndAllowsRetry(t *testing.T) {
	router, queue, _ := newTestHandler(t, 1)

	first := []byte(`{"event_id":"wh-1","type":"payment.created","data":{"object":{}}}`)
	w := deliver(router, first, sign(testSecret, testURL, first))
	require.Equal(t, http.StatusAccepted, w.Code)

	second := []byte(`{"event_id":"wh-2","type":"payment.created","data":{"object":{}}}`)
	sig := sign(testSecret, testURL, second)
	w = deliver(router, second, sig)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// The seen marker was rolled back: once capacity frees up, the
	// provider's retry of the shed event must enqueue, not look like a
	// duplicate.
	_, err := queue.Dequeue(context.Background())
	require.NoError(t, err)

	w = deliver(router, second, sig)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
