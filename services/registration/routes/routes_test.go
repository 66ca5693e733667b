// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundersday/platform/services/registration/handlers"
	"github.com/foundersday/platform/services/registration/storage"
	"github.com/foundersday/platform/services/registration/webhooks"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	verifier, err := webhooks.NewVerifier("secret", "https://example.com/webhooks/square")
	require.NoError(t, err)
	queue := webhooks.NewQueue(16, nil)
	t.Cleanup(queue.Close)

	feed := handlers.NewFeedHub(nil, nil)
	t.Cleanup(feed.Close)

	router := gin.New()
	Register(router, Config{
		ServiceName: "registration",
		Handlers:    handlers.New(store, nil, feed, nil),
		Webhooks:    webhooks.NewHandler(verifier, queue, store, nil, nil, 0),
		Feed:        feed,
		AdminToken:  "admin-token",
	})
	return router
}

func get(router *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_PublicSurface(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusOK, get(router, "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/events", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/content", "").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/v1/events/missing", "").Code)
}

func TestRoutes_AdminRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/v1/admin/events", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/v1/admin/events", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/admin/events", "admin-token").Code)
	assert.Equal(t, http.StatusOK, get(router, "/v1/admin/analytics/summary", "admin-token").Code)
}

func TestRoutes_WebhookRejectsUnsigned(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
