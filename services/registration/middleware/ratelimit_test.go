// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func limitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/hook", RateLimit(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRateLimit_ShedsOverBudget(t *testing.T) {
	router := limitedRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 3})

	codes := make(map[int]int)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[w.Code]++
	}

	if codes[http.StatusOK] != 3 {
		t.Errorf("allowed = %d, want 3 (the burst)", codes[http.StatusOK])
	}
	if codes[http.StatusTooManyRequests] != 3 {
		t.Errorf("shed = %d, want 3", codes[http.StatusTooManyRequests])
	}
}

func TestRateLimit_PerClientBuckets(t *testing.T) {
	router := limitedRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	first := httptest.NewRequest(http.MethodPost, "/hook", nil)
	first.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("first client first request = %d, want 200", w.Code)
	}

	// Same client, budget spent.
	again := httptest.NewRequest(http.MethodPost, "/hook", nil)
	again.RemoteAddr = "203.0.113.7:5678"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, again)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("first client second request = %d, want 429", w.Code)
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodPost, "/hook", nil)
	other.RemoteAddr = "198.51.100.9:1234"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("second client first request = %d, want 200", w.Code)
	}
}
