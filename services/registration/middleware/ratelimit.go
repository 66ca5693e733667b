// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond refills each client's bucket. Default: 10.
	RequestsPerSecond float64

	// Burst is the bucket size. Default: 20.
	Burst int

	// IdleEviction drops limiter state for clients quiet this long.
	// Default: 10 minutes.
	IdleEviction time.Duration
}

func (c *RateLimitConfig) applyDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.IdleEviction <= 0 {
		c.IdleEviction = 10 * time.Minute
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP. Stale entries are
// evicted on the write path so the map cannot grow without bound.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig

	lastSweep time.Time
}

func (r *rateLimiter) allow(ip string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) > r.cfg.IdleEviction {
		for ip, client := range r.clients {
			if now.Sub(client.lastSeen) > r.cfg.IdleEviction {
				delete(r.clients, ip)
			}
		}
		r.lastSweep = now
	}

	client, ok := r.clients[ip]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst),
		}
		r.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter.Allow()
}

// RateLimit returns middleware that sheds requests over the per-IP
// budget with 429. Used on the webhook endpoint so a misbehaving sender
// cannot starve the queue of capacity for real deliveries.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	cfg.applyDefaults()
	limiter := &rateLimiter{
		clients:   make(map[string]*clientLimiter),
		cfg:       cfg,
		lastSweep: time.Now(),
	}

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
