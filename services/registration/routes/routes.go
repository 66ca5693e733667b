// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes assembles the registration service's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/foundersday/platform/services/registration/handlers"
	"github.com/foundersday/platform/services/registration/middleware"
	"github.com/foundersday/platform/services/registration/webhooks"
)

// Config carries everything the router needs.
type Config struct {
	// ServiceName labels traces emitted by the HTTP middleware.
	ServiceName string

	// Handlers is the API handler set.
	Handlers *handlers.Handlers

	// Webhooks is the Square ingestion endpoint.
	Webhooks *webhooks.Handler

	// Feed is the dashboard websocket hub.
	Feed *handlers.FeedHub

	// AdminToken guards /v1/admin. Empty disables the admin surface.
	AdminToken string

	// WebhookRate bounds the webhook endpoint per client IP.
	WebhookRate middleware.RateLimitConfig

	// Tracing enables the otelgin middleware. Off in tests.
	Tracing bool
}

// Register mounts all routes on the router.
func Register(router *gin.Engine, cfg Config) {
	if cfg.Tracing {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	router.GET("/health", cfg.Handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/square",
		middleware.RateLimit(cfg.WebhookRate),
		cfg.Webhooks.Receive)

	v1 := router.Group("/v1")
	{
		v1.GET("/events", cfg.Handlers.ListEvents)
		v1.GET("/events/:eventId", cfg.Handlers.GetEvent)

		v1.POST("/registrations", cfg.Handlers.CreateRegistration)
		v1.GET("/registrations/:id", cfg.Handlers.GetRegistration)
		v1.DELETE("/registrations/:id", cfg.Handlers.CancelRegistration)

		v1.GET("/content", cfg.Handlers.ListContent)
		v1.GET("/content/:slug", cfg.Handlers.GetContent)
	}

	admin := v1.Group("/admin", middleware.AdminAuth(cfg.AdminToken))
	{
		admin.GET("/events", cfg.Handlers.AdminListEvents)
		admin.POST("/events", cfg.Handlers.AdminCreateEvent)
		admin.PUT("/events/:eventId", cfg.Handlers.AdminUpdateEvent)

		admin.GET("/registrations", cfg.Handlers.AdminListRegistrations)

		admin.GET("/content", cfg.Handlers.AdminListContent)
		admin.PUT("/content/:slug", cfg.Handlers.AdminPutContent)
		admin.DELETE("/content/:slug", cfg.Handlers.AdminDeleteContent)

		admin.GET("/analytics/summary", cfg.Handlers.AdminAnalyticsSummary)
		admin.GET("/analytics/ws", cfg.Feed.ServeWS)
	}
}
