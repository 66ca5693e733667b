// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/storage"
)

// GetContent handles GET /v1/content/:slug. Unpublished blocks are
// invisible to the public API.
func (h *Handlers) GetContent(c *gin.Context) {
	block, err := h.store.GetContent(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !block.Published) {
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get content", err)
		return
	}
	c.JSON(http.StatusOK, block)
}

// ListContent handles GET /v1/content, published blocks only.
func (h *Handlers) ListContent(c *gin.Context) {
	blocks, err := h.store.ListContent(c.Request.Context(), true)
	if err != nil {
		h.internalError(c, "list content", err)
		return
	}
	if blocks == nil {
		blocks = []datatypes.ContentBlock{}
	}
	c.JSON(http.StatusOK, gin.H{"content": blocks})
}

// =============================================================================
// Admin
// =============================================================================

// AdminListContent handles GET /v1/admin/content, including drafts.
func (h *Handlers) AdminListContent(c *gin.Context) {
	blocks, err := h.store.ListContent(c.Request.Context(), false)
	if err != nil {
		h.internalError(c, "list content", err)
		return
	}
	if blocks == nil {
		blocks = []datatypes.ContentBlock{}
	}
	c.JSON(http.StatusOK, gin.H{"content": blocks})
}

// AdminPutContent handles PUT /v1/admin/content/:slug. Blocks written
// here are API-sourced and survive seed reloads.
func (h *Handlers) AdminPutContent(c *gin.Context) {
	var block datatypes.ContentBlock
	if err := c.ShouldBindJSON(&block); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if block.Slug != c.Param("slug") {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "slug in body does not match path"})
		return
	}
	block.Source = datatypes.ContentFromAPI

	if err := h.store.PutContent(c.Request.Context(), block); err != nil {
		h.internalError(c, "put content", err)
		return
	}
	h.logger.Info("content block written",
		"slug", block.Slug,
		"published", block.Published)
	c.JSON(http.StatusOK, block)
}

// AdminDeleteContent handles DELETE /v1/admin/content/:slug.
func (h *Handlers) AdminDeleteContent(c *gin.Context) {
	slug := c.Param("slug")
	if _, err := h.store.GetContent(c.Request.Context(), slug); errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
		return
	}
	if err := h.store.DeleteContent(c.Request.Context(), slug); err != nil {
		h.internalError(c, "delete content", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
