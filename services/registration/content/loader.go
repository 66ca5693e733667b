// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package content loads the YAML content seed file and keeps it in sync
// with the store while the service runs.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/foundersday/platform/services/registration/datatypes"
	"github.com/foundersday/platform/services/registration/storage"
)

// seedFile is the on-disk shape of the content seed.
//
//	content:
//	  - slug: faq
//	    title: Frequently Asked Questions
//	    format: markdown
//	    published: true
//	    body: |
//	      ...
type seedFile struct {
	Content []seedBlock `yaml:"content"`
}

type seedBlock struct {
	Slug      string `yaml:"slug"`
	Title     string `yaml:"title"`
	Body      string `yaml:"body"`
	Format    string `yaml:"format"`
	Published bool   `yaml:"published"`
}

// Loader seeds content blocks from a YAML file. Seeded blocks never
// overwrite blocks edited through the admin API; that precedence lives
// in the store.
type Loader struct {
	store  *storage.Store
	logger *slog.Logger
	path   string
}

// NewLoader creates a loader for the given seed file path.
func NewLoader(store *storage.Store, logger *slog.Logger, path string) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, logger: logger, path: path}
}

// Load parses the seed file and writes its blocks. Returns the number
// of blocks written. A missing file is not an error: the service can
// run without seed content.
func (l *Loader) Load(ctx context.Context) (int, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		l.logger.Info("no content seed file", slog.String("path", l.path))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seed file %s: %w", l.path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", l.path, err)
	}

	loaded := 0
	for _, block := range seed.Content {
		if !datatypes.ValidSlug(block.Slug) {
			l.logger.Warn("skipping seed block with invalid slug",
				slog.String("slug", block.Slug))
			continue
		}
		err := l.store.PutSeedContent(ctx, datatypes.ContentBlock{
			Slug:      block.Slug,
			Title:     block.Title,
			Body:      block.Body,
			Format:    block.Format,
			Published: block.Published,
		})
		if err != nil {
			return loaded, fmt.Errorf("seed block %s: %w", block.Slug, err)
		}
		loaded++
	}

	l.logger.Info("content seed loaded",
		slog.String("path", l.path),
		slog.Int("blocks", loaded))
	return loaded, nil
}

// Watch reloads the seed file whenever it changes on disk. Blocks until
// ctx is cancelled. The watch is on the parent directory because
// editors typically replace the file rather than write it in place.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if _, err := l.Load(ctx); err != nil {
				// A half-written file parses next time; keep watching.
				l.logger.Warn("content seed reload failed",
					slog.String("error", err.Error()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("content seed watcher error",
				slog.String("error", err.Error()))
		}
	}
}
