// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/foundersday/platform/services/registration/datatypes"
)

func contentKey(slug string) string { return "content:" + slug }

// PutContent writes a content block.
func (s *Store) PutContent(ctx context.Context, block datatypes.ContentBlock) error {
	if block.Slug == "" {
		return errors.New("content slug is required")
	}
	block.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, contentKey(block.Slug), block)
	})
}

// PutSeedContent writes a seed-sourced block only if the slug is absent
// or also seed-sourced. Admin API writes always win over seed reloads.
func (s *Store) PutSeedContent(ctx context.Context, block datatypes.ContentBlock) error {
	if block.Slug == "" {
		return errors.New("content slug is required")
	}
	block.Source = datatypes.ContentFromSeed
	block.UpdatedAt = time.Now().UTC()
	return s.update(ctx, func(txn *badger.Txn) error {
		var existing datatypes.ContentBlock
		err := getJSON(txn, contentKey(block.Slug), &existing)
		if err == nil && existing.Source == datatypes.ContentFromAPI {
			return nil // API-owned block, seed does not overwrite
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return setJSON(txn, contentKey(block.Slug), block)
	})
}

// GetContent reads a content block by slug.
func (s *Store) GetContent(ctx context.Context, slug string) (datatypes.ContentBlock, error) {
	var block datatypes.ContentBlock
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, contentKey(slug), &block)
	})
	return block, err
}

// DeleteContent removes a content block. Missing slugs are not an error.
func (s *Store) DeleteContent(ctx context.Context, slug string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		err := txn.Delete([]byte(contentKey(slug)))
		if err != nil {
			return fmt.Errorf("delete content %s: %w", slug, err)
		}
		return nil
	})
}

// ListContent returns all content blocks sorted by slug. publishedOnly
// filters to published blocks.
func (s *Store) ListContent(ctx context.Context, publishedOnly bool) ([]datatypes.ContentBlock, error) {
	var blocks []datatypes.ContentBlock
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("content:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var block datatypes.ContentBlock
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalInto(val, &block)
			}); err != nil {
				return err
			}
			if publishedOnly && !block.Published {
				continue
			}
			blocks = append(blocks, block)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Slug < blocks[j].Slug
	})
	return blocks, nil
}
