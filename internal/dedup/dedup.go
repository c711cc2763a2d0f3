// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package dedup implements the 24h unique-view window as a BadgerDB TTL map.
//
// An event is unique iff no entry exists for its (product, viewer identity)
// pair; checking and writing happen in one transaction, giving set-if-absent
// semantics that any ingestor instance can share.
package dedup

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/metrics"
)

// DefaultWindow is the dedup window from the unique-view rule.
const DefaultWindow = 24 * time.Hour

// Config holds dedup store configuration.
type Config struct {
	// Path is the badger directory. Empty means in-memory (tests).
	Path string

	// Window is the TTL of dedup entries. Default: DefaultWindow.
	Window time.Duration

	// AuthenticatedOnly restricts uniqueness to authenticated viewers;
	// anonymous fingerprints then never count as unique.
	AuthenticatedOnly bool
}

// Store is the badger-backed dedup TTL map.
type Store struct {
	db     *badger.DB
	window time.Duration
	cfg    Config
}

// Open opens (or creates) the dedup store.
func Open(cfg Config) (*Store, error) {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening dedup store: %w", err)
	}

	return &Store{db: db, window: cfg.Window, cfg: cfg}, nil
}

// Close closes the underlying badger DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// key builds the dedup key for a (product, viewer identity) pair.
func key(productID, viewerIdentity string) []byte {
	return []byte("view:" + productID + ":" + viewerIdentity)
}

// CheckAndMark reports whether the event is the first for the pair within
// the window. On a miss it writes the TTL entry, so the next check within
// the window reports a duplicate. authenticated tells the store whether the
// identity is a user id (true) or an anonymous fingerprint.
func (s *Store) CheckAndMark(productID, viewerIdentity string, authenticated bool) (bool, error) {
	if viewerIdentity == "" {
		return false, nil
	}
	if s.cfg.AuthenticatedOnly && !authenticated {
		return false, nil
	}

	unique := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := key(productID, viewerIdentity)
		_, err := txn.Get(k)
		switch {
		case err == nil:
			// seen within the window
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			unique = true
			e := badger.NewEntry(k, []byte{1}).WithTTL(s.window)
			return txn.SetEntry(e)
		default:
			return err
		}
	})
	if err != nil {
		metrics.DedupChecks.WithLabelValues("error").Inc()
		return false, fmt.Errorf("dedup check for product %s: %w", productID, err)
	}

	if unique {
		metrics.DedupChecks.WithLabelValues("unique").Inc()
	} else {
		metrics.DedupChecks.WithLabelValues("duplicate").Inc()
	}
	return unique, nil
}

// RunGC runs badger value-log garbage collection until no more rewrites are
// possible. Intended to be called periodically by a supervised service.
func (s *Store) RunGC() {
	for {
		err := s.db.RunValueLogGC(0.5)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("dedup store GC")
			}
			return
		}
	}
}
