// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package checkpoint persists workflow state between stage transitions.
//
// Each checkpoint is wrapped in a versioned envelope with a SHA256
// checksum, so a run resumed after a crash either gets the state it
// saved or a hard ErrCorrupt, never a silently damaged one. The badger
// store overwrites the run's key inside a single transaction, which is
// the embedded equivalent of write-temp-then-rename.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/campusworks/timetabler/services/scheduler/storage/badger"
)

// Version is the checkpoint envelope format version (semver).
const Version = "1.0.0"

var (
	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetabler_checkpoint_save_duration_seconds",
		Help:    "Checkpoint save duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	saveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timetabler_checkpoint_save_errors_total",
		Help: "Total checkpoint save failures",
	})

	savedBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetabler_checkpoint_saved_bytes",
		Help:    "Serialized checkpoint size in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})
)

// Store persists opaque checkpoint payloads keyed by run ID.
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// Save durably replaces the checkpoint for runID.
	Save(ctx context.Context, runID string, payload []byte) error

	// Load returns the last saved payload for runID, or ErrNotFound.
	Load(ctx context.Context, runID string) ([]byte, error)

	// Delete removes the checkpoint for runID. Missing is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the run IDs with a stored checkpoint, sorted.
	List(ctx context.Context) ([]string, error)
}

// envelope is the stored format wrapping a payload with integrity data.
type envelope struct {
	RunID     string    `json:"run_id"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
}

// computeChecksum hashes everything in the envelope except the checksum
// field itself.
func computeChecksum(runID string, payload []byte, timestamp time.Time) (string, error) {
	data := struct {
		RunID     string    `json:"run_id"`
		Payload   []byte    `json:"payload"`
		Timestamp time.Time `json:"timestamp"`
		Version   string    `json:"version"`
	}{
		RunID:     runID,
		Payload:   payload,
		Timestamp: timestamp,
		Version:   Version,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// seal wraps a payload in a checksummed envelope and serializes it.
func seal(runID string, payload []byte) ([]byte, error) {
	timestamp := time.Now().UTC()

	checksum, err := computeChecksum(runID, payload, timestamp)
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{
		RunID:     runID,
		Payload:   payload,
		Timestamp: timestamp,
		Version:   Version,
		Checksum:  checksum,
	})
}

// unseal parses an envelope and verifies version and checksum.
func unseal(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshal envelope: %v", ErrCorrupt, err)
	}

	if env.Version != Version {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrVersionMismatch, env.Version, Version)
	}

	expected, err := computeChecksum(env.RunID, env.Payload, env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Checksum != expected {
		return nil, ErrCorrupt
	}

	return env.Payload, nil
}

const keyPrefix = "checkpoint/"

// BadgerStore persists checkpoints in an embedded BadgerDB.
//
// Thread Safety: safe for concurrent use.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore builds a Store over an open database. The caller
// retains ownership of db and is responsible for closing it.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &BadgerStore{db: db}, nil
}

// Save durably replaces the checkpoint for runID.
//
// Description:
//
//	Seals the payload in a checksummed envelope and overwrites the
//	run's key in one transaction. The previously saved checkpoint
//	stays readable until the commit lands.
func (s *BadgerStore) Save(ctx context.Context, runID string, payload []byte) error {
	if runID == "" {
		return fmt.Errorf("%w: runID must not be empty", ErrPersistence)
	}

	start := time.Now()

	sealed, err := seal(runID, payload)
	if err != nil {
		saveErrors.Inc()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefix+runID), sealed)
	})
	if err != nil {
		saveErrors.Inc()
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	saveDuration.Observe(time.Since(start).Seconds())
	savedBytes.Observe(float64(len(sealed)))
	return nil
}

// Load returns the last saved payload for runID.
//
// Outputs:
//
//	[]byte - The payload exactly as saved.
//	error - ErrNotFound when no checkpoint exists, ErrCorrupt or
//	ErrVersionMismatch when the stored envelope fails verification.
func (s *BadgerStore) Load(ctx context.Context, runID string) ([]byte, error) {
	var sealed []byte
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + runID))
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return unseal(sealed)
}

// Delete removes the checkpoint for runID. Missing is not an error.
func (s *BadgerStore) Delete(ctx context.Context, runID string) error {
	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPrefix + runID))
	})
}

// List returns the run IDs with a stored checkpoint, sorted.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
