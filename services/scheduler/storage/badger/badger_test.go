// Copyright (C) 2026 CampusWorks (engineering@campusworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
)

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	if err == nil {
		t.Fatal("expected error for persistent database without path")
	}
}

func TestOpenInMemoryRoundTrip(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	key := []byte("run/abc")
	val := []byte("state")

	if err := db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []byte
	if err := db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("got %q, want %q", got, val)
	}
}

func TestOpenPersistent(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0 // keep the test quick

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if db.InMemory() {
		t.Fatal("expected persistent database")
	}
	if db.Path() != dir {
		t.Fatalf("Path() = %q, want %q", db.Path(), dir)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWithTxnCancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		t.Fatal("fn should not run after cancellation")
		return nil
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
