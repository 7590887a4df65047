// Copyright 2025 The ChatSQL Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync"

	chatsql "github.com/jalalirs/chatsql-sub000"
)

// resultBuilder accumulates slot patches into the single ResultRecord of
// one task. The record is exclusively owned here; callers only ever see
// snapshots.
type resultBuilder struct {
	mu  sync.Mutex
	rec chatsql.ResultRecord
}

// apply patches one slot and returns a snapshot of the record after the
// patch. A type-mismatched value leaves the record untouched.
func (b *resultBuilder) apply(slot chatsql.Slot, value any) (chatsql.ResultRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.rec.Apply(slot, value); err != nil {
		return chatsql.ResultRecord{}, err
	}
	return b.rec.Clone(), nil
}

// snapshot returns a copy of the current record.
func (b *resultBuilder) snapshot() chatsql.ResultRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rec.Clone()
}
