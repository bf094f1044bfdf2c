// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the append-only run log shared by the agent loop
// and the transcript sinks that persist it.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryType tags who produced a memory entry.
type EntryType string

const (
	EntryUser        EntryType = "user"
	EntryAssistant   EntryType = "assistant"
	EntryEnvironment EntryType = "environment"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryUser, EntryAssistant, EntryEnvironment:
		return true
	}
	return false
}

// Entry is a single record in the log. Entries are never modified once
// appended; callers must treat Content as read-only.
type Entry struct {
	ID        string    `json:"id"`
	Type      EntryType `json:"type"`
	Content   any       `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is an ordered, append-only log of entries.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty Memory.
func New() *Memory {
	return &Memory{}
}

// Add appends a new entry and returns it.
func (m *Memory) Add(t EntryType, content any) (Entry, error) {
	if !t.Valid() {
		return Entry{}, fmt.Errorf("memory: invalid entry type %q", t)
	}
	e := Entry{
		ID:        uuid.NewString(),
		Type:      t,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return e, nil
}

// Entries returns a snapshot of the log in insertion order. Later appends
// are not visible through a returned snapshot.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Last returns the most recent entry.
func (m *Memory) Last() (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// ByType returns the entries of the given type, in order.
func (m *Memory) ByType(t EntryType) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// MarshalJSON encodes the log as a JSON array.
func (m *Memory) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Entries())
}
