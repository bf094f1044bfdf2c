// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"encoding/json"
	"testing"
)

func TestMemoryAppendOrder(t *testing.T) {
	m := New()
	if _, ok := m.Last(); ok {
		t.Fatal("expected no last entry on empty memory")
	}

	if _, err := m.Add(EntryUser, "list the files"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := m.Add(EntryAssistant, `{"tool":"list_project_files"}`); err != nil {
		t.Fatalf("add assistant: %v", err)
	}
	if _, err := m.Add(EntryEnvironment, map[string]any{"tool_executed": true}); err != nil {
		t.Fatalf("add environment: %v", err)
	}

	entries := m.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []EntryType{EntryUser, EntryAssistant, EntryEnvironment}
	for i, e := range entries {
		if e.Type != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.ID == "" {
			t.Errorf("entry %d: expected id", i)
		}
	}

	last, ok := m.Last()
	if !ok || last.Type != EntryEnvironment {
		t.Fatalf("unexpected last entry: %+v", last)
	}
	if got := len(m.ByType(EntryAssistant)); got != 1 {
		t.Fatalf("expected 1 assistant entry, got %d", got)
	}
}

func TestMemoryRejectsUnknownType(t *testing.T) {
	m := New()
	if _, err := m.Add(EntryType("system"), "nope"); err == nil {
		t.Fatal("expected error for unknown entry type")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty memory, got %d", m.Len())
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := New()
	_, _ = m.Add(EntryUser, "first")
	snap := m.Entries()

	_, _ = m.Add(EntryAssistant, "second")
	snap[0].Content = "tampered"

	if len(snap) != 1 {
		t.Fatalf("snapshot must not grow, got %d", len(snap))
	}
	if got := m.Entries()[0].Content; got != "first" {
		t.Fatalf("memory entry changed through snapshot: %v", got)
	}
}

func TestMemoryMarshalJSON(t *testing.T) {
	m := New()
	_, _ = m.Add(EntryUser, "hello")

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["type"] != "user" || decoded[0]["content"] != "hello" {
		t.Fatalf("unexpected encoding: %s", data)
	}
}
