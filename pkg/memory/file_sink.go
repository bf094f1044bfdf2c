// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const transcriptExt = ".jsonl"

// FileSink persists each run as JSON lines in <dir>/<run id>.jsonl.
type FileSink struct {
	mu  sync.Mutex
	dir string
}

// NewFileSink creates a file-backed sink rooted at dir.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) runFile(runID string) string {
	// Base strips separators so a run id cannot escape dir.
	return filepath.Join(f.dir, filepath.Base(runID)+transcriptExt)
}

// Record appends a JSON-encoded entry to the run file.
func (f *FileSink) Record(_ context.Context, runID string, e Entry) error {
	if runID == "" {
		return errors.New("memory: run id is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.runFile(runID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(e)
}

// Entries reads back every entry of a run in append order.
func (f *FileSink) Entries(_ context.Context, runID string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.runFile(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to parse transcript line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Runs lists the stored run ids, sorted.
func (f *FileSink) Runs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, item := range items {
		if item.IsDir() || filepath.Ext(item.Name()) != transcriptExt {
			continue
		}
		runs = append(runs, strings.TrimSuffix(item.Name(), transcriptExt))
	}
	sort.Strings(runs)
	return runs, nil
}

var _ Sink = (*FileSink)(nil)
