// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolkit provides the built-in actions of the file explorer agent:
// listing and reading project files, and terminating the run.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jllopis/agentloop/pkg/action"
)

// Action names.
const (
	ListProjectFiles = "list_project_files"
	ReadProjectFile  = "read_project_file"
	Terminate        = "terminate"
)

// ErrOutsideWorkspace is returned for paths escaping the workspace root.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Workspace is the directory the file actions operate on.
type Workspace struct {
	root       string
	extensions []string
}

// NewWorkspace creates a workspace rooted at root listing files with the
// given extensions. No extensions lists every regular file.
func NewWorkspace(root string, extensions ...string) (*Workspace, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return &Workspace{root: abs, extensions: exts}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// ListFiles returns the sorted names of matching regular files directly
// under the root.
func (w *Workspace) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !w.matches(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (w *Workspace) matches(name string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, e := range w.extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// ReadFile returns the content of name, resolved inside the root.
func (w *Workspace) ReadFile(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("read %q: %w", name, ErrOutsideWorkspace)
	}
	data, err := os.ReadFile(filepath.Join(w.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read %q: file not found: %w", name, err)
		}
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// Actions returns the file explorer actions bound to w.
func (w *Workspace) Actions() []action.Action {
	return []action.Action{
		{
			Name:        ListProjectFiles,
			Description: "Returns a sorted list of the project files.",
			Function: func(context.Context, action.Args) (any, error) {
				return w.ListFiles()
			},
		},
		{
			Name:        ReadProjectFile,
			Description: "Reads a file from the project.",
			Parameters: action.Schema{
				Type:       "object",
				Properties: map[string]any{"name": action.StringParam("File name relative to the project root")},
				Required:   []string{"name"},
			},
			Function: func(_ context.Context, args action.Args) (any, error) {
				name, err := args.String("name")
				if err != nil {
					return nil, err
				}
				return w.ReadFile(name)
			},
		},
	}
}

// TerminateAction ends the run, echoing message followed by a termination
// marker.
func TerminateAction() action.Action {
	return action.Action{
		Name:        Terminate,
		Description: "Terminates the session and prints the message to the user.",
		Parameters: action.Schema{
			Type:       "object",
			Properties: map[string]any{"message": action.StringParam("Final message for the user")},
		},
		Terminal: true,
		Function: func(_ context.Context, args action.Args) (any, error) {
			return args.OptionalString("message", "") + "\nTerminating...", nil
		},
	}
}

// Register adds the workspace actions and terminate to r.
func Register(r *action.Registry, w *Workspace) error {
	for _, a := range append(w.Actions(), TerminateAction()) {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
