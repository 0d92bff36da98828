package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tree is a virtual file tree as received from the generation layer: a
// nested mapping of entry name to file or folder node.
type Tree map[string]Node

// Node is one entry in a Tree. A node with a non-nil Children map is a
// folder; anything else is a file whose body is Content.
type Node struct {
	Content  string `json:"content,omitempty"`
	Children Tree   `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n Node) IsFolder() bool {
	return n.Children != nil
}

// Materialize writes the tree under root, creating parent directories as
// needed. Entry names are sanitized before joining: ".." segments are
// stripped and leading separators removed, so no entry can escape root.
// Partial writes are not rolled back; the caller owns directory cleanup.
func Materialize(tree Tree, root string) error {
	for name, node := range tree {
		clean := sanitize(name)
		if clean == "" {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(clean))

		if node.IsFolder() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("creating folder %s: %w", clean, err)
			}
			if err := Materialize(node.Children, path); err != nil {
				return err
			}
			continue
		}

		// Entry names from the generation layer may themselves contain
		// subdirectories (e.g. "src/app.py").
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating parent of %s: %w", clean, err)
		}
		if err := os.WriteFile(path, []byte(node.Content), 0o644); err != nil {
			return fmt.Errorf("writing file %s: %w", clean, err)
		}
	}
	return nil
}

// sanitize strips traversal segments and leading separators from an entry
// name so the joined path always stays under the destination root.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimLeft(name, "/\\")
	return name
}

// ListDir returns the entry names of a directory, for diagnostic messages.
// Errors are swallowed; a missing directory yields an empty list.
func ListDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
