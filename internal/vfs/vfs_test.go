package vfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMaterialize_MirrorsTree(t *testing.T) {
	root := t.TempDir()

	tree := Tree{
		"app": {Children: Tree{
			"requirements.txt": {Content: "streamlit\n"},
			"app.py":           {Content: "print('hi')"},
			"static":           {Children: Tree{"style.css": {Content: "body {}"}}},
		}},
		"README.md": {Content: "# demo"},
	}

	if err := Materialize(tree, root); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"app/requirements.txt": "streamlit\n",
		"app/app.py":           "print('hi')",
		"app/static/style.css": "body {}",
		"README.md":            "# demo",
	}
	for rel, want := range checks {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("reading %s: %v", rel, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", rel, data, want)
		}
	}
}

func TestMaterialize_NestedEntryNames(t *testing.T) {
	root := t.TempDir()

	// The generation layer sometimes emits paths as single entry names.
	tree := Tree{
		"src/components/button.js": {Content: "export default 1;"},
	}
	if err := Materialize(tree, root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, "src", "components", "button.js")); err != nil {
		t.Errorf("nested entry not materialized: %v", err)
	}
}

func TestMaterialize_StripsTraversal(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(filepath.Dir(root), "escape.txt")

	tree := Tree{
		"../escape.txt":  {Content: "nope"},
		"/etc/passwd":    {Content: "nope"},
		"ok/../../x.txt": {Content: "inside"},
	}
	if err := Materialize(tree, root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Errorf("traversal entry escaped the root: %v", err)
	}

	// Everything written must live under root.
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || rel == ".." || filepath.IsAbs(rel) {
			t.Errorf("path %s outside root", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMaterialize_EmptyFolder(t *testing.T) {
	root := t.TempDir()

	tree := Tree{"empty": {Children: Tree{}}}
	if err := Materialize(tree, root); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(root, "empty"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

func TestListDir(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644)

	names := ListDir(root)
	if len(names) != 2 {
		t.Fatalf("got %d entries, want 2", len(names))
	}

	if got := ListDir(filepath.Join(root, "missing")); got != nil {
		t.Errorf("missing dir should yield nil, got %v", got)
	}
}
