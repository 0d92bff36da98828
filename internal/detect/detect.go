// Package detect infers how to install and launch a materialized project.
//
// Detection is best effort: it looks for a manifest to pick the execution
// directory, tries to lift explicit commands out of the project's README,
// and falls back to framework heuristics driven by a rules table.
package detect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentforge/previewd/internal/vfs"
)

// Sentinel errors for the detection failure modes surfaced to API callers.
var (
	ErrNoProjectRoot = errors.New("no project root found (requirements.txt or package.json)")
	ErrNoRunCommand  = errors.New("could not determine how to run the project")
)

// Commands is the result of detection: how to install and start the project,
// where to do it from, and any extra environment the child needs.
type Commands struct {
	Install string   // optional; empty means nothing to install
	Run     string   // required
	Dir     string   // execution directory
	Env     []string // extra KEY=VALUE entries for the child process
}

// Detector resolves install/run commands for materialized projects.
type Detector struct {
	rules Rules
}

// New creates a Detector with the given rules table.
func New(rules Rules) *Detector {
	return &Detector{rules: rules}
}

// Detect inspects the project under root and resolves its Commands, with
// the allocated port baked into the run command or environment. Detection
// is idempotent: running it twice yields the same Commands.
func (d *Detector) Detect(root string, port int) (*Commands, error) {
	dir, err := findProjectRoot(root)
	if err != nil {
		return nil, err
	}

	cmds := &Commands{Dir: dir}

	// README commands take priority over manifest heuristics.
	if readme, err := os.ReadFile(filepath.Join(dir, "README.md")); err == nil {
		cmds.Install, cmds.Run = extractReadmeCommands(string(readme))
		cmds.Run = ensurePortFlags(cmds.Run, port)
	}

	if cmds.Install == "" || cmds.Run == "" {
		if hasFile(dir, "requirements.txt") {
			d.fillPython(cmds, dir, port)
		} else if hasFile(dir, "package.json") {
			fillNode(cmds, dir)
		}
	}

	// Node frameworks read the port from the environment rather than a flag.
	if hasFile(dir, "package.json") {
		cmds.Env = append(cmds.Env, fmt.Sprintf("PORT=%d", port))
	}

	if cmds.Run == "" {
		return nil, fmt.Errorf("%w (directory %s contains: %s)",
			ErrNoRunCommand, dir, strings.Join(vfs.ListDir(dir), ", "))
	}
	return cmds, nil
}

// findProjectRoot searches breadth-first for the shallowest directory that
// carries a recognized manifest.
func findProjectRoot(root string) (string, error) {
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && (e.Name() == "requirements.txt" || e.Name() == "package.json") {
				return dir, nil
			}
		}
		for _, e := range entries {
			if e.IsDir() {
				queue = append(queue, filepath.Join(dir, e.Name()))
			}
		}
	}
	return "", ErrNoProjectRoot
}

// fillPython completes missing commands for a requirements.txt project.
// A README-supplied install command is never overridden.
func (d *Detector) fillPython(cmds *Commands, dir string, port int) {
	fromReadme := cmds.Install != ""
	if !fromReadme {
		cmds.Install = "pip install -r requirements.txt"
	}

	data, err := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if err != nil {
		return
	}
	reqs := strings.ToLower(string(data))

	var rule *FrameworkRule
	for i := range d.rules.Python {
		if strings.Contains(reqs, d.rules.Python[i].Name) {
			rule = &d.rules.Python[i]
			break
		}
	}
	if rule != nil && rule.Install != "" && !fromReadme {
		cmds.Install = rule.Install
	}

	if cmds.Run != "" {
		return
	}
	if rule != nil {
		run := rule.Run
		if strings.Contains(run, "{entry}") {
			entry := d.findEntryPoint(dir)
			if entry == "" {
				return
			}
			run = strings.ReplaceAll(run, "{entry}", entry)
		}
		cmds.Run = strings.ReplaceAll(run, "{port}", fmt.Sprintf("%d", port))
		return
	}

	// No known framework: fall back to a plain interpreter invocation.
	if entry := d.findEntryPoint(dir); entry != "" {
		cmds.Run = "python " + entry
	}
}

// findEntryPoint picks a conventional entry-point file, or the first source
// file present as a last resort.
func (d *Detector) findEntryPoint(dir string) string {
	var pyFiles []string
	for _, name := range vfs.ListDir(dir) {
		if strings.HasSuffix(name, ".py") {
			pyFiles = append(pyFiles, name)
		}
	}
	for _, candidate := range d.rules.EntryCandidates {
		for _, f := range pyFiles {
			if f == candidate {
				return f
			}
		}
	}
	if len(pyFiles) > 0 {
		return pyFiles[0]
	}
	return ""
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
