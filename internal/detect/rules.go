package detect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FrameworkRule maps a framework name found in a Python manifest to a run
// command template. Templates may reference {entry} (the discovered
// entry-point file) and {port} (the allocated preview port). Install, when
// set, replaces the default pip invocation for projects matching the rule.
type FrameworkRule struct {
	Name    string `yaml:"name"`
	Run     string `yaml:"run"`
	Install string `yaml:"install,omitempty"`
}

// Rules is the detector's heuristics table. Rules are consulted in order;
// the first framework whose name appears in the manifest wins.
type Rules struct {
	Python          []FrameworkRule `yaml:"python"`
	EntryCandidates []string        `yaml:"entry_candidates"`
}

// DefaultRules returns the built-in heuristics covering the frameworks the
// generation layer commonly emits.
func DefaultRules() Rules {
	return Rules{
		Python: []FrameworkRule{
			{Name: "streamlit", Run: "streamlit run {entry} --server.port {port} --server.address 127.0.0.1 --server.headless true"},
			{Name: "flask", Run: "flask run --host 127.0.0.1 --port {port}"},
			{Name: "fastapi", Run: "uvicorn main:app --host 127.0.0.1 --port {port} --reload"},
		},
		EntryCandidates: []string{"main.py", "app.py", "run.py", "server.py"},
	}
}

// LoadRules reads a rules table from a YAML file. Fields missing from the
// file fall back to the defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parsing rules file: %w", err)
	}
	if len(rules.Python) == 0 {
		rules.Python = DefaultRules().Python
	}
	if len(rules.EntryCandidates) == 0 {
		rules.EntryCandidates = DefaultRules().EntryCandidates
	}
	return rules, nil
}
