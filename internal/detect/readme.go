package detect

import (
	"fmt"
	"regexp"
	"strings"
)

// Inline code spans the README scraper recognizes, mirroring the command
// idioms the generation layer writes into its READMEs.
var (
	installPattern = regexp.MustCompile("`(pip install .*?)`|`(npm install.*?)`")
	runPattern     = regexp.MustCompile("`(streamlit run .*?)`|`(npm run .*?)`|`(flask run.*?)`|`(uvicorn .*?)`|`(python .*?)`")
)

// extractReadmeCommands pulls install and run commands out of README text.
// Either result may be empty; callers fall back to manifest heuristics.
func extractReadmeCommands(readme string) (install, run string) {
	if m := installPattern.FindStringSubmatch(readme); m != nil {
		install = firstGroup(m)
	}
	if m := runPattern.FindStringSubmatch(readme); m != nil {
		run = firstGroup(m)
	}
	return install, run
}

// ensurePortFlags appends explicit host/port flags for frameworks whose bind
// address is configurable, when the command does not already carry them.
// Calling it again on its own output changes nothing.
func ensurePortFlags(run string, port int) string {
	switch {
	case run == "":
		return run
	case strings.Contains(run, "streamlit") && !strings.Contains(run, "--server.port"):
		return fmt.Sprintf("%s --server.port %d --server.address 127.0.0.1 --server.headless true", run, port)
	case strings.Contains(run, "flask") && !strings.Contains(run, "--port"):
		return fmt.Sprintf("%s --host 127.0.0.1 --port %d", run, port)
	case strings.Contains(run, "uvicorn") && !strings.Contains(run, "--port"):
		return fmt.Sprintf("%s --host 127.0.0.1 --port %d", run, port)
	}
	return run
}

// firstGroup returns the first non-empty capture group of a regexp match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
