package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// packageJSON is the subset of a Node package manifest the detector reads.
type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

// fillNode completes missing commands for a package.json project. The dev
// script is preferred over start, matching the preview use case.
func fillNode(cmds *Commands, dir string) {
	if cmds.Install == "" {
		cmds.Install = "npm install"
	}
	if cmds.Run != "" {
		return
	}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return
	}

	if _, ok := pkg.Scripts["dev"]; ok {
		cmds.Run = "npm run dev"
	} else if _, ok := pkg.Scripts["start"]; ok {
		cmds.Run = "npm run start"
	}
}
