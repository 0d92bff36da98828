package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "previewd",
	Short: "previewd - live preview server for generated projects",
	Long: `previewd runs AI-generated projects in throwaway sandboxes for live preview.

It materializes a virtual file tree into a temporary directory, figures out
how to install and start the project, runs it on its own port, and streams
its console output. Previews are served through a header-stripping proxy so
they can be embedded in the frontend.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
