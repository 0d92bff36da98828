package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentforge/previewd/internal/proc"
)

var killPortCmd = &cobra.Command{
	Use:   "kill-port <port>",
	Short: "Kill every process bound to a port",
	Long: `Kill every process bound to the given port, regardless of run bookkeeping.

Useful for reclaiming a preview port after previewd itself has restarted and
lost track of an orphaned child.`,
	Args: cobra.ExactArgs(1),
	RunE: runKillPort,
}

func init() {
	rootCmd.AddCommand(killPortCmd)
}

func runKillPort(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port <= 0 {
		return fmt.Errorf("invalid port %q", args[0])
	}

	killed, err := proc.KillByPort(port)
	if err != nil {
		return fmt.Errorf("scanning port %d: %w", port, err)
	}

	if len(killed) == 0 {
		fmt.Printf("No processes bound to port %d\n", port)
		return nil
	}
	for _, pid := range killed {
		fmt.Printf("Killed pid %d\n", pid)
	}
	return nil
}
