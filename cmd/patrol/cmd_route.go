package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var routeWorkflowID string

// routeCmd routes one free-text input through the matcher and router.
var routeCmd = &cobra.Command{
	Use:   "route [input text]",
	Short: "Route input to a bound tool or the generic path",
	Long: `Matches the input against active, tool-linked patterns. On a match
the bound tool script executes as a subprocess; on tool failure the
decision falls back to the generic path. The decision is printed as
JSON for the execution collaborator.

Example:
  patrol route "Run the backend test suite with pytest" --workflow-id wf-123`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&routeWorkflowID, "workflow-id", "", "workflow id for the routing attempt")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	input := strings.Join(args, " ")
	decision, err := buildRouter(st, cfg).Route(cmd.Context(), input, routeWorkflowID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decision); err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	return nil
}
