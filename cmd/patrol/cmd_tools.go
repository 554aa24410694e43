package main

import (
	"os"

	"github.com/spf13/cobra"

	"patrol/internal/report"
	"patrol/internal/store"
)

var (
	toolName     string
	toolScript   string
	toolTriggers []string
	toolStatus   string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage the external tool registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE:  runToolsList,
}

var toolsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register or update an external tool",
	Long: `Registers an external tool script and its trigger vocabulary.
Registration is an upsert keyed on tool name.

Example:
  patrol tools register --name pytest-runner --script ./tools/run_pytest.sh \
    --triggers test,pytest,backend --status active`,
	RunE: runToolsRegister,
}

func init() {
	toolsRegisterCmd.Flags().StringVar(&toolName, "name", "", "tool name (required)")
	toolsRegisterCmd.Flags().StringVar(&toolScript, "script", "", "tool script path (required)")
	toolsRegisterCmd.Flags().StringSliceVar(&toolTriggers, "triggers", nil, "trigger vocabulary, comma separated")
	toolsRegisterCmd.Flags().StringVar(&toolStatus, "status", string(store.ToolExperimental), "tool status")
	_ = toolsRegisterCmd.MarkFlagRequired("name")
	_ = toolsRegisterCmd.MarkFlagRequired("script")

	toolsCmd.AddCommand(toolsListCmd, toolsRegisterCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tools, err := st.ListTools()
	if err != nil {
		return err
	}
	report.WriteTools(os.Stdout, tools)
	return nil
}

func runToolsRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.RegisterTool(store.RegisteredTool{
		ToolName:          toolName,
		ScriptReference:   toolScript,
		TriggerVocabulary: toolTriggers,
		Status:            store.ToolStatus(toolStatus),
	})
}
