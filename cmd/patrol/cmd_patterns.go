package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"patrol/internal/report"
	"patrol/internal/store"
)

var (
	patternsStatus  string
	patternsMinConf float64
)

// patternsCmd reports detected patterns.
var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List detected operation patterns",
	RunE:  runPatterns,
}

// promoteCmd moves a pattern along the automation lifecycle.
var promoteCmd = &cobra.Command{
	Use:   "promote [pattern-id] [status]",
	Short: "Transition a pattern's automation status",
	Long: `Moves a pattern forward through detected -> candidate -> active ->
implemented, or sideways to deprecated. Backward moves are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: runPromote,
}

// bindCmd binds a pattern to a registered tool.
var bindCmd = &cobra.Command{
	Use:   "bind [pattern-id] [tool-name]",
	Short: "Bind a pattern to a registered tool",
	Args:  cobra.ExactArgs(2),
	RunE:  runBind,
}

// savingsCmd reports the cost ledger.
var savingsCmd = &cobra.Command{
	Use:   "savings",
	Short: "Summarize realized cost savings",
	RunE:  runSavings,
}

func init() {
	patternsCmd.Flags().StringVar(&patternsStatus, "status", "", "filter by automation status")
	patternsCmd.Flags().Float64Var(&patternsMinConf, "min-confidence", 0, "minimum confidence score")
	rootCmd.AddCommand(patternsCmd, promoteCmd, bindCmd, savingsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	patterns, err := st.ListPatterns(store.PatternFilter{
		Status:        store.Status(patternsStatus),
		MinConfidence: patternsMinConf,
	})
	if err != nil {
		return err
	}
	report.WritePatterns(os.Stdout, patterns)
	return nil
}

func runPromote(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.TransitionStatus(id, store.Status(args[1]))
}

func runBind(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.BindTool(id, args[1])
}

func runSavings(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.SavingsSummary()
	if err != nil {
		return err
	}
	report.WriteSavings(os.Stdout, summary)
	return nil
}
