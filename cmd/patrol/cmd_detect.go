package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patrol/internal/workflow"
)

var detectInput string

// detectCmd batch-processes workflow records from a JSON-lines file.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Process workflow records and update detected patterns",
	Long: `Reads workflow records (one JSON object per line) and runs the
detection flow over each: signature detection, idempotent occurrence
recording, and statistics refresh. A malformed record is skipped and
reported; it never aborts the batch.

Example:
  patrol detect --input records.jsonl
  cat records.jsonl | patrol detect`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVarP(&detectInput, "input", "i", "", "JSONL file of workflow records (default stdin)")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var in io.Reader = os.Stdin
	if detectInput != "" {
		f, err := os.Open(detectInput)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	recs, malformed := readRecords(in)
	batch := buildProcessor(st).ProcessBatch(recs)

	fmt.Printf("processed %d, failed %d, unparsable %d\n",
		batch.Processed, batch.Failed, malformed)
	for _, item := range batch.Items {
		if item.Err != nil {
			fmt.Printf("  %s: skipped (%v)\n", item.WorkflowID, item.Err)
			continue
		}
		for _, sig := range item.Signatures {
			fmt.Printf("  %s: %s\n", item.WorkflowID, sig)
		}
	}
	return nil
}

// readRecords decodes JSON lines, counting lines that fail to parse.
// Parse failures are the batch-isolation case: logged and skipped.
func readRecords(in io.Reader) (recs []workflow.Record, malformed int) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec workflow.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			malformed++
			logger.Warn("skipping unparsable record line", zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, malformed
}
