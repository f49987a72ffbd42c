package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/config"
)

var (
	tailLines    int
	replayTrace  string
	replayActor  string
	replaySumOnl bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditReplayCmd.Flags().StringVar(&replayTrace, "trace", "", "Filter by trace id")
	auditReplayCmd.Flags().StringVar(&replayActor, "actor", "", "Filter by actor id")
	auditReplayCmd.Flags().BoolVar(&replaySumOnl, "summary", false, "Print only the summary")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Replay audit events for a trace or actor",
	Long:  "Reads back the audit log, optionally filtered by trace or actor id,\nand prints the matching events with a per-type summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditReplay,
}

func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.AuditPath, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}

	for _, line := range lines {
		var ev audit.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			fmt.Println(line)
			continue
		}
		fmt.Printf("%s  %-24s %-12s %-20s success=%v\n",
			ev.Timestamp, ev.Type, ev.ActorID, ev.Action, ev.Success)
	}
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result, err := audit.Replay(path, audit.ReplayFilter{TraceID: replayTrace, ActorID: replayActor})
	if err != nil {
		return err
	}

	if !replaySumOnl {
		for _, ev := range result.Events {
			out, _ := json.Marshal(ev)
			fmt.Println(string(out))
		}
	}
	fmt.Printf("total=%d failures=%d", result.Summary.Total, result.Summary.Failures)
	for typ, n := range result.Summary.ByType {
		fmt.Printf(" %s=%d", typ, n)
	}
	fmt.Println()
	return nil
}
