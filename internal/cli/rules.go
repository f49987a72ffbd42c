package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/compliance"
	"github.com/primegate/primegate/internal/config"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the active compliance rules",
	Long:  "Prints the numbered compliance principles the judgment model is held to.\nRule ordinals are what decisions cite in violated_rule.",
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rules, err := compliance.Load(cfg.RulesPath)
	if err != nil {
		return err
	}
	for _, r := range rules.Rules() {
		fmt.Printf("%d. %s\n", r.Ordinal, r.Text)
	}
	return nil
}
