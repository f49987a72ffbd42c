package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/primegate/primegate/internal/config"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Creates ~/.primegate/config.yaml (or the --config path) with the built-in\ndefaults so thresholds, backends and alert webhooks can be edited in place.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = filepath.Join(config.DefaultDir(), "config.yaml")
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
