package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/governor"
	"github.com/primegate/primegate/internal/iam"
)

var (
	resolveActor string
	resolveRole  string
	resolveNote  string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveActor, "actor", "", "Resolving identity (required)")
	resolveCmd.Flags().StringVar(&resolveRole, "role", "admin", "Actor role")
	resolveCmd.Flags().StringVar(&resolveNote, "note", "", "Resolution note")
	_ = resolveCmd.MarkFlagRequired("actor")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <ticket-id> <approved|rejected>",
	Short: "Resolve a pending escalation ticket",
	Long:  "Approves or rejects a pending ticket. Requires the resolve_escalations\npermission (admin). Resolutions are write-once: a resolved ticket cannot\nbe changed.",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	role := iam.Role(resolveRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", resolveRole)
	}
	decision := escalation.Status(args[1])

	gov, err := governor.New(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer gov.Close()

	actor := iam.NewActor(resolveActor, role, "")
	if err := gov.Store.Resolve(cmd.Context(), actor, args[0], decision, resolveNote); err != nil {
		var denied *access.DeniedError
		switch {
		case errors.As(err, &denied):
			return fmt.Errorf("access denied: %s requires %s", actor, denied.Permission)
		case errors.Is(err, escalation.ErrNotFound):
			return fmt.Errorf("ticket %s not found", args[0])
		case errors.Is(err, escalation.ErrAlreadyResolved):
			return fmt.Errorf("ticket %s already resolved", args[0])
		}
		return fmt.Errorf("resolve: %w", err)
	}

	fmt.Printf("ticket %s %s\n", args[0], decision)
	return nil
}
