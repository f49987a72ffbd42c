package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/neurorouter"
	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/governor"
	"github.com/primegate/primegate/internal/iam"
)

var (
	governActor string
	governRole  string
	governImage string
)

func init() {
	rootCmd.AddCommand(governCmd)
	governCmd.Flags().StringVar(&governActor, "actor", "alice", "Acting identity")
	governCmd.Flags().StringVar(&governRole, "role", "user", "Actor role (user/staff/admin/system)")
	governCmd.Flags().StringVar(&governImage, "image", "", "Optional attached image reference")
}

var governCmd = &cobra.Command{
	Use:   "govern <text>",
	Short: "Run one request through the decision core",
	Long:  "Classifies, judges and permission-checks a single request, printing the\nterminal action and the user-visible response. Escalations are persisted\nto the ticket store before the command returns.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGovern,
}

func runGovern(cmd *cobra.Command, args []string) error {
	role := iam.Role(governRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", governRole)
	}

	gov, err := governor.New(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer gov.Close()

	res, err := gov.Govern(cmd.Context(), iam.NewActor(governActor, role, ""), args[0], governImage)
	if err != nil {
		if errors.Is(err, neurorouter.ErrRateLimited) {
			fmt.Fprintln(os.Stderr, "judgment backend rate limited, try again shortly")
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintf(os.Stderr, "request failed closed: %v\n", err)
	}

	fmt.Printf("trace:      %s\n", res.TraceID)
	fmt.Printf("action:     %s\n", res.Action)
	if res.Reasoning != "" {
		fmt.Printf("reasoning:  %s\n", res.Reasoning)
	}
	if res.ViolatedRule > 0 {
		fmt.Printf("rule:       %d\n", res.ViolatedRule)
	}
	if res.TicketID != "" {
		fmt.Printf("ticket:     %s\n", res.TicketID)
	}
	if res.Rewritten {
		fmt.Printf("rewritten:  yes\n")
	}
	fmt.Printf("\n%s\n", res.Response)
	return nil
}
