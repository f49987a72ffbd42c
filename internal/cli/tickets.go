package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/governor"
	"github.com/primegate/primegate/internal/iam"
)

var (
	ticketsActor string
	ticketsRole  string
)

func init() {
	rootCmd.AddCommand(ticketsCmd)
	ticketsCmd.Flags().StringVar(&ticketsActor, "actor", "", "Acting identity (required)")
	ticketsCmd.Flags().StringVar(&ticketsRole, "role", "user", "Actor role (user/staff/admin/system)")
	_ = ticketsCmd.MarkFlagRequired("actor")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(statsCmd)
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List escalation tickets visible to an identity",
	Long:  "Users see only their own tickets; staff and admins see all.\nOrdered oldest first.",
	RunE:  runTickets,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List escalation tickets awaiting review",
	RunE:  runPending,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the escalation queue",
	RunE:  runStats,
}

func runTickets(cmd *cobra.Command, args []string) error {
	role := iam.Role(ticketsRole)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", ticketsRole)
	}

	gov, err := governor.New(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer gov.Close()

	tickets, err := gov.Store.List(cmd.Context(), iam.NewActor(ticketsActor, role, ""))
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	printTickets(tickets)
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	gov, err := governor.New(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer gov.Close()

	tickets, err := gov.Store.Pending(cmd.Context())
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	printTickets(tickets)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	gov, err := governor.New(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer gov.Close()

	stats, err := gov.Store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	fmt.Printf("total:          %d\n", stats.Total)
	fmt.Printf("pending:        %d\n", stats.Pending)
	fmt.Printf("approved:       %d\n", stats.Approved)
	fmt.Printf("rejected:       %d\n", stats.Rejected)
	fmt.Printf("avg confidence: %.2f\n", stats.AvgConfidence)
	return nil
}

func printTickets(tickets []escalation.Ticket) {
	if len(tickets) == 0 {
		fmt.Println("No tickets.")
		return
	}
	fmt.Printf("%-36s %-10s %-12s %-6s %s\n", "ID", "STATUS", "REQUESTER", "CONF", "INPUT")
	for _, t := range tickets {
		fmt.Printf("%-36s %-10s %-12s %-6.2f %s\n",
			t.ID, t.Status, t.RequesterID, t.Confidence, truncate(t.InputText, 48))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
