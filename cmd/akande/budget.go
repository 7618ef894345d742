package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBudgetCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show provider call budgets",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show budget usage vs limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if !a.cfg.Budget.Enabled {
				fmt.Println("Budget enforcement is disabled.")
				return nil
			}
			if err := a.withHistory(); err != nil {
				return err
			}

			statuses, err := a.enforcer.Status(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No budget policies configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tPERIOD\tMAX CALLS\tUSED\tREMAINING")
			for _, s := range statuses {
				provider := s.Policy.Provider
				if provider == "" {
					provider = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					provider, s.Policy.Period, s.Policy.MaxCalls, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(statusCmd)
	return cmd
}
