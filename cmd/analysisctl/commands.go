package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/cuongbtq/analysis-service/internal/storage"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "analysisctl",
		Short:         "Operate the analysis service database and accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", a.configPath, "path to configuration file")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newAccountCmd(a))
	return root
}

// --- migrate ---

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := a.openDB(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := storage.MigrateUp(db); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 0 {
				return fmt.Errorf("--steps must not be negative")
			}

			db, closeDB, err := a.openDB(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := storage.MigrateDown(db, steps); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Migrations rolled back")
			return nil
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// --- account ---

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage API accounts",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account and print its API key",
		Long: `Create an account and print its API key.

The key is shown once and cannot be recovered later.

Examples:
  analysisctl account create --email dev@example.com
  analysisctl account create --email ci@example.com --unlimited`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			unlimited, _ := cmd.Flags().GetBool("unlimited")

			env, err := a.openAccounts(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer env.close()

			acc, key, err := env.manager.Create(cmd.Context(), email, unlimited)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Account: %s\nEmail:   %s\nType:    %s\nAPI key: %s\n", acc.ID, acc.Email, acc.Type, key)
			return nil
		},
	}
	create.Flags().String("email", "", "account email")
	create.Flags().Bool("unlimited", false, "exempt the account from rate limiting")
	_ = create.MarkFlagRequired("email")

	setType := &cobra.Command{
		Use:   "set-type",
		Short: "Change an account between standard and unlimited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			accountType, _ := cmd.Flags().GetString("type")

			env, err := a.openAccounts(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.manager.SetType(cmd.Context(), email, accountType); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Account %s is now %s\n", email, accountType)
			return nil
		},
	}
	setType.Flags().String("email", "", "account email")
	setType.Flags().String("type", "", "standard or unlimited")
	_ = setType.MarkFlagRequired("email")
	_ = setType.MarkFlagRequired("type")

	limits := &cobra.Command{
		Use:   "limits",
		Short: "Show the rate limit counters of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			env, err := a.openAccounts(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer env.close()

			counters, err := env.manager.Limits(cmd.Context(), email)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WINDOW\tUSED\tLIMIT\tSTARTED")
			for _, win := range env.windows {
				c := counters.Window(win.Name)
				if c == nil {
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", win.Name, c.Count, win.Limit, formatStart(c))
			}
			return w.Flush()
		},
	}
	limits.Flags().String("email", "", "account email")
	_ = limits.MarkFlagRequired("email")

	resetLimits := &cobra.Command{
		Use:   "reset-limits",
		Short: "Zero the rate limit counters of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")

			env, err := a.openAccounts(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.manager.ResetLimits(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Limits reset for %s\n", email)
			return nil
		},
	}
	resetLimits.Flags().String("email", "", "account email")
	_ = resetLimits.MarkFlagRequired("email")

	cmd.AddCommand(create, setType, limits, resetLimits)
	return cmd
}

func formatStart(c *domain.WindowCounter) string {
	if c.Start.IsZero() {
		return "-"
	}
	return c.Start.UTC().Format(time.RFC3339)
}
