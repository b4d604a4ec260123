package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/auth"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardfile"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardstore"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/migrations"
)

// newValidateCmd checks a layout file without touching the config store.
func newValidateCmd(_ *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <layout.yaml>",
		Short: "Check a layout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := cardfile.Load(args[0])
			if err != nil {
				return err
			}
			l := rev.Layout
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s: ok (di=%d do=%d ai=%d sio=%d math=%d rtc=%d, %d schedules)\n",
				args[0], l.DI, l.DO, l.AI, l.SIO, l.Math, l.RTC, len(rev.Channels))
			return nil
		},
	}
}

// newImportCmd stores a layout file as the newest config revision. A
// running controller picks it up on its next start.
func newImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <layout.yaml>",
		Short: "Store a layout file as the active configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-mostly one-shot

			rev, err := importLayout(cmd.Context(), cardstore.NewSQLiteRepository(db.DB), args[0], layoutOf(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored revision %s (%d cards, %d schedules)\n",
				rev.ID, len(rev.Cards), len(rev.Channels))
			return nil
		},
	}
}

// newTokenCmd mints an operator token signed with the configured secret.
func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}
			token, err := auth.GenerateAccessToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in the command audit")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "viewer, operator or engineer")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	//nolint:errcheck // flag is defined above
	cmd.MarkFlagRequired("subject")
	return cmd
}

// newMigrateCmd reports the schema state or rolls back the newest migration.
func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back schema migrations",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only

			applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range applied {
				fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // closed after rollback

			if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
				return fmt.Errorf("rolling back: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
			return nil
		},
	}

	cmd.AddCommand(status, down)
	return cmd
}
