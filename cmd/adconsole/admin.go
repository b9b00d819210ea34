package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"adconsole/internal/access"
	"adconsole/internal/config"
	"adconsole/internal/db"
	"adconsole/internal/directory"
	"adconsole/internal/models"
)

const envAdminPassword = "ADMIN_PASSWORD"

func newMigrateCommand() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := config.LoadStore(cmd.Context())
			if err != nil {
				return err
			}
			if status {
				return db.MigrationStatus(cmd.Context(), store.DBDSN)
			}
			return db.Migrate(cmd.Context(), store.DBDSN)
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Print migration status instead of migrating")
	return cmd
}

func newCreateAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := adminPassword(password)
			if err != nil {
				return err
			}
			store, err := config.LoadStore(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := openDirectory(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer dir.Close()

			u, created, err := dir.svc.BootstrapAdmin(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin account already exists (%s)\n", u.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin account %s\n", u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "admin@company.com", "Email address of the admin account")
	cmd.Flags().StringVar(&password, "password", "", "Initial password (defaults to $"+envAdminPassword+")")
	return cmd
}

func newResetAdminPasswordCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-admin-password",
		Short: "Set a new password on the admin account and clear any lockout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := adminPassword(password)
			if err != nil {
				return err
			}
			store, err := config.LoadStore(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := openDirectory(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer dir.Close()

			host, _ := os.Hostname()
			if err := dir.svc.ResetAdminPassword(cmd.Context(), pw, "operator CLI on "+host); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "admin password reset")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (defaults to $"+envAdminPassword+")")
	return cmd
}

func newSeedDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Load the sample directory, attributed to the admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := config.LoadStore(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := openDirectory(cmd.Context(), store, nil)
			if err != nil {
				return err
			}
			defer dir.Close()

			var admin models.User
			if err := dir.db.WithContext(cmd.Context()).Where("username = ?", directory.AdminUsername).First(&admin).Error; err != nil {
				return fmt.Errorf("load admin account (run create-admin first): %w", err)
			}
			seeded, err := dir.svc.SeedDemo(cmd.Context(), access.FromUser(&admin, uuid.Nil))
			if err != nil {
				return err
			}
			if !seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "demo directory already present")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "demo directory loaded")
			return nil
		},
	}
}

func adminPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if pw := os.Getenv(envAdminPassword); pw != "" {
		return pw, nil
	}
	return "", errors.New("--password or " + envAdminPassword + " is required")
}
