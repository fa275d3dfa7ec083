package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/audit"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/console"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/database"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/logging"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/roles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultConsoleEndpoint = "http://localhost:8080/manage-auth-users"

func newRolesCommand() *cobra.Command {
	rolesCmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage caller roles",
	}

	var identityID, role string
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Assign a role to an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(db *gorm.DB, logger *zap.Logger) error {
				service, err := roles.NewService(roles.ServiceConfig{Database: db, Clock: time.Now})
				if err != nil {
					return err
				}
				assigned := roles.ParseRole(role)
				if err := service.AssignRole(cmd.Context(), identityID, assigned); err != nil {
					return err
				}
				logger.Info("role assigned", zap.String("identity_id", identityID), zap.String("role", string(assigned)))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", identityID, assigned)
				return err
			})
		},
	}
	grantCmd.Flags().StringVar(&identityID, "id", "", "Identity id to update")
	grantCmd.Flags().StringVar(&role, "role", string(roles.RoleAdmin), "Role to assign")
	_ = grantCmd.MarkFlagRequired("id")

	rolesCmd.AddCommand(grantCmd)
	return rolesCmd
}

func newAuditCommand() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the deletion journal",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent deletion outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(db *gorm.DB, _ *zap.Logger) error {
				journal, err := audit.NewJournal(audit.JournalConfig{Database: db})
				if err != nil {
					return err
				}
				entries, err := journal.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return writeJournal(cmd.OutOrStdout(), entries)
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Number of entries to show")

	auditCmd.AddCommand(listCmd)
	return auditCmd
}

func newUsersCommand() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Operate the management endpoint as an admin",
	}
	usersCmd.PersistentFlags().String("endpoint", defaultConsoleEndpoint, "Management endpoint URL")
	usersCmd.PersistentFlags().String("token", "", "Operator access token (overrides env)")
	if err := viper.BindPFlag("console.endpoint", usersCmd.PersistentFlags().Lookup("endpoint")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("console.token", usersCmd.PersistentFlags().Lookup("token")); err != nil {
		panic(err)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflow, err := newWorkflow()
			if err != nil {
				return err
			}
			listed, err := workflow.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return writeAccounts(cmd.OutOrStdout(), listed)
		},
	}

	var selectAll bool
	deleteCmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete the given accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !selectAll && len(args) == 0 {
				return errors.New("name at least one account id or pass --all")
			}
			workflow, err := newWorkflow()
			if err != nil {
				return err
			}
			if _, err := workflow.Refresh(cmd.Context()); err != nil {
				return err
			}
			if selectAll {
				workflow.SelectOthers()
			}
			for _, id := range args {
				if !workflow.Selection().Contains(id) {
					workflow.Selection().Toggle(id)
				}
			}
			summary, err := workflow.DeleteSelected(cmd.Context())
			if len(summary.Deleted)+len(summary.Failed) > 0 {
				if _, writeErr := fmt.Fprintf(cmd.OutOrStdout(), "%s\n", summary); writeErr != nil {
					return writeErr
				}
				for _, id := range summary.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", id)
				}
			}
			return err
		},
	}
	deleteCmd.Flags().BoolVar(&selectAll, "all", false, "Select every listed account except your own")

	usersCmd.AddCommand(listCmd, deleteCmd)
	return usersCmd
}

func newWorkflow() (*console.Workflow, error) {
	token := strings.TrimSpace(viper.GetString("console.token"))
	client, err := console.NewClient(console.ClientConfig{
		Endpoint: viper.GetString("console.endpoint"),
		Token:    token,
	})
	if err != nil {
		return nil, err
	}
	operatorID, err := console.CallerIDFromToken(token)
	if err != nil {
		return nil, err
	}
	return console.NewWorkflow(client, operatorID)
}

func withDatabase(run func(db *gorm.DB, logger *zap.Logger) error) error {
	logger, err := logging.NewLogger(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	path := strings.TrimSpace(viper.GetString("database.path"))
	if path == "" {
		return errors.New("database.path is required")
	}
	db, err := database.OpenSQLite(path, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return run(db, logger)
}

func writeAccounts(out io.Writer, listed []directory.Account) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tEMAIL\tCREATED\tLAST SIGN-IN\tCONFIRMED\tBANNED")
	for _, account := range listed {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%t\t%t\n",
			account.ID,
			account.EmailAddress(),
			formatTime(&account.CreatedAt),
			formatTime(account.LastSignInAt),
			account.Confirmed(),
			account.Banned(),
		)
	}
	return writer.Flush()
}

func writeJournal(out io.Writer, entries []audit.Entry) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "WHEN\tREQUEST\tACTOR\tTARGET\tOUTCOME\tREASON")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			formatTime(&entry.CreatedAt),
			entry.RequestID,
			entry.ActorID,
			entry.TargetID,
			entry.Outcome,
			entry.Reason,
		)
	}
	return writer.Flush()
}

func formatTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
