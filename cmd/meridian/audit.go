package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/audit/recorder"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/config"
)

var auditQueryFlags struct {
	action     string
	entityType string
	entityID   string
	userID     string
	status     string
	startTime  string
	endTime    string
	limit      int
	offset     int
	format     string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
	Long:  `Query the append-only audit trail and verify its hash chain.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit trail entries",
	Long: `Query audit trail entries with optional filters.

Examples:
  # Last 20 entries
  meridian audit query --limit 20

  # All approvals for a ruleset
  meridian audit query --action APPROVE_CHANGE --entity-id card-rules

  # Entries in a time range, as JSON
  meridian audit query --start 2026-08-01T00:00:00Z --end 2026-08-31T00:00:00Z --format json`,
	RunE: queryAuditTrail,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	Long: `Verify the integrity of the audit trail hash chain.

Walks the trail from the first entry and recomputes every hash. Any
tampered, missing or reordered entry breaks the chain and is reported.`,
	RunE: verifyAuditTrail,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditQueryCmd.Flags().StringVar(&auditQueryFlags.action, "action", "", "filter by action (SUBMIT_CHANGE, APPROVE_CHANGE, DEPLOY, ...)")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.entityType, "entity-type", "", "filter by entity type")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.entityID, "entity-id", "", "filter by entity ID")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.userID, "user", "", "filter by user ID")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.status, "status", "", "filter by status (SUCCESS, FAILURE)")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.startTime, "start", "", "start of time range (RFC3339)")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.endTime, "end", "", "end of time range (RFC3339)")
	auditQueryCmd.Flags().IntVar(&auditQueryFlags.limit, "limit", 0, "maximum entries to return (default from config)")
	auditQueryCmd.Flags().IntVar(&auditQueryFlags.offset, "offset", 0, "entries to skip")
	auditQueryCmd.Flags().StringVar(&auditQueryFlags.format, "format", "json", "output format: text, json")
}

func queryAuditTrail(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	trail, err := openAuditStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit storage: %w", err)
	}
	defer trail.Close()

	query := &audit.Query{
		Action:     auditQueryFlags.action,
		EntityType: auditQueryFlags.entityType,
		EntityID:   auditQueryFlags.entityID,
		UserID:     auditQueryFlags.userID,
		Status:     auditQueryFlags.status,
		Limit:      auditQueryFlags.limit,
		Offset:     auditQueryFlags.offset,
	}
	if query.Limit <= 0 {
		query.Limit = cfg.Audit.QueryLimit
	}
	if auditQueryFlags.startTime != "" {
		ts, err := time.Parse(time.RFC3339, auditQueryFlags.startTime)
		if err != nil {
			return fmt.Errorf("--start must be RFC3339: %w", err)
		}
		query.StartTime = &ts
	}
	if auditQueryFlags.endTime != "" {
		ts, err := time.Parse(time.RFC3339, auditQueryFlags.endTime)
		if err != nil {
			return fmt.Errorf("--end must be RFC3339: %w", err)
		}
		query.EndTime = &ts
	}

	entries, err := trail.Query(context.Background(), query)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if auditQueryFlags.format == "text" {
		for _, e := range entries {
			fmt.Printf("%s  %-10s %-16s %-20s %s (%s)\n",
				e.Timestamp.Format(time.RFC3339), e.Action, e.EntityType, e.EntityID, e.Username, e.Status)
		}
		fmt.Printf("\n%d entries\n", len(entries))
		return nil
	}

	formatter := cli.NewFormatter(cli.FormatJSON)
	return formatter.FormatTo(os.Stdout, entries)
}

func verifyAuditTrail(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	trail, err := openAuditStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit storage: %w", err)
	}
	defer trail.Close()

	auditor := recorder.NewRecorder(trail, nil)
	if err := auditor.Verify(context.Background()); err != nil {
		fmt.Printf("✗ Audit chain verification failed: %v\n", err)
		return cli.NewCommandError("audit verify", err)
	}

	fmt.Println("✓ Audit chain intact")
	return nil
}
