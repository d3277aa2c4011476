package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/audit/export"
	"warden-sh/warden/pkg/audit/index"
	"warden-sh/warden/pkg/audit/store"
	"warden-sh/warden/pkg/cli"
	"warden-sh/warden/pkg/config"
	"warden-sh/warden/pkg/policy"
)

var (
	auditUser   string
	auditTier   string
	auditSince  string
	auditUntil  string
	auditLimit  int
	auditJSON   bool
	exportFmt   string
	exportOut   string
	exportPlain bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and manage the audit log",
	Long:  `Query, summarize, export, and reindex the append-only audit log.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List audit records matching a filter",
	RunE:  runAuditQuery,
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics for the audit log",
	RunE:  runAuditStats,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records to JSON or CSV",
	RunE:  runAuditExport,
}

var auditReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the SQLite query index from the audit log",
	RunE:  runAuditReindex,
}

func init() {
	for _, c := range []*cobra.Command{auditQueryCmd, auditStatsCmd, auditExportCmd} {
		c.Flags().StringVar(&auditUser, "user", "", "filter by exact user")
		c.Flags().StringVar(&auditTier, "tier", "", "filter by safety tier (safe, warning, dangerous, blocked)")
		c.Flags().StringVar(&auditSince, "since", "", "include records at or after this time (RFC 3339 or YYYY-MM-DD)")
		c.Flags().StringVar(&auditUntil, "until", "", "include records strictly before this time (RFC 3339 or YYYY-MM-DD)")
	}
	auditQueryCmd.Flags().IntVar(&auditLimit, "limit", 0, "maximum records to print (0 = unlimited)")
	auditQueryCmd.Flags().BoolVar(&auditJSON, "json", false, "output records as JSON")
	auditStatsCmd.Flags().BoolVar(&auditJSON, "json", false, "output statistics as JSON")

	auditExportCmd.Flags().StringVar(&exportFmt, "format", "json", "export format (json, csv)")
	auditExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
	auditExportCmd.Flags().BoolVar(&exportPlain, "compact", false, "disable pretty-printing for JSON export")

	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditStatsCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditReindexCmd)
	rootCmd.AddCommand(auditCmd)
}

// openAuditLog opens the configured JSONL store for reading.
func openAuditLog(cfg *config.Config) (*store.JSONLStorage, error) {
	return store.NewJSONLStorage(&store.JSONLConfig{
		Path: cfg.Audit.LogPath,
		Sync: cfg.Audit.Sync,
	})
}

// buildFilter assembles an audit filter from the shared query flags.
func buildFilter() (*audit.Filter, error) {
	filter := &audit.Filter{User: auditUser}

	if auditTier != "" {
		tier, err := policy.ParseTier(auditTier)
		if err != nil {
			return nil, cli.NewConfigError("tier", err.Error())
		}
		filter.Tier = &tier
	}
	if auditSince != "" {
		t, err := parseTimeFlag(auditSince)
		if err != nil {
			return nil, cli.NewConfigError("since", err.Error())
		}
		filter.Since = &t
	}
	if auditUntil != "" {
		t, err := parseTimeFlag(auditUntil)
		if err != nil {
			return nil, cli.NewConfigError("until", err.Error())
		}
		filter.Until = &t
	}

	return filter, nil
}

// parseTimeFlag accepts RFC 3339 timestamps and bare dates.
func parseTimeFlag(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := buildFilter()
	if err != nil {
		return err
	}

	storage, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	records, err := storage.Query(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	if auditLimit > 0 && len(records) > auditLimit {
		records = records[:auditLimit]
	}

	if auditJSON {
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return cli.NewCommandError("audit query", err)
		}
		fmt.Println(string(out))
		return nil
	}

	for _, r := range records {
		executed := "-"
		if r.Executed {
			executed = "run"
			if r.ExitCode != nil {
				executed = fmt.Sprintf("exit=%d", *r.ExitCode)
			}
		}
		fmt.Printf("%s  %-9s %-10s %-8s %s\n",
			r.Timestamp.Format(time.RFC3339),
			r.SafetyLevel,
			r.User,
			executed,
			r.GeneratedCommand,
		)
	}
	fmt.Printf("\n%d record(s)\n", len(records))
	return nil
}

func runAuditStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	storage, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	stats, err := storage.Statistics(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit stats", err)
	}

	if auditJSON {
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return cli.NewCommandError("audit stats", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Total records:     %d\n", stats.Total)
	fmt.Printf("Executed:          %d\n", stats.Executed)
	fmt.Printf("Failed executions: %d\n", stats.FailedExecutions)
	for _, tier := range []policy.Tier{policy.TierSafe, policy.TierWarning, policy.TierDangerous, policy.TierBlocked} {
		fmt.Printf("  %-10s %d\n", tier.String()+":", stats.PerTier[tier])
	}
	if stats.SkippedLines > 0 {
		fmt.Printf("Skipped lines:     %d\n", stats.SkippedLines)
	}
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := buildFilter()
	if err != nil {
		return err
	}

	storage, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		w = f
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	recordsCh, errCh, err := storage.QueryStream(ctx, filter)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	switch exportFmt {
	case "json":
		exporter := export.NewJSONExporter(!exportPlain)
		err = exporter.ExportStream(ctx, recordsCh, w)
	case "csv":
		exporter := export.NewCSVExporter(true)
		err = exporter.ExportStream(ctx, recordsCh, w)
	default:
		return cli.NewConfigError("format", fmt.Sprintf("unsupported export format %q", exportFmt))
	}
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if streamErr := <-errCh; streamErr != nil {
		return cli.NewCommandError("audit export", streamErr)
	}
	return nil
}

func runAuditReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Audit.Index.Enabled {
		return cli.NewConfigError("audit.index.enabled", "the audit index is disabled")
	}

	storage, err := openAuditLog(cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	idx, err := index.NewSQLiteIndex(&index.Config{Path: cfg.Audit.Index.Path})
	if err != nil {
		return cli.NewCommandError("audit reindex", err)
	}
	defer idx.Close()

	start := time.Now()
	if err := idx.Rebuild(cmd.Context(), storage); err != nil {
		return cli.NewCommandError("audit reindex", err)
	}

	count, err := idx.Count(cmd.Context(), nil)
	if err != nil {
		return cli.NewCommandError("audit reindex", err)
	}
	fmt.Printf("Reindexed %d record(s) in %s\n", count, time.Since(start).Round(time.Millisecond))
	return nil
}
