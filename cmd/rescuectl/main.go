package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/db"
	"github.com/rescue/rescue/internal/platform/settings"
	"github.com/rescue/rescue/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(exitCode(err))
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rescuectl",
		Short:         "Operate the blood and organ SOS coordination backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("as", "", "ID of the user the command acts as")

	root.AddCommand(migrateCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(userCmd())
	root.AddCommand(hospitalCmd())
	root.AddCommand(sosCmd())
	root.AddCommand(hospitalRequestCmd())
	root.AddCommand(settingsCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(eventsCmd())
	return root
}

// run builds the app, calls fn and releases the app.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// actor resolves --as to the acting user's ID and role.
func (a *app) actor(ctx context.Context, cmd *cobra.Command) (identity.Actor, error) {
	raw, _ := cmd.Flags().GetString("as")
	if raw == "" {
		return identity.Actor{}, apperr.Validation(apperr.CodeInvalidInput, "--as is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return identity.Actor{}, apperr.Validation(apperr.CodeInvalidInput, "--as must be a user ID")
	}
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return identity.Actor{}, err
	}
	return u.Actor(), nil
}

func parseID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(apperr.CodeInvalidInput, name+" must be a UUID").WithDetail(name, raw)
	}
	return id, nil
}

func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatError renders domain errors as "CODE (kind): message" followed by
// their details.
func formatError(err error) string {
	if e, ok := apperr.As(err); ok {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s): %s", e.Code, e.Kind, e.Message)
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s=%v", k, e.Details[k])
		}
		return b.String()
	}
	return "error: " + err.Error()
}

func exitCode(err error) int {
	e, ok := apperr.As(err)
	if !ok {
		return 1
	}
	switch e.Kind {
	case apperr.KindValidation:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindStateConflict, apperr.KindDuplicate:
		return 4
	case apperr.KindForbidden:
		return 5
	default:
		return 1
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationFiles(cfg))
			var count int
			if to > 0 {
				count, err = migrator.UpTo(ctx, to)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this migration version")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database and Redis connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				checks := map[string]db.Health{"database": db.Check(ctx, a.pool)}
				if a.redis != nil {
					checks["redis"] = db.Check(ctx, db.PingFunc(func(ctx context.Context) error {
						return a.redis.Ping(ctx).Err()
					}))
				}
				if err := printJSON(cmd.OutOrStdout(), checks); err != nil {
					return err
				}
				for name, h := range checks {
					if h.Status != "healthy" {
						return fmt.Errorf("%s is %s: %s", name, h.Status, h.Error)
					}
				}
				return nil
			})
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change runtime settings",
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting and drop its cached value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				if err := a.settingsStore.Set(ctx, args[0], args[1], optionalString(cmd, "description")); err != nil {
					return err
				}
				if a.settingsCache != nil {
					if err := a.settingsCache.Invalidate(ctx, args[0]); err != nil {
						a.logger.Warn().Err(err).Str("key", args[0]).Msg("invalidate cached setting failed")
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			})
		},
	}
	setCmd.Flags().String("description", "", "Human readable description")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				items, err := a.settingsStore.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "radius",
		Short: "Show the donor search radius new SOS requests use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				var p settings.Provider = a.settingsStore
				if a.settingsCache != nil {
					p = a.settingsCache
				}
				km, err := p.GetFloat(ctx, settings.KeySosRadiusKm, a.cfg.SosDefaultRadiusKm)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%g km\n", km)
				return nil
			})
		},
	})
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export activity reports",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write an xlsx workbook of SOS activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			limit, _ := cmd.Flags().GetInt("limit")
			return run(cmd, func(ctx context.Context, a *app) error {
				snap, err := report.Collect(ctx, a.sos, a.hospitals, a.users, limit)
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := report.WriteSosWorkbook(f, snap); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", out, err)
				}
				a.logger.Info().Str("file", out).Int("requests", len(snap.Requests)).Msg("report exported")
				return nil
			})
		},
	}
	exportCmd.Flags().String("out", "sos-report.xlsx", "Output file")
	exportCmd.Flags().Int("limit", 500, "Maximum number of requests on the Requests sheet")
	cmd.AddCommand(exportCmd)
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the lifecycle event stream",
	}

	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the newest lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt64("n")
			return run(cmd, func(ctx context.Context, a *app) error {
				if a.stream == nil {
					return fmt.Errorf("REDIS_URL is not set, no event stream is configured")
				}
				evs, err := a.stream.Recent(ctx, n)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), evs)
			})
		},
	}
	tailCmd.Flags().Int64("n", 20, "Number of events")
	cmd.AddCommand(tailCmd)
	return cmd
}
