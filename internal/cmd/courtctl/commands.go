package courtctl

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/louisbranch/courtroom/internal/platform/grpc"
	"github.com/louisbranch/courtroom/internal/platform/timeouts"
	"github.com/louisbranch/courtroom/internal/services/court/app"
	"github.com/louisbranch/courtroom/internal/services/court/importer"
)

func newImportCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import case YAML files from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := importer.LoadDir(os.DirFS(args[0]), ".")
			if err != nil {
				return fmt.Errorf("load cases: %w", err)
			}
			store, err := app.OpenStore(app.StorageConfig{Driver: cfg.StorageDriver, Path: cfg.DBPath})
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := importer.Import(cmd.Context(), store, cases)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range report.Imported {
				fmt.Fprintf(out, "imported %s\n", id)
			}
			for _, id := range report.Skipped {
				fmt.Fprintf(out, "skipped %s (already stored)\n", id)
			}
			return nil
		},
	}
}

func newCasesCommand(cfg *Config) *cobra.Command {
	cases := &cobra.Command{
		Use:   "cases",
		Short: "Inspect stored cases",
	}

	var pageSize int
	var pageToken string
	list := &cobra.Command{
		Use:   "list",
		Short: "List playable cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runtime.Close()

			page, err := runtime.Orchestrator.ListCases(cmd.Context(), pageSize, pageToken)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTURNS\tLOCALE")
			for _, c := range page.Cases {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.Title, c.TurnCount, c.Locale)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.NextPageToken != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "next page: --page-token %s\n", page.NextPageToken)
			}
			return nil
		},
	}
	list.Flags().IntVar(&pageSize, "page-size", 20, "maximum number of cases to list")
	list.Flags().StringVar(&pageToken, "page-token", "", "token of the page to list")
	cases.AddCommand(list)
	return cases
}

func newMatchCommand(cfg *Config) *cobra.Command {
	matches := &cobra.Command{
		Use:   "match",
		Short: "Create and inspect matches",
	}

	var caseID, userID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a match of a case for a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runtime.Close()

			m, err := runtime.Orchestrator.CreateMatch(cmd.Context(), caseID, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}
	create.Flags().StringVar(&caseID, "case", "", "case identifier (required)")
	create.Flags().StringVar(&userID, "user", "", "player identifier (required)")
	_ = create.MarkFlagRequired("case")
	_ = create.MarkFlagRequired("user")

	var listUser string
	var pageSize int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the matches of a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtime, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runtime.Close()

			page, err := runtime.Orchestrator.ListMatches(cmd.Context(), listUser, pageSize, "")
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCASE\tTURN\tSCORE\tSTATUS")
			for _, m := range page.Matches {
				status := "in progress"
				switch {
				case m.Verdict != nil:
					status = string(*m.Verdict)
				case m.PausedAt != nil:
					status = "paused"
				case len(m.Messages) == 0:
					status = "not started"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", m.ID, m.CaseID, m.CurrentTurnIndex, m.Score, status)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&listUser, "user", "", "player identifier (required)")
	list.Flags().IntVar(&pageSize, "page-size", 20, "maximum number of matches to list")
	_ = list.MarkFlagRequired("user")

	matches.AddCommand(create, list)
	return matches
}

func newHealthCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a court server is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := platformgrpc.NewClient(cfg.GRPCAddr)
			if err != nil {
				return err
			}
			defer conn.Close()

			status, err := platformgrpc.Check(cmd.Context(), conn, app.HealthService, timeouts.GRPCDial)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.GRPCAddr, strings.ToLower(status.String()))
			if status != grpc_health_v1.HealthCheckResponse_SERVING {
				return fmt.Errorf("court server is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.GRPCAddr, "addr", cfg.GRPCAddr, "court gRPC address")
	return cmd
}
