// Command teamlens runs one engineer-metrics batch: collect source events,
// reconcile the ticketing sheet, rank the cohort and render reports.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/teamlens/teamlens/internal/adapters/analyzer"
	"github.com/teamlens/teamlens/internal/adapters/githubapi"
	"github.com/teamlens/teamlens/internal/adapters/report"
	"github.com/teamlens/teamlens/internal/adapters/sheets"
	"github.com/teamlens/teamlens/internal/app"
	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Metrics endpoint server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

type flags struct {
	daysBack          int
	startDate         string
	endDate           string
	outputDir         string
	force             bool
	individualReports bool
	metricsAddr       string
}

func main() {
	// The batch only uses its own pipeline metrics; the default Go and
	// process collectors would just add noise to a short-lived run.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Get().Error(ctx, "run failed", logger.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "teamlens",
		Short:         "Collect engineering activity, reconcile tickets and rank the team",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &f)
		},
	}

	cmd.Flags().IntVar(&f.daysBack, "days-back", 0, "size of the collection window in days (overrides config)")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "window start, YYYY-MM-DD (requires --end-date)")
	cmd.Flags().StringVar(&f.endDate, "end-date", "", "window end, YYYY-MM-DD (requires --start-date)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "directory for the workbook and reports (overrides config)")
	cmd.Flags().BoolVar(&f.force, "force", false, "start even when the remaining API quota is under the buffer")
	cmd.Flags().BoolVar(&f.individualReports, "individual-reports", false, "render a PDF report per engineer")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run (overrides config)")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	applyFlags(cfg, cmd, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Named("teamlens")

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	client := githubapi.NewClient(cfg.GitHubToken)
	collector := githubapi.NewCollector(client, cfg.GitHubOrg,
		githubapi.WithWorkers(cfg.MaxWorkers))

	opts := []app.Option{
		app.WithCollector(collector),
		app.WithQuotaChecker(client),
		app.WithWorkbookRenderer(report.NewWorkbookWriter()),
		app.WithDocumentRenderer(report.NewPDFWriter(cfg.OutputDir)),
		app.WithForce(f.force),
		app.WithIndividualReports(f.individualReports),
	}

	if cfg.SheetID != "" {
		reader, err := sheets.NewReader(ctx, cfg.CredentialsPath)
		if err != nil {
			log.Warn(ctx, "sheet reader unavailable, running source-only", logger.Error(err))
		} else {
			opts = append(opts, app.WithTicketSource(reader))
		}
	}

	if cfg.AnalyzerEnabled {
		opts = append(opts, app.WithAnalyzer(
			analyzer.New(cfg.OpenAIKey, analyzer.WithModel(cfg.OpenAIModel))))
	}

	pipeline, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	log.Info(ctx, "done",
		logger.String("run_id", res.RunID),
		logger.Int("engineers", res.Engineers),
		logger.Int("matched", res.Matched),
		logger.Int("source_only", res.SourceOnly),
		logger.Int("ticket_only", res.TicketOnly),
		logger.String("top_performer", res.Summary.TopPerformer),
		logger.String("workbook", res.WorkbookPath),
		logger.Int("reports", len(res.ReportPaths)))
	return nil
}

// applyFlags lets command-line flags win over file and environment config.
func applyFlags(cfg *config.Config, cmd *cobra.Command, f *flags) {
	if cmd.Flags().Changed("days-back") {
		cfg.DaysBack = f.daysBack
	}
	if cmd.Flags().Changed("start-date") {
		cfg.StartDate = f.startDate
	}
	if cmd.Flags().Changed("end-date") {
		cfg.EndDate = f.endDate
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

// serveMetrics exposes the pipeline's Prometheus registry for the duration
// of the run. ListenAndServe errors are logged, never fatal.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Default().Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Named("metrics").Info(ctx, "serving metrics", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Named("metrics").Warn(ctx, "metrics server stopped", logger.Error(err))
	}
}
