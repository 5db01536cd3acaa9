package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"ridesim/internal/config"
	"ridesim/internal/db"
	"ridesim/internal/metrics"
	"ridesim/internal/publisher"
	"ridesim/internal/report"
	"ridesim/internal/scenario"
	"ridesim/internal/sim"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

var scenarioFlag = &cli.StringFlag{
	Name:    "scenario",
	Aliases: []string{"s"},
	Usage:   "scenario YAML file",
	EnvVars: []string{"SCENARIO"},
}

func runCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a scenario to completion",
		Flags: []cli.Flag{
			scenarioFlag,
			&cli.StringFlag{Name: "tripinfo-output", Usage: "write per-ride trip records to this XML file"},
			&cli.StringFlag{Name: "route-output", Usage: "write replayable rides to this XML file"},
			&cli.BoolFlag{Name: "route-length", Usage: "include the driven distance in route output"},
			&cli.StringFlag{Name: "summary-csv", Usage: "write one CSV row per ride to this file"},
			&cli.BoolFlag{Name: "lefthand", Usage: "simulate left-hand traffic"},
			&cli.Float64Flag{Name: "end", Usage: "simulation end in seconds, 0 runs until idle"},
			&cli.DurationFlag{Name: "step", Usage: "simulation step length"},
		},
		Action: func(c *cli.Context) error {
			applyFlags(c, cfg)
			if cfg.Scenario == "" {
				return errors.New("no scenario given")
			}
			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "validate a scenario without running it",
		Flags: []cli.Flag{scenarioFlag},
		Action: func(c *cli.Context) error {
			path := c.String("scenario")
			if path == "" {
				return errors.New("no scenario given")
			}
			w, err := loadWorld(path)
			if err != nil {
				return err
			}
			log.Info().
				Str("scenario", path).
				Int("edges", len(w.Network.Edges())).
				Int("vehicles", len(w.Vehicles)).
				Int("transportables", len(w.Transportables)).
				Msg("scenario ok")
			return nil
		},
	}
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("scenario") {
		cfg.Scenario = c.String("scenario")
	}
	if c.IsSet("tripinfo-output") {
		cfg.TripInfoOutput = c.String("tripinfo-output")
	}
	if c.IsSet("route-output") {
		cfg.RouteOutput = c.String("route-output")
	}
	if c.IsSet("route-length") {
		cfg.RouteLength = c.Bool("route-length")
	}
	if c.IsSet("summary-csv") {
		cfg.SummaryCSV = c.String("summary-csv")
	}
	if c.IsSet("lefthand") {
		cfg.Lefthand = c.Bool("lefthand")
	}
	if c.IsSet("end") {
		cfg.EndTime = time.Duration(c.Float64("end") * float64(time.Second))
	}
	if c.IsSet("step") && c.Duration("step") > 0 {
		cfg.StepLength = c.Duration("step")
	}
}

func loadWorld(path string) (*scenario.World, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	return s.Build()
}

func run(ctx context.Context, cfg *config.Config) error {
	w, err := loadWorld(cfg.Scenario)
	if err != nil {
		return err
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.StepLength)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var sinks []transport.EventSink
	if cfg.NATSURL != "" {
		var pm publisher.PublisherMetrics
		if mcol != nil {
			pm = mcol
		}
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, pm)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	collector, closeFiles, err := openOutputs(cfg)
	if err != nil {
		return err
	}
	defer closeFiles()

	runner, err := sim.New(w, sim.Options{
		Step:      simtime.FromDuration(cfg.StepLength),
		End:       simtime.FromDuration(cfg.EndTime),
		Lefthand:  cfg.Lefthand,
		Metrics:   mcol,
		Sinks:     sinks,
		Collector: collector,
	})
	if err != nil {
		return err
	}
	if mcol != nil {
		mcol.StepLength.Set(runner.StepLength().Seconds())
	}
	runErr := runner.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		log.Warn().Msg("simulation interrupted, writing partial results")
		runErr = nil
	}
	if err := collector.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("close outputs: %w", err))
	}

	if cfg.SummaryCSV != "" {
		if err := writeSummary(cfg.SummaryCSV, collector.Rows); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if cfg.DatabaseURL != "" {
		if err := storeResults(cfg, runner.FinishedAt(), collector.Rows, mcol); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

// openOutputs creates the XML writers. The returned func closes the files.
func openOutputs(cfg *config.Config) (*report.Collector, func(), error) {
	var files []*os.File
	closeFiles := func() {
		for _, f := range files {
			if err := f.Close(); err != nil {
				log.Error().Err(err).Str("file", f.Name()).Msg("close output")
			}
		}
	}
	c := &report.Collector{}
	if cfg.TripInfoOutput != "" {
		f, err := os.Create(cfg.TripInfoOutput)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, f)
		if c.TripInfo, err = report.NewTripInfoWriter(f); err != nil {
			closeFiles()
			return nil, nil, err
		}
	}
	if cfg.RouteOutput != "" {
		f, err := os.Create(cfg.RouteOutput)
		if err != nil {
			closeFiles()
			return nil, nil, err
		}
		files = append(files, f)
		if c.Routes, err = report.NewRouteWriter(f, cfg.RouteLength); err != nil {
			closeFiles()
			return nil, nil, err
		}
	}
	return c, closeFiles, nil
}

func writeSummary(path string, rows []report.RideRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	log.Info().Str("file", path).Int("rows", len(rows)).Msg("summary written")
	return f.Close()
}

// storeResults uses its own context so results are kept after an interrupt.
func storeResults(cfg *config.Config, end simtime.Time, rows []report.RideRow, mcol *metrics.Collector) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dsn, err := db.ResultsDSN(cfg.DatabaseURL, cfg.ResultsDB)
	if err != nil {
		return fmt.Errorf("results dsn: %w", err)
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		return err
	}
	runID, err := db.StoreRun(ctx, sqlDB, cfg.Scenario, end.Seconds(), rows)
	if mcol != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		mcol.RowsStored.WithLabelValues(result).Add(float64(len(rows)))
	}
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	stored, err := db.FetchRides(ctx, sqlDB, runID)
	if err != nil {
		return fmt.Errorf("read back run %s: %w", runID, err)
	}
	if len(stored) != len(rows) {
		return fmt.Errorf("run %s: stored %d rides, expected %d", runID, len(stored), len(rows))
	}
	log.Info().Str("run", runID.String()).Int("rides", len(stored)).Msg("results stored")
	return nil
}
