// Command jobbench is a load generator for the job systems of
// github.com/joeycumines/go-jobsystem/jobsystem.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joeycumines/go-jobsystem/jobsystem"
	"github.com/joeycumines/go-jobsystem/jobsystem/jobprom"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = `jobbench`
	app.Usage = `Generate load against a job system`
	app.Flags = flags
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Action = func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return err
		}
		level, err := parseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger := newLogger(stderr, level)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, stdout, logger)
	}
	return app
}

func run(ctx context.Context, cfg Config, stdout io.Writer, logger *logiface.Logger[logiface.Event]) (err error) {
	configureRuntime(logger)

	system, err := newSystem(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if e := system.Close(); err == nil {
			err = e
		}
	}()

	if cfg.MetricsAddr != `` {
		shutdown, err := serveMetrics(cfg.MetricsAddr, cfg.System, system, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logger.Info().
		Str(`system`, cfg.System).
		Int(`concurrency`, system.MaxConcurrency()).
		Int(`producers`, cfg.Producers).
		Int(`rounds`, cfg.Rounds).
		Int(`jobs`, cfg.Jobs).
		Log(`starting`)

	result, err := Run(ctx, cfg, system, logger)
	printResult(stdout, result)
	return err
}

// configureRuntime matches GOMAXPROCS and GOMEMLIMIT to the container, if
// any, as the job system sizes itself from GOMAXPROCS.
func configureRuntime(logger *logiface.Logger[logiface.Event]) {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Log(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warning().Err(err).Log(`failed to set GOMAXPROCS`)
	}

	if limit, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		logger.Debug().Err(err).Log(`memory limit not set`)
	} else {
		logger.Debug().Int64(`limit`, limit).Log(`memory limit set`)
	}

	logger.Debug().
		Uint64(`total_memory`, memory.TotalMemory()).
		Uint64(`free_memory`, memory.FreeMemory()).
		Log(`system memory`)
}

func serveMetrics(addr, name string, system jobsystem.JobSystem, logger *logiface.Logger[logiface.Event]) (func(), error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(jobprom.NewCollector(name, system)); err != nil {
		return nil, err
	}

	listener, err := net.Listen(`tcp`, addr)
	if err != nil {
		return nil, fmt.Errorf(`jobbench: metrics: %w`, err)
	}

	mux := http.NewServeMux()
	mux.Handle(`/metrics`, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err().Err(err).Log(`metrics server failed`)
		}
	}()

	logger.Info().
		Str(`addr`, listener.Addr().String()).
		Log(`serving metrics`)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func parseLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case `error`:
		return logiface.LevelError, nil
	case `warn`:
		return logiface.LevelWarning, nil
	case `information`, `informational`:
		return logiface.LevelInformational, nil
	}
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf(`jobbench: unknown log level %q`, s)
}

func printResult(w io.Writer, result Result) {
	m := result.Metrics
	fmt.Fprintf(w, "rounds:        %d\n", result.Rounds)
	fmt.Fprintf(w, "jobs:          %d\n", result.Jobs)
	fmt.Fprintf(w, "elapsed:       %s\n", result.Elapsed)
	fmt.Fprintf(w, "jobs/s:        %.0f\n", result.JobsPerSecond())
	fmt.Fprintf(w, "jobs created:  %d\n", m.JobsCreated)
	fmt.Fprintf(w, "jobs executed: %d\n", m.JobsExecuted)
	fmt.Fprintf(w, "jobs failed:   %d\n", m.JobsFailed)
	fmt.Fprintf(w, "stalls:        job pool %d, queue %d, barrier %d, barrier pool %d\n",
		m.Stalls.JobPool, m.Stalls.Queue, m.Stalls.Barrier, m.Stalls.BarrierPool)
	if l := m.Latency; l.Count != 0 {
		fmt.Fprintf(w, "latency:       p50 %s, p90 %s, p99 %s, max %s\n",
			l.P50, l.P90, l.P99, l.Max)
	}
}
