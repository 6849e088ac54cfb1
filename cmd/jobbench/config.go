package main

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/go-jobsystem/jobsystem"
	"github.com/urfave/cli"
)

// Config configures a benchmark run. It may be loaded from a TOML file, with
// command line flags taking precedence.
type Config struct {
	System      string `toml:"system"`
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
	Threads     int    `toml:"threads"`
	MaxJobs     int    `toml:"max_jobs"`
	MaxBarriers int    `toml:"max_barriers"`
	QueueLength int    `toml:"queue_length"`
	// BarrierCapacity is the number of jobs each barrier holds, zero to fit
	// a round.
	BarrierCapacity int           `toml:"barrier_capacity"`
	Producers       int           `toml:"producers"`
	Rounds          int           `toml:"rounds"`
	Jobs            int           `toml:"jobs"`
	Work            time.Duration `toml:"work"`
	LockOSThread    bool          `toml:"lock_os_thread"`
}

const (
	systemThreadPool   = `pool`
	systemWorkerThread = `worker`
)

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		System:      systemThreadPool,
		LogLevel:    `info`,
		Threads:     -1,
		MaxJobs:     2048,
		MaxBarriers: 64,
		QueueLength: 1024,
		Producers:   4,
		Rounds:      100,
		Jobs:        64,
	}
}

// LoadConfigFile decodes a TOML file over cfg.
func LoadConfigFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf(`jobbench: config %s: %w`, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf(`jobbench: config %s: unknown keys %v`, path, undecoded)
	}
	return nil
}

// Validate checks that cfg describes a runnable benchmark.
func (x Config) Validate() error {
	switch {
	case x.System != systemThreadPool && x.System != systemWorkerThread:
		return fmt.Errorf(`jobbench: unknown system %q`, x.System)
	case x.MaxJobs <= 0 || x.MaxBarriers <= 0:
		return fmt.Errorf(`jobbench: max jobs and max barriers must be positive`)
	case int64(x.MaxJobs) >= math.MaxUint32 || int64(x.MaxBarriers) >= math.MaxUint32:
		return fmt.Errorf(`jobbench: max jobs and max barriers must be less than %d`, uint32(math.MaxUint32))
	case x.QueueLength <= 0 || int64(x.QueueLength) > maxCapacity:
		return fmt.Errorf(`jobbench: queue length must be in [1, %d]`, int64(maxCapacity))
	case x.BarrierCapacity < 0 || int64(x.BarrierCapacity) > maxCapacity:
		return fmt.Errorf(`jobbench: barrier capacity must be in [0, %d]`, int64(maxCapacity))
	case x.Producers <= 0 || x.Rounds <= 0 || x.Jobs <= 0:
		return fmt.Errorf(`jobbench: producers, rounds and jobs must be positive`)
	case int64(x.Jobs)+1 > maxCapacity:
		return fmt.Errorf(`jobbench: %d jobs per round exceed the largest barrier`, x.Jobs+1)
	case x.Producers > x.MaxBarriers:
		return fmt.Errorf(`jobbench: each of the %d producers needs a barrier, max barriers is %d`, x.Producers, x.MaxBarriers)
	case x.Producers*(x.Jobs+1) > x.MaxJobs:
		// every producer holds a handle to each of its jobs until its round
		// completes
		return fmt.Errorf(`jobbench: %d producers of %d jobs need more than %d max jobs`, x.Producers, x.Jobs+1, x.MaxJobs)
	case x.BarrierCapacity != 0 && x.BarrierCapacity < x.Jobs+1:
		// the whole round is added to the barrier before the wait starts
		return fmt.Errorf(`jobbench: barrier capacity %d cannot hold %d jobs per round`, x.BarrierCapacity, x.Jobs+1)
	}
	return nil
}

// maxCapacity is the largest power of two queue or barrier.
const maxCapacity = 1 << 31

// barrierCapacity returns the configured barrier capacity, or the smallest
// that holds a round, but not less than the default.
func (x Config) barrierCapacity() uint32 {
	if x.BarrierCapacity != 0 {
		return uint32(x.BarrierCapacity)
	}
	return max(jobsystem.DefaultBarrierCapacity, uint32(1)<<bits.Len32(uint32(x.Jobs)))
}

var flags = []cli.Flag{
	cli.StringFlag{
		Name:   `config`,
		Usage:  `Path to a TOML config file`,
		EnvVar: `JOBBENCH_CONFIG`,
	},
	cli.StringFlag{
		Name:  `system`,
		Usage: `Job system to benchmark, "pool" or "worker"`,
	},
	cli.IntFlag{
		Name:  `threads`,
		Usage: `Worker threads of the pool, negative for GOMAXPROCS-1`,
	},
	cli.IntFlag{
		Name:  `max-jobs`,
		Usage: `Size of the job pool`,
	},
	cli.IntFlag{
		Name:  `max-barriers`,
		Usage: `Size of the barrier pool`,
	},
	cli.IntFlag{
		Name:  `queue-length`,
		Usage: `Size of the job queue, a power of two`,
	},
	cli.IntFlag{
		Name:  `producers`,
		Usage: `Concurrent goroutines creating and waiting on jobs`,
	},
	cli.IntFlag{
		Name:  `rounds`,
		Usage: `Rounds per producer`,
	},
	cli.IntFlag{
		Name:  `jobs`,
		Usage: `Jobs per round, fanning in to one final job`,
	},
	cli.DurationFlag{
		Name:  `work`,
		Usage: `Time each job spends spinning`,
	},
	cli.IntFlag{
		Name:  `barrier-capacity`,
		Usage: `Jobs each barrier holds, a power of two, zero to fit a round`,
	},
	cli.BoolFlag{
		Name:  `lock-os-thread`,
		Usage: `Wire each worker to its own OS thread`,
	},
	cli.StringFlag{
		Name:   `metrics-addr`,
		Usage:  `Address to serve Prometheus metrics on, while running`,
		EnvVar: `JOBBENCH_METRICS_ADDR`,
	},
	cli.StringFlag{
		Name:   `log-level`,
		Usage:  `Log level, e.g. debug, info, warning`,
		EnvVar: `JOBBENCH_LOG_LEVEL`,
	},
}

// configFromContext resolves the defaults, then the config file, then any
// flags that were set.
func configFromContext(c *cli.Context) (Config, error) {
	cfg := DefaultConfig()
	if path := c.String(`config`); path != `` {
		if err := LoadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if c.IsSet(`system`) {
		cfg.System = c.String(`system`)
	}
	for name, dst := range map[string]*int{
		`threads`:          &cfg.Threads,
		`max-jobs`:         &cfg.MaxJobs,
		`max-barriers`:     &cfg.MaxBarriers,
		`queue-length`:     &cfg.QueueLength,
		`barrier-capacity`: &cfg.BarrierCapacity,
		`producers`:        &cfg.Producers,
		`rounds`:           &cfg.Rounds,
		`jobs`:             &cfg.Jobs,
	} {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	if c.IsSet(`work`) {
		cfg.Work = c.Duration(`work`)
	}
	if c.IsSet(`lock-os-thread`) {
		cfg.LockOSThread = c.Bool(`lock-os-thread`)
	}
	if c.IsSet(`metrics-addr`) {
		cfg.MetricsAddr = c.String(`metrics-addr`)
	}
	if c.IsSet(`log-level`) {
		cfg.LogLevel = c.String(`log-level`)
	}
	return cfg, cfg.Validate()
}
