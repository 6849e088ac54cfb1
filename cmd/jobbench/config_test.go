package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `jobbench.toml`)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseArgs(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	var (
		cfg Config
		err error
	)
	app := cli.NewApp()
	app.Flags = flags
	app.Action = func(c *cli.Context) error {
		cfg, err = configFromContext(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{`jobbench`}, args...)))
	return cfg, err
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
system = "worker"
max_jobs = 512
producers = 2
work = "1ms"
lock_os_thread = true
`)

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFile(path, &cfg))

	want := DefaultConfig()
	want.System = systemWorkerThread
	want.MaxJobs = 512
	want.Producers = 2
	want.Work = time.Millisecond
	want.LockOSThread = true
	if diff := cmp.Diff(want, cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFile_unknownKey(t *testing.T) {
	path := writeConfig(t, `thread = 4`)
	cfg := DefaultConfig()
	err := LoadConfigFile(path, &cfg)
	require.ErrorContains(t, err, `unknown keys`)
}

func TestLoadConfigFile_missing(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), `missing.toml`), &cfg))
}

// hugeCount truncates to 1 as a uint32.
var hugeCount int64 = 1<<32 + 1

func TestConfig_Validate(t *testing.T) {
	for _, tc := range [...]struct {
		name   string
		modify func(cfg *Config)
		err    string
	}{
		{
			name:   `default`,
			modify: func(*Config) {},
		},
		{
			name:   `unknown system`,
			modify: func(cfg *Config) { cfg.System = `fiber` },
			err:    `unknown system`,
		},
		{
			name:   `no jobs`,
			modify: func(cfg *Config) { cfg.MaxJobs = 0 },
			err:    `must be positive`,
		},
		{
			name:   `no rounds`,
			modify: func(cfg *Config) { cfg.Rounds = 0 },
			err:    `must be positive`,
		},
		{
			name:   `too few barriers`,
			modify: func(cfg *Config) { cfg.MaxBarriers = cfg.Producers - 1 },
			err:    `needs a barrier`,
		},
		{
			name: `too few jobs`,
			modify: func(cfg *Config) {
				cfg.Producers = 4
				cfg.Jobs = 64
				cfg.MaxJobs = 4*65 - 1
			},
			err: `need more than`,
		},
		{
			name:   `max jobs truncated`,
			modify: func(cfg *Config) { cfg.MaxJobs = int(hugeCount) },
			err:    `must be less than`,
		},
		{
			name:   `max barriers truncated`,
			modify: func(cfg *Config) { cfg.MaxBarriers = int(hugeCount) },
			err:    `must be less than`,
		},
		{
			name:   `max jobs invalid index`,
			modify: func(cfg *Config) { cfg.MaxJobs = math.MaxUint32 },
			err:    `must be less than`,
		},
		{
			name:   `no queue`,
			modify: func(cfg *Config) { cfg.QueueLength = 0 },
			err:    `queue length`,
		},
		{
			name: `barrier too small for a round`,
			modify: func(cfg *Config) {
				cfg.BarrierCapacity = 64
				cfg.Jobs = 64
			},
			err: `cannot hold 65 jobs`,
		},
		{
			name: `round larger than the default barrier`,
			modify: func(cfg *Config) {
				cfg.Producers = 1
				cfg.Jobs = 2048
				cfg.MaxJobs = 4096
			},
		},
		{
			name: `exactly enough jobs`,
			modify: func(cfg *Config) {
				cfg.Producers = 4
				cfg.Jobs = 64
				cfg.MaxJobs = 4 * 65
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.err == `` {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tc.err)
			}
		})
	}
}

func TestConfigFromContext_defaults(t *testing.T) {
	cfg, err := parseArgs(t)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestConfigFromContext_flagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
system = "worker"
producers = 2
rounds = 7
barrier_capacity = 4096
`)

	cfg, err := parseArgs(t,
		`--config`, path,
		`--producers`, `3`,
		`--threads`, `2`,
		`--work`, `5us`,
		`--barrier-capacity`, `8192`,
		`--metrics-addr`, `127.0.0.1:0`,
	)
	require.NoError(t, err)

	want := DefaultConfig()
	want.System = systemWorkerThread
	want.Producers = 3
	want.Rounds = 7
	want.BarrierCapacity = 8192
	want.Threads = 2
	want.Work = 5 * time.Microsecond
	want.MetricsAddr = `127.0.0.1:0`
	if diff := cmp.Diff(want, cfg); diff != `` {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestConfigFromContext_invalid(t *testing.T) {
	_, err := parseArgs(t, `--system`, `fiber`)
	require.ErrorContains(t, err, `unknown system`)
}

func TestConfig_barrierCapacity(t *testing.T) {
	for _, tc := range [...]struct {
		jobs, capacity int
		want           uint32
	}{
		{jobs: 1, want: 2048},
		{jobs: 2047, want: 2048},
		{jobs: 2048, want: 4096},
		{jobs: 5000, want: 8192},
		{jobs: 5000, capacity: 16384, want: 16384},
	} {
		cfg := DefaultConfig()
		cfg.Jobs = tc.jobs
		cfg.BarrierCapacity = tc.capacity
		require.Equal(t, tc.want, cfg.barrierCapacity(), `jobs %d capacity %d`, tc.jobs, tc.capacity)
	}
}
