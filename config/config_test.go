package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/allocator/simplex"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.22, cfg.TargetVolatility)
	assert.Equal(t, simplex.DefaultTolerance, cfg.Solver.Tolerance)
	assert.Equal(t, simplex.DefaultIterationFactor, cfg.Solver.IterationFactor)
	assert.Equal(t, 10, cfg.Frontier.Steps)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Len(t, cfg.SolverOptions(), 2)
}

func TestLoad_NilFlagSet(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allocator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
target_volatility: 0.25
solver:
  iteration_factor: 5
frontier:
  steps: 4
server:
  addr: ":9000"
`), 0o644))
	t.Setenv("ALLOCATOR_FRONTIER_STEPS", "6")
	t.Setenv("ALLOCATOR_SERVER_ADDR", ":9100")

	cfg, err := Load(flags(t, "--config", path, "--addr", ":9200", "--iteration-limit", "50"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.TargetVolatility)
	assert.Equal(t, 5, cfg.Solver.IterationFactor)
	assert.Equal(t, 6, cfg.Frontier.Steps)
	assert.Equal(t, ":9200", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Solver.IterationLimit)
	assert.Len(t, cfg.SolverOptions(), 3)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			TargetVolatility: 0.2,
			Solver:           SolverConfig{Tolerance: 1e-9, IterationFactor: 20},
			Frontier:         FrontierConfig{Steps: 10},
			Server:           ServerConfig{Addr: ":8080"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "negative target", mutate: func(c *Config) { c.TargetVolatility = -1 }},
		{name: "zero tolerance", mutate: func(c *Config) { c.Solver.Tolerance = 0 }},
		{name: "tolerance of one", mutate: func(c *Config) { c.Solver.Tolerance = 1 }},
		{name: "zero iteration factor", mutate: func(c *Config) { c.Solver.IterationFactor = 0 }},
		{name: "negative iteration limit", mutate: func(c *Config) { c.Solver.IterationLimit = -1 }},
		{name: "zero steps", mutate: func(c *Config) { c.Frontier.Steps = 0 }},
		{name: "negative workers", mutate: func(c *Config) { c.Frontier.Workers = -2 }},
		{name: "empty address", mutate: func(c *Config) { c.Server.Addr = "" }},
	}

	c := valid()
	require.NoError(t, c.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_InvalidFlag(t *testing.T) {
	_, err := Load(flags(t, "--target-volatility", "-0.5"))
	assert.Error(t, err)
}
