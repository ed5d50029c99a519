package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stackc/internal/passes"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, passes.LevelO2, cfg.Level())
	assert.Equal(t, 16, cfg.StackOptions().Reach)
	assert.Equal(t, passes.LevelO2.Tuning(), cfg.Tuning())
	assert.Equal(t, uint64(DefaultSpillBase+64), cfg.SpillSlot(2))
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
optimize = "O3"
inline_budget = 10
jobs = 4

[disable]
cse = true

[log]
verbosity = 2
`))
	require.NoError(t, err)
	assert.Equal(t, passes.LevelO3, cfg.Level())
	assert.Equal(t, 4, cfg.Jobs)
	assert.True(t, cfg.Disable["cse"])
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, passes.DefaultMaxIterations, cfg.MaxIterations, "unset keys keep their defaults")

	tuning := cfg.Tuning()
	assert.Equal(t, 10, tuning.InlineBudget)
	assert.Equal(t, passes.LevelO3.Tuning().InlineDepth, tuning.InlineDepth)
}

func TestExplicitZeroDisablesInlining(t *testing.T) {
	cfg, err := Parse([]byte("inline_budget = 0\n"))
	require.NoError(t, err)
	tuning := cfg.Tuning()
	assert.Equal(t, 0, tuning.InlineBudget)
	assert.Equal(t, passes.LevelO2.Tuning().InlineDepth, tuning.InlineDepth)
	assert.Equal(t, passes.LevelO2.Tuning().InlineMaxGrowth, tuning.InlineMaxGrowth)

	cfg, err = Parse([]byte("inline_max_growth = 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Tuning().InlineMaxGrowth, "0 lifts the growth cap")
	assert.Equal(t, passes.LevelO2.Tuning().InlineBudget, cfg.Tuning().InlineBudget)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"level":      `optimize = "O9"`,
		"iterations": `max_iterations = 0`,
		"reach":      `stack_reach = 17`,
		"limit":      `stack_limit = 4`,
		"spill":      `spill_base = 33`,
		"jobs":       `jobs = 0`,
		"inline":     `inline_depth = -1`,
		"switch":     "[disable]\nfrobnicate = true",
		"syntax":     `optimize = `,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadAndFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	path := filepath.Join(root, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("optimize = \"Os\"\n"), 0o644))

	found := FindConfigFile(nested)
	assert.Equal(t, path, found)

	cfg, err := Load(found)
	require.NoError(t, err)
	assert.Equal(t, passes.LevelOs, cfg.Level())

	_, err = Load(filepath.Join(root, "missing.toml"))
	assert.Error(t, err)
}
