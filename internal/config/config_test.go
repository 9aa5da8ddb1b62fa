package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreeworkEarth/neodepends/internal/lang"
	"github.com/FreeworkEarth/neodepends/internal/resolution"
	"github.com/FreeworkEarth/neodepends/internal/stackgraph"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "neodepends.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
db: deps.db
mode: use-only
languages: [python, java]
parallel: 3
stitch:
  max_stack_depth: 8
overrides:
  not_implemented_is_abstract: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deps.db", cfg.DB)
	assert.Equal(t, 3, cfg.Parallel)
	assert.True(t, cfg.Overrides.NotImplementedIsAbstract)
	assert.False(t, cfg.Overrides.InferExtends)
	assert.Equal(t, 8, cfg.Stitch.MaxStackDepth)
	assert.Equal(t, stackgraph.DefaultConfig().MaxWork, cfg.Stitch.MaxWork)

	mode, err := cfg.ClassifyMode()
	require.NoError(t, err)
	assert.Equal(t, resolution.UseOnly, mode)
	langs, err := cfg.Langs()
	require.NoError(t, err)
	assert.Equal(t, []lang.Lang{lang.Python, lang.Java}, langs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db: file.db\nmode: use-only\n")
	t.Setenv("NEODEPENDS_DB", "env.db")
	t.Setenv("NEODEPENDS_MODE", "ast")
	t.Setenv("NEODEPENDS_LANGUAGES", "java, python,")
	t.Setenv("NEODEPENDS_PARALLEL", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.DB)
	assert.Equal(t, "ast", cfg.Mode)
	assert.Equal(t, []string{"java", "python"}, cfg.Languages)
	assert.Equal(t, 2, cfg.Parallel)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "mode: fast\n"))
	assert.ErrorContains(t, err, "classify mode")

	_, err = Load(writeConfig(t, "languages: [cobol]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "db: [unterminated\n"))
	assert.Error(t, err)

	t.Setenv("NEODEPENDS_PARALLEL", "many")
	_, err = Load(writeConfig(t, "db: x.db\n"))
	assert.ErrorContains(t, err, "NEODEPENDS_PARALLEL")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,,b "))
	assert.Empty(t, SplitList(""))
}
