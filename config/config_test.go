package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRelative(t *testing.T) {
	path := writeConfig(t, `
data_original: data/original
data_train: data/train
data_eval: data/eval
output: output
debug: true
`)
	env, err := Load(path)
	require.NoError(t, err)
	base := filepath.Dir(path)
	assert.Equal(t, filepath.Join(base, "data", "original"), env.DataOriginal)
	assert.Equal(t, filepath.Join(base, "data", "train"), env.DataTrain)
	assert.Equal(t, filepath.Join(base, "data", "eval"), env.DataEval)
	assert.Equal(t, filepath.Join(base, "output"), env.Output)
	assert.True(t, env.Debug)
	assert.False(t, env.Verbose)
}

func TestLoadAbsoluteWithS3(t *testing.T) {
	path := writeConfig(t, `
data_original: s3://corpus/original
data_train: /srv/train
data_eval: /srv/eval
output: /srv/output
`)
	env, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://corpus/original", env.DataOriginal)
	assert.Equal(t, "/srv/train", env.DataTrain)
	assert.Equal(t, "/srv/output", env.Output)
}

func TestLoadMixedPaths(t *testing.T) {
	path := writeConfig(t, `
data_original: /srv/original
data_train: train
data_eval: /srv/eval
output: /srv/output
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMixedPaths)
}

func TestLoadMissingDirectory(t *testing.T) {
	path := writeConfig(t, `
data_original: original
data_train: train
output: output
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "must all be set")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
data_original: original
data_train: train
data_eval: eval
output: output
`)
	t.Setenv(EnvPrefix+"DATA_EVAL", "eval_small")
	t.Setenv(EnvPrefix+"VERBOSE", "true")
	env, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "eval_small"),
		env.DataEval)
	assert.True(t, env.Verbose)

	t.Setenv(EnvPrefix+"DEBUG", "sometimes")
	_, err = Load(path)
	assert.ErrorContains(t, err, EnvPrefix+"DEBUG")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "data_train: [unterminated\n"))
	assert.ErrorContains(t, err, "parsing")
}
