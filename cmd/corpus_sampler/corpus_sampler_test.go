package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/bpe_corpus"
	"github.com/wbrown/bpe_corpus/evaluation"
)

const testEnv = `data_original: data/original
data_train: data/train
data_eval: data/eval
output: output
`

const testWeights = `,en,de
articles,0.4,0.4
books,0.2,0
`

// newWorkspace lays out env.yaml, the weight table and 50 documents per
// original data file.
func newWorkspace(t *testing.T) (configPath, weightsPath string) {
	t.Helper()
	root := t.TempDir()
	original := filepath.Join(root, "data", "original")
	require.NoError(t, os.MkdirAll(original, 0755))
	for _, name := range []string{"articles_en.jsonl", "articles_de.jsonl",
		"books_en.jsonl"} {
		var sb strings.Builder
		for i := 0; i < 50; i++ {
			fmt.Fprintf(&sb, "{\"text\": \"%s document number %d\"}\n",
				strings.TrimSuffix(name, ".jsonl"), i)
		}
		require.NoError(t, os.WriteFile(filepath.Join(original, name),
			[]byte(sb.String()), 0644))
	}
	configPath = filepath.Join(root, "env.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testEnv), 0644))
	weightsPath = filepath.Join(root, bpe_corpus.WeightsFileName)
	require.NoError(t, os.WriteFile(weightsPath, []byte(testWeights), 0644))
	return configPath, weightsPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String() + errOut.String(), err
}

func TestSampleVerifyEvaluate(t *testing.T) {
	configPath, weightsPath := newWorkspace(t)
	root := filepath.Dir(configPath)

	_, err := execute(t, "sample", "--config", configPath,
		"--weights", weightsPath, "--percent", "100", "--parallel", "2")
	require.NoError(t, err)
	train, err := bpe_corpus.LoadSplitIndex(filepath.Join(root, "data",
		"train"))
	require.NoError(t, err)
	assert.Len(t, train["articles_en.jsonl"], 20)
	assert.Len(t, train["books_en.jsonl"], 10)
	assert.NotContains(t, train, "books_de.jsonl")

	logData, err := os.ReadFile(filepath.Join(root, "data", "train",
		bpe_corpus.SamplingLogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "> PERCENT = 100")
	assert.Contains(t, string(logData),
		"category = books, language = de, weight = 0 .. skipped")

	_, err = execute(t, "sample", "--config", configPath,
		"--weights", weightsPath, "--percent", "50", "--evaluation")
	require.NoError(t, err)
	evalDir := filepath.Join(root, "data", "eval")
	eval, err := bpe_corpus.LoadSplitIndex(evalDir)
	require.NoError(t, err)
	assert.Len(t, eval["articles_de.jsonl"], 10)
	for _, language := range []string{"en", "de"} {
		_, statErr := os.Stat(filepath.Join(evalDir,
			bpe_corpus.ConcatenatedFileName(language)))
		assert.NoError(t, statErr)
	}

	out, err := execute(t, "verify", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "disjoint for all keys")

	out, err = execute(t, "evaluate", "gpt2-tokenizer",
		"--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "all_en")
	results, err := os.ReadFile(filepath.Join(root, "output",
		evaluation.ResultsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(results), "\"all_de\"")
}

func TestSampleEvalWithoutTrain(t *testing.T) {
	configPath, weightsPath := newWorkspace(t)
	_, err := execute(t, "sample", "--config", configPath,
		"--weights", weightsPath, "--evaluation")
	assert.ErrorIs(t, err, bpe_corpus.ErrMissingPrerequisite)
}

func TestVerifyExitCodes(t *testing.T) {
	configPath, _ := newWorkspace(t)
	root := filepath.Dir(configPath)
	trainDir := filepath.Join(root, "data", "train")
	evalDir := filepath.Join(root, "data", "eval")

	train := bpe_corpus.IndexMap{"articles_en.jsonl": {1, 2}}
	require.NoError(t, train.Write(filepath.Join(trainDir,
		bpe_corpus.IndexFileName)))
	conflicting := bpe_corpus.IndexMap{"articles_en.jsonl": {2, 3}}
	require.NoError(t, conflicting.Write(filepath.Join(evalDir,
		bpe_corpus.IndexFileName)))

	_, err := execute(t, "verify", "--config", configPath)
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
	assert.ErrorIs(t, err, bpe_corpus.ErrConflictDetected)

	mismatched := bpe_corpus.IndexMap{"articles_de.jsonl": {0}}
	require.NoError(t, mismatched.Write(filepath.Join(evalDir,
		bpe_corpus.IndexFileName)))
	out, err := execute(t, "verify", "--config", configPath)
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.code)
	assert.Contains(t, out, "train only")
}

func TestConcatCommand(t *testing.T) {
	configPath, _ := newWorkspace(t)
	original := filepath.Join(filepath.Dir(configPath), "data", "original")
	_, err := execute(t, "concat", original)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(
		original+"_CONCATENATED_BY_LANGUAGE", "all_en.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 100, strings.Count(string(data), "\n"))
}
