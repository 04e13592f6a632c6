package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTokenizer returns canned encodings keyed by the exact input text.
type scriptedTokenizer map[string][]Piece

func (s scriptedTokenizer) Name() string { return "scripted" }

func (s scriptedTokenizer) Encode(text string) ([]Piece, error) {
	pieces, ok := s[text]
	if !ok {
		return nil, fmt.Errorf("no encoding scripted for %q", text)
	}
	return pieces, nil
}

func (s scriptedTokenizer) UnknownID() int { return 0 }

func (s scriptedTokenizer) WordPrefix() string { return "▁" }

var scripted = scriptedTokenizer{
	"ab cd": {{1, "▁a"}, {2, "b"}, {3, "▁cd"}},
	"xyz":   {{0, "x"}, {5, "yz"}},
}

const scriptedDocs = `{"text": "ab, cd!"}

{"text": "xyz"}
`

func TestEvaluate(t *testing.T) {
	counts, err := Evaluate(scripted, strings.NewReader(scriptedDocs),
		DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Documents)
	metrics := counts.Metrics()
	assert.InDelta(t, 0.2, metrics.UnkRate, 1e-12)
	assert.InDelta(t, 0.625, metrics.Ctcl, 1e-12)
	assert.InDelta(t, 2.5, metrics.Fertility, 1e-12)
	assert.InDelta(t, 1.0, metrics.Proportion, 1e-12)
}

func TestEvaluateKeepPunctuation(t *testing.T) {
	_, err := Evaluate(scripted, strings.NewReader(scriptedDocs),
		Options{StripPunctuation: false})
	assert.ErrorContains(t, err, `no encoding scripted for "ab, cd!"`)
}

func TestEvaluateMaxDocuments(t *testing.T) {
	counts, err := Evaluate(scripted, strings.NewReader(scriptedDocs),
		Options{StripPunctuation: true, MaxDocuments: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Documents)
	assert.Equal(t, 3, counts.Subwords)
}

func TestEvaluateMalformedLine(t *testing.T) {
	_, err := Evaluate(scripted, strings.NewReader("{\"text\": \"xyz\"}\n{\n"),
		DefaultOptions())
	assert.ErrorContains(t, err, "line 1")
}

func TestEvaluateAll(t *testing.T) {
	evalDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(evalDir, "nested"), 0755))
	files := map[string]string{
		"all_en.jsonl":          scriptedDocs,
		"nested/all_de.jsonl":   "{\"text\": \"xyz\"}\n",
		"articles_en.jsonl":     "{\"text\": \"never read\"}\n",
		"nested/books_de.jsonl": "{\"text\": \"never read\"}\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(evalDir, name),
			[]byte(content), 0644))
	}

	results, err := EvaluateAll(scripted, evalDir, DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"all_de", "all_en"}, results.Datasets())
	assert.InDelta(t, 0.5, results["all_de"].UnkRate, 1e-12)
	assert.Equal(t, -1.0, results["all_de"].Fertility)

	path := filepath.Join(t.TempDir(), ResultsFileName)
	require.NoError(t, results.Write(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "all_en")
	for _, field := range []string{"unk_rate", "ctcl", "fertility",
		"proportion", "token_frequencies"} {
		assert.Contains(t, decoded["all_en"], field)
	}
}

func TestEvaluateAllEmpty(t *testing.T) {
	_, err := EvaluateAll(scripted, t.TempDir(), DefaultOptions(), nil)
	assert.ErrorContains(t, err, "does not contain any all_*.jsonl files")
}

func TestGPTTokenizer(t *testing.T) {
	tokenizer, err := LoadTokenizer("gpt2-tokenizer")
	require.NoError(t, err)
	require.IsType(t, &GPTTokenizer{}, tokenizer)

	text := "hello world, hello again"
	pieces, err := tokenizer.Encode(text)
	require.NoError(t, err)
	require.NotEmpty(t, pieces)
	var sb strings.Builder
	for _, piece := range pieces {
		sb.WriteString(piece.Text)
	}
	assert.Equal(t, text, sb.String())

	counts := NewCounts()
	counts.Add(text, pieces, tokenizer.UnknownID(), tokenizer.WordPrefix())
	assert.Zero(t, counts.Unknown)
	assert.Equal(t, 0.0, counts.Metrics().UnkRate)
	assert.Equal(t, 3, counts.WordStarts)
}
