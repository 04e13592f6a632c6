package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yargevad/filepathx"

	"github.com/wbrown/bpe_corpus"
)

// ResultsFileName is written into the tokenizer directory by
// EvaluateAll.
const ResultsFileName = "evaluation.json"

// Options control how documents are fed to the tokenizer.
type Options struct {
	// StripPunctuation removes ASCII punctuation before encoding.
	StripPunctuation bool
	// MaxDocuments stops after this many documents; zero means all.
	MaxDocuments int
}

// DefaultOptions strips punctuation and reads every document.
func DefaultOptions() Options {
	return Options{StripPunctuation: true}
}

type document struct {
	Text string `json:"text"`
}

// Evaluate
// Reads JSONL documents from r, encodes each document's `text` with tok
// and tallies the results.
func Evaluate(tok Tokenizer, r io.Reader, opts Options) (*Counts, error) {
	counts := NewCounts()
	next := bpe_corpus.LineIterator(r)
	for lineIdx := 0; ; lineIdx++ {
		if opts.MaxDocuments > 0 && counts.Documents >= opts.MaxDocuments {
			break
		}
		line, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineIdx, err)
		}
		text := doc.Text
		if opts.StripPunctuation {
			text = StripPunctuation(text)
		}
		pieces, err := tok.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineIdx, err)
		}
		counts.Add(text, pieces, tok.UnknownID(), tok.WordPrefix())
	}
	return counts, nil
}

// EvaluateFile evaluates tok on one JSONL file.
func EvaluateFile(tok Tokenizer, path string,
	opts Options) (*Counts, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Evaluate(tok, file, opts)
}

// Results maps an evaluation dataset name, e.g. `all_en`, to its metrics.
type Results map[string]*Metrics

// Datasets returns the dataset names in sorted order.
func (r Results) Datasets() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write serializes the results as JSON.
func (r Results) Write(path string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EvaluateAll
// Evaluates tok on every concatenated `all_<language>.jsonl` file under
// evalDir.
func EvaluateAll(tok Tokenizer, evalDir string, opts Options,
	logger *log.Logger) (Results, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	matches, err := filepathx.Glob(filepath.Join(evalDir, "**",
		bpe_corpus.ConcatenatedPrefix+"*.jsonl"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s does not contain any %s*.jsonl files",
			evalDir, bpe_corpus.ConcatenatedPrefix)
	}
	sort.Strings(matches)
	results := make(Results, len(matches))
	for _, path := range matches {
		begin := time.Now()
		counts, evalErr := EvaluateFile(tok, path, opts)
		if evalErr != nil {
			return nil, fmt.Errorf("evaluating %s on %s: %w", tok.Name(),
				path, evalErr)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		results[name] = counts.Metrics()
		logger.Printf("> %s: %d documents, %d subwords, %d characters "+
			"[time = %.2fs]", name, counts.Documents, counts.Subwords,
			counts.Characters, time.Since(begin).Seconds())
	}
	return results, nil
}
