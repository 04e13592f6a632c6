package bpe_corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// WeightsFileName is the default name of the sampling weight table.
const WeightsFileName = "SAMPLING_WEIGHTS.csv"

// Weights
// The sampling weight table. The header row lists languages after a
// leading cell; each following row is a category followed by one weight
// per language. Percent scales every weight for a run.
type Weights struct {
	Categories []string
	Languages  []string
	Raw        map[string]map[string]float64
	Percent    int
}

// ReadSamplingWeights opens and parses a weight table file.
func ReadSamplingWeights(path string, percent int) (*Weights, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	weights, err := ParseSamplingWeights(file, percent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return weights, nil
}

// ParseSamplingWeights
// Parses a CSV weight table. Weights must lie in [0, 1] and percent in
// [0, 100].
func ParseSamplingWeights(r io.Reader, percent int) (*Weights, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: percent %d out of the 0-100 bounds",
			ErrInvalidArgument, percent)
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	weights := &Weights{
		Raw:     make(map[string]map[string]float64),
		Percent: percent,
	}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		if row == 0 {
			if len(record) < 2 {
				return nil, fmt.Errorf(
					"%w: header row needs at least one language",
					ErrInvalidArgument)
			}
			for _, language := range record[1:] {
				weights.Languages = append(weights.Languages,
					strings.TrimSpace(language))
			}
			continue
		}
		category := strings.TrimSpace(record[0])
		if _, dup := weights.Raw[category]; dup {
			return nil, fmt.Errorf("%w: category %q listed twice",
				ErrInvalidArgument, category)
		}
		byLanguage := make(map[string]float64, len(weights.Languages))
		for langIdx, language := range weights.Languages {
			cell := strings.TrimSpace(record[langIdx+1])
			weight, parseErr := strconv.ParseFloat(cell, 64)
			if parseErr != nil {
				return nil, fmt.Errorf("%w: weight %q for %s_%s: %v",
					ErrInvalidArgument, cell, category, language, parseErr)
			}
			if weight < 0 || weight > 1 || math.IsNaN(weight) {
				return nil, fmt.Errorf("%w: weight %v for %s_%s",
					ErrInvalidArgument, weight, category, language)
			}
			byLanguage[language] = weight
		}
		weights.Categories = append(weights.Categories, category)
		weights.Raw[category] = byLanguage
	}
	if len(weights.Languages) == 0 {
		return nil, fmt.Errorf("%w: empty weight table", ErrInvalidArgument)
	}
	return weights, nil
}

// Keys returns every (category, language) pair in table order, categories
// outermost.
func (w *Weights) Keys() []SampleKey {
	keys := make([]SampleKey, 0, len(w.Categories)*len(w.Languages))
	for _, category := range w.Categories {
		for _, language := range w.Languages {
			keys = append(keys, SampleKey{category, language})
		}
	}
	return keys
}

// Weight returns the percent-scaled weight for key, zero if unknown.
func (w *Weights) Weight(key SampleKey) float64 {
	return w.Raw[key.Category][key.Language] * float64(w.Percent) / 100
}
