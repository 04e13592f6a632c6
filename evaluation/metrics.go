package evaluation

import (
	"strings"
	"unicode/utf8"
)

// Counts
// Raw tallies accumulated over an evaluation corpus. A subword is a word
// start when it carries the tokenizer's WordPrefix, otherwise it continues
// a word.
type Counts struct {
	Documents           int
	Unknown             int
	Subwords            int
	Characters          int
	WordStarts          int
	WordContinuations   int
	ProportionStarts    int
	ProportionInteriors int
	Frequencies         map[int]int
}

func NewCounts() *Counts {
	return &Counts{Frequencies: make(map[int]int)}
}

// Add tallies the encoding of one document.
func (c *Counts) Add(text string, pieces []Piece, unknownID int,
	wordPrefix string) {
	c.Documents++
	c.Subwords += len(pieces)
	c.Characters += utf8.RuneCountInString(text)

	previousStart := false
	for idx, piece := range pieces {
		c.Frequencies[piece.ID]++
		if piece.ID == unknownID {
			c.Unknown++
		}
		start := strings.HasPrefix(piece.Text, wordPrefix)
		if start {
			c.WordStarts++
			c.ProportionStarts++
		} else {
			c.WordContinuations++
			// Only the first continuation of each word counts, plus a
			// leading continuation at the start of the document.
			if idx == 0 || previousStart {
				c.ProportionInteriors++
			}
		}
		previousStart = start
	}
}

// Metrics are the evaluation results. A ratio whose denominator is zero is
// reported as -1.
type Metrics struct {
	UnkRate          float64     `json:"unk_rate"`
	Ctcl             float64     `json:"ctcl"`
	Fertility        float64     `json:"fertility"`
	Proportion       float64     `json:"proportion"`
	TokenFrequencies map[int]int `json:"token_frequencies"`
}

// Ratio divides nominator by denominator, or returns -1 when denominator
// is zero.
func Ratio(nominator, denominator int) float64 {
	if denominator == 0 {
		return -1
	}
	return float64(nominator) / float64(denominator)
}

// Metrics derives the evaluation metrics from the tallies.
func (c *Counts) Metrics() *Metrics {
	frequencies := make(map[int]int, len(c.Frequencies))
	for id, count := range c.Frequencies {
		frequencies[id] = count
	}
	return &Metrics{
		UnkRate:          Ratio(c.Unknown, c.Subwords),
		Ctcl:             Ratio(c.Subwords, c.Characters),
		Fertility:        Ratio(c.WordStarts+c.WordContinuations, c.WordStarts),
		Proportion:       Ratio(c.ProportionInteriors, c.ProportionStarts),
		TokenFrequencies: frequencies,
	}
}

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// StripPunctuation removes ASCII punctuation from text.
func StripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, text)
}
