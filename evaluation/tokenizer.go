// Package evaluation replays a trained tokenizer over held-out text and
// computes the unknown-token rate, closeness to character level,
// fertility and word continuation proportion.
package evaluation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"github.com/wbrown/gpt_bpe"

	"github.com/wbrown/bpe_corpus/spmodel"
)

const decodeCacheSz = 65536

// Piece is one encoded subword.
type Piece struct {
	ID   int
	Text string
}

// Tokenizer
// An encoder under evaluation. WordPrefix is the marker a subword starts
// with when it begins a new word, e.g. "▁" for SentencePiece.
type Tokenizer interface {
	Name() string
	Encode(text string) ([]Piece, error)
	UnknownID() int
	WordPrefix() string
}

// LoadTokenizer
// Opens the tokenizer at location. A directory holding `model.model` is a
// SentencePiece model; anything else is handed to gpt_bpe as a vocabulary
// id, Hugging Face id or tokenizer directory.
func LoadTokenizer(location string) (Tokenizer, error) {
	modelPath := filepath.Join(location, spmodel.ModelFileName)
	if _, err := os.Stat(modelPath); err == nil {
		return NewSentencePieceTokenizer(modelPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return NewGPTTokenizer(location)
}

// GPTTokenizer wraps a gpt_bpe byte-level BPE encoder.
type GPTTokenizer struct {
	name    string
	encoder *gpt_bpe.GPTEncoder
	decoded *lru.ARCCache
}

func NewGPTTokenizer(vocabId string) (*GPTTokenizer, error) {
	encoder, err := gpt_bpe.NewEncoder(vocabId)
	if err != nil {
		return nil, fmt.Errorf("loading gpt_bpe vocabulary %s: %w", vocabId,
			err)
	}
	cache, err := lru.NewARC(decodeCacheSz)
	if err != nil {
		return nil, err
	}
	return &GPTTokenizer{name: vocabId, encoder: encoder, decoded: cache}, nil
}

func (t *GPTTokenizer) Name() string { return t.name }

// Encode tokenizes text; each piece carries its decoded surface form.
func (t *GPTTokenizer) Encode(text string) ([]Piece, error) {
	tokens := t.encoder.Encode(&text)
	if tokens == nil {
		return nil, nil
	}
	pieces := make([]Piece, 0, len(*tokens))
	for _, token := range *tokens {
		pieces = append(pieces, Piece{ID: int(token), Text: t.decode(token)})
	}
	return pieces, nil
}

func (t *GPTTokenizer) decode(token gpt_bpe.Token) string {
	if cached, ok := t.decoded.Get(token); ok {
		return cached.(string)
	}
	text := t.encoder.Decode(&gpt_bpe.Tokens{token})
	t.decoded.Add(token, text)
	return text
}

// UnknownID is -1. Byte-level BPE never emits an unknown token, so an
// unk_rate of 0 for a gpt_bpe tokenizer is a real measurement.
func (t *GPTTokenizer) UnknownID() int { return -1 }

// WordPrefix is the decoded form of "Ġ".
func (t *GPTTokenizer) WordPrefix() string { return " " }

// SentencePieceTokenizer wraps a SentencePiece unigram/BPE model file.
type SentencePieceTokenizer struct {
	path      string
	sp        sentencepiece.Sentencepiece
	unknownID int
}

func NewSentencePieceTokenizer(
	modelPath string,
) (*SentencePieceTokenizer, error) {
	sp, err := sentencepiece.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("loading sentencepiece model %s: %w",
			modelPath, err)
	}
	model, err := spmodel.Load(modelPath)
	if err != nil {
		return nil, err
	}
	return &SentencePieceTokenizer{
		path:      modelPath,
		sp:        sp,
		unknownID: spmodel.UnknownID(model),
	}, nil
}

func (t *SentencePieceTokenizer) Name() string { return t.path }

func (t *SentencePieceTokenizer) Encode(text string) ([]Piece, error) {
	tokens := t.sp.Tokenize(text)
	pieces := make([]Piece, 0, len(tokens))
	for _, token := range tokens {
		pieces = append(pieces, Piece{ID: int(token.ID), Text: token.Text})
	}
	return pieces, nil
}

func (t *SentencePieceTokenizer) UnknownID() int { return t.unknownID }

func (t *SentencePieceTokenizer) WordPrefix() string {
	return spmodel.WordBoundary
}
