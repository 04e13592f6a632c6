package spmodel

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// Vocab maps a piece to its index in the model.
type Vocab map[string]int

// ExtractVocab
// Builds the piece->index vocabulary of model. Byte-fallback pieces such
// as `<0x0A>` are decoded to their byte. When two pieces share a
// representation the first index wins.
func ExtractVocab(model *sentencepiece.ModelProto) Vocab {
	vocab := make(Vocab, len(model.GetPieces()))
	for idx, piece := range model.GetPieces() {
		repr := piece.GetPiece()
		if piece.GetType() == sentencepiece.ModelProto_SentencePiece_BYTE &&
			len(repr) == 6 && strings.HasPrefix(repr, "<0x") {
			if decoded, err := hex.DecodeString(repr[3:5]); err == nil {
				repr = string(decoded)
			}
		}
		if _, dup := vocab[repr]; dup {
			continue
		}
		vocab[repr] = idx
	}
	return vocab
}

// SubwordLengths
// A histogram of piece lengths in runes, with the mean length and the
// vocabulary size.
type SubwordLengths struct {
	Counts    map[int]int
	Mean      float64
	VocabSize int
}

// AnalyzeVocab computes the SubwordLengths of vocab.
func AnalyzeVocab(vocab Vocab) SubwordLengths {
	lengths := SubwordLengths{Counts: make(map[int]int),
		VocabSize: len(vocab)}
	total := 0
	for piece := range vocab {
		n := utf8.RuneCountInString(piece)
		lengths.Counts[n]++
		total += n
	}
	if len(vocab) > 0 {
		lengths.Mean = float64(total) / float64(len(vocab))
	}
	return lengths
}

// MarshalJSON flattens the histogram next to `mean` and `vocab_size`.
func (sl SubwordLengths) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(sl.Counts)+2)
	for length, count := range sl.Counts {
		flat[strconv.Itoa(length)] = count
	}
	flat["mean"] = sl.Mean
	flat["vocab_size"] = sl.VocabSize
	return json.Marshal(flat)
}

// WriteVocabFiles
// Writes `<prefix>_vocab.json` and `<prefix>_subword_lengths.json` for the
// model at modelPath. Returns the two paths.
func WriteVocabFiles(modelPath, prefix string) (string, string, error) {
	model, err := Load(modelPath)
	if err != nil {
		return "", "", err
	}
	vocab := ExtractVocab(model)
	vocabPath := prefix + "_vocab.json"
	if err := writeJSON(vocabPath, vocab); err != nil {
		return "", "", err
	}
	lengthsPath := prefix + "_subword_lengths.json"
	if err := writeJSON(lengthsPath, AnalyzeVocab(vocab)); err != nil {
		return "", "", err
	}
	return vocabPath, lengthsPath, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
