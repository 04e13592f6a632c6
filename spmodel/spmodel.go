// Package spmodel post-processes trained SentencePiece models: it reserves
// whitespace-run special tokens and exports vocabularies.
package spmodel

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

const (
	ModelFileName = "model.model"
	VocabFileName = "model.vocab"

	// CopySuffix is appended to a model directory when special tokens are
	// added to a copy instead of in place.
	CopySuffix = "___MST"

	// WordBoundary is SentencePiece's whitespace marker.
	WordBoundary = "▁"

	minSpecialRun = 2
	maxSpecialRun = 24
)

// SpecialTokens returns the whitespace-run specials, "▁▁" through 24
// consecutive "▁".
func SpecialTokens() []string {
	specials := make([]string, 0, maxSpecialRun-minSpecialRun+1)
	for i := minSpecialRun; i <= maxSpecialRun; i++ {
		specials = append(specials, strings.Repeat(WordBoundary, i))
	}
	return specials
}

// Load reads a serialized SentencePiece model.
func Load(path string) (*sentencepiece.ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var model sentencepiece.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return &model, nil
}

// Save serializes model to path.
func Save(model *sentencepiece.ModelProto, path string) error {
	data, err := proto.Marshal(model)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// UnknownID returns the index of the model's unknown piece, or -1.
func UnknownID(model *sentencepiece.ModelProto) int {
	for idx, piece := range model.GetPieces() {
		if piece.GetType() == sentencepiece.ModelProto_SentencePiece_UNKNOWN {
			return idx
		}
	}
	return -1
}

// AddSpecialTokens
// Appends the whitespace-run specials to model with a score just below the
// lowest learned score. Learned pieces that happen to equal a special are
// renamed UNPRIORITIZED_<n> and pushed below the specials, so the specials
// can never be produced by them. Returns the number of renamed pieces.
func AddSpecialTokens(model *sentencepiece.ModelProto) (int, error) {
	pieces := model.GetPieces()
	if len(pieces) == 0 {
		return 0, fmt.Errorf("model has no pieces")
	}
	lowestScore := pieces[len(pieces)-1].GetScore()

	specials := SpecialTokens()
	isSpecial := make(map[string]bool, len(specials))
	for _, special := range specials {
		isSpecial[special] = true
	}

	unprioritized := 0
	for _, piece := range pieces {
		if !isSpecial[piece.GetPiece()] {
			continue
		}
		piece.Piece = proto.String(fmt.Sprintf("UNPRIORITIZED_%d",
			unprioritized))
		piece.Score = proto.Float32(lowestScore - 2)
		unprioritized++
	}

	for _, special := range specials {
		model.Pieces = append(model.Pieces,
			&sentencepiece.ModelProto_SentencePiece{
				Piece: proto.String(special),
				Score: proto.Float32(lowestScore - 1),
			})
	}
	return unprioritized, nil
}

// AddSpecialTokensDir
// Applies AddSpecialTokens to `<modelDir>/model.model` and appends the
// specials to `model.vocab`. With overwrite unset, the result goes to
// `<modelDir>___MST` and the original is left untouched. Returns the
// directory holding the updated model.
func AddSpecialTokensDir(modelDir string, overwrite bool,
	logger *log.Logger) (string, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	model, err := Load(filepath.Join(modelDir, ModelFileName))
	if err != nil {
		return "", err
	}
	lowestScore := float32(0)
	if pieces := model.GetPieces(); len(pieces) > 0 {
		lowestScore = pieces[len(pieces)-1].GetScore()
	}
	unprioritized, err := AddSpecialTokens(model)
	if err != nil {
		return "", fmt.Errorf("%s: %w", modelDir, err)
	}
	logger.Printf("> unprioritized %d accidental special tokens",
		unprioritized)

	newDir := modelDir
	if !overwrite {
		newDir = modelDir + CopySuffix
	}
	if err := os.MkdirAll(newDir, 0755); err != nil {
		return "", err
	}
	if err := Save(model, filepath.Join(newDir, ModelFileName)); err != nil {
		return "", err
	}
	logger.Printf("> wrote new model to %s",
		filepath.Join(newDir, ModelFileName))

	vocabPath := filepath.Join(modelDir, VocabFileName)
	newVocabPath := filepath.Join(newDir, VocabFileName)
	if !overwrite {
		if err := copyFile(vocabPath, newVocabPath); err != nil {
			return "", err
		}
	}
	if err := AppendVocab(newVocabPath, SpecialTokens(),
		int(lowestScore-1)); err != nil {
		return "", err
	}
	logger.Printf("> added %d pieces with score = %v",
		len(SpecialTokens()), lowestScore-1)
	return newDir, nil
}

// AppendVocab appends `<piece>\t<score>` lines to a SentencePiece vocab
// file.
func AppendVocab(path string, pieces []string, score int) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE,
		0644)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	for _, piece := range pieces {
		if _, err := fmt.Fprintf(writer, "%s\t%d\n", piece, score); err != nil {
			file.Close()
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
