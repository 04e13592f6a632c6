package bpe_corpus

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yargevad/filepathx"
)

// ConcatenatedPrefix marks the per-language files produced by
// ConcatenateByLanguage.
const ConcatenatedPrefix = "all_"

// ConcatenatedFileName returns `all_<language>.jsonl`.
func ConcatenatedFileName(language string) string {
	return ConcatenatedPrefix + language + dataFileExt
}

// ConcatenateByLanguage
// Appends every `<category>_<language>.jsonl` in dir into
// `<outDir>/all_<language>.jsonl`, one output per language, in file name
// order. Existing `all_` files are never used as inputs. Returns the
// written paths keyed by language.
func ConcatenateByLanguage(dir, outDir string,
	logger *log.Logger) (map[string]string, error) {
	matches, err := filepathx.Glob(filepath.Join(dir, "*"+dataFileExt))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	byLanguage := make(map[string][]string)
	for _, match := range matches {
		name := filepath.Base(match)
		if strings.HasPrefix(name, ConcatenatedPrefix) {
			continue
		}
		key, keyErr := ParseSampleKey(name)
		if keyErr != nil {
			logger.Printf("skipping %s: %v", match, keyErr)
			continue
		}
		byLanguage[key.Language] = append(byLanguage[key.Language], match)
	}
	if len(byLanguage) == 0 {
		return nil, fmt.Errorf("%s does not contain any %s files", dir,
			dataFileExt)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	languages := make([]string, 0, len(byLanguage))
	for language := range byLanguage {
		languages = append(languages, language)
	}
	sort.Strings(languages)

	written := make(map[string]string, len(languages))
	for _, language := range languages {
		inputs := byLanguage[language]
		sort.Strings(inputs)
		outPath := filepath.Join(outDir, ConcatenatedFileName(language))
		if err := concatFiles(outPath, inputs, logger); err != nil {
			return nil, err
		}
		logger.Printf("> wrote %d files to %s", len(inputs), outPath)
		written[language] = outPath
	}
	return written, nil
}

func concatFiles(outPath string, inputs []string, logger *log.Logger) error {
	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	counter := NewProgressCounter(outPath, 0, logger)
	tail := &tailWriter{}
	writer := io.MultiWriter(outFile, counter, tail)
	for _, input := range inputs {
		// Keep documents of consecutive inputs on separate lines.
		if tail.written && tail.last != '\n' {
			if _, err := io.WriteString(writer, "\n"); err != nil {
				outFile.Close()
				return err
			}
		}
		inFile, openErr := os.Open(input)
		if openErr != nil {
			outFile.Close()
			return openErr
		}
		_, copyErr := io.Copy(writer, inFile)
		inFile.Close()
		if copyErr != nil {
			outFile.Close()
			return copyErr
		}
	}
	return outFile.Close()
}

// tailWriter remembers the last byte written through it.
type tailWriter struct {
	last    byte
	written bool
}

func (w *tailWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.last = p[len(p)-1]
		w.written = true
	}
	return len(p), nil
}
