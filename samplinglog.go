package bpe_corpus

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// SamplingLogFileName is the run log written next to a split's samples.
const SamplingLogFileName = "SAMPLING.log"

// SamplingLog
// Mirrors a sampling run's progress to stderr and to SAMPLING.log in the
// split directory, opening with the run's percent and weight table.
type SamplingLog struct {
	*log.Logger
	file *os.File
}

// OpenSamplingLog truncates `<dir>/SAMPLING.log` and writes its header.
func OpenSamplingLog(dir string, weights *Weights,
	console io.Writer) (*SamplingLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	file, err := os.Create(filepath.Join(dir, SamplingLogFileName))
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(file, weightsHeader(weights)); err != nil {
		file.Close()
		return nil, err
	}
	if console == nil {
		console = os.Stderr
	}
	return &SamplingLog{
		Logger: log.New(io.MultiWriter(console, file), "", 0),
		file:   file,
	}, nil
}

func weightsHeader(weights *Weights) string {
	var sb strings.Builder
	sb.WriteString("======================\n")
	sb.WriteString(fmt.Sprintf("> PERCENT = %d\n", weights.Percent))
	sb.WriteString("> WEIGHTS:\n")
	for _, key := range weights.Keys() {
		sb.WriteString(fmt.Sprintf("  %s, %s: %v\n", key.Category,
			key.Language, weights.Raw[key.Category][key.Language]))
	}
	sb.WriteString("======================\n\n")
	return sb.String()
}

func (sl *SamplingLog) Close() error {
	return sl.file.Close()
}
