package bpe_corpus

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

const progressInterval = 10 * time.Second

// ProgressCounter
// Counts the bytes written through it and reports progress to Log at most
// every ten seconds. Use it with io.MultiWriter or io.TeeReader.
type ProgressCounter struct {
	Total    uint64
	Last     time.Time
	Reported bool
	Path     string
	Size     uint64
	Log      *log.Logger
}

func NewProgressCounter(path string, size uint64,
	logger *log.Logger) *ProgressCounter {
	return &ProgressCounter{Path: path, Size: size, Last: time.Now(),
		Log: logger}
}

func (pc *ProgressCounter) Write(p []byte) (int, error) {
	n := len(p)
	pc.Total += uint64(n)
	if pc.Log != nil && time.Since(pc.Last) > progressInterval {
		pc.Reported = true
		pc.Last = time.Now()
		if pc.Size > 0 {
			pc.Log.Printf("Writing %s... %s / %s completed.", pc.Path,
				humanize.Bytes(pc.Total), humanize.Bytes(pc.Size))
		} else {
			pc.Log.Printf("Writing %s... %s completed.", pc.Path,
				humanize.Bytes(pc.Total))
		}
	}
	return n, nil
}
