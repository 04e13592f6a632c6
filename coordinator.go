package bpe_corpus

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Split identifies which side of the train/eval protocol a run produces.
type Split int

const (
	TrainSplit Split = iota
	EvalSplit
)

func (s Split) String() string {
	if s == EvalSplit {
		return "eval"
	}
	return "train"
}

// SplitResult describes one key's sample as written to disk.
type SplitResult struct {
	Key       SampleKey
	Path      string
	Positions []int
	Total     int
	Weight    float64
}

// Coordinator
// Samples every key of a weight table into a split directory and records
// the sampled stream positions in the split's IndexMap.
//
// OriginalDir may be a local directory or an `s3://bucket/prefix`
// location; S3 is then required. Parallelism bounds how many keys are
// sampled at once and defaults to one, i.e. strictly sequential.
type Coordinator struct {
	OriginalDir string
	OutputDir   string
	Seed        int64
	Parallelism int
	S3          S3Client
	Log         *log.Logger
}

func (c *Coordinator) logger() *log.Logger {
	if c.Log == nil {
		return log.New(io.Discard, "", 0)
	}
	return c.Log
}

// rngFor derives a key's random source from the run seed and the key's file
// name, so a key draws the same numbers however keys are scheduled.
func (c *Coordinator) rngFor(key SampleKey) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key.FileName()))
	return rand.New(rand.NewSource(c.Seed ^ int64(h.Sum64())))
}

func (c *Coordinator) source(key SampleKey) (Source, error) {
	return NewSource(JoinLocation(c.OriginalDir, key.FileName()), c.S3)
}

// SampleForTraining
// Samples floor(weight*n) lines of key's original stream with
// no exclusion and writes them to the output directory. A weight <= 0
// skips the key and returns a nil result.
func (c *Coordinator) SampleForTraining(key SampleKey,
	weight float64) (*SplitResult, error) {
	if weight <= 0 {
		return nil, nil
	}
	return c.sample(key, weight, nil)
}

// SampleForEvaluation
// Like SampleForTraining, but the training positions recorded
// for key in train are excluded, so the two samples are disjoint. Fails
// with ErrMissingPrerequisite before reading any data if train has no
// entry for key.
func (c *Coordinator) SampleForEvaluation(key SampleKey, weight float64,
	train IndexMap) (*SplitResult, error) {
	if weight <= 0 {
		return nil, nil
	}
	if train == nil {
		return nil, fmt.Errorf("%w: no training index map",
			ErrMissingPrerequisite)
	}
	trainPositions, ok := train.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in training index map",
			ErrMissingPrerequisite, key.FileName())
	}
	exclude, err := NewExclusionSet(trainPositions)
	if err != nil {
		return nil, err
	}
	return c.sample(key, weight, exclude)
}

func (c *Coordinator) sample(key SampleKey, weight float64,
	exclude *ExclusionSet) (*SplitResult, error) {
	src, err := c.source(key)
	if err != nil {
		return nil, err
	}
	// Two passes: the stream length is needed up front to turn the weight
	// into a sample size.
	total, err := src.CountLines()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file for category = %s, language = %s "+
			"does not exist at %s: %w", key.Category, key.Language,
			src.Name(), err)
	} else if err != nil {
		return nil, err
	}
	k := int(math.Floor(weight * float64(total)))

	reader, err := src.Open()
	if err != nil {
		return nil, err
	}
	sample, err := SampleLines(reader, k, exclude, c.rngFor(key))
	closeErr := reader.Close()
	if err != nil {
		return nil, err
	} else if closeErr != nil {
		return nil, closeErr
	}

	outPath := filepath.Join(c.OutputDir, key.FileName())
	if err := c.writeSample(outPath, sample); err != nil {
		return nil, err
	}
	return &SplitResult{
		Key:       key,
		Path:      outPath,
		Positions: sample.Positions,
		Total:     total,
		Weight:    weight,
	}, nil
}

// writeSample writes the sampled lines in reservoir slot order, one per
// line. A source's final line may lack its newline, so one is added.
func (c *Coordinator) writeSample(outPath string,
	sample *Sample[string]) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	outFile, err := os.OpenFile(outPath, os.O_TRUNC|os.O_WRONLY|os.O_CREATE,
		0644)
	if err != nil {
		return err
	}
	counter := NewProgressCounter(outPath, 0, c.logger())
	writer := io.MultiWriter(outFile, counter)
	for _, line := range sample.Items {
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := io.WriteString(writer, line); err != nil {
			outFile.Close()
			return err
		}
	}
	return outFile.Close()
}

// Run
// Samples every key of weights for split and flushes the split's
// SAMPLING.json once all keys succeeded. Eval runs exclude the positions in
// train, which must hold an entry for every key with a positive weight.
// The first failing key aborts the run with a *KeyError.
func (c *Coordinator) Run(ctx context.Context, weights *Weights,
	split Split, train IndexMap) (IndexMap, error) {
	logger := c.logger()
	acc := NewIndexAccumulator()

	group, groupCtx := errgroup.WithContext(ctx)
	parallelism := c.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	group.SetLimit(parallelism)

	for _, key := range weights.Keys() {
		weight := weights.Weight(key)
		if weight <= 0 {
			logger.Printf("> category = %s, language = %s, weight = %v "+
				".. skipped", key.Category, key.Language, weight)
			continue
		}
		key := key
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			begin := time.Now()
			var result *SplitResult
			var err error
			if split == EvalSplit {
				result, err = c.SampleForEvaluation(key, weight, train)
			} else {
				result, err = c.SampleForTraining(key, weight)
			}
			if err != nil {
				return &KeyError{Key: key, Err: err}
			}
			if err := acc.Add(key, result.Positions); err != nil {
				return &KeyError{Key: key, Err: err}
			}
			c.logResult(result, time.Since(begin))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(c.OutputDir, IndexFileName)
	if err := acc.Flush(indexPath); err != nil {
		return nil, err
	}
	logger.Printf("> wrote %s index for %d keys to %s", split, acc.Len(),
		indexPath)
	return acc.IndexMap(), nil
}

func (c *Coordinator) logResult(result *SplitResult, elapsed time.Duration) {
	var sourceSize, sampledSize string
	if src, err := c.source(result.Key); err == nil {
		if size, sizeErr := src.Size(); sizeErr == nil {
			sourceSize = humanize.Bytes(uint64(size))
		}
	}
	if stat, err := os.Stat(result.Path); err == nil {
		sampledSize = humanize.Bytes(uint64(stat.Size()))
	}
	c.logger().Printf("> category = %s, language = %s, weight = %v: "+
		"size = %s -> %s, from %d original documents wrote %d sampled "+
		"documents to %s [time = %.1fs]", result.Key.Category,
		result.Key.Language, result.Weight, sourceSize, sampledSize,
		result.Total, len(result.Positions), result.Path, elapsed.Seconds())
}
