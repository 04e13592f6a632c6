package bpe_corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
)

const lineBufSz = 8 * 1024 * 1024

// Iterator yields the items of a stream one at a time. It returns ok ==
// false once the stream is exhausted.
type Iterator[T any] func() (item T, ok bool, err error)

// Sample
// A reservoir sample. Items[i] was read at stream position Positions[i].
// The order is the reservoir slot order, not the stream order.
type Sample[T any] struct {
	Items     []T
	Positions []int
}

// Len returns the number of sampled items.
func (s *Sample[T]) Len() int {
	return len(s.Items)
}

// ExclusionSet is an immutable set of stream positions that a sampling
// pass must never select. The nil set excludes nothing.
type ExclusionSet struct {
	positions map[int]struct{}
}

// NewExclusionSet
// Builds an ExclusionSet from raw stream positions. Duplicates are
// tolerated; negative positions are rejected.
func NewExclusionSet(positions []int) (*ExclusionSet, error) {
	set := &ExclusionSet{positions: make(map[int]struct{}, len(positions))}
	for _, pos := range positions {
		if pos < 0 {
			return nil, fmt.Errorf(
				"%w: exclusion set contains negative position %d",
				ErrInvalidArgument, pos)
		}
		set.positions[pos] = struct{}{}
	}
	return set, nil
}

// Contains reports whether pos is excluded.
func (e *ExclusionSet) Contains(pos int) bool {
	if e == nil {
		return false
	}
	_, ok := e.positions[pos]
	return ok
}

// Len returns the number of distinct excluded positions.
func (e *ExclusionSet) Len() int {
	if e == nil {
		return 0
	}
	return len(e.positions)
}

// Positions returns the excluded positions in ascending order.
func (e *ExclusionSet) Positions() []int {
	positions := make([]int, 0, e.Len())
	if e != nil {
		for pos := range e.positions {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	return positions
}

// ReservoirSample
// Draws a uniform random sample of k items without replacement from a
// single forward pass over next, never selecting a position in exclude,
// using O(k) memory. Positions are raw stream indexes, counted before
// exclusion is applied.
//
// Excluded positions consume no randomness, so a fixed rng yields the
// same draws for the remaining population as an unfiltered pass would.
// If fewer than k non-excluded items exist, ErrExhaustion is returned
// and the partial reservoir is discarded.
func ReservoirSample[T any](
	next Iterator[T],
	k int,
	exclude *ExclusionSet,
	rng *rand.Rand,
) (*Sample[T], error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: sample size %d is negative",
			ErrInvalidArgument, k)
	}
	sample := &Sample[T]{
		Items:     make([]T, 0, k),
		Positions: make([]int, 0, k),
	}
	if k == 0 {
		return sample, nil
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidArgument)
	}

	// `pos` is the raw stream position, `skipped` counts the excluded
	// positions seen so far. They must not be conflated: recorded
	// positions refer to the original stream numbering.
	pos := 0
	skipped := 0

	// Fill the reservoir with the first k non-excluded items.
	for len(sample.Items) < k {
		item, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf(
				"%w: requested %d items, stream holds %d non-excluded "+
					"items out of %d", ErrExhaustion, k, pos-skipped, pos)
		}
		if exclude.Contains(pos) {
			skipped++
			pos++
			continue
		}
		sample.Items = append(sample.Items, item)
		sample.Positions = append(sample.Positions, pos)
		pos++
	}

	// Replace slots with decreasing probability for the rest of the stream.
	for {
		item, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if exclude.Contains(pos) {
			skipped++
			pos++
			continue
		}
		i := pos - skipped
		if r := rng.Intn(i + 1); r < k {
			sample.Items[r] = item
			sample.Positions[r] = pos
		}
		pos++
	}
	return sample, nil
}

// LineIterator
// Yields the lines of r, each with its trailing newline intact so it can be
// written back verbatim. A final line without a newline is still an item.
func LineIterator(r io.Reader) Iterator[string] {
	reader := bufio.NewReaderSize(r, lineBufSz)
	done := false
	return func() (string, bool, error) {
		if done {
			return "", false, nil
		}
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			done = true
			if len(line) == 0 {
				return "", false, nil
			}
			return line, true, nil
		} else if err != nil {
			return "", false, err
		}
		return line, true, nil
	}
}

// SampleLines
// Reservoir samples k lines of r. See ReservoirSample.
func SampleLines(
	r io.Reader,
	k int,
	exclude *ExclusionSet,
	rng *rand.Rand,
) (*Sample[string], error) {
	return ReservoirSample(LineIterator(r), k, exclude, rng)
}
