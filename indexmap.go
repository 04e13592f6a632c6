package bpe_corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// IndexFileName is the name of the persisted index map in a split
// directory.
const IndexFileName = "SAMPLING.json"

// IndexMap maps a data file name (`<category>_<language>.jsonl`) to the
// stream positions sampled from it.
type IndexMap map[string][]int

// Keys returns the map's keys in sorted order.
func (m IndexMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the positions recorded for a SampleKey.
func (m IndexMap) Lookup(key SampleKey) ([]int, bool) {
	positions, ok := m[key.FileName()]
	return positions, ok
}

// ReadIndexMap
// Loads an IndexMap from a JSON object file.
func ReadIndexMap(path string) (IndexMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	indexMap := make(IndexMap)
	if err := json.Unmarshal(data, &indexMap); err != nil {
		return nil, fmt.Errorf("reading index map %s: %w", path, err)
	}
	return indexMap, nil
}

// LoadSplitIndex
// Loads `SAMPLING.json` from a split directory. A missing file means the
// split was never sampled and is reported as ErrMissingPrerequisite.
func LoadSplitIndex(dir string) (IndexMap, error) {
	path := filepath.Join(dir, IndexFileName)
	indexMap, err := ReadIndexMap(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: index map %s does not exist",
			ErrMissingPrerequisite, path)
	}
	return indexMap, err
}

// Write
// Persists the map as JSON. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial map.
func (m IndexMap) Write(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// IndexAccumulator
// Collects the per-key index entries of one pipeline run so the split's
// IndexMap is written exactly once. Safe for concurrent use by the key
// workers; it is the single writer of the map.
type IndexAccumulator struct {
	mu      sync.Mutex
	entries IndexMap
}

func NewIndexAccumulator() *IndexAccumulator {
	return &IndexAccumulator{entries: make(IndexMap)}
}

// Add records the positions sampled for key. Each key may be added once.
func (a *IndexAccumulator) Add(key SampleKey, positions []int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := key.FileName()
	if _, ok := a.entries[name]; ok {
		return fmt.Errorf("%w: %s already recorded", ErrInvalidArgument,
			name)
	}
	a.entries[name] = copyPositions(positions)
	return nil
}

// Len returns the number of recorded keys.
func (a *IndexAccumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// IndexMap returns a copy of the accumulated entries.
func (a *IndexAccumulator) IndexMap() IndexMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(IndexMap, len(a.entries))
	for name, positions := range a.entries {
		out[name] = copyPositions(positions)
	}
	return out
}

// Flush writes the accumulated map to path.
func (a *IndexAccumulator) Flush(path string) error {
	return a.IndexMap().Write(path)
}

// copyPositions never returns nil so empty samples persist as `[]`.
func copyPositions(positions []int) []int {
	out := make([]int, len(positions))
	copy(out, positions)
	return out
}
