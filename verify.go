package bpe_corpus

import (
	"fmt"
	"sort"
	"strings"
)

// Conflict lists the positions a key's train and eval samples share.
type Conflict struct {
	Key       string
	Positions []int
}

// DisjointReport
// The outcome of VerifyDisjoint. OnlyTrain and OnlyEval are populated on a
// schema mismatch; Conflicts on overlapping samples.
type DisjointReport struct {
	Keys      []string
	OnlyTrain []string
	OnlyEval  []string
	Conflicts []Conflict
}

// OK reports whether the two maps were verified disjoint.
func (r *DisjointReport) OK() bool {
	return len(r.OnlyTrain) == 0 && len(r.OnlyEval) == 0 &&
		len(r.Conflicts) == 0
}

// ConflictKeys returns the keys with overlapping samples.
func (r *DisjointReport) ConflictKeys() []string {
	keys := make([]string, 0, len(r.Conflicts))
	for _, conflict := range r.Conflicts {
		keys = append(keys, conflict.Key)
	}
	return keys
}

// VerifyDisjoint
// Checks that the train and eval index maps cover the same keys and that,
// for every key, the two position lists do not intersect. Neither map is
// modified.
//
// Differing key sets fail with ErrSchemaMismatch before any comparison.
// Overlaps are collected for every key and returned in the report along
// with an error wrapping ErrConflictDetected.
func VerifyDisjoint(train, eval IndexMap) (*DisjointReport, error) {
	report := &DisjointReport{}
	for _, key := range train.Keys() {
		if _, ok := eval[key]; !ok {
			report.OnlyTrain = append(report.OnlyTrain, key)
		}
	}
	for _, key := range eval.Keys() {
		if _, ok := train[key]; !ok {
			report.OnlyEval = append(report.OnlyEval, key)
		}
	}
	if len(report.OnlyTrain) > 0 || len(report.OnlyEval) > 0 {
		return report, fmt.Errorf(
			"%w: keys only in train %v, keys only in eval %v",
			ErrSchemaMismatch, report.OnlyTrain, report.OnlyEval)
	}

	report.Keys = train.Keys()
	for _, key := range report.Keys {
		trainSet := make(map[int]struct{}, len(train[key]))
		for _, pos := range train[key] {
			trainSet[pos] = struct{}{}
		}
		seen := make(map[int]struct{})
		var shared []int
		for _, pos := range eval[key] {
			if _, ok := trainSet[pos]; !ok {
				continue
			}
			if _, dup := seen[pos]; dup {
				continue
			}
			seen[pos] = struct{}{}
			shared = append(shared, pos)
		}
		if len(shared) > 0 {
			sort.Ints(shared)
			report.Conflicts = append(report.Conflicts,
				Conflict{Key: key, Positions: shared})
		}
	}
	if len(report.Conflicts) > 0 {
		return report, fmt.Errorf(
			"%w: train & eval indices are not disjoint for %s",
			ErrConflictDetected, strings.Join(report.ConflictKeys(), ", "))
	}
	return report, nil
}
