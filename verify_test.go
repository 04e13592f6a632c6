package bpe_corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type VerifyTest struct {
	Name      string
	Train     IndexMap
	Eval      IndexMap
	Err       error
	OnlyTrain []string
	OnlyEval  []string
	Conflicts []Conflict
}

var verifyTests = []VerifyTest{
	{
		Name:  "disjoint",
		Train: IndexMap{"a_en.jsonl": {0, 2}, "b_en.jsonl": {1}},
		Eval:  IndexMap{"a_en.jsonl": {1, 3}, "b_en.jsonl": {0, 2}},
	},
	{
		Name:  "empty samples",
		Train: IndexMap{"a_en.jsonl": {}},
		Eval:  IndexMap{"a_en.jsonl": {}},
	},
	{
		Name:      "key only in train",
		Train:     IndexMap{"a_en.jsonl": {0}, "b_en.jsonl": {1}},
		Eval:      IndexMap{"a_en.jsonl": {1}},
		Err:       ErrSchemaMismatch,
		OnlyTrain: []string{"b_en.jsonl"},
	},
	{
		Name:     "key only in eval",
		Train:    IndexMap{"a_en.jsonl": {0}},
		Eval:     IndexMap{"a_en.jsonl": {1}, "a_de.jsonl": {0}},
		Err:      ErrSchemaMismatch,
		OnlyEval: []string{"a_de.jsonl"},
	},
	{
		Name:  "overlap",
		Train: IndexMap{"a_en.jsonl": {7, 3, 1}, "b_en.jsonl": {1}},
		Eval:  IndexMap{"a_en.jsonl": {3, 2, 7, 3}, "b_en.jsonl": {0}},
		Err:   ErrConflictDetected,
		Conflicts: []Conflict{
			{Key: "a_en.jsonl", Positions: []int{3, 7}},
		},
	},
}

func TestVerifyDisjoint(t *testing.T) {
	for _, test := range verifyTests {
		t.Run(test.Name, func(t *testing.T) {
			report, err := VerifyDisjoint(test.Train, test.Eval)
			require.NotNil(t, report)
			if test.Err == nil {
				assert.NoError(t, err)
				assert.True(t, report.OK())
				assert.Equal(t, test.Train.Keys(), report.Keys)
				return
			}
			assert.ErrorIs(t, err, test.Err)
			assert.False(t, report.OK())
			assert.Equal(t, test.OnlyTrain, report.OnlyTrain)
			assert.Equal(t, test.OnlyEval, report.OnlyEval)
			assert.Equal(t, test.Conflicts, report.Conflicts)
		})
	}
}

func TestVerifyDisjointConflictMessage(t *testing.T) {
	_, err := VerifyDisjoint(
		IndexMap{"a_en.jsonl": {1}, "b_de.jsonl": {2}},
		IndexMap{"a_en.jsonl": {1}, "b_de.jsonl": {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(),
		"train & eval indices are not disjoint for a_en.jsonl, b_de.jsonl")
}

func TestVerifyDisjointLeavesInputsAlone(t *testing.T) {
	train := IndexMap{"a_en.jsonl": {5, 1}}
	eval := IndexMap{"a_en.jsonl": {5, 5}}
	_, err := VerifyDisjoint(train, eval)
	assert.ErrorIs(t, err, ErrConflictDetected)
	assert.Equal(t, IndexMap{"a_en.jsonl": {5, 1}}, train)
	assert.Equal(t, IndexMap{"a_en.jsonl": {5, 5}}, eval)
}
