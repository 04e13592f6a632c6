package bpe_corpus

import (
	"fmt"
	"strings"
)

const dataFileExt = ".jsonl"

// SampleKey names one partitioned data stream, e.g. ("articles", "en").
type SampleKey struct {
	Category string
	Language string
}

// FileName returns the data file name and index map key for the key,
// `<category>_<language>.jsonl`.
func (k SampleKey) FileName() string {
	return k.Category + "_" + k.Language + dataFileExt
}

func (k SampleKey) String() string {
	return k.Category + "/" + k.Language
}

// ParseSampleKey
// Inverts SampleKey.FileName. The language is everything after the last
// underscore, so categories such as `books_hq` round trip.
func ParseSampleKey(fileName string) (SampleKey, error) {
	base := strings.TrimSuffix(fileName, dataFileExt)
	if base == fileName {
		return SampleKey{}, fmt.Errorf("%w: %q is not a %s file",
			ErrInvalidArgument, fileName, dataFileExt)
	}
	sep := strings.LastIndex(base, "_")
	if sep <= 0 || sep == len(base)-1 {
		return SampleKey{}, fmt.Errorf(
			"%w: %q is not of the form <category>_<language>%s",
			ErrInvalidArgument, fileName, dataFileExt)
	}
	return SampleKey{Category: base[:sep], Language: base[sep+1:]}, nil
}
