// Package eval scores extracted snippets against a gold set for
// regression-testing prompt-version changes, a developer tool rather than
// part of the online ingestion pipeline (SPEC_FULL.md §7 supplemented
// feature 5, grounded on original_source/tests/scout/test_eval.py).
package eval

import (
	"strings"

	"github.com/kpaschalidis/anvil/pkg/models"
)

// GoldSnippet is one expected extraction, keyed by a pain statement that is
// compared after lowercasing and trimming surrounding whitespace, so case
// and padding differences don't break a match.
type GoldSnippet struct {
	PainStatement string
	SignalType    models.SignalType
}

// Score is the result of comparing a batch of extracted snippets against a
// gold set.
type Score struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Evaluate compares got against want: a match requires the normalized pain
// statement to be identical AND the signal_type to agree. Extra got entries
// with no gold match are false positives; gold entries with no got match
// are false negatives.
func Evaluate(got []models.Snippet, want []GoldSnippet) Score {
	index := make(map[string]models.SignalType, len(want))
	matchedGold := make(map[string]bool, len(want))
	for _, g := range want {
		index[normalize(g.PainStatement)] = g.SignalType
	}

	var tp, fp int
	matchedKeys := map[string]bool{}
	for _, s := range got {
		key := normalize(s.PainStatement)
		wantType, ok := index[key]
		if ok && wantType == s.SignalType && !matchedKeys[key] {
			tp++
			matchedKeys[key] = true
			matchedGold[key] = true
		} else {
			fp++
		}
	}

	fn := 0
	for key := range index {
		if !matchedGold[key] {
			fn++
		}
	}

	var precision, recall, f1 float64
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return Score{
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
		Precision:      precision,
		Recall:         recall,
		F1:             f1,
	}
}
