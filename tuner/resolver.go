package tuner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// minTokenLen is the minimum number of runes of a target token. Shorter
// tokens match almost anything.
const minTokenLen = 2

// tokenize splits a device name into lower case search tokens.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("()[]{},;:/|\"'", r)
	})
	res := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenLen {
			res = append(res, f)
		}
	}
	return res
}

// ScoreDevices returns the fuzzy score of target against every candidate.
// Each target token that fuzzily matches a candidate adds its match score
// (at least 1) to the candidate's score. Candidates that match no token
// score 0.
func ScoreDevices(target string, candidates []string) []int {
	scores := make([]int, len(candidates))
	tokens := tokenize(target)
	if len(tokens) == 0 || len(candidates) == 0 {
		return scores
	}

	lower := make([]string, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}

	for _, tok := range tokens {
		for _, m := range fuzzy.Find(tok, lower) {
			scores[m.Index] += max(1, m.Score)
		}
	}
	return scores
}

// Resolve returns the index of the candidate that best matches target. Ties
// go to the lowest index. The bool is false when no candidate scores above
// zero, in which case callers use the backend's default device.
func Resolve(target string, candidates []string) (int, bool) {
	best, bestScore := -1, 0
	for i, score := range ScoreDevices(target, candidates) {
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, best >= 0
}
