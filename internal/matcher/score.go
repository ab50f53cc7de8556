package matcher

import "strings"

const (
	ExactScore = 100.0

	containsPatternBase = 80.0
	containsInputBase   = 60.0
	containsSpan        = 20.0
	wordOverlapMax      = 60.0
)

// Score returns how well input matches pattern, in [0, 100].
//
// Rules, first match wins:
//
//	exact                   100
//	input contains pattern  80 + len(pattern)/len(input)*20
//	pattern contains input  60 + len(input)/len(pattern)*20
//	word overlap            matched/max(words)*60
func Score(input, pattern string) float64 {
	return scoreNormalized(Normalize(input), Normalize(pattern))
}

func scoreNormalized(in, pat string) float64 {
	if in == "" || pat == "" {
		return 0
	}
	if in == pat {
		return ExactScore
	}
	if strings.Contains(in, pat) {
		return containsPatternBase + float64(len(pat))/float64(len(in))*containsSpan
	}
	if strings.Contains(pat, in) {
		return containsInputBase + float64(len(in))/float64(len(pat))*containsSpan
	}
	return wordOverlap(strings.Fields(in), strings.Fields(pat))
}

// wordOverlap counts input words that equal, contain, or are contained in
// some pattern word. Each input word counts at most once.
func wordOverlap(inWords, patWords []string) float64 {
	matched := 0
	for _, iw := range inWords {
		for _, pw := range patWords {
			if iw == pw || strings.Contains(iw, pw) || strings.Contains(pw, iw) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(max(len(inWords), len(patWords))) * wordOverlapMax
}
