// Package match scores external video/track search candidates against a
// canonical song and movie. Scores land in [0,1] for viable candidates,
// exactly 0 for rejected ones, and -1 for hard exclusions.
package match

import (
	"strconv"
	"strings"

	"cinesync/internal/textutil"
)

// Mode selects the token-overlap floor.
type Mode int

const (
	// Strict is used when the movie title is multi-token and therefore
	// unambiguous enough for a high overlap requirement.
	Strict Mode = iota
	// BestEffort accepts lower overlap. Used for single-token titles and
	// as a last-resort relaxation; hard exclusions still apply.
	BestEffort
)

// Target describes the canonical song and movie a candidate is scored
// against.
type Target struct {
	TrackTitle string
	MovieTitle string
	Language   string
	Year       int
	CastHints  []string
}

// excludedKeywords reject a candidate outright. Matched as whole tokens of
// the normalized hay.
var excludedKeywords = []string{
	"trailer", "teaser", "reaction", "review", "interview", "recap",
	"karaoke", "cover", "remix", "shorts", "slowed", "reverb", "8d",
}

// excludedPhrases reject a candidate outright. Matched as substrings.
var excludedPhrases = []string{
	"full movie", "behind the scenes", "making of",
}

// songSignals mark a candidate as plausibly being a song video.
var songSignals = []string{"song", "songs", "lyrical", "lyric", "audio", "jukebox", "video"}

// genreMarkers earn a small bonus each.
var genreMarkers = []string{"lyrical", "audio", "jukebox", "official"}

const (
	strictOverlapFloor     = 0.5
	bestEffortOverlapFloor = 0.25
)

// Score rates one candidate (title plus description). Hard-excluded
// candidates score -1; candidates under the mode's overlap floor, or
// single-token titles failing the disambiguation gate, score 0.
func Score(target Target, candidateTitle, candidateDescription string, mode Mode) float64 {
	hay := textutil.Normalize(candidateTitle + " " + candidateDescription)
	if hay == "" {
		return 0
	}
	hayTokens := tokenSet(hay)

	for _, keyword := range excludedKeywords {
		if _, found := hayTokens[keyword]; found {
			return -1
		}
	}
	for _, phrase := range excludedPhrases {
		if strings.Contains(hay, phrase) {
			return -1
		}
	}

	trackOverlap := overlapRatio(textutil.Tokenize(target.TrackTitle), hayTokens)
	movieOverlap := overlapRatio(textutil.Tokenize(target.MovieTitle), hayTokens)
	castOverlap := castHintOverlap(target.CastHints, hayTokens)

	hasLanguage := target.Language != "" && containsToken(hayTokens, textutil.Normalize(target.Language))
	hasYear := target.Year > 0 && containsToken(hayTokens, strconv.Itoa(target.Year))
	hasCast := castOverlap > 0

	// Single-token movie titles are ambiguous: require a disambiguator and
	// a song signal before overlap counts for anything.
	if len(textutil.Tokenize(target.MovieTitle)) == 1 {
		if !hasLanguage && !hasYear && !hasCast {
			return 0
		}
		if !hasAnyToken(hayTokens, songSignals) {
			return 0
		}
	}

	floor := strictOverlapFloor
	if mode == BestEffort {
		floor = bestEffortOverlapFloor
	}
	if trackOverlap < floor {
		return 0
	}

	score := 0.5*trackOverlap + 0.2*movieOverlap + 0.1*castOverlap
	if hasLanguage {
		score += 0.1
	}
	if hasYear {
		score += 0.05
	}
	for _, marker := range genreMarkers {
		if _, found := hayTokens[marker]; found {
			score += 0.025
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// ModeFor picks the scoring mode from the movie title's ambiguity.
func ModeFor(movieTitle string) Mode {
	if len(textutil.Tokenize(movieTitle)) <= 1 {
		return BestEffort
	}
	return Strict
}

func tokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// overlapRatio is the fraction of target tokens present in the hay.
func overlapRatio(targetTokens []string, hayTokens map[string]struct{}) float64 {
	if len(targetTokens) == 0 {
		return 0
	}
	matched := 0
	for _, token := range targetTokens {
		if _, found := hayTokens[token]; found {
			matched++
		}
	}
	return float64(matched) / float64(len(targetTokens))
}

// castHintOverlap is the fraction of cast hints with at least one name
// token in the hay.
func castHintOverlap(hints []string, hayTokens map[string]struct{}) float64 {
	if len(hints) == 0 {
		return 0
	}
	matched := 0
	for _, hint := range hints {
		for _, token := range textutil.Tokenize(hint) {
			if len(token) < 3 {
				continue
			}
			if _, found := hayTokens[token]; found {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(hints))
}

func containsToken(hayTokens map[string]struct{}, value string) bool {
	for _, token := range strings.Fields(value) {
		if _, found := hayTokens[token]; found {
			return true
		}
	}
	return false
}

func hasAnyToken(hayTokens map[string]struct{}, candidates []string) bool {
	for _, candidate := range candidates {
		if _, found := hayTokens[candidate]; found {
			return true
		}
	}
	return false
}
