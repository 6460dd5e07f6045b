package pipeline

import "strings"

// Indicator words for the languages the default config supports. Detection
// is deliberately crude: social posts are short, so anything fancier than
// counting function words earns its keep poorly.
var languageIndicators = []struct {
	lang  string
	words []string
}{
	{"en", []string{"the", "a", "is", "are", "was", "have"}},
	{"fr", []string{"le", "la", "les", "un", "une", "est", "sont"}},
	{"nl", []string{"de", "het", "een", "is", "zijn", "hebben"}},
}

// minIndicatorHits is how many indicator words a language needs before we
// trust the detection over the English default.
const minIndicatorHits = 2

// detectLanguage guesses the language of text from function-word counts.
// Ties go to the earlier language in the table; anything inconclusive is
// reported as English.
func detectLanguage(text string) string {
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		seen[strings.Trim(word, ".,!?;:\"'()")] = true
	}

	best, bestHits := "en", 0
	for _, candidate := range languageIndicators {
		hits := 0
		for _, word := range candidate.words {
			if seen[word] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = candidate.lang, hits
		}
	}

	if bestHits < minIndicatorHits {
		return "en"
	}
	return best
}
