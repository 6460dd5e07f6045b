package entities

import "regexp"

// getKnownOrganizations returns company names recognized without a
// corporate suffix.
func getKnownOrganizations() map[string]bool {
	names := []string{
		"microsoft", "google", "amazon", "apple", "meta", "facebook",
		"linkedin", "twitter", "openai", "nvidia", "tesla", "adobe",
		"salesforce", "oracle", "ibm", "intel", "cisco", "netflix",
		"uber", "airbnb", "spotify", "zoom", "slack", "dropbox",
	}

	orgs := make(map[string]bool, len(names))
	for _, name := range names {
		orgs[name] = true
	}
	return orgs
}

// getKnownLocations returns place names that appear as single capitalized
// words in business posts.
func getKnownLocations() map[string]bool {
	names := []string{
		"seattle", "austin", "london", "paris", "berlin", "amsterdam",
		"dublin", "toronto", "sydney", "singapore", "tokyo", "bangalore",
		"chicago", "boston", "denver", "atlanta", "america", "europe",
		"asia", "california", "texas", "india", "china", "japan",
		"germany", "france", "canada", "australia",
	}

	locations := make(map[string]bool, len(names))
	for _, name := range names {
		locations[name] = true
	}
	return locations
}

// getSkipWords returns capitalized filler that starts sentences or marks a
// job title. Spans made entirely of these words are never entities, and
// leading occurrences are trimmed off real names.
func getSkipWords() map[string]bool {
	words := []string{
		// sentence starters and function words
		"the", "this", "that", "these", "those", "our", "their", "your",
		"his", "her", "its", "my", "we", "they", "he", "she", "and",
		"but", "however", "meanwhile", "today", "yesterday", "tomorrow",
		"when", "while", "after", "before", "during", "if", "also",
		"just", "thanks", "congrats", "why", "what", "how", "who",
		"where", "is", "are", "was", "were",

		// titles and roles
		"ceo", "cfo", "cto", "coo", "cmo", "vp", "president", "vice",
		"director", "manager", "chief", "officer", "executive",
		"founder", "head",
	}

	skip := make(map[string]bool, len(words))
	for _, word := range words {
		skip[word] = true
	}
	return skip
}

// getOrgSuffixes returns words that mark a capitalized span as an
// organization when they close it.
func getOrgSuffixes() map[string]bool {
	words := []string{
		"Inc", "LLC", "Corp", "Ltd", "Company",
		"Technologies", "Solutions", "Group", "Labs",
	}

	suffixes := make(map[string]bool, len(words))
	for _, word := range words {
		suffixes[word] = true
	}
	return suffixes
}

var (
	// orgSuffixPattern catches suffixed names the capitalized pattern
	// misses, such as all-caps suffixes ("Acme LLC").
	orgSuffixPattern = regexp.MustCompile(`\b[A-Z][A-Za-z]*(?:\s+(?:&|[A-Z][A-Za-z]*))*\s+(?:Inc|LLC|Corp|Ltd|Company|Technologies|Solutions|Group|Labs)\b`)

	capitalizedPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

	moneyPattern   = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?(?:\s*(?:million|billion|trillion|thousand)|[BMK])?`)
	percentPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)
	timePattern    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?(?:am|pm|AM|PM))?\b`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bQ[1-4]\s+\d{4}\b`),
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`),
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	}
)
