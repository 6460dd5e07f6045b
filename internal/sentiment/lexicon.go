package sentiment

// getPositiveWords returns positive polarity words for the general method,
// including terms common in company and product announcements
func getPositiveWords() map[string]bool {
	words := []string{
		"good", "great", "excellent", "amazing", "wonderful", "fantastic", "best", "love", "loved", "loving",
		"beautiful", "perfect", "awesome", "brilliant", "outstanding", "superb", "exceptional", "incredible",
		"magnificent", "pleasant", "delightful", "enjoyable", "happy", "glad", "pleased", "satisfied",
		"terrific", "fabulous", "impressive", "remarkable", "positive", "advantage", "benefit", "success",
		"successful", "win", "winning", "winner", "better", "improvement", "improved", "exciting", "excited",
		"enthusiasm", "enthusiastic", "optimistic", "hopeful", "promising", "favorable", "thrilled", "proud",
		"congratulations", "congrats", "milestone", "achievement", "innovative", "innovation", "growth",
		"growing", "record", "breakthrough", "launch", "launched", "strong", "momentum", "opportunity",
	}

	positiveWords := make(map[string]bool)
	for _, word := range words {
		positiveWords[word] = true
	}
	return positiveWords
}

// getNegativeWords returns negative polarity words for the general method,
// including terms common in company news and complaints
func getNegativeWords() map[string]bool {
	words := []string{
		"bad", "terrible", "awful", "horrible", "poor", "worst", "hate", "hated", "hating", "ugly",
		"disgusting", "disappointing", "disappointed", "disappointment", "fail", "failed", "failure",
		"wrong", "problem", "problems", "issue", "issues", "error", "errors", "difficult", "difficulty",
		"hard", "impossible", "negative", "unfortunate", "sad", "unhappy", "angry", "frustrated",
		"frustrating", "annoying", "annoyed", "concern", "concerned", "worried", "worry", "fear", "afraid",
		"scary", "dangerous", "risk", "threat", "damage", "damaged", "harm", "harmful", "worse", "loss",
		"lost", "losing", "loser", "decline", "declined", "layoffs", "layoff", "scandal", "lawsuit",
		"outage", "breach", "downgrade", "recall", "delay", "delayed", "broken", "bug", "bugs", "crash",
		"overpriced", "mediocre", "useless", "misleading", "churn",
	}

	negativeWords := make(map[string]bool)
	for _, word := range words {
		negativeWords[word] = true
	}
	return negativeWords
}
