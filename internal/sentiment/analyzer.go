package sentiment

import (
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/zombar/socialpulse/internal/models"
)

// Scoring methods accepted by New and reported in results.
const (
	MethodGeneral  = "general"
	MethodSocial   = "social"
	MethodEnsemble = "ensemble"
)

// Scores within ±epsilon of zero are labeled neutral. The band is part of
// the public contract and applies to every method.
const epsilon = 0.05

// Ensemble weighting between the social and general scorers. The combined
// confidence is discounted when the two scores disagree in sign.
const (
	socialWeight         = 0.6
	generalWeight        = 0.4
	disagreementDiscount = 0.75
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	punctRunPattern   = regexp.MustCompile(`[.!?]{4,}`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	nonWordPattern    = regexp.MustCompile(`[^\w\s]`)
)

// Analyzer scores the emotional polarity of a single text. It is stateless
// apart from its configured method and lexicons and is safe for concurrent
// use from multiple workers.
type Analyzer struct {
	method   string
	vader    *govader.SentimentIntensityAnalyzer
	positive map[string]bool
	negative map[string]bool
}

// New creates an Analyzer for the given method (general, social or
// ensemble). Unrecognized methods fall back to ensemble.
func New(method string) *Analyzer {
	switch method {
	case MethodGeneral, MethodSocial, MethodEnsemble:
	default:
		method = MethodEnsemble
	}
	return &Analyzer{
		method:   method,
		vader:    govader.NewSentimentIntensityAnalyzer(),
		positive: getPositiveWords(),
		negative: getNegativeWords(),
	}
}

// Methods reports the scoring methods currently available.
func (a *Analyzer) Methods() []string {
	var available []string
	if a.positive != nil && a.negative != nil {
		available = append(available, MethodGeneral)
	}
	if a.vader != nil {
		available = append(available, MethodSocial)
	}
	if len(available) == 2 {
		available = append(available, MethodEnsemble)
	}
	return available
}

// Analyze scores one text. Returns nil when the text is empty after
// cleaning or when no scoring method is available; it never returns an
// error for bad input.
func (a *Analyzer) Analyze(text string) *models.SentimentResult {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}
	for _, method := range a.chain() {
		var result *models.SentimentResult
		switch method {
		case MethodEnsemble:
			result = a.scoreEnsemble(cleaned)
		case MethodSocial:
			result = a.scoreSocial(cleaned)
		case MethodGeneral:
			result = a.scoreGeneral(cleaned)
		}
		if result != nil {
			return result
		}
	}
	return nil
}

// chain returns the method preference order: the configured method first,
// then the remaining methods as fallbacks.
func (a *Analyzer) chain() []string {
	switch a.method {
	case MethodGeneral:
		return []string{MethodGeneral, MethodSocial}
	case MethodSocial:
		return []string{MethodSocial, MethodGeneral}
	default:
		return []string{MethodEnsemble, MethodSocial, MethodGeneral}
	}
}

// scoreGeneral matches words against the polarity lexicons. The score is
// the matched-word balance scaled by text length; confidence rises with
// score magnitude and lexicon coverage.
func (a *Analyzer) scoreGeneral(cleaned string) *models.SentimentResult {
	if a.positive == nil || a.negative == nil {
		return nil
	}
	words := tokenize(cleaned)
	if len(words) == 0 {
		return nil
	}

	positiveCount := 0
	negativeCount := 0
	for _, word := range words {
		if a.positive[word] {
			positiveCount++
		}
		if a.negative[word] {
			negativeCount++
		}
	}

	score := 0.0
	if positiveCount+negativeCount > 0 {
		score = (float64(positiveCount) - float64(negativeCount)) / float64(len(words))
		score = math.Max(-1.0, math.Min(1.0, score*10))
	}
	score = round2(score)

	coverage := float64(positiveCount+negativeCount) / float64(len(words))
	return &models.SentimentResult{
		Score:      score,
		Label:      labelFor(score),
		Confidence: clampConfidence(math.Abs(score)*0.7 + coverage*0.3),
		Method:     MethodGeneral,
	}
}

// scoreSocial uses the VADER social-media lexicon. Capitalization and
// punctuation carry intensity there, so it receives the cleaned text with
// original casing.
func (a *Analyzer) scoreSocial(cleaned string) *models.SentimentResult {
	if a.vader == nil {
		return nil
	}
	polarity := a.vader.PolarityScores(cleaned)
	score := round2(polarity.Compound)

	strength := math.Max(polarity.Positive, polarity.Negative) - polarity.Neutral
	if strength < 0 {
		strength = 0
	}
	return &models.SentimentResult{
		Score:      score,
		Label:      labelFor(score),
		Confidence: clampConfidence(math.Abs(polarity.Compound)*0.6 + strength*0.4),
		Method:     MethodSocial,
	}
}

// scoreEnsemble runs both scorers and combines them. When only one backend
// is available its result is passed through with the sub-method noted.
func (a *Analyzer) scoreEnsemble(cleaned string) *models.SentimentResult {
	social := a.scoreSocial(cleaned)
	general := a.scoreGeneral(cleaned)

	switch {
	case social == nil && general == nil:
		return nil
	case social == nil:
		general.Method = "ensemble(general)"
		return general
	case general == nil:
		social.Method = "ensemble(social)"
		return social
	}
	return combine(social, general)
}

// combine merges a social and a general result into one ensemble result.
// Pure function; both inputs must be non-nil.
func combine(social, general *models.SentimentResult) *models.SentimentResult {
	score := round2(social.Score*socialWeight + general.Score*generalWeight)
	confidence := social.Confidence*socialWeight + general.Confidence*generalWeight
	if social.Score*general.Score < 0 {
		confidence *= disagreementDiscount
	}
	return &models.SentimentResult{
		Score:      score,
		Label:      labelFor(score),
		Confidence: clampConfidence(confidence),
		Method:     MethodEnsemble,
	}
}

// Clean strips URLs and collapses runaway punctuation and whitespace. Case
// is preserved; methods that need lowercase normalize themselves.
func Clean(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	text = punctRunPattern.ReplaceAllString(text, "...")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// tokenize lowercases and splits a text into plain words.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = nonWordPattern.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

func labelFor(score float64) string {
	switch {
	case score > epsilon:
		return models.LabelPositive
	case score < -epsilon:
		return models.LabelNegative
	default:
		return models.LabelNeutral
	}
}

func clampConfidence(c float64) float64 {
	return math.Max(0.10, math.Min(0.95, c))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
