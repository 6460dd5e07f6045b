package entities

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zombar/socialpulse/internal/models"
	"github.com/zombar/socialpulse/internal/ollama"
)

// Recognition methods, in chain preference order.
const (
	MethodModel   = "model"
	MethodRule    = "rule"
	MethodRegex   = "regex"
	MethodContext = "context"
)

const (
	contextRadius = 30

	personConfidence    = 0.77
	orgSuffixConfidence = 0.80
	knownOrgConfidence  = 0.91
	locationConfidence  = 0.75
	patternConfidence   = 0.80
	modelConfidence     = 0.75
	hintConfidence      = 0.95
	maxConfidence       = 0.95
	orgBoost            = 1.2
)

// Recognizer finds named entities in post text. The model method needs an
// Ollama client; the rule and regex methods work offline.
type Recognizer struct {
	ollama    *ollama.Client
	knownOrgs map[string]bool
	locations map[string]bool
	skipWords map[string]bool
	suffixes  map[string]bool
}

// New creates a recognizer without LLM support.
func New() *Recognizer {
	return &Recognizer{
		knownOrgs: getKnownOrganizations(),
		locations: getKnownLocations(),
		skipWords: getSkipWords(),
		suffixes:  getOrgSuffixes(),
	}
}

// NewWithOllama creates a recognizer that tries the model method first.
func NewWithOllama(client *ollama.Client) *Recognizer {
	r := New()
	r.ollama = client
	return r
}

// Methods reports the recognition methods available to this instance.
func (r *Recognizer) Methods() []string {
	methods := []string{}
	if r.ollama != nil {
		methods = append(methods, MethodModel)
	}
	return append(methods, MethodRule, MethodRegex)
}

// Recognize extracts entities from text. The first available method in the
// chain runs (model when configured, rule otherwise), then the regex
// patterns always run on top so money, percent, date and time mentions
// survive a model miss. contextHint names the company under analysis: a
// matching organization gets a confidence boost, and a hint present in the
// text but missed by every method is injected. The hint never removes
// anything. Results never overlap and are sorted by start offset.
func (r *Recognizer) Recognize(ctx context.Context, text, contextHint string) []models.Entity {
	if strings.TrimSpace(text) == "" {
		return []models.Entity{}
	}

	var candidates []models.Entity
	if r.ollama != nil {
		modelEntities, err := r.extractWithModel(ctx, text)
		if err != nil {
			slog.Debug("model entity extraction failed, using rules", "error", err)
			candidates = r.extractWithRules(text)
		} else {
			candidates = modelEntities
		}
	} else {
		candidates = r.extractWithRules(text)
	}

	candidates = append(candidates, extractWithPatterns(text)...)
	result := dedupe(candidates)

	if contextHint != "" {
		result = r.applyContextHint(result, text, contextHint)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].End < result[j].End
	})
	return result
}

func (r *Recognizer) extractWithModel(ctx context.Context, text string) ([]models.Entity, error) {
	candidates, err := r.ollama.ExtractEntities(ctx, text)
	if err != nil {
		return nil, err
	}
	return locateCandidates(text, candidates), nil
}

// locateCandidates maps model output onto source spans. Each candidate
// claims the first occurrence of its text not already claimed; candidates
// that never appear in the source are dropped.
func locateCandidates(text string, candidates []ollama.EntityCandidate) []models.Entity {
	textLower := strings.ToLower(text)
	searchFrom := make(map[string]int)

	var entities []models.Entity
	for _, candidate := range candidates {
		needle := strings.ToLower(strings.TrimSpace(candidate.Text))
		if needle == "" {
			continue
		}

		from := searchFrom[needle]
		if from >= len(textLower) {
			continue
		}
		offset := strings.Index(textLower[from:], needle)
		if offset < 0 {
			continue
		}
		start := from + offset
		end := start + len(needle)
		searchFrom[needle] = end

		confidence := candidate.Confidence
		if confidence <= 0 {
			confidence = modelConfidence
		}
		if confidence > 0.99 {
			confidence = 0.99
		}

		entities = append(entities, models.Entity{
			Text:       text[start:end],
			Type:       normalizeType(candidate.Type),
			Confidence: confidence,
			Start:      start,
			End:        end,
			Context:    contextWindow(text, start, end),
			Method:     MethodModel,
		})
	}
	return entities
}

// normalizeType maps model output labels onto the entity type enum.
func normalizeType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case models.EntityPerson:
		return models.EntityPerson
	case models.EntityOrg, "ORGANIZATION", "COMPANY":
		return models.EntityOrg
	case models.EntityLocation, "GPE", "LOC", "PLACE":
		return models.EntityLocation
	case models.EntityMoney:
		return models.EntityMoney
	case models.EntityPercent:
		return models.EntityPercent
	case models.EntityDate:
		return models.EntityDate
	case models.EntityTime:
		return models.EntityTime
	case models.EntityProduct:
		return models.EntityProduct
	default:
		return models.EntityMisc
	}
}

func (r *Recognizer) extractWithRules(text string) []models.Entity {
	var entities []models.Entity

	for _, loc := range orgSuffixPattern.FindAllStringIndex(text, -1) {
		span := text[loc[0]:loc[1]]
		confidence := orgSuffixConfidence
		if r.containsKnownOrg(span) {
			confidence = boostConfidence(confidence)
		}
		entities = append(entities, models.Entity{
			Text:       span,
			Type:       models.EntityOrg,
			Confidence: confidence,
			Start:      loc[0],
			End:        loc[1],
			Context:    contextWindow(text, loc[0], loc[1]),
			Method:     MethodRule,
		})
	}

	for _, loc := range capitalizedPattern.FindAllStringIndex(text, -1) {
		start, end := r.trimLeadingNoise(text, loc[0], loc[1])
		if start >= end {
			continue
		}
		span := text[start:end]
		words := strings.Fields(span)

		var entityType string
		var confidence float64
		if len(words) > 1 {
			entityType = models.EntityPerson
			confidence = personConfidence
			if r.suffixes[words[len(words)-1]] {
				entityType = models.EntityOrg
				confidence = orgSuffixConfidence
			}
		} else {
			word := strings.ToLower(words[0])
			switch {
			case r.knownOrgs[word]:
				entityType = models.EntityOrg
				confidence = knownOrgConfidence
			case r.locations[word]:
				entityType = models.EntityLocation
				confidence = locationConfidence
			default:
				continue
			}
		}

		if entityType == models.EntityOrg && confidence < knownOrgConfidence && r.containsKnownOrg(span) {
			confidence = boostConfidence(confidence)
		}

		entities = append(entities, models.Entity{
			Text:       span,
			Type:       entityType,
			Confidence: confidence,
			Start:      start,
			End:        end,
			Context:    contextWindow(text, start, end),
			Method:     MethodRule,
		})
	}

	return entities
}

// trimLeadingNoise drops leading capitalized filler from a span so
// "The Acme Team" resolves to "Acme Team". Spans of nothing but filler
// trim to empty.
func (r *Recognizer) trimLeadingNoise(text string, start, end int) (int, int) {
	for start < end {
		rest := text[start:end]
		word := rest
		if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
			word = rest[:i]
		}
		if !r.skipWords[strings.ToLower(word)] {
			break
		}
		start += len(word)
		for start < end {
			ch, size := utf8.DecodeRuneInString(text[start:end])
			if !unicode.IsSpace(ch) {
				break
			}
			start += size
		}
	}
	return start, end
}

func (r *Recognizer) containsKnownOrg(span string) bool {
	for _, word := range strings.Fields(strings.ToLower(span)) {
		if r.knownOrgs[strings.Trim(word, ".,&")] {
			return true
		}
	}
	return false
}

// extractWithPatterns finds money, percent, date and time mentions. These
// run regardless of which primary method handled the text.
func extractWithPatterns(text string) []models.Entity {
	var entities []models.Entity
	add := func(loc []int, entityType string) {
		entities = append(entities, models.Entity{
			Text:       text[loc[0]:loc[1]],
			Type:       entityType,
			Confidence: patternConfidence,
			Start:      loc[0],
			End:        loc[1],
			Context:    contextWindow(text, loc[0], loc[1]),
			Method:     MethodRegex,
		})
	}

	for _, loc := range moneyPattern.FindAllStringIndex(text, -1) {
		add(loc, models.EntityMoney)
	}
	for _, loc := range percentPattern.FindAllStringIndex(text, -1) {
		add(loc, models.EntityPercent)
	}
	for _, pattern := range datePatterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			add(loc, models.EntityDate)
		}
	}
	for _, loc := range timePattern.FindAllStringIndex(text, -1) {
		add(loc, models.EntityTime)
	}
	return entities
}

// dedupe resolves overlapping spans. Higher confidence wins, then the
// longer span, then the earlier method in the chain.
func dedupe(candidates []models.Entity) []models.Entity {
	if len(candidates) == 0 {
		return []models.Entity{}
	}

	ranked := make([]models.Entity, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		if methodRank(a.Method) != methodRank(b.Method) {
			return methodRank(a.Method) < methodRank(b.Method)
		}
		return a.Start < b.Start
	})

	kept := []models.Entity{}
	for _, candidate := range ranked {
		overlaps := false
		for _, existing := range kept {
			if candidate.Start < existing.End && candidate.End > existing.Start {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func methodRank(method string) int {
	switch method {
	case MethodModel:
		return 0
	case MethodRule:
		return 1
	case MethodRegex:
		return 2
	default:
		return 3
	}
}

// applyContextHint raises confidence on organizations matching the company
// under analysis, or injects the company when every method missed it.
func (r *Recognizer) applyContextHint(entities []models.Entity, text, hint string) []models.Entity {
	hintLower := strings.ToLower(hint)

	boosted := false
	for i := range entities {
		if entities[i].Type != models.EntityOrg {
			continue
		}
		if strings.Contains(strings.ToLower(entities[i].Text), hintLower) {
			entities[i].Confidence = boostConfidence(entities[i].Confidence)
			boosted = true
		}
	}
	if boosted {
		return entities
	}

	start := strings.Index(strings.ToLower(text), hintLower)
	if start < 0 {
		return entities
	}
	end := start + len(hint)
	for _, existing := range entities {
		if start < existing.End && end > existing.Start {
			return entities
		}
	}

	return append(entities, models.Entity{
		Text:       text[start:end],
		Type:       models.EntityOrg,
		Confidence: hintConfidence,
		Start:      start,
		End:        end,
		Context:    contextWindow(text, start, end),
		Method:     MethodContext,
	})
}

func boostConfidence(confidence float64) float64 {
	boosted := confidence * orgBoost
	if boosted > maxConfidence {
		return maxConfidence
	}
	return boosted
}

// contextWindow returns the snippet around a span, clamped to rune
// boundaries so multi-byte characters at the edges stay intact.
func contextWindow(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
