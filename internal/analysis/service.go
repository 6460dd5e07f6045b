package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zombar/socialpulse/internal/models"
	"github.com/zombar/socialpulse/internal/pipeline"
)

// ErrNotEnoughCompanies is returned by Compare for fewer than two companies
var ErrNotEnoughCompanies = errors.New("comparison requires at least two companies")

// Aggregation caps. Summaries are meant to be read by humans, so the long
// tails of topics and entities get cut.
const (
	maxTopTopics   = 10
	maxKeyEntities = 20
)

// Trend thresholds over the analyzed-post share per label.
const (
	strongPositiveShare = 0.6
	moderateShare       = 0.4
)

// topicKeywordBudget normalizes topic diversity: a batch is considered
// maximally diverse when it yields this many distinct keywords per post.
const topicKeywordBudget = 5

// Processor runs post analyses. *pipeline.Pipeline satisfies it.
type Processor interface {
	ProcessOne(ctx context.Context, post models.Post, contextHint string) (*models.PostAnalysis, error)
	ProcessBatch(ctx context.Context, posts []models.Post, contextHint string) (*models.BatchResult, error)
	Stats() pipeline.Stats
	ResetStats()
	ComponentStatus() map[string][]string
}

// HintResolver maps a company name to the context hint handed to entity
// recognition. A nil resolver means the raw company name is the hint.
type HintResolver interface {
	Hint(company string) string
}

// CompanyBatch pairs a company with the posts to analyze for it
type CompanyBatch struct {
	Company string        `json:"company"`
	Posts   []models.Post `json:"posts"`
}

// Service turns raw posts into per-company summaries and cross-company
// comparisons on top of the analysis pipeline.
type Service struct {
	pipeline Processor
	hints    HintResolver
}

func New(p Processor, hints HintResolver) *Service {
	return &Service{pipeline: p, hints: hints}
}

func (s *Service) hintFor(company string) string {
	if s.hints != nil {
		if hint := s.hints.Hint(company); hint != "" {
			return hint
		}
	}
	return company
}

// AnalyzeOne analyzes a single post with the company's context hint
func (s *Service) AnalyzeOne(ctx context.Context, company string, post models.Post) (*models.PostAnalysis, error) {
	return s.pipeline.ProcessOne(ctx, post, s.hintFor(company))
}

// AnalyzeCompany runs the pipeline over posts and aggregates the outcome.
// Both the raw batch (for persistence) and the summary are returned.
func (s *Service) AnalyzeCompany(ctx context.Context, company string, posts []models.Post) (*models.BatchResult, *models.CompanyAnalysisSummary, error) {
	batch, err := s.pipeline.ProcessBatch(ctx, posts, s.hintFor(company))
	if err != nil {
		return batch, nil, fmt.Errorf("analyzing %s: %w", company, err)
	}
	return batch, buildSummary(company, len(posts), batch), nil
}

// Summarize analyzes posts for one company and returns the aggregate view.
// Zero posts yield a zero-valued summary rather than an error.
func (s *Service) Summarize(ctx context.Context, company string, posts []models.Post) (*models.CompanyAnalysisSummary, error) {
	_, summary, err := s.AnalyzeCompany(ctx, company, posts)
	return summary, err
}

// Compare analyzes several companies and ranks them against each other.
// At least two distinct companies are required.
func (s *Service) Compare(ctx context.Context, batches []CompanyBatch) (*models.ComparisonReport, error) {
	distinct := make(map[string]bool, len(batches))
	for _, b := range batches {
		if name := strings.TrimSpace(b.Company); name != "" {
			distinct[strings.ToLower(name)] = true
		}
	}
	if len(distinct) < 2 {
		return nil, ErrNotEnoughCompanies
	}

	summaries := make([]*models.CompanyAnalysisSummary, 0, len(batches))
	for _, b := range batches {
		summary, err := s.Summarize(ctx, b.Company, b.Posts)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return BuildComparison(summaries), nil
}

// Stats reports the pipeline's cumulative counters
func (s *Service) Stats() pipeline.Stats {
	return s.pipeline.Stats()
}

// ResetStats zeroes the pipeline's cumulative counters
func (s *Service) ResetStats() {
	s.pipeline.ResetStats()
}

// ComponentStatus reports which analysis methods are active
func (s *Service) ComponentStatus() map[string][]string {
	return s.pipeline.ComponentStatus()
}

func buildSummary(company string, totalPosts int, batch *models.BatchResult) *models.CompanyAnalysisSummary {
	summary := &models.CompanyAnalysisSummary{
		Company:   company,
		PostCount: totalPosts,
		SentimentDistribution: map[string]int{
			models.LabelPositive: 0,
			models.LabelNegative: 0,
			models.LabelNeutral:  0,
		},
		SentimentTrend:   "neutral overall",
		TopTopics:        []models.Topic{},
		KeyEntities:      []models.EntityMention{},
		EntityTypeCounts: map[string]int{},
		Processing:       models.ProcessingSummary{TotalPosts: totalPosts},
		GeneratedAt:      time.Now().UTC(),
	}
	if batch == nil {
		return summary
	}

	analyses := batch.Analyses
	summary.AnalyzedCount = len(analyses)
	summary.Processing.AnalyzedPosts = len(analyses)
	summary.Processing.SkippedPosts = batch.Skipped
	summary.Processing.ErrorCount = batch.Errored

	if len(analyses) == 0 {
		return summary
	}

	var scoreSum, timeSum float64
	scored := 0
	for _, a := range analyses {
		timeSum += a.ProcessingTimeMS
		if a.Sentiment == nil {
			continue
		}
		scored++
		scoreSum += a.Sentiment.Score
		summary.SentimentDistribution[a.Sentiment.Label]++
	}
	if scored > 0 {
		summary.AvgSentiment = scoreSum / float64(scored)
	}
	summary.SentimentTrend = trendFor(summary.SentimentDistribution, len(analyses))
	summary.Processing.AvgTimeMS = timeSum / float64(len(analyses))

	summary.TopTopics, summary.TopicDiversity = aggregateTopics(analyses)
	summary.KeyEntities = aggregateEntities(analyses, summary.EntityTypeCounts)

	return summary
}

// trendFor names the overall mood from the label shares of analyzed posts
func trendFor(distribution map[string]int, analyzed int) string {
	if analyzed == 0 {
		return "neutral overall"
	}
	positive := float64(distribution[models.LabelPositive]) / float64(analyzed)
	negative := float64(distribution[models.LabelNegative]) / float64(analyzed)

	switch {
	case positive > strongPositiveShare:
		return "predominantly positive"
	case negative > moderateShare:
		return "mixed with negative concerns"
	case positive > moderateShare:
		return "generally positive"
	default:
		return "neutral overall"
	}
}

// aggregateTopics merges per-post topic lists into a deduplicated ranking.
// Relevance is summed across posts carrying the same topic name (then
// clamped to the 0..1 field contract) so a topic shared by many posts
// outranks a strong topic on a single post.
func aggregateTopics(analyses []*models.PostAnalysis) ([]models.Topic, float64) {
	type agg struct {
		topic models.Topic
		sum   float64
	}
	byName := make(map[string]*agg)
	uniqueKeywords := make(map[string]bool)

	for _, a := range analyses {
		for _, topic := range a.Topics {
			for _, kw := range topic.Keywords {
				uniqueKeywords[kw] = true
			}
			entry, ok := byName[topic.Name]
			if !ok {
				byName[topic.Name] = &agg{topic: topic, sum: topic.Relevance}
				continue
			}
			entry.sum += topic.Relevance
			if topic.Confidence > entry.topic.Confidence {
				entry.topic.Confidence = topic.Confidence
			}
		}
	}

	entries := make([]*agg, 0, len(byName))
	for _, entry := range byName {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].sum != entries[j].sum {
			return entries[i].sum > entries[j].sum
		}
		return entries[i].topic.Name < entries[j].topic.Name
	})
	if len(entries) > maxTopTopics {
		entries = entries[:maxTopTopics]
	}

	top := make([]models.Topic, 0, len(entries))
	for _, entry := range entries {
		topic := entry.topic
		topic.Relevance = entry.sum
		if topic.Relevance > 1 {
			topic.Relevance = 1
		}
		top = append(top, topic)
	}

	diversity := float64(len(uniqueKeywords)) / float64(len(analyses)*topicKeywordBudget)
	if diversity > 1 {
		diversity = 1
	}
	return top, diversity
}

// aggregateEntities tallies mentions by (text, type), counting every
// occurrence into typeCounts and keeping the highest confidence seen.
func aggregateEntities(analyses []*models.PostAnalysis, typeCounts map[string]int) []models.EntityMention {
	type key struct {
		text string
		typ  string
	}
	tallies := make(map[key]*models.EntityMention)

	for _, a := range analyses {
		for _, entity := range a.Entities {
			typeCounts[entity.Type]++
			k := key{strings.ToLower(entity.Text), entity.Type}
			mention, ok := tallies[k]
			if !ok {
				tallies[k] = &models.EntityMention{
					Text:       entity.Text,
					Type:       entity.Type,
					Count:      1,
					Confidence: entity.Confidence,
				}
				continue
			}
			mention.Count++
			if entity.Confidence > mention.Confidence {
				mention.Confidence = entity.Confidence
			}
		}
	}

	mentions := make([]models.EntityMention, 0, len(tallies))
	for _, mention := range tallies {
		mentions = append(mentions, *mention)
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Count != mentions[j].Count {
			return mentions[i].Count > mentions[j].Count
		}
		if mentions[i].Text != mentions[j].Text {
			return mentions[i].Text < mentions[j].Text
		}
		return mentions[i].Type < mentions[j].Type
	})
	if len(mentions) > maxKeyEntities {
		mentions = mentions[:maxKeyEntities]
	}
	return mentions
}

// BuildComparison ranks already-built summaries. Used by Compare and by the
// API when comparing stored summaries without re-analyzing.
func BuildComparison(summaries []*models.CompanyAnalysisSummary) *models.ComparisonReport {
	report := &models.ComparisonReport{
		Companies:   summaries,
		GeneratedAt: time.Now().UTC(),
	}

	bySentiment := make([]*models.CompanyAnalysisSummary, len(summaries))
	copy(bySentiment, summaries)
	sort.SliceStable(bySentiment, func(i, j int) bool {
		if bySentiment[i].AvgSentiment != bySentiment[j].AvgSentiment {
			return bySentiment[i].AvgSentiment > bySentiment[j].AvgSentiment
		}
		return bySentiment[i].Company < bySentiment[j].Company
	})

	byVolume := make([]*models.CompanyAnalysisSummary, len(summaries))
	copy(byVolume, summaries)
	sort.SliceStable(byVolume, func(i, j int) bool {
		if byVolume[i].PostCount != byVolume[j].PostCount {
			return byVolume[i].PostCount > byVolume[j].PostCount
		}
		return byVolume[i].Company < byVolume[j].Company
	})

	for _, s := range bySentiment {
		report.BySentiment = append(report.BySentiment, s.Company)
	}
	for _, s := range byVolume {
		report.ByPostVolume = append(report.ByPostVolume, s.Company)
	}
	if len(bySentiment) > 0 {
		report.MostPositive = bySentiment[0].Company
	}
	if len(byVolume) > 0 {
		report.MostDiscussed = byVolume[0].Company
	}
	return report
}
