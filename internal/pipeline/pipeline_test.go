package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/socialpulse/internal/models"
)

func testPosts() []models.Post {
	return []models.Post{
		{ID: "p1", Content: "Love the new cloud pricing, great value for enterprise teams!"},
		{ID: "p2", Content: "The cloud pricing change is terrible, very disappointed with support."},
		{ID: "p3", Content: "Cloud pricing update announced today for enterprise customers."},
		{ID: "p4", Content: "Enterprise support has been fantastic this quarter, love it."},
	}
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	return p
}

// slowSentiment sleeps before answering so timeout behavior can be forced
// from a test without a slow real analyzer.
type slowSentiment struct {
	delay    time.Duration
	trigger  string
	fallback SentimentAnalyzer
}

func (s *slowSentiment) Analyze(text string) *models.SentimentResult {
	if s.trigger == "" || strings.Contains(text, s.trigger) {
		time.Sleep(s.delay)
	}
	return s.fallback.Analyze(text)
}

func (s *slowSentiment) Methods() []string { return s.fallback.Methods() }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ensemble", cfg.SentimentMethod)
	assert.Equal(t, "auto", cfg.TopicMethod)
	assert.Equal(t, 5, cfg.MaxTopicsPerBatch)
	assert.Equal(t, 3, cfg.MinTextsForTopics)
	assert.Equal(t, 20, cfg.MaxEntitiesPerText)
	assert.Equal(t, []string{"en", "fr", "nl"}, cfg.SupportedLanguages)
	assert.True(t, cfg.EnableParallel)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 30.0, cfg.TimeoutSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SentimentMethod = "psychic"
	cfg.TopicMethod = "vibes"
	cfg.MaxWorkers = 0
	cfg.TimeoutSeconds = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"sentiment_method", "topic_method", "max_workers", "timeout_seconds"} {
		assert.Contains(t, err.Error(), field)
	}

	_, err = New(cfg)
	assert.Error(t, err)
}

func TestConfigValidateSingleField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad sentiment method", func(c *Config) { c.SentimentMethod = "x" }, "sentiment_method"},
		{"bad topic method", func(c *Config) { c.TopicMethod = "x" }, "topic_method"},
		{"zero max topics", func(c *Config) { c.MaxTopicsPerBatch = 0 }, "max_topics_per_batch"},
		{"zero min texts", func(c *Config) { c.MinTextsForTopics = 0 }, "min_texts_for_topics"},
		{"zero entity cap", func(c *Config) { c.MaxEntitiesPerText = 0 }, "max_entities_per_text"},
		{"blank language", func(c *Config) { c.SupportedLanguages = []string{"en", " "} }, "supported_languages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestProcessOne(t *testing.T) {
	p := newTestPipeline(t)

	analysis, err := p.ProcessOne(context.Background(), models.Post{
		ID:      "p1",
		Content: "I love the amazing new product from Acme Corp, launched in Paris!",
	}, "")
	require.NoError(t, err)
	require.NotNil(t, analysis)

	assert.Equal(t, "p1", analysis.PostID)
	require.NotNil(t, analysis.Sentiment)
	assert.Equal(t, models.LabelPositive, analysis.Sentiment.Label)
	assert.Equal(t, "en", analysis.Language)
	assert.NotEmpty(t, analysis.Entities)
	assert.Empty(t, analysis.Topics) // topics are batch-level
	assert.GreaterOrEqual(t, analysis.ProcessingTimeMS, 0.0)
	assert.False(t, analysis.AnalyzedAt.IsZero())
}

func TestProcessOneEmptyContent(t *testing.T) {
	p := newTestPipeline(t)

	for _, content := range []string{"", "   \t\n"} {
		analysis, err := p.ProcessOne(context.Background(), models.Post{ID: "e1", Content: content}, "")
		assert.Nil(t, analysis)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyPost)
		assert.Contains(t, err.Error(), "e1")
	}

	stats := p.Stats()
	assert.Equal(t, 2, stats.SkippedPosts)
	assert.Equal(t, 0, stats.AnalyzedPosts)
}

func TestProcessOneUnsupportedLanguage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedLanguages = []string{"en"}
	p, err := New(cfg)
	require.NoError(t, err)

	analysis, err := p.ProcessOne(context.Background(), models.Post{
		ID:       "de1",
		Content:  "Das neue Produkt ist wunderbar",
		Language: "de",
	}, "")
	assert.Nil(t, analysis)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Equal(t, 1, p.Stats().SkippedPosts)
}

func TestProcessOneDeclaredLanguageWins(t *testing.T) {
	p := newTestPipeline(t)

	analysis, err := p.ProcessOne(context.Background(), models.Post{
		ID:       "fr1",
		Content:  "The product is wonderful and the launch was great", // reads English
		Language: "FR",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "fr", analysis.Language)
}

func TestProcessOneFilteringDisabledWhenNoLanguages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedLanguages = nil
	p, err := New(cfg)
	require.NoError(t, err)

	analysis, err := p.ProcessOne(context.Background(), models.Post{
		ID:       "xx1",
		Content:  "some content here",
		Language: "xx",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "xx", analysis.Language)
}

func TestProcessOneEntityCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntitiesPerText = 2
	p, err := New(cfg)
	require.NoError(t, err)

	analysis, err := p.ProcessOne(context.Background(), models.Post{
		ID:      "cap1",
		Content: "Tim Cook met Satya Nadella at Apple Inc in Paris on 2024-03-01 to discuss a $5 million deal worth 20% more.",
	}, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(analysis.Entities), 2)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "the launch was a success and sales are strong", "en"},
		{"french", "le produit est excellent et les clients sont contents", "fr"},
		{"dutch", "het bedrijf is groot en de resultaten zijn goed", "nl"},
		{"inconclusive defaults to english", "product launch!", "en"},
		{"empty defaults to english", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectLanguage(tt.text))
		})
	}
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	p := newTestPipeline(t)

	posts := testPosts()
	posts = append(posts[:2], append([]models.Post{{ID: "empty", Content: "  "}}, posts[2:]...)...)

	batch, err := p.ProcessBatch(context.Background(), posts, "")
	require.NoError(t, err)

	require.Len(t, batch.Analyses, 4)
	got := make([]string, 0, len(batch.Analyses))
	for _, a := range batch.Analyses {
		got = append(got, a.PostID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, got)
	assert.Equal(t, 1, batch.Skipped)
	assert.Equal(t, 0, batch.Errored)
	assert.Equal(t, 5, batch.PostCount)
}

func TestProcessBatchAttachesSharedTopics(t *testing.T) {
	p := newTestPipeline(t)

	batch, err := p.ProcessBatch(context.Background(), testPosts(), "")
	require.NoError(t, err)
	require.NotEmpty(t, batch.Topics, "expected topics from a batch with repeated terms")

	for _, analysis := range batch.Analyses {
		assert.Equal(t, batch.Topics, analysis.Topics)
	}
	assert.LessOrEqual(t, len(batch.Topics), DefaultConfig().MaxTopicsPerBatch)
}

func TestProcessBatchBelowTopicMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTextsForTopics = 10
	p, err := New(cfg)
	require.NoError(t, err)

	batch, err := p.ProcessBatch(context.Background(), testPosts(), "")
	require.NoError(t, err)
	assert.Empty(t, batch.Topics)
	require.NotEmpty(t, batch.Analyses)
	assert.Empty(t, batch.Analyses[0].Topics)
}

func TestProcessBatchEmpty(t *testing.T) {
	p := newTestPipeline(t)

	batch, err := p.ProcessBatch(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, batch.PostCount)
	assert.Empty(t, batch.Analyses)
	assert.Empty(t, batch.Topics)
}

func TestProcessBatchTimeoutRecordsError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 0.05
	real, err := New(cfg)
	require.NoError(t, err)

	p, err := New(cfg, WithSentimentAnalyzer(&slowSentiment{
		delay:    300 * time.Millisecond,
		trigger:  "SLOW",
		fallback: real.sentiment,
	}))
	require.NoError(t, err)

	posts := testPosts()
	posts[2].Content = "SLOW " + posts[2].Content

	batch, err := p.ProcessBatch(context.Background(), posts, "")
	require.NoError(t, err)

	assert.Equal(t, 1, batch.Errored)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0], "p3")
	for _, analysis := range batch.Analyses {
		assert.NotEqual(t, "p3", analysis.PostID)
	}
	assert.Len(t, batch.Analyses, 3)
	assert.Equal(t, 1, p.Stats().ErrorCount)
}

func TestProcessBatchCancellation(t *testing.T) {
	p := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := p.ProcessBatch(ctx, testPosts(), "")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.LessOrEqual(t, len(batch.Analyses), len(testPosts()))
}

func TestProcessBatchSequentialSmallBatch(t *testing.T) {
	p := newTestPipeline(t)

	// Two posts stay under the parallel threshold
	batch, err := p.ProcessBatch(context.Background(), testPosts()[:2], "")
	require.NoError(t, err)
	assert.Len(t, batch.Analyses, 2)
	assert.Equal(t, "p1", batch.Analyses[0].PostID)
	assert.Equal(t, "p2", batch.Analyses[1].PostID)
}

func TestProcessBatchIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	posts := testPosts()

	first, err := p.ProcessBatch(context.Background(), posts, "acme")
	require.NoError(t, err)
	second, err := p.ProcessBatch(context.Background(), posts, "acme")
	require.NoError(t, err)

	require.Len(t, second.Analyses, len(first.Analyses))
	for i := range first.Analyses {
		assert.Equal(t, first.Analyses[i].PostID, second.Analyses[i].PostID)
		assert.Equal(t, first.Analyses[i].Sentiment, second.Analyses[i].Sentiment)
		assert.Equal(t, first.Analyses[i].Language, second.Analyses[i].Language)
	}
	assert.Equal(t, first.Topics, second.Topics)
}

func TestStatsAccumulateAndReset(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ProcessBatch(context.Background(), testPosts(), "")
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 4, stats.TotalPosts)
	assert.Equal(t, 4, stats.AnalyzedPosts)
	assert.Equal(t, 4, stats.SuccessfulSentiment)
	assert.Greater(t, stats.AvgProcessingMS, 0.0)
	assert.InDelta(t, 1.0, stats.SuccessRates["sentiment"], 1e-9)
	assert.Contains(t, stats.MethodsUsed["sentiment"], "ensemble")

	p.ResetStats()
	fresh := p.Stats()
	assert.Equal(t, 0, fresh.TotalPosts)
	assert.Equal(t, 0.0, fresh.AvgProcessingMS)
	assert.Equal(t, 0.0, fresh.SuccessRates["sentiment"])
	assert.Empty(t, fresh.MethodsUsed["sentiment"])
}

func TestStatsFreshPipeline(t *testing.T) {
	p := newTestPipeline(t)
	stats := p.Stats()
	assert.Equal(t, 0, stats.TotalPosts)
	assert.Equal(t, 0.0, stats.SuccessRates["sentiment"])
	assert.Equal(t, 0.0, stats.SuccessRates["topics"])
	assert.Equal(t, 0.0, stats.SuccessRates["entities"])
}

func TestComponentStatus(t *testing.T) {
	p := newTestPipeline(t)
	status := p.ComponentStatus()

	require.Contains(t, status, "sentiment")
	require.Contains(t, status, "topics")
	require.Contains(t, status, "entities")
	assert.NotEmpty(t, status["sentiment"])
	assert.NotEmpty(t, status["topics"])
	assert.NotEmpty(t, status["entities"])
}

func TestErrorsDoNotAbortBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 0.05
	real, err := New(cfg)
	require.NoError(t, err)

	p, err := New(cfg, WithSentimentAnalyzer(&slowSentiment{
		delay:    300 * time.Millisecond,
		trigger:  "SLOW",
		fallback: real.sentiment,
	}))
	require.NoError(t, err)

	posts := []models.Post{
		{ID: "a", Content: "SLOW this one times out"},
		{ID: "b", Content: "Great product, love the new release!"},
		{ID: "c", Content: "Great product, love the new release a lot!"},
		{ID: "d", Content: "Great product, really love the new release!"},
	}
	batch, err := p.ProcessBatch(context.Background(), posts, "")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Errored)
	assert.Len(t, batch.Analyses, 3)

	var gotErr error = errors.New(batch.Errors[0])
	assert.Contains(t, gotErr.Error(), "a")
}
