package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zombar/socialpulse/internal/entities"
	"github.com/zombar/socialpulse/internal/models"
	"github.com/zombar/socialpulse/internal/sentiment"
	"github.com/zombar/socialpulse/internal/topics"
)

// Sentinel errors for posts the pipeline refuses rather than fails on.
var (
	ErrEmptyPost           = errors.New("post content is empty")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Config controls pipeline behavior. The zero value is not usable; start
// from DefaultConfig or load one via the config package, which layers the
// yaml file and environment variables over these defaults.
type Config struct {
	SentimentMethod    string   `yaml:"sentiment_method" env:"SENTIMENT_METHOD"`
	TopicMethod        string   `yaml:"topic_method" env:"TOPIC_METHOD"`
	MaxTopicsPerBatch  int      `yaml:"max_topics_per_batch" env:"MAX_TOPICS_PER_BATCH"`
	MinTextsForTopics  int      `yaml:"min_texts_for_topics" env:"MIN_TEXTS_FOR_TOPICS"`
	MaxEntitiesPerText int      `yaml:"max_entities_per_text" env:"MAX_ENTITIES_PER_TEXT"`
	SupportedLanguages []string `yaml:"supported_languages" env:"SUPPORTED_LANGUAGES"`
	EnableParallel     bool     `yaml:"enable_parallel_processing" env:"ENABLE_PARALLEL_PROCESSING"`
	MaxWorkers         int      `yaml:"max_workers" env:"MAX_WORKERS"`
	TimeoutSeconds     float64  `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		SentimentMethod:    sentiment.MethodEnsemble,
		TopicMethod:        topics.MethodAuto,
		MaxTopicsPerBatch:  5,
		MinTextsForTopics:  3,
		MaxEntitiesPerText: 20,
		SupportedLanguages: []string{"en", "fr", "nl"},
		EnableParallel:     true,
		MaxWorkers:         4,
		TimeoutSeconds:     30,
	}
}

// Validate checks every field and reports all violations at once so a bad
// config file can be fixed in one round trip.
func (c Config) Validate() error {
	var problems []string

	switch c.SentimentMethod {
	case sentiment.MethodGeneral, sentiment.MethodSocial, sentiment.MethodEnsemble:
	default:
		problems = append(problems, fmt.Sprintf("sentiment_method: %q is not one of general, social, ensemble", c.SentimentMethod))
	}
	switch c.TopicMethod {
	case topics.MethodClustering, topics.MethodFrequency, topics.MethodAuto:
	default:
		problems = append(problems, fmt.Sprintf("topic_method: %q is not one of clustering, frequency, auto", c.TopicMethod))
	}
	if c.MaxTopicsPerBatch < 1 {
		problems = append(problems, fmt.Sprintf("max_topics_per_batch: %d must be at least 1", c.MaxTopicsPerBatch))
	}
	if c.MinTextsForTopics < 1 {
		problems = append(problems, fmt.Sprintf("min_texts_for_topics: %d must be at least 1", c.MinTextsForTopics))
	}
	if c.MaxEntitiesPerText < 1 {
		problems = append(problems, fmt.Sprintf("max_entities_per_text: %d must be at least 1", c.MaxEntitiesPerText))
	}
	if c.MaxWorkers < 1 {
		problems = append(problems, fmt.Sprintf("max_workers: %d must be at least 1", c.MaxWorkers))
	}
	if c.TimeoutSeconds <= 0 {
		problems = append(problems, fmt.Sprintf("timeout_seconds: %v must be positive", c.TimeoutSeconds))
	}
	for _, lang := range c.SupportedLanguages {
		if strings.TrimSpace(lang) == "" {
			problems = append(problems, "supported_languages: entries must not be blank")
			break
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid pipeline config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SentimentAnalyzer scores the polarity of one text
type SentimentAnalyzer interface {
	Analyze(text string) *models.SentimentResult
	Methods() []string
}

// TopicExtractor derives shared themes from a batch of texts
type TopicExtractor interface {
	Extract(texts []string, maxTopics int) []models.Topic
	Methods() []string
}

// EntityRecognizer finds named entities in one text
type EntityRecognizer interface {
	Recognize(ctx context.Context, text, contextHint string) []models.Entity
	Methods() []string
}

// Option overrides one of the pipeline's analyzers
type Option func(*Pipeline)

func WithSentimentAnalyzer(a SentimentAnalyzer) Option {
	return func(p *Pipeline) { p.sentiment = a }
}

func WithTopicExtractor(e TopicExtractor) Option {
	return func(p *Pipeline) { p.topics = e }
}

func WithEntityRecognizer(r EntityRecognizer) Option {
	return func(p *Pipeline) { p.entities = r }
}

// Pipeline runs sentiment, topic and entity analysis over posts. It is safe
// for concurrent use; cumulative stats are guarded by a mutex.
type Pipeline struct {
	cfg       Config
	sentiment SentimentAnalyzer
	topics    TopicExtractor
	entities  EntityRecognizer
	langs     map[string]bool // empty means language filtering is off

	mu       sync.Mutex
	counters counters
}

// New builds a Pipeline from cfg. The config is validated eagerly so a
// misconfigured service fails at startup, not on the first request.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		sentiment: sentiment.New(cfg.SentimentMethod),
		topics:    topics.New(cfg.TopicMethod, cfg.MinTextsForTopics),
		entities:  entities.New(),
		langs:     make(map[string]bool, len(cfg.SupportedLanguages)),
	}
	for _, lang := range cfg.SupportedLanguages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			p.langs[lang] = true
		}
	}
	p.counters = newCounters()

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessOne analyzes a single post. Topics are batch-level and therefore
// absent from single-post analyses. Skipped posts (empty content,
// unsupported language) return ErrEmptyPost or ErrUnsupportedLanguage.
func (p *Pipeline) ProcessOne(ctx context.Context, post models.Post, contextHint string) (*models.PostAnalysis, error) {
	return p.processPost(ctx, post, contextHint, nil)
}

// ProcessBatch analyzes posts as one batch: topics are extracted once over
// the whole corpus and attached to every analysis. Analyses preserve the
// input order; skipped and errored posts are counted instead of appearing.
// When the context is cancelled mid-batch the completed work is returned
// together with the context error.
func (p *Pipeline) ProcessBatch(ctx context.Context, posts []models.Post, contextHint string) (*models.BatchResult, error) {
	start := time.Now()
	result := &models.BatchResult{PostCount: len(posts)}
	if len(posts) == 0 {
		return result, nil
	}

	result.Topics = p.extractBatchTopics(posts)

	type slot struct {
		analysis *models.PostAnalysis
		err      error
		seen     bool
	}
	slots := make([]slot, len(posts))

	if p.runParallel(len(posts)) {
		workers := p.cfg.MaxWorkers
		if workers > len(posts) {
			workers = len(posts)
		}
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					a, err := p.processPost(ctx, posts[i], contextHint, result.Topics)
					slots[i] = slot{analysis: a, err: err, seen: true}
				}
			}()
		}
	dispatch:
		for i := range posts {
			select {
			case jobs <- i:
			case <-ctx.Done():
				break dispatch
			}
		}
		close(jobs)
		wg.Wait()
	} else {
		for i := range posts {
			if ctx.Err() != nil {
				break
			}
			a, err := p.processPost(ctx, posts[i], contextHint, result.Topics)
			slots[i] = slot{analysis: a, err: err, seen: true}
		}
	}

	for _, s := range slots {
		switch {
		case !s.seen: // cancelled before dispatch
		case s.analysis != nil:
			result.Analyses = append(result.Analyses, s.analysis)
		case errors.Is(s.err, ErrEmptyPost) || errors.Is(s.err, ErrUnsupportedLanguage):
			result.Skipped++
		case s.err != nil:
			result.Errored++
			result.Errors = append(result.Errors, s.err.Error())
		}
	}

	if len(result.Topics) > 0 {
		p.recordTopics(result.Topics, len(result.Analyses))
	}

	result.ElapsedMS = elapsedMS(start)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// extractBatchTopics runs topic extraction over every usable text in the
// batch. Below the configured minimum the batch gets no topics.
func (p *Pipeline) extractBatchTopics(posts []models.Post) []models.Topic {
	texts := make([]string, 0, len(posts))
	for _, post := range posts {
		if cleaned := sentiment.Clean(post.Content); cleaned != "" {
			texts = append(texts, cleaned)
		}
	}
	if len(texts) < p.cfg.MinTextsForTopics {
		return nil
	}
	return p.topics.Extract(texts, p.cfg.MaxTopicsPerBatch)
}

func (p *Pipeline) processPost(ctx context.Context, post models.Post, contextHint string, batchTopics []models.Topic) (*models.PostAnalysis, error) {
	start := time.Now()

	if strings.TrimSpace(post.Content) == "" {
		p.recordSkip()
		return nil, fmt.Errorf("post %s: %w", post.ID, ErrEmptyPost)
	}

	lang := p.resolveLanguage(post)
	if len(p.langs) > 0 && !p.langs[lang] {
		p.recordSkip()
		return nil, fmt.Errorf("post %s: language %q: %w", post.ID, lang, ErrUnsupportedLanguage)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	type outcome struct {
		sentiment *models.SentimentResult
		entities  []models.Entity
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		out.sentiment = p.sentiment.Analyze(post.Content)
		out.entities = p.entities.Recognize(ctx, post.Content, contextHint)
		done <- out
	}()

	select {
	case out := <-done:
		if len(out.entities) > p.cfg.MaxEntitiesPerText {
			out.entities = out.entities[:p.cfg.MaxEntitiesPerText]
		}
		analysis := &models.PostAnalysis{
			PostID:           post.ID,
			Sentiment:        out.sentiment,
			Topics:           batchTopics,
			Entities:         out.entities,
			Language:         lang,
			ProcessingTimeMS: elapsedMS(start),
			AnalyzedAt:       time.Now().UTC(),
		}
		p.recordSuccess(analysis)
		return analysis, nil
	case <-ctx.Done():
		p.recordError()
		return nil, fmt.Errorf("post %s: analysis aborted after %s: %w", post.ID, time.Since(start).Round(time.Millisecond), ctx.Err())
	}
}

func (p *Pipeline) runParallel(n int) bool {
	return p.cfg.EnableParallel && n > 2 && p.cfg.MaxWorkers > 1
}

func (p *Pipeline) timeout() time.Duration {
	return time.Duration(p.cfg.TimeoutSeconds * float64(time.Second))
}

// resolveLanguage prefers the declared post language over detection
func (p *Pipeline) resolveLanguage(post models.Post) string {
	if declared := strings.ToLower(strings.TrimSpace(post.Language)); declared != "" {
		return declared
	}
	return detectLanguage(post.Content)
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
