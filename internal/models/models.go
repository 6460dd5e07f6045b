package models

import "time"

// Sentiment labels applied to analyzed posts.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Entity types recognized by the entity extraction chain.
const (
	EntityPerson   = "PERSON"
	EntityOrg      = "ORG"
	EntityLocation = "LOCATION"
	EntityMoney    = "MONEY"
	EntityPercent  = "PERCENT"
	EntityDate     = "DATE"
	EntityTime     = "TIME"
	EntityProduct  = "PRODUCT"
	EntityMisc     = "MISC"
)

// Job statuses for asynchronous batch analyses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Post is a single social-media post supplied by a collector or API caller
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"` // may be empty; the pipeline records empties as skips
	Language  string    `json:"language,omitempty"` // optional two-letter hint, "" = detect
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"` // sample, feed, api
	Company   string    `json:"company,omitempty"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Likes     int       `json:"likes,omitempty"`
	Comments  int       `json:"comments,omitempty"`
	Shares    int       `json:"shares,omitempty"`
}

// SentimentResult is the polarity assessment of a single text
type SentimentResult struct {
	Score      float64 `json:"score"`      // -1.0 to 1.0
	Label      string  `json:"label"`      // positive, negative, neutral
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	Method     string  `json:"method"`     // general, social, ensemble
}

// Topic is a named theme shared across the posts of one batch
type Topic struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	Relevance  float64  `json:"relevance"`  // 0.0 to 1.0
	Confidence float64  `json:"confidence"` // 0.0 to 1.0
	Method     string   `json:"method"`     // clustering, frequency
}

// Entity is a classified span of text
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"` // character offset, [Start,End)
	End        int     `json:"end"`
	Context    string  `json:"context,omitempty"` // surrounding snippet
	Method     string  `json:"method"`            // model, rule, regex
}

// PostAnalysis is the complete analysis of one post. Topics are extracted
// per batch and attached to every analysis in the batch. Immutable once
// built; aggregation never modifies it.
type PostAnalysis struct {
	PostID           string           `json:"post_id"`
	Sentiment        *SentimentResult `json:"sentiment,omitempty"`
	Topics           []Topic          `json:"topics"`
	Entities         []Entity         `json:"entities"`
	Language         string           `json:"language"`
	ProcessingTimeMS float64          `json:"processing_time_ms"`
	AnalyzedAt       time.Time        `json:"analyzed_at"`
}

// BatchResult is the outcome of one pipeline batch run. Analyses preserves
// the input post order; skipped and errored posts are absent from it and
// accounted for in the counters.
type BatchResult struct {
	Analyses  []*PostAnalysis `json:"analyses"`
	Topics    []Topic         `json:"topics"`
	PostCount int             `json:"post_count"`
	Skipped   int             `json:"skipped"`
	Errored   int             `json:"errored"`
	Errors    []string        `json:"errors,omitempty"`
	ElapsedMS float64         `json:"elapsed_ms"`
}

// EntityMention is an aggregated entity occurrence across a batch
type EntityMention struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"` // highest observed
}

// ProcessingSummary reports how a batch run went
type ProcessingSummary struct {
	TotalPosts    int     `json:"total_posts"`
	AnalyzedPosts int     `json:"analyzed_posts"`
	SkippedPosts  int     `json:"skipped_posts"`
	ErrorCount    int     `json:"error_count"`
	AvgTimeMS     float64 `json:"avg_time_ms"`
}

// CompanyAnalysisSummary aggregates a batch of post analyses for one company
type CompanyAnalysisSummary struct {
	Company               string            `json:"company"`
	PostCount             int               `json:"post_count"`
	AnalyzedCount         int               `json:"analyzed_count"`
	AvgSentiment          float64           `json:"avg_sentiment"`
	SentimentDistribution map[string]int    `json:"sentiment_distribution"` // always carries all three labels
	SentimentTrend        string            `json:"sentiment_trend"`
	TopTopics             []Topic           `json:"top_topics"`
	TopicDiversity        float64           `json:"topic_diversity"`
	KeyEntities           []EntityMention   `json:"key_entities"`
	EntityTypeCounts      map[string]int    `json:"entity_type_counts"`
	Processing            ProcessingSummary `json:"processing"`
	GeneratedAt           time.Time         `json:"generated_at"`
}

// AnalysisJob tracks an asynchronous batch analysis request
type AnalysisJob struct {
	ID          string    `json:"id"`
	Company     string    `json:"company"`
	Status      string    `json:"status"`
	PostCount   int       `json:"post_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// ComparisonReport ranks several companies by their latest summaries
type ComparisonReport struct {
	Companies     []*CompanyAnalysisSummary `json:"companies"`
	BySentiment   []string                  `json:"by_sentiment"` // company names, best average first
	ByPostVolume  []string                  `json:"by_post_volume"`
	MostPositive  string                    `json:"most_positive"`
	MostDiscussed string                    `json:"most_discussed"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}
