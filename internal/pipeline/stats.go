package pipeline

import (
	"sort"

	"github.com/zombar/socialpulse/internal/models"
)

// Stats is a snapshot of the pipeline's cumulative counters. Success rates
// are computed against analyzed posts with a floor of one so a fresh
// pipeline reports zeros instead of dividing by zero.
type Stats struct {
	TotalPosts          int                 `json:"total_posts"`
	AnalyzedPosts       int                 `json:"analyzed_posts"`
	SuccessfulSentiment int                 `json:"successful_sentiment"`
	SuccessfulTopics    int                 `json:"successful_topics"`
	SuccessfulEntities  int                 `json:"successful_entities"`
	SkippedPosts        int                 `json:"skipped_posts"`
	ErrorCount          int                 `json:"error_count"`
	AvgProcessingMS     float64             `json:"avg_processing_ms"`
	SuccessRates        map[string]float64  `json:"success_rates"`
	MethodsUsed         map[string][]string `json:"methods_used"`
}

type counters struct {
	seen        int
	analyzed    int
	sentimentOK int
	topicsOK    int
	entitiesOK  int
	skipped     int
	errored     int
	totalTimeMS float64
	methods     map[string]map[string]bool
}

func newCounters() counters {
	return counters{methods: map[string]map[string]bool{
		"sentiment": {},
		"topics":    {},
		"entities":  {},
	}}
}

func (p *Pipeline) recordSkip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.seen++
	p.counters.skipped++
}

func (p *Pipeline) recordError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.seen++
	p.counters.errored++
}

func (p *Pipeline) recordSuccess(analysis *models.PostAnalysis) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.seen++
	p.counters.analyzed++
	p.counters.totalTimeMS += analysis.ProcessingTimeMS
	if analysis.Sentiment != nil {
		p.counters.sentimentOK++
		p.counters.methods["sentiment"][analysis.Sentiment.Method] = true
	}
	if len(analysis.Entities) > 0 {
		p.counters.entitiesOK++
		for _, entity := range analysis.Entities {
			p.counters.methods["entities"][entity.Method] = true
		}
	}
}

// recordTopics is called once per batch: topics are shared by every
// analysis in the batch, so each analysis counts as a topic success.
func (p *Pipeline) recordTopics(batchTopics []models.Topic, analyses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.topicsOK += analyses
	for _, topic := range batchTopics {
		p.counters.methods["topics"][topic.Method] = true
	}
}

// Stats returns a snapshot of the cumulative counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	analyzed := p.counters.analyzed
	denom := analyzed
	if denom < 1 {
		denom = 1
	}

	methods := make(map[string][]string, len(p.counters.methods))
	for component, used := range p.counters.methods {
		names := make([]string, 0, len(used))
		for name := range used {
			names = append(names, name)
		}
		sort.Strings(names)
		methods[component] = names
	}

	avg := 0.0
	if analyzed > 0 {
		avg = p.counters.totalTimeMS / float64(analyzed)
	}

	return Stats{
		TotalPosts:          p.counters.seen,
		AnalyzedPosts:       analyzed,
		SuccessfulSentiment: p.counters.sentimentOK,
		SuccessfulTopics:    p.counters.topicsOK,
		SuccessfulEntities:  p.counters.entitiesOK,
		SkippedPosts:        p.counters.skipped,
		ErrorCount:          p.counters.errored,
		AvgProcessingMS:     avg,
		SuccessRates: map[string]float64{
			"sentiment": float64(p.counters.sentimentOK) / float64(denom),
			"topics":    float64(p.counters.topicsOK) / float64(denom),
			"entities":  float64(p.counters.entitiesOK) / float64(denom),
		},
		MethodsUsed: methods,
	}
}

// ResetStats zeroes the cumulative counters
func (p *Pipeline) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters = newCounters()
}

// ComponentStatus reports the analysis methods each component can run
func (p *Pipeline) ComponentStatus() map[string][]string {
	return map[string][]string{
		"sentiment": p.sentiment.Methods(),
		"topics":    p.topics.Methods(),
		"entities":  p.entities.Methods(),
	}
}
