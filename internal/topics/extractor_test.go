package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aiCorpus = []string{
	"AI is transforming our data platform",
	"Machine learning models need quality data",
	"Our AI roadmap focuses on machine learning",
	"Data pipelines feed the AI models",
	"Machine learning and AI drive the data strategy",
}

func TestExtractBelowMinimum(t *testing.T) {
	e := New(MethodAuto, 3)
	topics := e.Extract([]string{"growth outlook", "pricing change"}, 5)
	assert.Empty(t, topics)
}

func TestExtractAICorpusScenario(t *testing.T) {
	e := New(MethodAuto, 2)
	topics := e.Extract(aiCorpus, 3)
	require.NotEmpty(t, topics)
	assert.LessOrEqual(t, len(topics), 3)

	found := false
	for _, topic := range topics {
		for _, kw := range topic.Keywords {
			if kw == "ai" || kw == "machine" || kw == "learning" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected an AI-related keyword in %+v", topics)
}

func TestExtractDeterministic(t *testing.T) {
	e := New(MethodAuto, 2)
	first := e.Extract(aiCorpus, 3)
	second := e.Extract(aiCorpus, 3)
	assert.Equal(t, first, second)
}

func TestExtractSortedByRelevance(t *testing.T) {
	e := New(MethodFrequency, 2)
	topics := e.Extract([]string{
		"pricing pricing pricing growth",
		"pricing growth outlook revenue",
		"revenue outlook pricing growth",
	}, 10)
	require.NotEmpty(t, topics)

	for i := 1; i < len(topics); i++ {
		prev, cur := topics[i-1], topics[i]
		assert.GreaterOrEqual(t, prev.Relevance, cur.Relevance)
		if prev.Relevance == cur.Relevance {
			if len(prev.Keywords) == len(cur.Keywords) {
				assert.LessOrEqual(t, prev.Name, cur.Name)
			} else {
				assert.Greater(t, len(prev.Keywords), len(cur.Keywords))
			}
		}
	}
}

func TestExtractFrequencyGroupsRelatedKeywords(t *testing.T) {
	e := New(MethodFrequency, 1)
	topics := e.Extract([]string{
		"launch launched pricing",
		"launching launch pricing",
	}, 5)
	require.NotEmpty(t, topics)

	first := topics[0]
	assert.Contains(t, first.Keywords, "launch")
	assert.Contains(t, first.Keywords, "launched")
	assert.Contains(t, first.Keywords, "launching")
	assert.Equal(t, MethodFrequency, first.Method)
}

func TestExtractStripsPlatformMarkers(t *testing.T) {
	e := New(MethodFrequency, 1)
	topics := e.Extract([]string{"#cloud migration with @acme cloud team https://acme.io"}, 5)
	require.NotEmpty(t, topics)

	var all []string
	for _, topic := range topics {
		all = append(all, topic.Keywords...)
	}
	assert.Contains(t, all, "cloud")
	assert.Contains(t, all, "acme")
	for _, kw := range all {
		assert.NotContains(t, kw, "#")
		assert.NotContains(t, kw, "@")
		assert.NotContains(t, kw, "http")
	}
}

func TestExtractOnlyStopwords(t *testing.T) {
	e := New(MethodAuto, 1)
	assert.Empty(t, e.Extract([]string{"the and with because of", "you your it its"}, 5))
}

func TestAutoUsesFrequencyOnTinyCorpus(t *testing.T) {
	e := New(MethodAuto, 2)
	topics := e.Extract([]string{
		"pricing pricing growth",
		"pricing growth outlook",
	}, 5)
	require.NotEmpty(t, topics)
	for _, topic := range topics {
		assert.Equal(t, MethodFrequency, topic.Method)
	}
}

func TestClusteringFallsBackWhenVocabularyEmpty(t *testing.T) {
	e := New(MethodClustering, 2)
	// no term crosses documents, so TF-IDF pruning empties the vocabulary;
	// repeated in-document terms still satisfy the frequency floor
	topics := e.Extract([]string{
		"alpha alpha bravo",
		"charlie charlie delta",
		"echo echo foxtrot",
		"golf golf hotel",
	}, 5)
	require.NotEmpty(t, topics)
	for _, topic := range topics {
		assert.Equal(t, MethodFrequency, topic.Method)
	}
}

func TestExtractRespectsMaxTopics(t *testing.T) {
	e := New(MethodFrequency, 1)
	topics := e.Extract([]string{
		"pricing pricing growth growth outlook outlook revenue revenue margin margin hiring hiring",
	}, 2)
	assert.LessOrEqual(t, len(topics), 2)
}

func TestTopicName(t *testing.T) {
	tests := []struct {
		keywords []string
		want     string
	}{
		{[]string{"cloud"}, "Cloud Discussion"},
		{[]string{"cloud", "migration"}, "Cloud & Migration"},
		{[]string{"cloud", "migration", "cost"}, "Cloud, Migration & Cost"},
		{[]string{"cloud", "migration", "cost", "extra"}, "Cloud, Migration & Cost"},
		{nil, "General Discussion"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topicName(tt.keywords))
	}
}

func TestClusteringRelevanceAndConfidenceBounds(t *testing.T) {
	e := New(MethodClustering, 2)
	topics := e.Extract(aiCorpus, 3)
	require.NotEmpty(t, topics)
	for _, topic := range topics {
		assert.GreaterOrEqual(t, topic.Relevance, 0.0)
		assert.LessOrEqual(t, topic.Relevance, 1.0)
		assert.GreaterOrEqual(t, topic.Confidence, 0.0)
		assert.LessOrEqual(t, topic.Confidence, 1.0)
		assert.Equal(t, MethodClustering, topic.Method)
	}
}
