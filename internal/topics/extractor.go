package topics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/zombar/socialpulse/internal/models"
)

// Extraction methods accepted by New and reported in results.
const (
	MethodClustering = "clustering"
	MethodFrequency  = "frequency"
	MethodAuto       = "auto"
)

// auto switches to plain frequency extraction below this corpus size;
// TF-IDF carries too little signal on a handful of documents.
const autoClusteringFloor = 4

var (
	topicURLPattern    = regexp.MustCompile(`https?://\S+|www\.\S+`)
	topicEmailPattern  = regexp.MustCompile(`\S+@\S+`)
	topicMarkerPattern = regexp.MustCompile(`[@#](\w)`)
	nonLetterPattern   = regexp.MustCompile(`[^a-z\s]`)
	topicSpacePattern  = regexp.MustCompile(`\s+`)
)

// Extractor derives shared themes across a collection of post texts. It
// holds no per-call state and is safe for concurrent use. Output is fully
// deterministic: no clustering seed exists and all orderings are total.
type Extractor struct {
	method    string
	minTexts  int
	stopwords map[string]bool
}

// New creates an Extractor. method is clustering, frequency or auto
// (unrecognized values behave as auto); minTexts is the smallest number of
// non-empty texts worth extracting topics from.
func New(method string, minTexts int) *Extractor {
	switch method {
	case MethodClustering, MethodFrequency, MethodAuto:
	default:
		method = MethodAuto
	}
	if minTexts < 1 {
		minTexts = 1
	}
	return &Extractor{
		method:    method,
		minTexts:  minTexts,
		stopwords: getStopWords(),
	}
}

// Methods reports the extraction methods currently available.
func (e *Extractor) Methods() []string {
	return []string{MethodClustering, MethodFrequency}
}

// Extract derives up to maxTopics topics from the texts. Fewer non-empty
// texts than the configured minimum yields an empty result rather than an
// error. Results are sorted by relevance descending, keyword count
// descending, then name.
func (e *Extractor) Extract(texts []string, maxTopics int) []models.Topic {
	if maxTopics < 1 {
		return nil
	}
	docs := e.preprocess(texts)
	if len(docs) < e.minTexts {
		return nil
	}

	var topics []models.Topic
	switch {
	case e.method == MethodFrequency:
		topics = e.extractByFrequency(docs)
	case e.method == MethodAuto && len(docs) < autoClusteringFloor:
		topics = e.extractByFrequency(docs)
	default:
		clustered, err := e.extractByClustering(docs, maxTopics)
		if err != nil {
			topics = e.extractByFrequency(docs)
		} else {
			topics = clustered
		}
	}

	sortTopics(topics)
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

// extractByClustering vectorizes the corpus, groups documents with Ward's
// method, and scores each cluster from its centroid term weights.
func (e *Extractor) extractByClustering(docs []document, maxTopics int) ([]models.Topic, error) {
	vectors, vocab, err := vectorize(docs)
	if err != nil {
		return nil, err
	}

	k := maxTopics
	if k > len(docs) {
		k = len(docs)
	}

	var labels []int
	switch {
	case k == 1:
		labels = make([]int, len(docs))
	case k == len(docs):
		labels = make([]int, len(docs))
		for i := range labels {
			labels[i] = i
		}
	default:
		dist := pairwiseDistances(vectors)
		merges := wardLinkage(dist, len(vectors))
		labels = cutTree(merges, len(vectors), k)
	}

	var topics []models.Topic
	for cluster := 0; cluster < k; cluster++ {
		centroid := make([]float64, len(vocab))
		members := 0
		for d, label := range labels {
			if label != cluster {
				continue
			}
			members++
			for i, w := range vectors[d] {
				centroid[i] += w
			}
		}
		if members == 0 {
			continue
		}
		for i := range centroid {
			centroid[i] /= float64(members)
		}

		keywords := topTerms(centroid, vocab, 10)
		if len(keywords) == 0 {
			continue
		}

		top := 5
		if len(keywords) < top {
			top = len(keywords)
		}
		var mass float64
		for _, kw := range keywords[:top] {
			mass += centroid[indexOf(vocab, kw)]
		}
		relevance := math.Min(1.0, mass/float64(top)*2)

		topics = append(topics, models.Topic{
			Name:       topicName(keywords),
			Keywords:   keywords,
			Relevance:  relevance,
			Confidence: math.Min(1.0, relevance*1.5),
			Method:     MethodClustering,
		})
	}
	return topics, nil
}

// extractByFrequency ranks corpus keywords by raw count and groups ones
// sharing a root into pseudo-topics. Single-occurrence terms are dropped
// once the corpus is big enough to afford it.
func (e *Extractor) extractByFrequency(docs []document) []models.Topic {
	counts := make(map[string]int)
	for _, doc := range docs {
		for term, c := range doc.counts {
			counts[term] += c
		}
	}

	minCount := 1
	if len(docs) >= 3 {
		minCount = 2
	}
	keywords := make([]string, 0, len(counts))
	for term, c := range counts {
		if c >= minCount {
			keywords = append(keywords, term)
		}
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	used := make(map[string]bool)
	var topics []models.Topic
	for _, kw := range keywords {
		if used[kw] {
			continue
		}
		group := []string{kw}
		total := counts[kw]
		used[kw] = true

		for _, other := range keywords {
			if len(group) >= 8 {
				break
			}
			if used[other] {
				continue
			}
			if related(kw, other) {
				group = append(group, other)
				total += counts[other]
				used[other] = true
			}
		}

		relevance := math.Min(1.0, float64(total)/float64(len(docs)))
		topics = append(topics, models.Topic{
			Name:       topicName(group),
			Keywords:   group,
			Relevance:  relevance,
			Confidence: relevance * 0.8,
			Method:     MethodFrequency,
		})
	}
	return topics
}

// preprocess tokenizes every text and drops the ones with no usable tokens.
func (e *Extractor) preprocess(texts []string) []document {
	var docs []document
	for _, text := range texts {
		tokens := e.tokenizeText(text)
		if len(tokens) == 0 {
			continue
		}
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		docs = append(docs, document{tokens: tokens, counts: counts})
	}
	return docs
}

// tokenizeText lowercases, strips URLs, emails and punctuation, and drops
// hashtag/mention markers while keeping the marked word as a candidate.
func (e *Extractor) tokenizeText(text string) []string {
	text = strings.ToLower(text)
	text = topicURLPattern.ReplaceAllString(text, " ")
	text = topicEmailPattern.ReplaceAllString(text, " ")
	text = topicMarkerPattern.ReplaceAllString(text, " $1")
	text = nonLetterPattern.ReplaceAllString(text, " ")
	text = topicSpacePattern.ReplaceAllString(text, " ")

	var tokens []string
	for _, word := range strings.Fields(text) {
		if len(word) > 2 && !e.stopwords[word] {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// related reports whether two keywords likely share a root: a common
// 4-char prefix or substring containment.
func related(a, b string) bool {
	if len(a) >= 4 && len(b) >= 4 && a[:4] == b[:4] {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// topTerms returns up to limit vocabulary terms with positive weight,
// heaviest first, ties alphabetical.
func topTerms(weights []float64, vocab []string, limit int) []string {
	type termWeight struct {
		term   string
		weight float64
	}
	ranked := make([]termWeight, 0, len(vocab))
	for i, term := range vocab {
		if weights[i] > 0 {
			ranked = append(ranked, termWeight{term, weights[i]})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	terms := make([]string, len(ranked))
	for i, tw := range ranked {
		terms[i] = tw.term
	}
	return terms
}

func indexOf(vocab []string, term string) int {
	for i, t := range vocab {
		if t == term {
			return i
		}
	}
	return -1
}

// topicName labels a topic from its leading keywords.
func topicName(keywords []string) string {
	switch {
	case len(keywords) >= 3:
		return fmt.Sprintf("%s, %s & %s", titleWord(keywords[0]), titleWord(keywords[1]), titleWord(keywords[2]))
	case len(keywords) == 2:
		return fmt.Sprintf("%s & %s", titleWord(keywords[0]), titleWord(keywords[1]))
	case len(keywords) == 1:
		return titleWord(keywords[0]) + " Discussion"
	default:
		return "General Discussion"
	}
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func sortTopics(topics []models.Topic) {
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Relevance != topics[j].Relevance {
			return topics[i].Relevance > topics[j].Relevance
		}
		if len(topics[i].Keywords) != len(topics[j].Keywords) {
			return len(topics[i].Keywords) > len(topics[j].Keywords)
		}
		return topics[i].Name < topics[j].Name
	})
}
