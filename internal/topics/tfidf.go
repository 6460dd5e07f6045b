package topics

import (
	"errors"
	"math"
	"sort"
)

// ErrNoVocabulary signals that document-frequency pruning removed every
// term, leaving nothing to cluster on.
var ErrNoVocabulary = errors.New("topics: empty vocabulary after pruning")

// Vocabulary pruning bounds. Rare terms (under minDocFreq documents) are
// dropped once the corpus is large enough to make them noise, terms in
// more than maxDocShare of documents are dropped as corpus-wide filler,
// and the vocabulary is capped at the highest-document-frequency terms.
const (
	minDocFreq  = 2
	maxDocShare = 0.8
	maxVocab    = 1000
)

// document is one tokenized text with its term counts.
type document struct {
	tokens []string
	counts map[string]int
}

// vectorize builds l2-normalized TF-IDF vectors for the corpus. The
// returned vectors align with docs; columns align with the returned
// vocabulary, which is sorted so identical corpora produce identical
// vectors.
func vectorize(docs []document) ([][]float64, []string, error) {
	n := len(docs)
	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc.counts {
			df[term]++
		}
	}

	minDF := 1
	if n >= 4 {
		minDF = minDocFreq
	}
	maxDF := n
	if n >= 5 {
		maxDF = int(maxDocShare * float64(n))
	}

	vocab := make([]string, 0, len(df))
	for term, count := range df {
		if count >= minDF && count <= maxDF {
			vocab = append(vocab, term)
		}
	}
	if len(vocab) == 0 {
		return nil, nil, ErrNoVocabulary
	}

	if len(vocab) > maxVocab {
		sort.Slice(vocab, func(i, j int) bool {
			if df[vocab[i]] != df[vocab[j]] {
				return df[vocab[i]] > df[vocab[j]]
			}
			return vocab[i] < vocab[j]
		})
		vocab = vocab[:maxVocab]
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}

	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		idf[i] = math.Log(float64(n+1)/float64(df[term]+1)) + 1
	}

	vectors := make([][]float64, n)
	for d, doc := range docs {
		vec := make([]float64, len(vocab))
		for term, count := range doc.counts {
			i, ok := index[term]
			if !ok {
				continue
			}
			// sublinear term frequency
			vec[i] = (1 + math.Log(float64(count))) * idf[i]
		}
		normalize(vec)
		vectors[d] = vec
	}
	return vectors, vocab, nil
}

// normalize scales vec to unit euclidean length in place.
func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
