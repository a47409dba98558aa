package learning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/pkg/logger"
)

const (
	maxVocabularyFeatures = 1000
	maxQueryKeywords      = 10
	maxSimilarResults     = 5
	fallbackResultCount   = 3
	minKeywordLength      = 4
)

// stopwords filtered before keyword extraction and vectorization.
var stopwords = map[string]struct{}{
	"para": {}, "com": {}, "uma": {}, "por": {}, "mais": {}, "como": {},
	"mas": {}, "foi": {}, "ele": {}, "ela": {}, "seu": {}, "sua": {},
	"isso": {}, "esse": {}, "essa": {}, "este": {}, "esta": {}, "pelo": {},
	"pela": {}, "até": {}, "ate": {}, "sem": {}, "sobre": {}, "entre": {},
	"depois": {}, "quando": {}, "muito": {}, "nos": {}, "já": {}, "também": {},
	"tambem": {}, "só": {}, "tem": {}, "ser": {}, "que": {}, "não": {},
	"nao": {}, "dos": {}, "das": {}, "the": {}, "and": {}, "you": {},
	"for": {}, "with": {}, "this": {}, "that": {},
}

// Searcher ranks an account's historical messages by textual closeness to a
// query using TF-IDF vectors and cosine similarity.
type Searcher struct {
	mail         out.MailProvider
	lookbackDays int
	log          *logger.Logger
}

func NewSearcher(mail out.MailProvider, lookbackDays int) *Searcher {
	return &Searcher{
		mail:         mail,
		lookbackDays: lookbackDays,
		log:          logger.WithField("component", "similarity"),
	}
}

// FindSimilar narrows the history by query keywords, ranks the candidates
// by cosine similarity and returns the top matches above threshold, sorted
// strictly descending. On a degenerate vocabulary it falls back to the first
// keyword matches unranked: pipeline connectivity over perfect ranking.
func (s *Searcher) FindSimilar(ctx context.Context, queryText, account string, threshold float64) ([]domain.SimilarMessage, error) {
	keywords := ExtractKeywords(queryText, maxQueryKeywords)
	if len(keywords) == 0 {
		return nil, nil
	}

	candidates, err := s.mail.SearchByKeywords(ctx, account, keywords, s.lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("search history for %s: %w", account, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked, err := RankBySimilarity(queryText, candidates, threshold)
	if err != nil {
		s.log.Warn("similarity ranking failed, returning unranked candidates: %v", err)
		n := len(candidates)
		if n > fallbackResultCount {
			n = fallbackResultCount
		}
		fallback := make([]domain.SimilarMessage, 0, n)
		for _, c := range candidates[:n] {
			fallback = append(fallback, domain.SimilarMessage{Message: c})
		}
		return fallback, nil
	}
	return ranked, nil
}

// ExtractKeywords returns the most frequent content-bearing tokens.
func ExtractKeywords(text string, max int) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokenize(text) {
		if len([]rune(tok)) < minKeywordLength {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

// RankBySimilarity vectorizes candidates plus the query with TF-IDF
// (unigrams and bigrams, capped vocabulary) and ranks by cosine similarity.
func RankBySimilarity(queryText string, candidates []domain.RawMessage, threshold float64) ([]domain.SimilarMessage, error) {
	docs := make([][]string, 0, len(candidates)+1)
	for _, c := range candidates {
		docs = append(docs, docFeatures(c.BodyText))
	}
	docs = append(docs, docFeatures(queryText))

	vocab := buildVocabulary(docs)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("degenerate vocabulary")
	}

	df := documentFrequencies(docs, vocab)
	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = tfidfVector(doc, len(docs), vocab, df)
	}

	queryVec := vectors[len(vectors)-1]
	if norm(queryVec) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	vectorizable := false
	for i := range candidates {
		if norm(vectors[i]) > 0 {
			vectorizable = true
			break
		}
	}
	if !vectorizable {
		return nil, fmt.Errorf("no candidate could be vectorized")
	}

	var results []domain.SimilarMessage
	for i, c := range candidates {
		score := cosine(queryVec, vectors[i])
		if score >= threshold {
			results = append(results, domain.SimilarMessage{Message: c, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxSimilarResults {
		results = results[:maxSimilarResults]
	}
	return results, nil
}

// docFeatures produces stopword-filtered unigrams plus bigrams.
func docFeatures(text string) []string {
	var tokens []string
	for _, tok := range tokenize(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}

	features := make([]string, 0, len(tokens)*2)
	features = append(features, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		features = append(features, tokens[i]+" "+tokens[i+1])
	}
	return features
}

// buildVocabulary maps the most frequent features to vector indices.
func buildVocabulary(docs [][]string) map[string]int {
	counts := make(map[string]int)
	for _, doc := range docs {
		for _, f := range doc {
			counts[f]++
		}
	}

	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool {
		if counts[features[i]] != counts[features[j]] {
			return counts[features[i]] > counts[features[j]]
		}
		return features[i] < features[j]
	})
	if len(features) > maxVocabularyFeatures {
		features = features[:maxVocabularyFeatures]
	}

	vocab := make(map[string]int, len(features))
	for i, f := range features {
		vocab[f] = i
	}
	return vocab
}

// documentFrequencies counts, per vocabulary feature, how many documents
// contain it.
func documentFrequencies(docs [][]string, vocab map[string]int) []float64 {
	df := make([]float64, len(vocab))
	for _, doc := range docs {
		seen := make(map[int]struct{}, len(doc))
		for _, f := range doc {
			if idx, ok := vocab[f]; ok {
				seen[idx] = struct{}{}
			}
		}
		for idx := range seen {
			df[idx]++
		}
	}
	return df
}

// tfidfVector computes a smoothed, L2-normalized TF-IDF vector.
func tfidfVector(doc []string, docCount int, vocab map[string]int, df []float64) []float64 {
	vec := make([]float64, len(vocab))
	for _, f := range doc {
		if idx, ok := vocab[f]; ok {
			vec[idx]++
		}
	}

	n := float64(docCount)
	for idx := range vec {
		if vec[idx] == 0 {
			continue
		}
		idf := math.Log((1+n)/(1+df[idx])) + 1
		vec[idx] *= idf
	}

	if l2 := norm(vec); l2 > 0 {
		for i := range vec {
			vec[i] /= l2
		}
	}
	return vec
}

func cosine(a, b []float64) float64 {
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func norm(vec []float64) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	return math.Sqrt(sum)
}
