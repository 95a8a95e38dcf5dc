package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/types"
)

// typeAffinity pairs a context pattern with the scores a memory type earns
// when the current message does or does not match it. Kept as data so the
// rules are testable and swappable without touching control flow.
type typeAffinity struct {
	pattern  *regexp.Regexp
	matched  float64
	baseline float64
}

var typeAffinities = map[types.MemoryType]typeAffinity{
	types.MemoryPreference: {
		pattern:  regexp.MustCompile(`\b(like|love|hate|favorite|prefer)\b`),
		matched:  0.8,
		baseline: 0.3,
	},
	types.MemoryEmotional: {
		pattern:  regexp.MustCompile(`\b(feel|scared|happy|sad|excited|worried)\b`),
		matched:  0.9,
		baseline: 0.3,
	},
	types.MemoryEducational: {
		pattern:  regexp.MustCompile(`\b(learn|study|math|reading|science|school)\b`),
		matched:  0.8,
		baseline: 0.4,
	},
	types.MemoryPersonal: {
		pattern:  regexp.MustCompile(`\b(family|friend|mom|dad|sister|brother)\b`),
		matched:  0.7,
		baseline: 0.3,
	},
	types.MemoryAchievement: {
		pattern:  regexp.MustCompile(`\b(proud|accomplished|good|great|success)\b`),
		matched:  0.7,
		baseline: 0.3,
	},
	types.MemoryDifficulty: {
		pattern:  regexp.MustCompile(`\b(hard|difficult|struggle|help|confused)\b`),
		matched:  0.8,
		baseline: 0.3,
	},
	types.MemoryGeneral: {
		matched:  0.4,
		baseline: 0.4,
	},
}

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "can": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"it": {}, "we": {}, "they": {}, "me": {}, "him": {}, "her": {},
	"us": {}, "them": {}, "my": {}, "your": {}, "his": {}, "its": {},
	"our": {}, "their": {}, "this": {}, "that": {}, "these": {}, "those": {},
}

var wordSplit = regexp.MustCompile(`\W+`)

type cachedRetrieval struct {
	memories  []types.ScoredMemory
	expiresAt time.Time
}

// CacheMetrics receives cache hit/miss observations from the retriever.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// retrievalCacheType labels retriever observations in the metrics sink.
const retrievalCacheType = "retrieval"

// Retriever ranks a child's memories against the current conversation
// context. Results are cached per query for a short TTL; the cache is
// invalidated eagerly whenever the owner's memory set changes.
type Retriever struct {
	store   Store
	cfg     config.RetrievalConfig
	logger  *zap.Logger
	metrics CacheMetrics

	mu    sync.Mutex
	cache map[string]cachedRetrieval

	// Now is injectable for tests.
	Now func() time.Time
}

// NewRetriever creates a memory retriever over the given store.
func NewRetriever(store Store, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "memory_retriever")),
		cache:  make(map[string]cachedRetrieval),
		Now:    time.Now,
	}
}

// WithMetrics attaches a cache metrics sink. Optional; nil disables recording.
func (r *Retriever) WithMetrics(m CacheMetrics) *Retriever {
	r.metrics = m
	return r
}

// Retrieve returns the owner's memories ranked by relevance to the current
// message plus recent history, sorted descending, thresholded and truncated
// to maxResults (the configured default when maxResults <= 0). Store read
// errors propagate; an owner with no memories yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, ownerID, currentMessage string, history []string, maxResults int) ([]types.ScoredMemory, error) {
	if maxResults <= 0 {
		maxResults = r.cfg.MaxMemories
	}

	cacheKey := r.cacheKey(ownerID, currentMessage, history, maxResults)
	if cached, ok := r.cacheGet(cacheKey); ok {
		r.logger.Debug("retrieval cache hit", zap.String("owner_id", ownerID))
		if r.metrics != nil {
			r.metrics.RecordCacheHit(retrievalCacheType)
		}
		return cached, nil
	}
	if r.metrics != nil {
		r.metrics.RecordCacheMiss(retrievalCacheType)
	}

	all, err := r.store.GetForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return []types.ScoredMemory{}, nil
	}

	scored := r.score(all, currentMessage, history)

	relevant := scored[:0]
	for _, sm := range scored {
		if sm.RelevanceScore >= r.cfg.MinRelevanceScore {
			relevant = append(relevant, sm)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})
	if len(relevant) > maxResults {
		relevant = relevant[:maxResults]
	}

	r.cachePut(cacheKey, relevant)

	r.logger.Debug("memories retrieved",
		zap.String("owner_id", ownerID),
		zap.Int("candidates", len(all)),
		zap.Int("selected", len(relevant)))

	return relevant, nil
}

// score computes the weighted relevance of every memory against the context.
func (r *Retriever) score(memories []types.MemoryRecord, currentMessage string, history []string) []types.ScoredMemory {
	now := r.Now()
	combined := strings.ToLower(strings.Join(append(append([]string{}, history...), currentMessage), " "))
	contextKeywords := extractKeywords(combined)

	scored := make([]types.ScoredMemory, 0, len(memories))
	for _, mem := range memories {
		if mem.Text == "" {
			continue
		}

		keywordScore, matched := keywordScore(mem.Text, contextKeywords)
		recency := recencyScore(mem.Timestamp, now)
		importance := float64(mem.Importance) / 5.0
		affinity := typeScore(mem.Type, currentMessage)

		total := keywordScore*r.cfg.KeywordWeight +
			recency*r.cfg.RecencyWeight +
			importance*r.cfg.ImportanceWeight +
			affinity*r.cfg.TypeWeight

		scored = append(scored, types.ScoredMemory{
			Memory:          mem,
			RelevanceScore:  total,
			MatchedKeywords: matched,
		})
	}
	return scored
}

// keywordScore returns (exact matches + 0.5 * partial matches) normalized by
// the context keyword count, plus the exact matches themselves.
func keywordScore(memoryText string, contextKeywords map[string]struct{}) (float64, []string) {
	if len(contextKeywords) == 0 {
		return 0, nil
	}

	memoryKeywords := extractKeywords(strings.ToLower(memoryText))

	var matched []string
	for kw := range memoryKeywords {
		if _, ok := contextKeywords[kw]; ok {
			matched = append(matched, kw)
		}
	}
	sort.Strings(matched)

	partial := 0
	for mk := range memoryKeywords {
		for ck := range contextKeywords {
			if mk != ck && (strings.Contains(mk, ck) || strings.Contains(ck, mk)) {
				partial++
				break
			}
		}
	}

	score := (float64(len(matched)) + 0.5*float64(partial)) / float64(len(contextKeywords))
	return score, matched
}

// recencyScore is a step function of memory age.
func recencyScore(ts time.Time, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	age := now.Sub(ts)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.8
	case age <= 30*24*time.Hour:
		return 0.6
	case age <= 90*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func typeScore(t types.MemoryType, currentMessage string) float64 {
	aff, ok := typeAffinities[t]
	if !ok {
		return typeAffinities[types.MemoryGeneral].baseline
	}
	if aff.pattern != nil && aff.pattern.MatchString(strings.ToLower(currentMessage)) {
		return aff.matched
	}
	return aff.baseline
}

// extractKeywords returns the stop-word-filtered keyword set of the text.
func extractKeywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range wordSplit.Split(strings.ToLower(text), -1) {
		word = strings.TrimSpace(word)
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		keywords[word] = struct{}{}
	}
	return keywords
}

// FormatForPrompt renders scored memories as the narrative block that is
// merged into the system turn.
func FormatForPrompt(scored []types.ScoredMemory, now time.Time) string {
	if len(scored) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous relevant memories about this child:\n")
	for i, sm := range scored {
		mem := sm.Memory
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n   %s\n\n",
			i+1,
			strings.ToUpper(string(mem.Type)),
			strings.Repeat("★", mem.Importance),
			formatTimeAgo(mem.Timestamp, now),
			strings.TrimSpace(mem.Text))
	}
	b.WriteString("Use these memories to personalize your response and show that you remember previous interactions.")
	return b.String()
}

func formatTimeAgo(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "unknown time"
	}
	age := now.Sub(ts)
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	case age < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	case age < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(age.Hours()/(24*7)))
	default:
		return fmt.Sprintf("%dmo ago", int(age.Hours()/(24*30)))
	}
}

// ===== cache =====

func (r *Retriever) cacheKey(ownerID, currentMessage string, history []string, maxResults int) string {
	h := fnv.New64a()
	for _, s := range history {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte(currentMessage))
	// The result limit shapes the cached slice, so it is part of the key.
	fmt.Fprintf(h, "\x00%d", maxResults)
	return fmt.Sprintf("%s_%x", ownerID, h.Sum64())
}

func (r *Retriever) cacheGet(key string) ([]types.ScoredMemory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[key]
	if !ok {
		return nil, false
	}
	if r.Now().After(entry.expiresAt) {
		delete(r.cache, key)
		return nil, false
	}
	return entry.memories, true
}

func (r *Retriever) cachePut(key string, memories []types.ScoredMemory) {
	if r.cfg.CacheTTL <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cachedRetrieval{
		memories:  memories,
		expiresAt: r.Now().Add(r.cfg.CacheTTL),
	}
}

// InvalidateOwner drops cached results for the owner. Called after every
// memory write or compaction so the next retrieval sees fresh data. Eviction
// only discards the scoring artifact, never stored records.
func (r *Retriever) InvalidateOwner(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := ownerID + "_"
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
	r.logger.Debug("retrieval cache invalidated", zap.String("owner_id", ownerID))
}

// CacheStats reports cache occupancy for monitoring.
func (r *Retriever) CacheStats() (total, expired int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	for _, entry := range r.cache {
		if now.After(entry.expiresAt) {
			expired++
		}
	}
	return len(r.cache), expired
}
