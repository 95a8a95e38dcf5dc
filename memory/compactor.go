package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/types"
)

// summaryPrefix marks records produced by compaction so they are excluded
// from re-eligibility.
const summaryPrefix = "SUMMARY"

// Summarizer is the external summarization collaborator; conceptually the
// same model client invoked with a fixed instructional prompt.
type Summarizer interface {
	Summarize(ctx context.Context, memories []types.MemoryRecord) (string, error)
}

// Compactor replaces groups of aging memory records with one AI-generated
// summary record, keeping long-term storage bounded. It runs off the request
// critical path; a summarization failure aborts the cycle and retries on the
// next trigger.
type Compactor struct {
	store      Store
	summarizer Summarizer
	cfg        config.CompactionConfig
	logger     *zap.Logger

	// flight guarantees at most one compaction in flight per owner.
	flight singleflight.Group

	mu      sync.Mutex
	results map[string]types.SummarizationResult

	// Now is injectable for tests.
	Now func() time.Time
}

// NewCompactor creates a memory compactor.
func NewCompactor(store Store, summarizer Summarizer, cfg config.CompactionConfig, logger *zap.Logger) *Compactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compactor{
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "memory_compactor")),
		results:    make(map[string]types.SummarizationResult),
		Now:        time.Now,
	}
}

// NeedsCompaction is the cheap pre-check: true when enough non-summary
// records older than the age threshold exist for the owner.
func (c *Compactor) NeedsCompaction(ctx context.Context, ownerID string) (bool, error) {
	eligible, err := c.eligibleRecords(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return len(eligible) >= c.cfg.MinMemoriesForSummary, nil
}

// CompactIfDue runs one compaction cycle for the owner if one is due.
// Returns nil (no error) when nothing is eligible or when the external
// summarization call fails; callers treat both as a no-op and retry on the
// next trigger. Concurrent calls for the same owner share one cycle.
func (c *Compactor) CompactIfDue(ctx context.Context, ownerID string) (*types.SummarizationResult, error) {
	v, err, _ := c.flight.Do(ownerID, func() (interface{}, error) {
		return c.compact(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*types.SummarizationResult), nil
}

func (c *Compactor) compact(ctx context.Context, ownerID string) (*types.SummarizationResult, error) {
	eligible, err := c.eligibleRecords(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(eligible) < c.cfg.MinMemoriesForSummary {
		c.logger.Debug("not enough aging memories for compaction",
			zap.String("owner_id", ownerID),
			zap.Int("eligible", len(eligible)))
		return nil, nil
	}

	groups := c.groupForSummarization(eligible)
	if len(groups) == 0 {
		c.logger.Debug("no suitable memory groups", zap.String("owner_id", ownerID))
		return nil, nil
	}

	// One compaction unit per invocation keeps each external call bounded
	// and auditable: process only the largest group.
	group := groups[0]

	result, err := c.summarizeGroup(ctx, ownerID, group)
	if err != nil {
		// Retryable background condition; never surfaced to the user.
		c.logger.Warn("summarization failed, aborting cycle",
			zap.String("owner_id", ownerID),
			zap.Error(err))
		return nil, nil
	}

	if err := c.persistSummary(ctx, ownerID, result); err != nil {
		return nil, err
	}
	if err := c.pruneOriginals(ctx, group); err != nil {
		return nil, err
	}

	c.logger.Info("memories compacted",
		zap.String("owner_id", ownerID),
		zap.Int("memory_count", result.MemoryCount))

	return result, nil
}

// eligibleRecords returns non-summary records older than the age threshold.
func (c *Compactor) eligibleRecords(ctx context.Context, ownerID string) ([]types.MemoryRecord, error) {
	cutoff := c.Now().Add(-time.Duration(c.cfg.AgeThresholdDays) * 24 * time.Hour)

	old, err := c.store.GetInRange(ctx, ownerID, time.Time{}, cutoff)
	if err != nil {
		return nil, err
	}

	eligible := old[:0]
	for _, rec := range old {
		if rec.Text == "" || strings.HasPrefix(rec.Text, summaryPrefix) {
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible, nil
}

// groupForSummarization partitions records by type, then by week bucket,
// chunks each bucket by batch size and discards chunks below the minimum.
// Falls back to time-only bucketing when type-based grouping yields nothing.
// Groups are returned largest first.
func (c *Compactor) groupForSummarization(records []types.MemoryRecord) [][]types.MemoryRecord {
	byType := make(map[types.MemoryType][]types.MemoryRecord)
	for _, rec := range records {
		byType[rec.Type] = append(byType[rec.Type], rec)
	}

	var groups [][]types.MemoryRecord
	for _, typed := range byType {
		groups = append(groups, c.weekBuckets(typed)...)
	}

	if len(groups) == 0 {
		groups = c.weekBuckets(records)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i]) > len(groups[j])
	})
	return groups
}

func (c *Compactor) weekBuckets(records []types.MemoryRecord) [][]types.MemoryRecord {
	byWeek := make(map[int64][]types.MemoryRecord)
	var weeks []int64
	for _, rec := range records {
		week := rec.Timestamp.Unix() / (7 * 24 * 3600)
		if _, ok := byWeek[week]; !ok {
			weeks = append(weeks, week)
		}
		byWeek[week] = append(byWeek[week], rec)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })

	var groups [][]types.MemoryRecord
	for _, week := range weeks {
		bucket := byWeek[week]
		if len(bucket) < c.cfg.MinMemoriesForSummary {
			continue
		}
		for start := 0; start < len(bucket); start += c.cfg.BatchSize {
			end := start + c.cfg.BatchSize
			if end > len(bucket) {
				end = len(bucket)
			}
			chunk := bucket[start:end]
			if len(chunk) >= c.cfg.MinMemoriesForSummary {
				groups = append(groups, chunk)
			}
		}
	}
	return groups
}

// summarizeGroup performs the external summarization call and assembles the
// result. Results are cached per group so a retried cycle does not repeat a
// call that already succeeded.
func (c *Compactor) summarizeGroup(ctx context.Context, ownerID string, group []types.MemoryRecord) (*types.SummarizationResult, error) {
	key := groupKey(ownerID, group)

	c.mu.Lock()
	if cached, ok := c.results[key]; ok {
		c.mu.Unlock()
		return &cached, nil
	}
	c.mu.Unlock()

	summary, err := c.summarizer.Summarize(ctx, group)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return nil, fmt.Errorf("summarizer returned empty content")
	}
	if len(summary) > c.cfg.MaxSummaryLength {
		// Back up to a rune boundary so truncation never produces invalid
		// UTF-8 in the persisted record.
		cut := c.cfg.MaxSummaryLength
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}

	result := types.SummarizationResult{
		Summary:           summary,
		SourceMemoryIDs:   recordIDs(group),
		MemoryCount:       len(group),
		TimeRange:         timeRangeOf(group),
		DominantTypes:     dominantTypes(group),
		AverageImportance: averageImportance(group),
		CreatedAt:         c.Now(),
	}

	c.mu.Lock()
	c.results[key] = result
	c.mu.Unlock()

	return &result, nil
}

// persistSummary writes the summarization result back as a new record of the
// dominant type with importance max(4, average of inputs).
func (c *Compactor) persistSummary(ctx context.Context, ownerID string, result *types.SummarizationResult) error {
	memType := types.MemoryGeneral
	if len(result.DominantTypes) > 0 {
		memType = result.DominantTypes[0]
	}

	importance := int(result.AverageImportance)
	if importance < 4 {
		importance = 4
	}

	record := types.MemoryRecord{
		OwnerID:    ownerID,
		Timestamp:  c.Now(),
		Text:       fmt.Sprintf("%s (%d memories): %s", summaryPrefix, result.MemoryCount, result.Summary),
		Type:       memType,
		Importance: importance,
		Sentiment:  0,
	}

	_, err := c.store.Insert(ctx, &record)
	return err
}

// pruneOriginals deletes the summarized records, keeping importance >= 4
// records when the policy preserves them.
func (c *Compactor) pruneOriginals(ctx context.Context, group []types.MemoryRecord) error {
	for _, rec := range group {
		if c.cfg.PreserveHighImportance && rec.Importance >= 4 {
			continue
		}
		if err := c.store.Delete(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

// ClearResultCache drops cached summarization results.
func (c *Compactor) ClearResultCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[string]types.SummarizationResult)
}

// ===== helpers =====

func groupKey(ownerID string, group []types.MemoryRecord) string {
	ids := recordIDs(group)
	sort.Strings(ids)
	return ownerID + "_" + strings.Join(ids, ",")
}

func recordIDs(group []types.MemoryRecord) []string {
	ids := make([]string, 0, len(group))
	for _, rec := range group {
		ids = append(ids, rec.ID)
	}
	return ids
}

func timeRangeOf(group []types.MemoryRecord) types.TimeRange {
	tr := types.TimeRange{Start: group[0].Timestamp, End: group[0].Timestamp}
	for _, rec := range group[1:] {
		if rec.Timestamp.Before(tr.Start) {
			tr.Start = rec.Timestamp
		}
		if rec.Timestamp.After(tr.End) {
			tr.End = rec.Timestamp
		}
	}
	return tr
}

// dominantTypes returns up to the three most frequent types, most frequent
// first.
func dominantTypes(group []types.MemoryRecord) []types.MemoryType {
	counts := make(map[types.MemoryType]int)
	var order []types.MemoryType
	for _, rec := range group {
		if _, ok := counts[rec.Type]; !ok {
			order = append(order, rec.Type)
		}
		counts[rec.Type]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 3 {
		order = order[:3]
	}
	return order
}

func averageImportance(group []types.MemoryRecord) float64 {
	sum := 0
	for _, rec := range group {
		sum += rec.Importance
	}
	return float64(sum) / float64(len(group))
}
