package types

import "time"

// MemoryType categorizes a persisted memory for retrieval and compaction.
type MemoryType string

const (
	// MemoryGeneral covers interactions with no stronger signal.
	MemoryGeneral MemoryType = "general"

	// MemoryPreference captures likes, dislikes and favorites.
	MemoryPreference MemoryType = "preference"

	// MemoryAchievement captures accomplishments and milestones.
	MemoryAchievement MemoryType = "achievement"

	// MemoryDifficulty captures topics the child struggles with.
	MemoryDifficulty MemoryType = "difficulty"

	// MemoryEmotional captures emotional states and reactions.
	MemoryEmotional MemoryType = "emotional"

	// MemoryPersonal captures family, friends and personal details.
	MemoryPersonal MemoryType = "personal"

	// MemoryEducational captures learning progress and subject mastery.
	MemoryEducational MemoryType = "educational"
)

// MemoryRecord is a persisted interaction distilled from a past conversation,
// used to personalize future responses. Owned by the memory store.
type MemoryRecord struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	OwnerID    string     `json:"owner_id" gorm:"index"`
	Timestamp  time.Time  `json:"timestamp" gorm:"index"`
	Text       string     `json:"text"`
	Type       MemoryType `json:"type"`
	Importance int        `json:"importance"` // 1..5, 5 is most important
	Sentiment  float64    `json:"sentiment"`
}

// ScoredMemory is a memory ranked against the current conversation context.
// Ephemeral; produced per retrieval call and never persisted.
type ScoredMemory struct {
	Memory          MemoryRecord `json:"memory"`
	RelevanceScore  float64      `json:"relevance_score"`
	MatchedKeywords []string     `json:"matched_keywords,omitempty"`
}

// TimeRange represents a closed timestamp interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SummarizationResult describes one completed compaction of a memory group.
// Persisted back into the store as a new MemoryRecord by the compactor.
type SummarizationResult struct {
	Summary           string       `json:"summary"`
	SourceMemoryIDs   []string     `json:"source_memory_ids"`
	MemoryCount       int          `json:"memory_count"`
	TimeRange         TimeRange    `json:"time_range"`
	DominantTypes     []MemoryType `json:"dominant_types"`
	AverageImportance float64      `json:"average_importance"`
	CreatedAt         time.Time    `json:"created_at"`
}
