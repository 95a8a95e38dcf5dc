package memory

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/types"
)

// Keyword tables for significance analysis. Kept as data so the rules are
// unit-testable and swappable without touching control flow.

var generalKeywords = []string{
	"like", "love", "hate", "favorite", "prefer", "want", "need",
	"birthday", "age", "hobby", "interest", "game", "sport", "color", "food",
	"remember", "important", "special", "always", "never",
}

var emotionalKeywords = map[string]float64{
	"scared": 0.3, "terrified": 0.4, "worried": 0.25, "anxious": 0.25,
	"sad": 0.3, "crying": 0.4, "upset": 0.25, "angry": 0.3,
	"excited": 0.2, "happy": 0.15, "proud": 0.25, "amazed": 0.2,
	"frustrated": 0.2, "confused": 0.15, "surprised": 0.1,
	"curious": 0.1, "interested": 0.1, "bored": 0.15,
}

var personalKeywords = map[string]float64{
	"family": 0.3, "mom": 0.25, "dad": 0.25, "mother": 0.25, "father": 0.25,
	"sister": 0.2, "brother": 0.2, "grandma": 0.2, "grandpa": 0.2,
	"friend": 0.2, "pet": 0.2,
	"birthday": 0.3, "age": 0.2, "school": 0.2, "teacher": 0.2,
	"home": 0.15, "house": 0.15, "room": 0.1,
}

var educationalKeywords = map[string]float64{
	"math": 0.2, "reading": 0.2, "science": 0.2, "history": 0.2,
	"english": 0.2, "art": 0.15, "music": 0.15, "sports": 0.15,
	"learn": 0.15, "study": 0.15, "practice": 0.1, "homework": 0.2,
	"test": 0.2, "quiz": 0.15, "lesson": 0.15,
	"grade": 0.2, "score": 0.15, "correct": 0.1, "wrong": 0.15,
	"understand": 0.15, "learned": 0.15,
}

var preferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`what.*favorite`),
	regexp.MustCompile(`do you like`),
	regexp.MustCompile(`which.*prefer`),
	regexp.MustCompile(`what.*want`),
	regexp.MustCompile(`how.*feel`),
	regexp.MustCompile(`what.*think`),
}

var positiveWords = []string{
	"great", "awesome", "amazing", "wonderful", "fantastic", "excellent",
	"love", "like", "enjoy", "fun", "happy", "excited", "proud",
}

var negativeWords = []string{
	"hate", "dislike", "terrible", "awful", "horrible", "bad",
	"sad", "angry", "frustrated", "scared", "worried", "upset",
}

// Type classification rules, checked in priority order: the first matching
// category wins.
var typeRules = []struct {
	memType types.MemoryType
	pattern *regexp.Regexp
}{
	{types.MemoryPreference, regexp.MustCompile(`\b(like|love|hate|favorite|prefer)\b`)},
	{types.MemoryEmotional, regexp.MustCompile(`\b(scared|happy|sad|excited|worried|proud|angry|frustrated)\b`)},
	{types.MemoryPersonal, regexp.MustCompile(`\b(family|mom|dad|sister|brother|friend|pet)\b`)},
	{types.MemoryAchievement, regexp.MustCompile(`\b(good job|well done|correct|excellent|achievement|accomplished)\b`)},
	{types.MemoryDifficulty, regexp.MustCompile(`\b(difficult|hard|struggle|don't understand|confused|help)\b`)},
	{types.MemoryEducational, regexp.MustCompile(`\b(learn|study|school|math|reading|science|subject)\b`)},
}

// Importance signals. Each matching signal raises the base importance by one.
var importanceSignals = []*regexp.Regexp{
	regexp.MustCompile(`\b(scared|worried|sad|frustrated|angry)\b`),
	regexp.MustCompile(`\b(favorite|love|hate|family|friend)\b`),
	regexp.MustCompile(`\b(proud|accomplished|good job|excellent)\b`),
	regexp.MustCompile(`\b(difficult|struggle|don't understand|confused)\b`),
}

// Classifier decides, per completed turn, whether the exchange is worth
// persisting as a memory, and what type and importance the record gets.
// Pure and stateless given its configuration.
type Classifier struct {
	cfg    config.SignificanceConfig
	logger *zap.Logger
}

// NewClassifier creates a significance classifier.
func NewClassifier(cfg config.SignificanceConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "significance")),
	}
}

// IsSignificant reports whether a completed user/assistant exchange should be
// persisted as a memory.
func (c *Classifier) IsSignificant(userText, assistantText string) bool {
	if assistantText == "" {
		return false
	}

	combined := strings.ToLower(userText) + " " + strings.ToLower(assistantText)

	score := contentScore(combined)
	score += emotionalScore(combined) * c.cfg.EmotionalWeight
	score += personalScore(combined) * c.cfg.PersonalWeight
	score += educationalScore(combined) * c.cfg.EducationalWeight
	score += questionScore(userText, assistantText) * c.cfg.QuestionWeight
	score += c.lengthScore(userText, assistantText)
	score += sentimentIntensity(combined)

	significant := score >= c.cfg.Threshold

	c.logger.Debug("significance analyzed",
		zap.Float64("score", score),
		zap.Float64("threshold", c.cfg.Threshold),
		zap.Bool("significant", significant))

	return significant
}

// ClassifyType returns the memory type of an exchange, checking categories in
// priority order.
func (c *Classifier) ClassifyType(userText, assistantText string) types.MemoryType {
	combined := strings.ToLower(userText + " " + assistantText)
	for _, rule := range typeRules {
		if rule.pattern.MatchString(combined) {
			return rule.memType
		}
	}
	return types.MemoryGeneral
}

// Importance scores an exchange on the 1..5 scale: base 3, one increment per
// matching signal, one decrement for trivially short exchanges.
func (c *Classifier) Importance(userText, assistantText string) int {
	combined := strings.ToLower(userText + " " + assistantText)

	importance := 3
	for _, sig := range importanceSignals {
		if sig.MatchString(combined) {
			importance++
		}
	}
	if len(userText) < c.cfg.MinMessageLength && len(assistantText) < c.cfg.MinResponseLength {
		importance--
	}

	if importance > 5 {
		importance = 5
	}
	if importance < 1 {
		importance = 1
	}
	return importance
}

// SentimentScore returns a coarse sentiment balance in [-1, 1] for the
// stored record.
func (c *Classifier) SentimentScore(userText, assistantText string) float64 {
	combined := strings.ToLower(userText + " " + assistantText)

	pos := countWordHits(combined, positiveWords)
	neg := countWordHits(combined, negativeWords)
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// ===== analyzers =====

func contentScore(text string) float64 {
	hits := countWordHits(text, generalKeywords)
	return capAt(float64(hits)*0.1, 0.5)
}

func emotionalScore(text string) float64 {
	return capAt(sumWordWeights(text, emotionalKeywords), 0.6)
}

func personalScore(text string) float64 {
	return capAt(sumWordWeights(text, personalKeywords), 0.5)
}

func educationalScore(text string) float64 {
	return capAt(sumWordWeights(text, educationalKeywords), 0.4)
}

func questionScore(userText, assistantText string) float64 {
	score := 0.0
	if strings.Contains(userText, "?") {
		score += 0.15
	}
	if strings.Contains(assistantText, "?") {
		score += 0.1
	}
	combined := strings.ToLower(userText + " " + assistantText)
	for _, p := range preferencePatterns {
		if p.MatchString(combined) {
			score += 0.2
		}
	}
	return capAt(score, 0.3)
}

// lengthScore rewards substantial exchanges and penalizes trivial ones.
// Bounded to [-0.2, 0.3].
func (c *Classifier) lengthScore(userText, assistantText string) float64 {
	score := 0.0

	switch {
	case len(userText) > 100:
		score += 0.2
	case len(userText) > 50:
		score += 0.15
	case len(userText) > 20:
		score += 0.1
	case len(userText) < c.cfg.MinMessageLength:
		score -= 0.1
	}

	switch {
	case len(assistantText) > 200:
		score += 0.15
	case len(assistantText) > 100:
		score += 0.1
	case len(assistantText) > 50:
		score += 0.05
	case len(assistantText) < c.cfg.MinResponseLength:
		score -= 0.05
	}

	if score > 0.3 {
		score = 0.3
	}
	if score < -0.2 {
		score = -0.2
	}
	return score
}

func sentimentIntensity(text string) float64 {
	hits := countWordHits(text, positiveWords) + countWordHits(text, negativeWords)
	return capAt(float64(hits)*0.05, 0.2)
}

// ===== helpers =====

var wordBoundaryCache sync.Map // word -> *regexp.Regexp

func wordPattern(word string) *regexp.Regexp {
	if p, ok := wordBoundaryCache.Load(word); ok {
		return p.(*regexp.Regexp)
	}
	p := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	wordBoundaryCache.Store(word, p)
	return p
}

func countWordHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if wordPattern(w).MatchString(text) {
			hits++
		}
	}
	return hits
}

func sumWordWeights(text string, weights map[string]float64) float64 {
	sum := 0.0
	for w, weight := range weights {
		if wordPattern(w).MatchString(text) {
			sum += weight
		}
	}
	return sum
}

func capAt(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
