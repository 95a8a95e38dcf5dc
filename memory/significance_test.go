package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumikids/tutorflow/config"
	"github.com/lumikids/tutorflow/memory"
	"github.com/lumikids/tutorflow/types"
)

func newTestClassifier() *memory.Classifier {
	return memory.NewClassifier(config.Default().Significance, nil)
}

func TestIsSignificant(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	cases := []struct {
		name      string
		user      string
		assistant string
		want      bool
	}{
		{
			name:      "emotional disclosure",
			user:      "I'm really scared of the math test tomorrow and I've been worried all day",
			assistant: "It's completely okay to feel scared sometimes. Let's practice together so you feel more confident about the test!",
			want:      true,
		},
		{
			name:      "personal detail",
			user:      "My sister and my mom baked a cake for my birthday yesterday",
			assistant: "That sounds wonderful! Birthdays with family are so special. What kind of cake was it?",
			want:      true,
		},
		{
			name:      "preference statement",
			user:      "My favorite subject is science, I love doing experiments",
			assistant: "Science is amazing! Since you love experiments, we could explore some fun chemistry questions together.",
			want:      true,
		},
		{
			name:      "trivial exchange",
			user:      "ok",
			assistant: "Great!",
			want:      false,
		},
		{
			name:      "empty assistant response",
			user:      "I love math so much, it is my favorite",
			assistant: "",
			want:      false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.IsSignificant(tc.user, tc.assistant))
		})
	}
}

func TestClassifyType(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	cases := []struct {
		name      string
		user      string
		assistant string
		want      types.MemoryType
	}{
		{"preference wins", "I love dinosaurs", "Dinosaurs are great!", types.MemoryPreference},
		{"emotional", "I was so scared during the storm", "That sounds frightening.", types.MemoryEmotional},
		{"personal", "my brother broke his arm", "Oh no, I hope he feels better soon.", types.MemoryPersonal},
		{"achievement", "you got it correct, excellent work", "Well done!", types.MemoryAchievement},
		{"difficulty", "this is so difficult, I'm stuck", "Let's slow down.", types.MemoryDifficulty},
		{"educational", "can we study science today", "Of course, let's begin.", types.MemoryEducational},
		{"general fallback", "what time is it", "It's noon.", types.MemoryGeneral},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, c.ClassifyType(tc.user, tc.assistant))
		})
	}
}

func TestClassifyTypePriorityOrder(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	// Contains both preference and educational signals; preference is
	// checked first.
	got := c.ClassifyType("I love math and want to study it", "Wonderful!")
	assert.Equal(t, types.MemoryPreference, got)
}

func TestImportance(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	// No signals, reasonable length: base 3.
	assert.Equal(t, 3, c.Importance(
		"can you tell me about the weather today please",
		"It looks sunny outside today, perfect for playing after your lessons are done!"))

	// Short trivial exchange loses a point.
	assert.Equal(t, 2, c.Importance("hi", "hello!"))

	// Multiple signals raise importance.
	high := c.Importance(
		"I'm scared because my favorite game with my family is too difficult and I don't understand it",
		"Let's work through it together, you can do this!")
	assert.GreaterOrEqual(t, high, 4)
	assert.LessOrEqual(t, high, 5)
}

func TestSentimentScore(t *testing.T) {
	t.Parallel()

	c := newTestClassifier()

	assert.Equal(t, 0.0, c.SentimentScore("what time is it", "it is noon"))
	assert.Greater(t, c.SentimentScore("this is awesome and fun, I love it", "Great to hear!"), 0.0)
	assert.Less(t, c.SentimentScore("I hate this, it's terrible and awful", "I'm sorry to hear that."), 0.0)
}
