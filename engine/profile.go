package engine

import (
	"context"
	"sync"

	"github.com/lumikids/tutorflow/types"
)

// ChildProfile holds the personalization fields used to build the tutor's
// system prompt.
type ChildProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Location string `json:"location"`
	Language string `json:"language"`
}

// ProfileProvider resolves a child profile by owner ID.
type ProfileProvider interface {
	GetProfile(ctx context.Context, ownerID string) (*ChildProfile, error)
}

// InMemoryProfiles is a mutex-guarded ProfileProvider for local development
// and tests.
type InMemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]ChildProfile
}

// NewInMemoryProfiles creates an empty profile registry.
func NewInMemoryProfiles() *InMemoryProfiles {
	return &InMemoryProfiles{profiles: make(map[string]ChildProfile)}
}

// Put registers or replaces a profile.
func (p *InMemoryProfiles) Put(profile ChildProfile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

func (p *InMemoryProfiles) GetProfile(ctx context.Context, ownerID string) (*ChildProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[ownerID]
	if !ok {
		return nil, types.NewError(types.ErrProfileNotFound, "profile not found: "+ownerID)
	}
	return &profile, nil
}
