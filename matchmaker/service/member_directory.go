// matchmaker/service/member_directory.go
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ftotnem/GO-MATCHMAKER/shared/models"
)

// ProfileStore is the persistence the directory loads members from.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, name string, defaultRating float64) (*models.PlayerProfile, error)
	ApplyResult(ctx context.Context, name string, delta float64) error
}

// MemberDirectory hands out the one live Member per player name.
type MemberDirectory struct {
	profiles      ProfileStore
	defaultRating float64

	mu      sync.Mutex
	members map[string]*models.Member
}

func NewMemberDirectory(profiles ProfileStore, defaultRating float64) *MemberDirectory {
	return &MemberDirectory{
		profiles:      profiles,
		defaultRating: defaultRating,
		members:       make(map[string]*models.Member),
	}
}

// Get returns the live member for name, loading its profile on first use.
// Players without a stored profile get one with the default rating.
func (md *MemberDirectory) Get(ctx context.Context, name string) (*models.Member, error) {
	if m, ok := md.Lookup(name); ok {
		return m, nil
	}

	profile, err := md.profiles.EnsureProfile(ctx, name, md.defaultRating)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", name, err)
	}

	md.mu.Lock()
	defer md.mu.Unlock()
	if m, ok := md.members[name]; ok {
		return m, nil
	}
	m := models.NewMember(name, profile.Rating, profile.Guild)
	md.members[name] = m
	return m, nil
}

// Lookup returns an already loaded member.
func (md *MemberDirectory) Lookup(name string) (*models.Member, bool) {
	md.mu.Lock()
	defer md.mu.Unlock()
	m, ok := md.members[name]
	return m, ok
}

// ApplyResult stores a rating change and mirrors it on the live member.
func (md *MemberDirectory) ApplyResult(ctx context.Context, name string, delta float64) error {
	if err := md.profiles.ApplyResult(ctx, name, delta); err != nil {
		return err
	}
	if m, ok := md.Lookup(name); ok {
		m.AdjustRating(delta)
	}
	return nil
}
