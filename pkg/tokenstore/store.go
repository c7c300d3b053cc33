// Package tokenstore persists the session token, the cached user record and
// the cached repository names. All three slots are invalidated together.
package tokenstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/api"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// Slot names shared by every backend.
const (
	SlotToken = "auth_token"
	SlotUser  = "user"
	SlotRepos = "repos"
)

var allSlots = []string{SlotToken, SlotUser, SlotRepos}

// TokenSource reads the current token. Empty means absent.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenWriter overwrites the current token.
type TokenWriter interface {
	SetToken(ctx context.Context, token string) error
}

// RepoCache records the names of the last repository listing.
type RepoCache interface {
	SetRepoNames(ctx context.Context, names []string) error
}

// Store is the full slot API. Only the session owns one; everything else
// receives the narrow role it writes through.
type Store interface {
	TokenSource
	TokenWriter
	RepoCache
	ClearToken(ctx context.Context) error
	User(ctx context.Context) (*api.User, error)
	SetUser(ctx context.Context, user *api.User) error
	RepoNames(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// backend is the key/value surface each storage flavor implements.
type backend interface {
	get(ctx context.Context, key string) (string, bool, error)
	put(ctx context.Context, key, value string) error
	remove(ctx context.Context, keys ...string) error
	close() error
}

// slots implements Store on top of a backend.
type slots struct {
	b backend
}

func (s slots) Token(ctx context.Context) (string, error) {
	v, _, err := s.b.get(ctx, SlotToken)
	return v, err
}

// SetToken overwrites the token; an empty token clears the slot.
func (s slots) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.ClearToken(ctx)
	}
	return s.b.put(ctx, SlotToken, token)
}

func (s slots) ClearToken(ctx context.Context) error {
	return s.b.remove(ctx, SlotToken)
}

// User returns the cached user, or nil when none is cached.
func (s slots) User(ctx context.Context) (*api.User, error) {
	raw, ok, err := s.b.get(ctx, SlotUser)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeStorageCorrupt, "cached user record is not valid JSON")
	}
	return &user, nil
}

// SetUser replaces the cached user; nil clears it.
func (s slots) SetUser(ctx context.Context, user *api.User) error {
	if user == nil {
		return s.b.remove(ctx, SlotUser)
	}
	data, err := json.Marshal(user)
	if err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "encode user record")
	}
	return s.b.put(ctx, SlotUser, string(data))
}

func (s slots) RepoNames(ctx context.Context) ([]string, error) {
	raw, ok, err := s.b.get(ctx, SlotRepos)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeStorageCorrupt, "cached repository names are not valid JSON")
	}
	return names, nil
}

func (s slots) SetRepoNames(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "encode repository names")
	}
	return s.b.put(ctx, SlotRepos, string(data))
}

// Clear drops every slot at once.
func (s slots) Clear(ctx context.Context) error {
	return s.b.remove(ctx, allSlots...)
}

func (s slots) Close() error {
	return s.b.close()
}
