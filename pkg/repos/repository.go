package repos

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/vulnpilot/pkg/api"
)

// Repository is the normalized listing entry. Owner and Name form its
// identity.
type Repository struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	FullName    string `json:"full_name,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	URL         string `json:"url,omitempty"`
	Private     bool   `json:"private"`
	Stars       int    `json:"stars,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Key is the uniqueness key of a repository.
func (r Repository) Key() string {
	return r.Owner + "/" + r.Name
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Updated parses UpdatedAt. ok is false when it is absent or unparsable.
func (r Repository) Updated() (time.Time, bool) {
	raw := strings.TrimSpace(r.UpdatedAt)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize maps upstream records onto Repository. Field names differ
// between backend versions; both spellings are accepted.
func Normalize(raw []api.RawRepository) []Repository {
	out := make([]Repository, 0, len(raw))
	for _, r := range raw {
		repo := Repository{
			ID:          stringField(r, "id"),
			Name:        stringField(r, "name"),
			Owner:       ownerField(r["owner"]),
			FullName:    stringField(r, "full_name"),
			Description: stringField(r, "description"),
			Language:    stringField(r, "language"),
			URL:         firstNonEmpty(stringField(r, "html_url"), stringField(r, "url")),
			Private:     boolField(r, "is_private") || boolField(r, "private"),
			Stars:       intField(r, "stargazers_count", "stars"),
			UpdatedAt:   firstNonEmpty(stringField(r, "updated_at"), stringField(r, "lastUpdated")),
		}
		if repo.Owner == "" || repo.Name == "" {
			if owner, name, ok := strings.Cut(repo.FullName, "/"); ok {
				repo.Owner = firstNonEmpty(repo.Owner, owner)
				repo.Name = firstNonEmpty(repo.Name, name)
			}
		}
		if repo.FullName == "" && repo.Owner != "" && repo.Name != "" {
			repo.FullName = repo.Key()
		}
		out = append(out, repo)
	}
	return out
}

// Dedupe keeps the first occurrence of each (owner, name).
func Dedupe(repos []Repository) []Repository {
	seen := make(map[string]struct{}, len(repos))
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if _, ok := seen[r.Key()]; ok {
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortByUpdated orders newest first. Entries without a usable timestamp
// go last; ties keep their input order. The input is not modified.
func SortByUpdated(repos []Repository) []Repository {
	out := append([]Repository(nil), repos...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := out[i].Updated()
		tj, okJ := out[j].Updated()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
	return out
}

// Names lists repository names in order.
func Names(repos []Repository) []string {
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	return names
}

func stringField(r api.RawRepository, key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func ownerField(v any) string {
	switch o := v.(type) {
	case string:
		return strings.TrimSpace(o)
	case map[string]any:
		if login, ok := o["login"].(string); ok {
			return strings.TrimSpace(login)
		}
		if name, ok := o["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func boolField(r api.RawRepository, key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func intField(r api.RawRepository, keys ...string) int {
	for _, key := range keys {
		if v, ok := r[key].(float64); ok {
			return int(v)
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
