package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mystery-events/voucherd/internal/models"
	"gorm.io/gorm"
)

// snapshot holds one immutable view of the DB-backed settings.
type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

// Store serves DB-backed settings from an in-memory snapshot.
//
// A Store is constructed once at boot and handed to the components that
// read settings; there is no package-level instance. Reads are lock-free,
// Replace swaps the whole snapshot atomically.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore constructs a Store with an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{values: map[string]json.RawMessage{}})
	return s
}

// Replace swaps the snapshot for the given key set.
func (s *Store) Replace(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v == nil {
			next[key] = nil
			continue
		}
		copied := make([]byte, len(v))
		copy(copied, v)
		next[key] = copied
	}
	s.current.Store(&snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// Refresh reloads all settings rows from the database into the snapshot.
//
// Required once at process startup; until then Value() serves only the
// built-in defaults.
func (s *Store) Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	s.Replace(maxUpdatedAt, values)
	return nil
}

// UpdatedAt returns the last update timestamp of the snapshot.
func (s *Store) UpdatedAt() time.Time {
	return s.load().updatedAt
}

// Value returns a copy of the raw value for a key.
func (s *Store) Value(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	val, ok := s.load().values[key]
	if !ok {
		return nil, false
	}
	if val == nil {
		return nil, true
	}
	copied := make([]byte, len(val))
	copy(copied, val)
	return copied, true
}

// SenderName returns the configured outbound mail display name.
func (s *Store) SenderName() string {
	if raw, ok := s.Value(SenderNameKey); ok {
		var name string
		if errUnmarshal := json.Unmarshal(raw, &name); errUnmarshal == nil && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return DefaultSenderName
}

// PublicBaseURL returns the override for the verification URL base, or fallback.
func (s *Store) PublicBaseURL(fallback string) string {
	if raw, ok := s.Value(PublicBaseURLKey); ok {
		var base string
		if errUnmarshal := json.Unmarshal(raw, &base); errUnmarshal == nil && strings.TrimSpace(base) != "" {
			return strings.TrimRight(strings.TrimSpace(base), "/")
		}
	}
	return strings.TrimRight(strings.TrimSpace(fallback), "/")
}

// ScanWindow returns the override for the consistency scan window, or fallback.
func (s *Store) ScanWindow(fallback int) int {
	if raw, ok := s.Value(ScanWindowKey); ok {
		var window int
		if errUnmarshal := json.Unmarshal(raw, &window); errUnmarshal == nil && window > 0 {
			return window
		}
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultScanWindow
}

func (s *Store) load() *snapshot {
	if cur := s.current.Load(); cur != nil {
		return cur
	}
	return &snapshot{values: map[string]json.RawMessage{}}
}
