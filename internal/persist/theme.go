package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nibzard/timeblock/internal/theme"
)

// ThemeStore persists the color theme under ThemeKey.
type ThemeStore struct {
	backend Backend
}

// NewThemeStore creates a ThemeStore on b.
func NewThemeStore(b Backend) *ThemeStore {
	return &ThemeStore{backend: b}
}

// Load returns the saved theme, normalized. ok is false when no theme has
// been saved.
func (s *ThemeStore) Load(ctx context.Context) (t theme.Theme, ok bool, err error) {
	data, ok, err := s.backend.Get(ctx, ThemeKey)
	if err != nil || !ok {
		return theme.Theme{}, false, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return theme.Theme{}, false, fmt.Errorf("load %s: %w: %w", ThemeKey, ErrCorrupt, err)
	}
	t = t.Normalize()
	if err := t.Validate(); err != nil {
		return theme.Theme{}, false, fmt.Errorf("load %s: %w: %w", ThemeKey, ErrCorrupt, err)
	}
	return t, true, nil
}

// Save writes t.
func (s *ThemeStore) Save(ctx context.Context, t theme.Theme) error {
	data, err := marshalJSON(t)
	if err != nil {
		return fmt.Errorf("save %s: %w", ThemeKey, err)
	}
	if err := s.backend.Put(ctx, ThemeKey, data); err != nil {
		return fmt.Errorf("save %s: %w", ThemeKey, err)
	}
	return nil
}

// Clear removes the saved theme.
func (s *ThemeStore) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, ThemeKey)
}
