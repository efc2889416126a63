package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nibzard/timeblock/internal/task"
)

// SnapshotVersion is written into every saved snapshot.
const SnapshotVersion = 1

// ErrCorrupt marks a stored value that could not be parsed or failed the
// schema check.
var ErrCorrupt = errors.New("corrupt snapshot")

// Snapshot is the persisted chart state. Unknown fields in stored documents
// are ignored.
type Snapshot struct {
	Version  int           `json:"version,omitempty" yaml:"version,omitempty"`
	Tasks    []task.Record `json:"tasks" yaml:"tasks"`
	ViewMode string        `json:"view_mode,omitempty" yaml:"view_mode,omitempty"`
	SavedAt  *time.Time    `json:"saved_at,omitempty" yaml:"saved_at,omitempty"`
}

// Adapter is the load/save contract the application uses for chart state.
type Adapter interface {
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns (nil, nil) when nothing has been saved.
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// SnapshotStore implements Adapter on top of a Backend.
type SnapshotStore struct {
	backend Backend
	key     string
	now     func() time.Time
}

// NewSnapshotStore stores snapshots under SnapshotKey.
func NewSnapshotStore(b Backend) *SnapshotStore {
	return &SnapshotStore{backend: b, key: SnapshotKey, now: time.Now}
}

// Save stamps and writes snap. The caller's value is not modified.
func (s *SnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("save %s: nil snapshot", s.key)
	}
	out := *snap
	out.Version = SnapshotVersion
	if out.Tasks == nil {
		out.Tasks = []task.Record{}
	}
	savedAt := s.now().UTC().Truncate(time.Second)
	out.SavedAt = &savedAt

	data, err := marshalJSON(&out)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Load reads the stored snapshot. A value that is not valid JSON or does not
// match the snapshot schema yields an error wrapping ErrCorrupt.
func (s *SnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	data, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	if !ok {
		return nil, nil
	}
	snap, err := decodeSnapshotJSON(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	return snap, nil
}

// Clear removes the stored snapshot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}

func decodeSnapshotJSON(data []byte) (*Snapshot, error) {
	if err := checkSchema(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &snap, nil
}

// marshalJSON encodes v with 2-space indentation and a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
