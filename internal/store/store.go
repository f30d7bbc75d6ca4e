// Package store persists analysis runs. The scoring pipeline never touches
// it; callers decide which results to keep.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adkeyword-cli/internal/config"
	"github.com/sells-group/adkeyword-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 100

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source string    `json:"source,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// ErrEmptyUpdate is returned by UpdateRun when the update sets no field.
var ErrEmptyUpdate = eris.New("store: update sets no fields")

// RunUpdate holds the editable metadata of a saved run. Nil fields are left
// unchanged; a non-nil empty Tags slice clears the tags.
type RunUpdate struct {
	Name *string  `json:"name,omitempty"`
	Memo *string  `json:"memo,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u RunUpdate) IsEmpty() bool {
	return u.Name == nil && u.Memo == nil && u.Tags == nil
}

// assignments renders the SET clauses for u. placeholder returns the bind
// parameter for the n-th argument, starting at 1.
func (u RunUpdate) assignments(placeholder func(n int) string) ([]string, []any, error) {
	if u.IsEmpty() {
		return nil, nil, ErrEmptyUpdate
	}
	var sets []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = "+placeholder(len(args)))
	}
	if u.Name != nil {
		add("name", strings.TrimSpace(*u.Name))
	}
	if u.Memo != nil {
		add("memo", *u.Memo)
	}
	if u.Tags != nil {
		tags, err := json.Marshal(model.NormalizeTags(u.Tags))
		if err != nil {
			return nil, nil, eris.Wrap(err, "marshal tags")
		}
		add("tags", string(tags))
	}
	return sets, args, nil
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	// SaveRun inserts run, assigning an ID and creation time when unset.
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns runs newest first, without their recommendations.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// UpdateRun edits the name, memo and tags of a saved run.
	UpdateRun(ctx context.Context, id string, upd RunUpdate) error
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
