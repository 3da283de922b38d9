package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"breast-screening-service/internal/domain/activity"
	"breast-screening-service/internal/domain/staff"
)

type activityRepo struct {
	mu      sync.RWMutex
	entries []activity.Entry

	// staff es opcional: resuelve nombres de actor para ListRecent.
	staff staff.Repository
}

func NewActivityRepo(staffRepo staff.Repository) activity.Repository {
	return &activityRepo{
		entries: make([]activity.Entry, 0),
		staff:   staffRepo,
	}
}

func (r *activityRepo) Append(ctx context.Context, e activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("entry id required")
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *activityRepo) ListRecent(ctx context.Context, limit int) ([]activity.EntryWithActor, error) {
	r.mu.RLock()
	entries := make([]activity.Entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]activity.EntryWithActor, 0, len(entries))
	for _, e := range entries {
		name := "Unknown"
		if e.ActorID != nil && r.staff != nil {
			if a, err := r.staff.GetByID(ctx, *e.ActorID); err == nil {
				name = a.Name
			}
		}
		out = append(out, activity.EntryWithActor{Entry: e, ActorName: name})
	}

	return out, nil
}

func (r *activityRepo) UnlinkActor(ctx context.Context, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Las filas no se tocan, solo se anula la referencia.
	for i := range r.entries {
		if r.entries[i].ActorID != nil && *r.entries[i].ActorID == actorID {
			r.entries[i].ActorID = nil
		}
	}
	return nil
}

func (r *activityRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries), nil
}
