package repository

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

type memoryEntry struct {
	mu  sync.Mutex
	rec domain.StaffRecord
}

// MemoryRoster keeps the roster in process. Each record has its own mutex so
// writes to different staff never contend.
type MemoryRoster struct {
	entries  *xsync.Map[string, *memoryEntry]
	position atomic.Int64
}

// NewMemoryRoster builds an empty in-memory roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{entries: xsync.NewMap[string, *memoryEntry]()}
}

var _ RosterRepository = (*MemoryRoster)(nil)

func (r *MemoryRoster) Ping(context.Context) error { return nil }

// update runs fn with the record locked. fn sees a working copy; the copy
// replaces the stored record only when fn returns nil.
func (r *MemoryRoster) update(ctx context.Context, id string, fn func(rec *domain.StaffRecord) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreUnavailable("update", err)
	}
	entry, ok := r.entries.Load(id)
	if !ok {
		return staffNotFound(id)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.rec.Clone()
	if err := fn(&working); err != nil {
		return err
	}
	entry.rec = working
	return nil
}

func (r *MemoryRoster) Get(ctx context.Context, id string) (*domain.StaffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("get", err)
	}
	entry, ok := r.entries.Load(id)
	if !ok {
		return nil, staffNotFound(id)
	}
	entry.mu.Lock()
	rec := entry.rec.Clone()
	entry.mu.Unlock()
	return &rec, nil
}

func (r *MemoryRoster) List(ctx context.Context) ([]domain.StaffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable("list", err)
	}
	out := make([]domain.StaffRecord, 0, r.entries.Size())
	r.entries.Range(func(_ string, entry *memoryEntry) bool {
		entry.mu.Lock()
		out = append(out, entry.rec.Clone())
		entry.mu.Unlock()
		return true
	})
	slices.SortFunc(out, domain.CompareRosterOrder)
	return out, nil
}

func (r *MemoryRoster) FindEligible(ctx context.Context, q EligibilityQuery) ([]domain.StaffRecord, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for i := range all {
		rec := &all[i]
		if rec.ID == q.ExcludeID || rec.MaxDuties <= 0 {
			continue
		}
		if rec.IsUnavailable(q.Date) || rec.Conflicts(q.Date, q.Session, q.Policy) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *MemoryRoster) Commit(ctx context.Context, id string, duty domain.DutyAssignment, policy domain.ConflictPolicy) error {
	duty.Date = dates.Anchor(duty.Date)
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		if err := checkCommit(rec, duty, policy); err != nil {
			return err
		}
		rec.AddDuty(duty)
		return nil
	})
}

func (r *MemoryRoster) Append(ctx context.Context, id string, duties []domain.DutyAssignment, policy domain.ConflictPolicy) error {
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		if err := checkAppend(rec, duties, policy); err != nil {
			return err
		}
		for _, d := range duties {
			rec.AddDuty(domain.DutyAssignment{Date: dates.Anchor(d.Date), Session: d.Session})
		}
		return nil
	})
}

func (r *MemoryRoster) Clear(ctx context.Context, id string) error {
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		rec.ClearDuties()
		return nil
	})
}

func (r *MemoryRoster) Reset(ctx context.Context, id string) error {
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		rec.ClearDuties()
		rec.UnavailableDates = nil
		return nil
	})
}

func (r *MemoryRoster) ResetAll(ctx context.Context) error {
	var err error
	r.entries.Range(func(id string, _ *memoryEntry) bool {
		err = r.Reset(ctx, id)
		return err == nil
	})
	return err
}

func (r *MemoryRoster) ClearPastDuties(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	var err error
	r.entries.Range(func(id string, _ *memoryEntry) bool {
		err = r.update(ctx, id, func(rec *domain.StaffRecord) error {
			removed += prunePast(rec, cutoff)
			return nil
		})
		return err == nil
	})
	return removed, err
}

func (r *MemoryRoster) Upsert(ctx context.Context, records []domain.StaffRecord) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreUnavailable("upsert", err)
	}
	for _, in := range records {
		fresh := &memoryEntry{rec: domain.StaffRecord{
			ID:        in.ID,
			Name:      in.Name,
			MaxDuties: in.MaxDuties,
			Position:  r.position.Add(1),
		}}
		entry, loaded := r.entries.LoadOrStore(in.ID, fresh)
		if !loaded {
			continue
		}
		entry.mu.Lock()
		entry.rec = domain.StaffRecord{
			ID:        in.ID,
			Name:      in.Name,
			MaxDuties: in.MaxDuties,
			Position:  entry.rec.Position,
		}
		entry.mu.Unlock()
	}
	return nil
}

func (r *MemoryRoster) SetUnavailable(ctx context.Context, id string, days []time.Time) error {
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		rec.UnavailableDates = mergeDays(nil, days)
		return nil
	})
}

func (r *MemoryRoster) AddUnavailable(ctx context.Context, id string, days []time.Time) error {
	return r.update(ctx, id, func(rec *domain.StaffRecord) error {
		rec.UnavailableDates = mergeDays(rec.UnavailableDates, days)
		return nil
	})
}
