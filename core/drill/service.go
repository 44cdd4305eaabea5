package drill

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	// errors
	ErrUnknownPerson = errors.New("person not on the board")
)

type (
	// StatusRepository is the durable status table: the single shared
	// mutable resource. Writes are idempotent upserts keyed by
	// (person_id, category); conflicting writers resolve last-write-wins
	// with no locking.
	StatusRepository interface {
		QueryAllStatuses(ctx context.Context) ([]StatusRecord, error)
		UpsertStatus(ctx context.Context, rec StatusRecord) error
		// ResetAllStatuses clears every record back to "never checked in"
		// in one bulk write.
		ResetAllStatuses(ctx context.Context) error
		CreateResetEntry(ctx context.Context, entry ResetEntry) (ResetEntry, error)
		QueryResetHistory(ctx context.Context) ([]ResetEntry, error)
	}

	// AbsenceRepository reads the external attendance system's same-day
	// absence signal. Informative only; never authoritative for drill
	// accounting.
	AbsenceRepository interface {
		QueryAbsentPersonIDs(ctx context.Context, day time.Time) (map[int]bool, error)
	}

	// Service wraps the status store.
	Service struct {
		repo StatusRepository
	}
)

func NewService(repo StatusRepository) *Service {
	return &Service{repo: repo}
}

// Snapshot reads the full status table.
func (svc *Service) Snapshot(ctx context.Context) ([]StatusRecord, error) {
	return svc.repo.QueryAllStatuses(ctx)
}

// Upsert writes a single record by its composite key.
func (svc *Service) Upsert(ctx context.Context, rec StatusRecord) error {
	return svc.repo.UpsertStatus(ctx, rec)
}

// ResetAll bulk-clears every status record and appends one entry to the
// reset history.
func (svc *Service) ResetAll(ctx context.Context, resetBy, notes string) error {
	if err := svc.repo.ResetAllStatuses(ctx); err != nil {
		return errors.Wrap(err, "resetting statuses")
	}
	entry := ResetEntry{
		DrillDate: core.TodayUTC(),
		ResetBy:   core.CleanString(resetBy, true /* lower */),
		Notes:     notes,
	}
	if _, err := svc.repo.CreateResetEntry(ctx, entry); err != nil {
		return errors.Wrap(err, "recording reset")
	}
	return nil
}

// History lists reset entries, newest first.
func (svc *Service) History(ctx context.Context) ([]ResetEntry, error) {
	return svc.repo.QueryResetHistory(ctx)
}
