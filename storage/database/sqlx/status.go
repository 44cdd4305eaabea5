package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/drill"
)

type statusRepository struct {
	db *sqlx.DB
}

var _ drill.StatusRepository = (*statusRepository)(nil) // interface compliance check

func NewStatusRepository(db *sqlx.DB) *statusRepository {
	return &statusRepository{db: db}
}

func (repo statusRepository) QueryAllStatuses(ctx context.Context) ([]drill.StatusRecord, error) {
	recs := make([]drill.StatusRecord, 0)
	err := repo.db.SelectContext(ctx, &recs,
		`SELECT person_id, category, checked_in, out_today, checked_in_at, checked_in_by, updated_at
		   FROM drill_status`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying statuses")
	}
	return recs, nil
}

// UpsertStatus writes the record by its composite key; an existing row
// is overwritten column for column (last write wins).
func (repo statusRepository) UpsertStatus(ctx context.Context, rec drill.StatusRecord) error {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO drill_status (person_id, category, checked_in, out_today, checked_in_at, checked_in_by, updated_at)
		 VALUES (:person_id, :category, :checked_in, :out_today, :checked_in_at, :checked_in_by, :updated_at)
		 ON CONFLICT (person_id, category) DO UPDATE
		    SET checked_in    = EXCLUDED.checked_in,
		        out_today     = EXCLUDED.out_today,
		        checked_in_at = EXCLUDED.checked_in_at,
		        checked_in_by = EXCLUDED.checked_in_by,
		        updated_at    = EXCLUDED.updated_at`,
		rec,
	)
	if err != nil {
		return errors.Wrap(err, "upserting status")
	}
	return nil
}

func (repo statusRepository) ResetAllStatuses(ctx context.Context) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE drill_status
		    SET checked_in = false, out_today = false, checked_in_at = NULL, checked_in_by = NULL, updated_at = now()`,
	)
	if err != nil {
		return errors.Wrap(err, "resetting statuses")
	}
	return nil
}

func (repo statusRepository) CreateResetEntry(ctx context.Context, entry drill.ResetEntry) (drill.ResetEntry, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO drill_history (drill_date, reset_by, notes)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		entry.DrillDate, entry.ResetBy, entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return drill.ResetEntry{}, errors.Wrap(err, "inserting reset entry")
	}
	return entry, nil
}

func (repo statusRepository) QueryResetHistory(ctx context.Context) ([]drill.ResetEntry, error) {
	entries := make([]drill.ResetEntry, 0)
	err := repo.db.SelectContext(ctx, &entries,
		`SELECT id, drill_date, reset_by, notes, created_at
		   FROM drill_history
		  ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying reset history")
	}
	return entries, nil
}
