package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/drill"
)

// absentCategory is the one attendance code the external system uses
// for "absent"; all other codes are ignored.
const absentCategory = 1

type absenceRepository struct {
	db *sqlx.DB
}

var _ drill.AbsenceRepository = (*absenceRepository)(nil) // interface compliance check

func NewAbsenceRepository(db *sqlx.DB) *absenceRepository {
	return &absenceRepository{db: db}
}

func (repo absenceRepository) QueryAbsentPersonIDs(ctx context.Context, day time.Time) (map[int]bool, error) {
	ids := make([]int, 0)
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT person_id
		   FROM master_attendance
		  WHERE attendance_date = $1 AND attendance_category = $2`,
		day.Format("2006-01-02"), absentCategory,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying absences")
	}

	absent := make(map[int]bool, len(ids))
	for _, id := range ids {
		absent[id] = true
	}
	return absent, nil
}
