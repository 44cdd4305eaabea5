package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/roster"
)

type rosterRepository struct {
	db *sqlx.DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *sqlx.DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo rosterRepository) QueryActiveStaff(ctx context.Context) ([]roster.StaffMember, error) {
	staff := make([]roster.StaffMember, 0)
	err := repo.db.SelectContext(ctx, &staff,
		`SELECT person_id, first_name, last_name, full_name, is_active, exclude_drill
		   FROM staff
		  WHERE is_active AND NOT exclude_drill
		  ORDER BY last_name, first_name`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying staff")
	}
	return staff, nil
}

func (repo rosterRepository) QueryStudents(ctx context.Context) ([]roster.StudentMember, error) {
	students := make([]roster.StudentMember, 0)
	err := repo.db.SelectContext(ctx, &students,
		`SELECT person_id, first_name, last_name, class_name, grade_level
		   FROM students
		  ORDER BY last_name, first_name`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}
