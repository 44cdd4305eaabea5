package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/rollcall/core/auth"
	"github.com/trezcool/rollcall/core/drill"
	"github.com/trezcool/rollcall/core/roster"
)

// rosterRepository

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo rosterRepository) QueryActiveStaff(_ context.Context) ([]roster.StaffMember, error) {
	repo.db.staff.RLock()
	defer repo.db.staff.RUnlock()

	staff := make([]roster.StaffMember, 0, len(repo.db.staff.rows))
	for _, m := range repo.db.staff.rows {
		if m.IsActive && !m.ExcludeDrill {
			staff = append(staff, m)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].LastName < staff[j].LastName })
	return staff, nil
}

func (repo rosterRepository) QueryStudents(_ context.Context) ([]roster.StudentMember, error) {
	repo.db.students.RLock()
	defer repo.db.students.RUnlock()

	students := make([]roster.StudentMember, len(repo.db.students.rows))
	copy(students, repo.db.students.rows)
	sort.Slice(students, func(i, j int) bool { return students[i].LastName < students[j].LastName })
	return students, nil
}

// statusRepository

type statusRepository struct {
	db *DB
}

var _ drill.StatusRepository = (*statusRepository)(nil)

func NewStatusRepository(db *DB) *statusRepository {
	return &statusRepository{db: db}
}

func (repo statusRepository) QueryAllStatuses(_ context.Context) ([]drill.StatusRecord, error) {
	repo.db.statuses.RLock()
	defer repo.db.statuses.RUnlock()

	recs := make([]drill.StatusRecord, 0, len(repo.db.statuses.rows))
	for _, rec := range repo.db.statuses.rows {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo statusRepository) UpsertStatus(_ context.Context, rec drill.StatusRecord) error {
	repo.db.statuses.Lock()
	defer repo.db.statuses.Unlock()
	repo.db.statuses.rows[rec.Key()] = rec
	return nil
}

func (repo statusRepository) ResetAllStatuses(_ context.Context) error {
	repo.db.statuses.Lock()
	defer repo.db.statuses.Unlock()

	for key, rec := range repo.db.statuses.rows {
		rec.CheckedIn = false
		rec.OutToday = false
		rec.CheckedInAt.Valid = false
		rec.CheckedInBy.Valid = false
		rec.UpdatedAt = time.Now().UTC()
		repo.db.statuses.rows[key] = rec
	}
	return nil
}

func (repo statusRepository) CreateResetEntry(_ context.Context, entry drill.ResetEntry) (drill.ResetEntry, error) {
	repo.db.history.Lock()
	defer repo.db.history.Unlock()

	entry.ID = repo.db.history.nextID
	repo.db.history.nextID++
	entry.CreatedAt = time.Now().UTC()
	repo.db.history.rows = append(repo.db.history.rows, entry)
	return entry, nil
}

func (repo statusRepository) QueryResetHistory(_ context.Context) ([]drill.ResetEntry, error) {
	repo.db.history.RLock()
	defer repo.db.history.RUnlock()

	entries := make([]drill.ResetEntry, len(repo.db.history.rows))
	copy(entries, repo.db.history.rows)
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// absenceRepository

type absenceRepository struct {
	db *DB
}

var _ drill.AbsenceRepository = (*absenceRepository)(nil)

func NewAbsenceRepository(db *DB) *absenceRepository {
	return &absenceRepository{db: db}
}

func (repo absenceRepository) QueryAbsentPersonIDs(_ context.Context, day time.Time) (map[int]bool, error) {
	repo.db.absences.RLock()
	defer repo.db.absences.RUnlock()

	absent := make(map[int]bool)
	for id := range repo.db.absences.rows[day.Format("2006-01-02")] {
		absent[id] = true
	}
	return absent, nil
}

// adminRepository

type adminRepository struct {
	db *DB
}

var _ auth.Repository = (*adminRepository)(nil)

func NewAdminRepository(db *DB) *adminRepository {
	return &adminRepository{db: db}
}

func (repo adminRepository) IsAdminEmail(_ context.Context, email string) (bool, error) {
	repo.db.admins.RLock()
	defer repo.db.admins.RUnlock()
	return repo.db.admins.emails[email], nil
}
