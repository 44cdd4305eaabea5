// Package dummydb holds in-memory repositories backing tests and local
// development without a live database.
package dummydb

import (
	"sync"
	"time"

	"github.com/trezcool/rollcall/core/drill"
	"github.com/trezcool/rollcall/core/roster"
)

type (
	DB struct {
		staff    *staffTable
		students *studentTable
		statuses *statusTable
		history  *historyTable
		absences *absenceTable
		admins   *adminTable
	}

	staffTable struct {
		sync.RWMutex
		rows []roster.StaffMember
	}

	studentTable struct {
		sync.RWMutex
		rows []roster.StudentMember
	}

	statusTable struct {
		sync.RWMutex
		rows map[roster.Key]drill.StatusRecord
	}

	historyTable struct {
		sync.RWMutex
		rows   []drill.ResetEntry
		nextID int
	}

	absenceTable struct {
		sync.RWMutex
		rows map[string]map[int]bool // date -> person ids
	}

	adminTable struct {
		sync.RWMutex
		emails map[string]bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		staff:    &staffTable{},
		students: &studentTable{},
		statuses: &statusTable{rows: make(map[roster.Key]drill.StatusRecord)},
		history:  &historyTable{nextID: 1},
		absences: &absenceTable{rows: make(map[string]map[int]bool)},
		admins:   &adminTable{emails: make(map[string]bool)},
	}
	return db, nil
}

// seeding helpers

func (db *DB) AddStaff(members ...roster.StaffMember) {
	db.staff.Lock()
	defer db.staff.Unlock()
	db.staff.rows = append(db.staff.rows, members...)
}

func (db *DB) AddStudents(members ...roster.StudentMember) {
	db.students.Lock()
	defer db.students.Unlock()
	db.students.rows = append(db.students.rows, members...)
}

func (db *DB) PutStatus(rec drill.StatusRecord) {
	db.statuses.Lock()
	defer db.statuses.Unlock()
	db.statuses.rows[rec.Key()] = rec
}

func (db *DB) MarkAbsent(day time.Time, personIDs ...int) {
	db.absences.Lock()
	defer db.absences.Unlock()
	key := day.Format("2006-01-02")
	if db.absences.rows[key] == nil {
		db.absences.rows[key] = make(map[int]bool)
	}
	for _, id := range personIDs {
		db.absences.rows[key][id] = true
	}
}

func (db *DB) AddAdmins(emails ...string) {
	db.admins.Lock()
	defer db.admins.Unlock()
	for _, email := range emails {
		db.admins.emails[email] = true
	}
}
