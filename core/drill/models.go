package drill

import (
	"math"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/rollcall/core/roster"
)

// StatusRecord is the per-person attendance state. A record does not
// exist until the person is first toggled; it is then upserted in place
// on every toggle. CheckedIn and OutToday are mutually exclusive.
type StatusRecord struct {
	PersonID    int             `db:"person_id" json:"person_id"`
	Category    roster.Category `db:"category" json:"category"`
	CheckedIn   bool            `db:"checked_in" json:"checked_in"`
	OutToday    bool            `db:"out_today" json:"out_today"`
	CheckedInAt null.Time       `db:"checked_in_at" json:"checked_in_at"`
	CheckedInBy null.String     `db:"checked_in_by" json:"checked_in_by"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (r StatusRecord) Key() roster.Key {
	return roster.Key{PersonID: r.PersonID, Category: r.Category}
}

// ResetEntry is one row of the append-only reset history.
type ResetEntry struct {
	ID        int       `db:"id" json:"id"`
	DrillDate time.Time `db:"drill_date" json:"drill_date"`
	ResetBy   string    `db:"reset_by" json:"reset_by"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Person is a merged board row: roster identity and display attributes
// joined with the person's attendance state and the external absence
// flag. GroupLabel is the class name for students and StaffGroupLabel
// for staff.
type Person struct {
	PersonID     int             `json:"person_id"`
	Category     roster.Category `json:"category"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	FullName     string          `json:"full_name"`
	GroupLabel   string          `json:"group_label,omitempty"`
	GradeLevel   null.Int        `json:"grade_level,omitempty"`
	CheckedIn    bool            `json:"checked_in"`
	OutToday     bool            `json:"out_today"`
	MarkedAbsent bool            `json:"marked_absent"`
	CheckedInAt  null.Time       `json:"checked_in_at"`
	CheckedInBy  null.String     `json:"checked_in_by"`
}

func (p Person) Key() roster.Key {
	return roster.Key{PersonID: p.PersonID, Category: p.Category}
}

// Accounted reports whether the person no longer needs to be located:
// they either checked in at the assembly point or are out today.
func (p Person) Accounted() bool {
	return p.CheckedIn || p.OutToday
}

// Stats are the derived drill counters. MarkedAbsent counters only
// include people not yet accounted for; once someone checks in (or is
// marked out) the external absence flag stops counting against them.
type Stats struct {
	TotalStaff           int `json:"total_staff"`
	StaffCheckedIn       int `json:"staff_checked_in"`
	StaffOut             int `json:"staff_out"`
	StaffMarkedAbsent    int `json:"staff_marked_absent"`
	TotalStudents        int `json:"total_students"`
	StudentsCheckedIn    int `json:"students_checked_in"`
	StudentsOut          int `json:"students_out"`
	StudentsMarkedAbsent int `json:"students_marked_absent"`
	OverallPercent       int `json:"overall_percent"`
}

// ComputeStats derives drill counters from the merged list. It is pure
// and cheap enough to be recomputed on every read.
func ComputeStats(people []Person) Stats {
	var stats Stats
	var accounted int
	for _, p := range people {
		switch p.Category {
		case roster.Staff:
			stats.TotalStaff++
			if p.CheckedIn {
				stats.StaffCheckedIn++
			}
			if p.OutToday {
				stats.StaffOut++
			}
			if p.MarkedAbsent && !p.Accounted() {
				stats.StaffMarkedAbsent++
			}
		case roster.Student:
			stats.TotalStudents++
			if p.CheckedIn {
				stats.StudentsCheckedIn++
			}
			if p.OutToday {
				stats.StudentsOut++
			}
			if p.MarkedAbsent && !p.Accounted() {
				stats.StudentsMarkedAbsent++
			}
		}
		if p.Accounted() {
			accounted++
		}
	}
	if total := stats.TotalStaff + stats.TotalStudents; total > 0 {
		stats.OverallPercent = int(math.Round(float64(accounted) / float64(total) * 100))
	}
	return stats
}
