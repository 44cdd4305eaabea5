package roster

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// Category tells which population a person belongs to. It is stable for
// the lifetime of a record and, together with the person id, uniquely
// identifies a person across both rosters.
type Category string

const (
	Staff   Category = "staff"
	Student Category = "student"
)

// StaffGroupLabel is the grouping label shared by all staff; students
// are grouped by their class name instead.
const StaffGroupLabel = "Staff"

func (c Category) Valid() bool {
	return c == Staff || c == Student
}

// Key is the composite identity of a person: the same numeric id may
// appear in both rosters.
type Key struct {
	PersonID int
	Category Category
}

type StaffMember struct {
	PersonID     int    `db:"person_id" json:"person_id"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	FullName     string `db:"full_name" json:"full_name"`
	IsActive     bool   `db:"is_active" json:"is_active"`
	ExcludeDrill bool   `db:"exclude_drill" json:"exclude_drill"`
}

// Names returns the first and last name, falling back to splitting
// FullName ("Last, First") when the upstream roster left them empty.
func (m StaffMember) Names() (first, last string) {
	first, last = m.FirstName, m.LastName
	if first != "" && last != "" {
		return first, last
	}
	parts := strings.SplitN(m.FullName, ", ", 2)
	if last == "" && len(parts) > 0 {
		last = parts[0]
	}
	if first == "" && len(parts) > 1 {
		first = parts[1]
	}
	return first, last
}

// DisplayName returns "Last, First", preferring the upstream FullName.
func (m StaffMember) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.LastName + ", " + m.FirstName
}

type StudentMember struct {
	PersonID   int         `db:"person_id" json:"person_id"`
	FirstName  string      `db:"first_name" json:"first_name"`
	LastName   string      `db:"last_name" json:"last_name"`
	ClassName  null.String `db:"class_name" json:"class_name"`
	GradeLevel null.Int    `db:"grade_level" json:"grade_level"`
}

func (m StudentMember) DisplayName() string {
	return m.LastName + ", " + m.FirstName
}
