package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaffMember_Names(t *testing.T) {
	tests := []struct {
		name      string
		member    StaffMember
		wantFirst string
		wantLast  string
	}{
		{
			name:      "explicit names win",
			member:    StaffMember{FirstName: "Jane", LastName: "Doe", FullName: "Other, Name"},
			wantFirst: "Jane",
			wantLast:  "Doe",
		},
		{
			name:      "falls back to splitting the full name",
			member:    StaffMember{FullName: "Doe, Jane"},
			wantFirst: "Jane",
			wantLast:  "Doe",
		},
		{
			name:     "full name without a comma is all last name",
			member:   StaffMember{FullName: "Cher"},
			wantLast: "Cher",
		},
		{
			name:      "partial fallback",
			member:    StaffMember{FirstName: "Jane", FullName: "Doe, J"},
			wantFirst: "Jane",
			wantLast:  "Doe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := tt.member.Names()
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestStaffMember_DisplayName(t *testing.T) {
	assert.Equal(t, "Doe, Jane", StaffMember{FullName: "Doe, Jane"}.DisplayName())
	assert.Equal(t, "Doe, Jane", StaffMember{FirstName: "Jane", LastName: "Doe"}.DisplayName())
}

func TestCategory_Valid(t *testing.T) {
	assert.True(t, Staff.Valid())
	assert.True(t, Student.Valid())
	assert.False(t, Category("").Valid())
	assert.False(t, Category("alien").Valid())
}
