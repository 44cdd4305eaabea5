package roster

import "context"

type (
	// Repository provides read-only access to the two person rosters.
	// Both queries are ordered by last name at the store.
	Repository interface {
		// QueryActiveStaff excludes inactive staff and staff flagged as
		// excluded from drills.
		QueryActiveStaff(ctx context.Context) ([]StaffMember, error)
		QueryStudents(ctx context.Context) ([]StudentMember, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Staff(ctx context.Context) ([]StaffMember, error) {
	return svc.repo.QueryActiveStaff(ctx)
}

func (svc *Service) Students(ctx context.Context) ([]StudentMember, error) {
	return svc.repo.QueryStudents(ctx)
}
