package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/auth"
)

type adminRepository struct {
	db *sqlx.DB
}

var _ auth.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(db *sqlx.DB) *adminRepository {
	return &adminRepository{db: db}
}

func (repo adminRepository) IsAdminEmail(ctx context.Context, email string) (bool, error) {
	var isAdmin bool
	err := repo.db.GetContext(ctx, &isAdmin,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE email = $1)`, email)
	if err != nil {
		return false, errors.Wrap(err, "checking admin email")
	}
	return isAdmin, nil
}
