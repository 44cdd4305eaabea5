// Package auth consumes the external identity collaborator's verdicts:
// whether a verified email belongs to the allowed domain, and whether
// it carries administrative privilege. Credentials and token issuance
// live upstream; only the two booleans matter here.
package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	// errors
	ErrDomainNotAllowed = errors.New("account is not in the allowed email domain")
)

type (
	// User is the resolved identity attached to each request.
	User struct {
		Email   string `json:"email"`
		IsAdmin bool   `json:"is_admin"`
	}

	// Repository looks up administrative privilege by lowercased email.
	Repository interface {
		IsAdminEmail(ctx context.Context, email string) (bool, error)
	}

	Service struct {
		repo   Repository
		domain string // empty allows any domain
	}
)

func NewService(repo Repository, allowedDomain string) *Service {
	return &Service{repo: repo, domain: core.CleanString(allowedDomain, true /* lower */)}
}

// Authorize gates the verified email on the allowed domain and resolves
// admin privilege. Emails are matched lowercased.
func (svc *Service) Authorize(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if svc.domain != "" && !strings.HasSuffix(email, "@"+svc.domain) {
		return User{}, ErrDomainNotAllowed
	}
	isAdmin, err := svc.repo.IsAdminEmail(ctx, email)
	if err != nil {
		return User{}, errors.Wrap(err, "looking up admin privilege")
	}
	return User{Email: email, IsAdmin: isAdmin}, nil
}
