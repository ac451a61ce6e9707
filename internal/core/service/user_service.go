package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// UserService serves the admin-only directory views. The upstream gates both
// lookups on the caller's own credentials, so every call re-presents the
// sealed hash from the live session.
type UserService struct {
	upstream ports.Upstream
	creds    ports.CredentialSource
	log      zerolog.Logger
}

func NewUserService(up ports.Upstream, creds ports.CredentialSource, log zerolog.Logger) *UserService {
	return &UserService{upstream: up, creds: creds, log: log}
}

func (u *UserService) ListUsers(ctx context.Context) ([]ports.UserProfile, error) {
	username, pwHash, err := u.creds.Credentials(ctx)
	if err != nil {
		return nil, domain.ErrNotLoggedIn
	}
	users, err := u.upstream.ListUsers(ctx, username, pwHash)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u *UserService) ListLogs(ctx context.Context) ([]domain.Activity, error) {
	username, pwHash, err := u.creds.Credentials(ctx)
	if err != nil {
		return nil, domain.ErrNotLoggedIn
	}
	logs, err := u.upstream.ListLogs(ctx, username, pwHash)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
