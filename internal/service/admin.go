package service

import (
	"OceanBooks/internal/repo"
	"OceanBooks/utils"
	"context"
	"fmt"
)

// InitCatalog prepares the schema and seeds the admin credential once.
// The seed password is stored as a bcrypt hash.
func InitCatalog(ctx context.Context, store *repo.CatalogStore, username, password string) error {
	hash, err := utils.GetPwd(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := store.Init(ctx, username, hash); err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	return nil
}

// AdminLogin checks a username and password against the stored credential.
func (s *CatalogService) AdminLogin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return validationError("Missing credentials")
	}
	admin, err := s.store.FindAdmin(ctx, username)
	if err != nil {
		return internalError("load admin", err)
	}
	if admin == nil || !utils.CheckPwd(password, admin.PasswordHash) {
		return newError(ErrUnauthorized, "Invalid username or password", nil)
	}
	return nil
}
