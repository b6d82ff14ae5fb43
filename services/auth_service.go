package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// uniqueViolation is the PostgreSQL error code raised when concurrent provisioning
// races on the users.email or users.google_id constraints.
const uniqueViolation = "23505"

// AuthService resolves verified identities to tenant-owned users. All lookup and
// provisioning branches for one authentication attempt run inside a single
// transaction so partial creation is never observable.
type AuthService struct {
	users     repositories.UserRepository
	tenants   repositories.TenantRepository
	txManager repositories.TransactionManager
	logger    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users repositories.UserRepository,
	tenants repositories.TenantRepository,
	txManager repositories.TransactionManager,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tenants:   tenants,
		txManager: txManager,
		logger:    logger,
	}
}

// FindOrCreateUser resolves a verified federated profile to its user, provisioning a
// tenant and admin user on first login. Resolution order: provider subject, then
// email (attaching the subject to a previously registered account), then provision.
// A unique-violation from a concurrent first login is retried as a lookup.
func (s *AuthService) FindOrCreateUser(ctx context.Context, profile *models.Profile) (*models.User, error) {
	user, err := s.findOrCreateOnce(ctx, profile)
	if err == nil {
		return user, nil
	}

	if isUniqueViolation(err) {
		s.logger.Info("provisioning race detected, retrying as lookup",
			zap.String("subject", profile.Subject))
		return s.findOrCreateOnce(ctx, profile)
	}

	return nil, err
}

func (s *AuthService) findOrCreateOnce(ctx context.Context, profile *models.Profile) (*models.User, error) {
	var resolved *models.User

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		// Branch 1: known federated subject.
		user, err := s.users.GetByGoogleID(txCtx, profile.Subject)
		if err == nil {
			if err := s.users.TouchLastLogin(txCtx, user.ID); err != nil {
				return err
			}
			resolved = user
			return nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		// Branch 2: known email, previously password-registered. Attach the
		// federated subject to that account.
		user, err = s.users.GetByEmail(txCtx, profile.Email)
		if err == nil {
			if err := s.users.AttachGoogleIdentity(txCtx, user.ID, profile.Subject, profile.Picture); err != nil {
				return err
			}
			if err := s.users.TouchLastLogin(txCtx, user.ID); err != nil {
				return err
			}
			user.GoogleID = profile.Subject
			user.AvatarURL = profile.Picture
			resolved = user
			return nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		// Branch 3: first login from an unrecognized identity. Provision a tenant
		// and its admin user.
		resolved, err = s.provision(txCtx, profile)
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, err
		}
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, WrapUpstream("identity resolution failed", err)
	}

	return resolved, nil
}

func (s *AuthService) provision(ctx context.Context, profile *models.Profile) (*models.User, error) {
	tenantName := profile.Name
	if tenantName == "" {
		tenantName = emailLocalPart(profile.Email)
	}

	tenant := models.NewTenant(tenantName, emailDomain(profile.Email))
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}

	// The first user of a tenant is always its administrator.
	user := models.NewUser(tenant.ID, profile.Email, profile.Name, models.RoleAdmin)
	user.GoogleID = profile.Subject
	user.AvatarURL = profile.Picture
	now := user.CreatedAt
	user.LastLoginAt = &now

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	user.TenantName = tenant.Name

	s.logger.Info("tenant provisioned",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("user_id", user.ID.String()))

	return user, nil
}

// RegisterLocal provisions a tenant and admin user for a password credential
func (s *AuthService) RegisterLocal(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, WrapInternal("failed to hash password", err)
	}

	var resolved *models.User
	err = s.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.users.GetByEmail(txCtx, email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		tenantName := name
		if tenantName == "" {
			tenantName = emailLocalPart(email)
		}
		tenant := models.NewTenant(tenantName, emailDomain(email))
		if err := s.tenants.Create(txCtx, tenant); err != nil {
			return err
		}

		user := models.NewUser(tenant.ID, email, name, models.RoleAdmin)
		user.PasswordHash = string(hash)
		now := user.CreatedAt
		user.LastLoginAt = &now
		if err := s.users.Create(txCtx, user); err != nil {
			return err
		}

		user.TenantName = tenant.Name
		resolved = user
		return nil
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		var domainErr *DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, WrapUpstream("registration failed", err)
	}

	return resolved, nil
}

// LoginLocal verifies a password credential and returns the user
func (s *AuthService) LoginLocal(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, WrapUpstream("login lookup failed", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	if user.PasswordHash == "" {
		// Federated-only account; no password to check against.
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	return user, nil
}

// GetActiveUser returns the live user record, rejecting missing or deactivated
// accounts. Stale tokens referencing them fail here.
func (s *AuthService) GetActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInactiveAccount
		}
		return nil, WrapUpstream("user lookup failed", err)
	}
	return user, nil
}

// TouchLastLogin advances the user's last_login_at
func (s *AuthService) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	if err := s.users.TouchLastLogin(ctx, id); err != nil {
		return WrapUpstream("failed to update last login", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func emailDomain(email string) string {
	if i := strings.Index(email, "@"); i >= 0 && i+1 < len(email) {
		return email[i+1:]
	}
	return ""
}
