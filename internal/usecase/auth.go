package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/email"
	"github.com/rosterly/rosterd/internal/metrics"
	"github.com/rosterly/rosterd/internal/repository"
)

type AuthUsecase struct {
	employees     repository.EmployeeRepository
	tokens        repository.TokenRepository
	tm            *auth.TokenManager
	revoked       *auth.RevocationSet
	caches        *cache.Caches
	sender        email.Sender
	lockThreshold int
	logger        *slog.Logger
}

func NewAuthUsecase(
	employees repository.EmployeeRepository,
	tokens repository.TokenRepository,
	tm *auth.TokenManager,
	revoked *auth.RevocationSet,
	caches *cache.Caches,
	sender email.Sender,
	lockThreshold int,
	logger *slog.Logger,
) *AuthUsecase {
	if lockThreshold <= 0 {
		lockThreshold = 5
	}
	return &AuthUsecase{
		employees:     employees,
		tokens:        tokens,
		tm:            tm,
		revoked:       revoked,
		caches:        caches,
		sender:        sender,
		lockThreshold: lockThreshold,
		logger:        logger.With("component", "auth"),
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
}

// Register creates a self-service account with the lowest role. Staff with
// higher roles are provisioned by admins through the employee usecase.
func (u *AuthUsecase) Register(ctx context.Context, input RegisterInput) (*domain.Employee, error) {
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	emp := &domain.Employee{
		Email:           input.Email,
		PasswordHash:    hash,
		Role:            domain.RoleEmployee,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Phone:           input.Phone,
		MaxHoursPerWeek: 40,
		IsActive:        true,
	}
	created, err := u.employees.Create(ctx, emp)
	if err != nil {
		return nil, fmt.Errorf("register employee: %w", err)
	}
	u.logger.Info("employee registered", "employee_id", created.ID)
	return created, nil
}

// TokenPair is the login/refresh response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Login verifies credentials, tracks the failure counter, and issues a
// token pair. The error for a wrong password and an unknown email is the
// same on purpose.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*domain.Employee, *TokenPair, error) {
	emp, err := u.employees.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrEmployeeNotFound) {
			return nil, nil, domain.ErrBadCredentials
		}
		return nil, nil, fmt.Errorf("find employee: %w", err)
	}
	if emp.AccountLocked {
		return nil, nil, domain.ErrAccountLocked
	}
	if !emp.IsActive {
		return nil, nil, domain.ErrAccountInactive
	}

	if !auth.CheckPassword(emp.PasswordHash, password) {
		metrics.LoginFailuresTotal.Inc()
		locked, recErr := u.employees.RecordLoginFailure(ctx, emp.ID, u.lockThreshold)
		if recErr != nil {
			u.logger.Error("recording login failure", "employee_id", emp.ID, "error", recErr)
		}
		if locked {
			u.logger.Warn("account locked after repeated failures", "employee_id", emp.ID)
			u.sendNotice(ctx, emp.Email, "Account locked",
				"Your account was locked after repeated failed sign-in attempts. Contact your manager to unlock it.")
			return nil, nil, domain.ErrAccountLocked
		}
		return nil, nil, domain.ErrBadCredentials
	}

	if emp.FailedLoginAttempts > 0 {
		if err := u.employees.ResetLoginFailures(ctx, emp.ID); err != nil {
			u.logger.Error("resetting login failures", "employee_id", emp.ID, "error", err)
		}
	}

	pair, err := u.issuePair(ctx, emp)
	if err != nil {
		return nil, nil, err
	}
	return emp, pair, nil
}

// Refresh rotates the refresh token: the presented token is atomically
// consumed and a fresh pair is issued.
func (u *AuthUsecase) Refresh(ctx context.Context, rawRefresh string) (*domain.Employee, *TokenPair, error) {
	employeeID, err := u.tokens.ClaimRefresh(ctx, auth.HashRefresh(rawRefresh))
	if err != nil {
		return nil, nil, err
	}
	emp, err := u.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, nil, fmt.Errorf("find employee: %w", err)
	}
	if emp.AccountLocked {
		return nil, nil, domain.ErrAccountLocked
	}
	if !emp.IsActive {
		return nil, nil, domain.ErrAccountInactive
	}

	pair, err := u.issuePair(ctx, emp)
	if err != nil {
		return nil, nil, err
	}
	return emp, pair, nil
}

// Logout revokes the presented access token for its remaining lifetime and
// invalidates every refresh token of the employee.
func (u *AuthUsecase) Logout(ctx context.Context, claims *auth.Claims) error {
	u.revoked.Revoke(claims.TokenID, claims.ExpiresAt)
	if err := u.tokens.RevokeAllFor(ctx, claims.EmployeeID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// Me returns the employee with the role's permission list.
func (u *AuthUsecase) Me(ctx context.Context, employeeID string) (*domain.Employee, []string, error) {
	emp, err := u.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := u.caches.RolePermissions.Get(ctx, string(emp.Role), func(context.Context) ([]string, error) {
		return auth.Permissions(emp.Role), nil
	})
	if err != nil {
		perms = auth.Permissions(emp.Role)
	}
	return emp, perms, nil
}

// ChangePassword handles both the self and the administrative flow. Self
// changes must present the current password; admins changing another
// account skip it but need the reset permission.
func (u *AuthUsecase) ChangePassword(ctx context.Context, actor Actor, targetID, currentPassword, newPassword string) error {
	target, err := u.employees.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if actor.Is(targetID) {
		if !auth.CheckPassword(target.PasswordHash, currentPassword) {
			return domain.ErrBadCredentials
		}
	} else {
		if !actor.Can(auth.PermPasswordReset) {
			return forbidden("not allowed to change another employee's password")
		}
		if target.Role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
			return forbidden("only admins may change an admin's password")
		}
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	history, err := u.employees.PasswordHistory(ctx, targetID)
	if err != nil {
		return fmt.Errorf("load password history: %w", err)
	}
	if err := auth.CheckReuse(newPassword, append(history, target.PasswordHash)); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := u.employees.UpdatePassword(ctx, targetID, hash, false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := u.tokens.RevokeAllFor(ctx, targetID); err != nil {
		u.logger.Error("revoking refresh tokens after password change", "employee_id", targetID, "error", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, target.Email)
	return nil
}

// ResetPassword issues a random temporary password for the target, flagged
// so the next login forces a change. The plaintext is returned once to the
// caller and never stored.
func (u *AuthUsecase) ResetPassword(ctx context.Context, actor Actor, targetID string) (string, error) {
	if !actor.Can(auth.PermPasswordReset) {
		return "", forbidden("not allowed to reset passwords")
	}
	target, err := u.employees.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if target.Role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
		return "", forbidden("only admins may reset an admin's password")
	}

	plain, err := auth.GenerateResetPassword()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return "", err
	}
	if err := u.employees.UpdatePassword(ctx, targetID, hash, true); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	if err := u.tokens.RevokeAllFor(ctx, targetID); err != nil {
		u.logger.Error("revoking refresh tokens after reset", "employee_id", targetID, "error", err)
	}
	u.caches.EmployeeByEmail.Invalidate(ctx, target.Email)
	u.sendNotice(ctx, target.Email, "Password reset",
		"An administrator reset your password. You will be asked to choose a new one on your next sign-in.")
	u.logger.Info("password reset issued", "employee_id", targetID, "by", actor.ID)
	return plain, nil
}

// sendNotice delivers a security email best-effort; auth flows never fail
// on a mail outage.
func (u *AuthUsecase) sendNotice(ctx context.Context, to, subject, body string) {
	if u.sender == nil {
		return
	}
	if err := u.sender.Send(ctx, to, subject, body); err != nil {
		u.logger.Error("sending notice email", "to", to, "subject", subject, "error", err)
	}
}

func (u *AuthUsecase) issuePair(ctx context.Context, emp *domain.Employee) (*TokenPair, error) {
	access, claims, err := u.tm.IssueAccess(emp)
	if err != nil {
		return nil, err
	}
	rawRefresh, refreshHash, expiresAt, err := u.tm.IssueRefresh()
	if err != nil {
		return nil, err
	}
	if err := u.tokens.StoreRefresh(ctx, emp.ID, refreshHash, expiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: rawRefresh,
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}
