// Package account implements the external account service contract
// spec.md §1 declares out of scope for the exchange core itself
// (register / validateCredentials / updatePassword) — named in spec.md
// §6 only by the `login` / `updateCredentials` operations it backs.
// Modeled on the teacher's internal/auth.Service and internal/db/models
// User, but persisted through gorm+postgres rather than an in-memory map
// (spec.md §12 "gorm-backed account service").
package account

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/crossx-exchange/crossx/internal/apperrors"
)

// User is the persisted account record.
type User struct {
	Username     string `gorm:"primaryKey"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName pins the gorm table name rather than relying on pluralization.
func (User) TableName() string { return "accounts" }

// Service implements register/validateCredentials/updatePassword over a
// gorm.DB handle (spec.md §1 Non-goal: "authentication backend" is out of
// scope for the matching engine itself; this package exists purely to
// back the login/updateCredentials wire operations).
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New wraps an already-connected gorm.DB, auto-migrating the accounts
// table.
func New(db *gorm.DB, logger *zap.Logger) (*Service, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, err
	}
	return &Service{db: db, logger: logger}, nil
}

// Register creates a new account. A failed insert, such as a duplicate
// username violating the primary key, is returned wrapped as
// apperrors.ErrUserNotFound (the account store's own constraint naming is
// not part of this contract).
func (s *Service) Register(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence, "hash password")
	}
	now := time.Now().UTC()
	u := &User{Username: username, PasswordHash: string(hash), CreatedAt: now, UpdatedAt: now}
	if err := s.db.Create(u).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrUserNotFound, "create account")
	}
	return nil
}

// ValidateCredentials reports whether username/password match a
// registered account (spec.md §6 `login`: response 101 on mismatch, 102
// on unknown user).
func (s *Service) ValidateCredentials(username, password string) error {
	var u User
	if err := s.db.First(&u, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.ErrUserNotFound, "unknown username")
		}
		return apperrors.Wrap(err, apperrors.ErrPersistence, "load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return apperrors.New(apperrors.ErrBadCredentials, "password mismatch")
	}
	return nil
}

// UpdatePassword replaces an account's password hash after verifying the
// old one (spec.md §6 `updateCredentials`).
func (s *Service) UpdatePassword(username, oldPassword, newPassword string) error {
	if err := s.ValidateCredentials(username, oldPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence, "hash password")
	}
	err = s.db.Model(&User{}).Where("username = ?", username).
		Updates(map[string]any{"password_hash": string(hash), "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence, "update account")
	}
	return nil
}
