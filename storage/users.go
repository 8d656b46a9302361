package storage

import (
	"context"
	"errors"

	"github.com/dctmfoo/AIResearchScribe/models"

	"gorm.io/gorm"
)

// UserStore persists accounts for the session layer.
type UserStore struct {
	DB *gorm.DB
}

// NewUserStore creates the user store on an open connection.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{DB: db}
}

// CreateUser inserts a new account; ErrConflict when the username is taken.
func (s *UserStore) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return dbError("check username", err)
	}
	if count > 0 {
		return ErrConflict
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return dbError("create user", err)
	}
	return nil
}

// FindByUsername loads an account by its unique name.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, dbError("find user", err)
	}
	return &user, nil
}
