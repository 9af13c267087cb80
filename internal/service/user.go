package service

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/repository"

	"gorm.io/gorm"
)

type UserService interface {
	GetAccount(ctx context.Context, userID uint) (*dto.AccountResponse, error)
}

type userServiceImpl struct {
	userRepo repository.UserRepository
}

func NewUserService(
	userRepo repository.UserRepository,
) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
	}
}

func (s *userServiceImpl) GetAccount(ctx context.Context, userID uint) (*dto.AccountResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", ErrPersistence, err)
	}

	return &dto.AccountResponse{
		ID:        user.ID,
		TotalCall: user.TotalCall,
		Point:     user.Point,
	}, nil
}
