package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/entity"
	badgeRepo "github.com/vmquan2200/edufinai/internal/modules/badge/repository"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

type BadgeService interface {
	// Award is a no-op for a blank code and fails with ErrUnknownBadge for
	// a code with no registered definition.
	Award(ctx context.Context, userID uuid.UUID, badgeCode string, sourceChallengeID *uuid.UUID) error
	GetUserBadges(ctx context.Context, userID uuid.UUID) ([]entity.BadgeAward, error)
}

type badgeService struct {
	repo badgeRepo.BadgeRepository
	clk  clock.Clock
}

func NewBadgeService(repo badgeRepo.BadgeRepository, clk clock.Clock) BadgeService {
	if clk == nil {
		clk = clock.System()
	}
	return &badgeService{repo: repo, clk: clk}
}

func (s *badgeService) Award(ctx context.Context, userID uuid.UUID, badgeCode string, sourceChallengeID *uuid.UUID) error {
	if strings.TrimSpace(badgeCode) == "" {
		return nil
	}

	def, err := s.repo.FindDefinitionByCode(ctx, badgeCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %q", apperror.ErrUnknownBadge, badgeCode)
		}
		return err
	}

	return s.repo.UpsertAward(ctx, userID, def.ID, sourceChallengeID, s.clk.Now())
}

func (s *badgeService) GetUserBadges(ctx context.Context, userID uuid.UUID) ([]entity.BadgeAward, error) {
	return s.repo.ListByUser(ctx, userID)
}
