package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/entity"
	"github.com/vmquan2200/edufinai/internal/modules/challenge/dto"
	challengeRepo "github.com/vmquan2200/edufinai/internal/modules/challenge/repository"
	"github.com/vmquan2200/edufinai/internal/modules/rule"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// ChallengeService is the authoring/approval surface. New challenges start
// PENDING and accrue no progress until approved.
type ChallengeService interface {
	Create(ctx context.Context, req dto.CreateChallengeRequest) (*entity.Challenge, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateChallengeRequest) (*entity.Challenge, error)
	List(ctx context.Context, filter dto.ChallengeListFilter) ([]entity.Challenge, int64, error)
	SetApproval(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, req dto.ApprovalRequest) error
}

type challengeService struct {
	repo challengeRepo.ChallengeRepository
}

func NewChallengeService(repo challengeRepo.ChallengeRepository) ChallengeService {
	return &challengeService{repo: repo}
}

func (s *challengeService) Create(ctx context.Context, req dto.CreateChallengeRequest) (*entity.Challenge, error) {
	// Reject broken descriptors at authoring time instead of discovering
	// them during event processing.
	if _, err := rule.Parse(req.RuleSpec); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	challenge := &entity.Challenge{
		Title:             req.Title,
		Description:       req.Description,
		Type:              entity.ChallengeType(req.Type),
		Scope:             entity.ChallengeScope(req.Scope),
		TargetValue:       req.TargetValue,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
		Active:            active,
		RuleSpec:          req.RuleSpec,
		RewardScore:       req.RewardScore,
		RewardBadgeCode:   req.RewardBadgeCode,
		MaxProgressPerDay: req.MaxProgressPerDay,
		ApprovalStatus:    entity.ApprovalPending,
	}

	if err := s.repo.Create(ctx, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *challengeService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateChallengeRequest) (*entity.Challenge, error) {
	challenge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	if req.RuleSpec != nil {
		if _, err := rule.Parse(*req.RuleSpec); err != nil {
			return nil, err
		}
		challenge.RuleSpec = *req.RuleSpec
	}
	if req.Title != nil {
		challenge.Title = *req.Title
	}
	if req.Description != nil {
		challenge.Description = *req.Description
	}
	if req.TargetValue != nil {
		challenge.TargetValue = req.TargetValue
	}
	if req.StartAt != nil {
		challenge.StartAt = req.StartAt
	}
	if req.EndAt != nil {
		challenge.EndAt = req.EndAt
	}
	if req.Active != nil {
		challenge.Active = *req.Active
	}
	if req.RewardScore != nil {
		challenge.RewardScore = *req.RewardScore
	}
	if req.RewardBadgeCode != nil {
		challenge.RewardBadgeCode = *req.RewardBadgeCode
	}
	if req.MaxProgressPerDay != nil {
		challenge.MaxProgressPerDay = *req.MaxProgressPerDay
	}

	if err := s.repo.Update(ctx, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *challengeService) List(ctx context.Context, filter dto.ChallengeListFilter) ([]entity.Challenge, int64, error) {
	return s.repo.List(ctx, challengeRepo.ChallengeFilter{
		Scope:          filter.Scope,
		Type:           filter.Type,
		ApprovalStatus: filter.ApprovalStatus,
		Page:           filter.Page,
		Limit:          filter.Limit,
	})
}

func (s *challengeService) SetApproval(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, req dto.ApprovalRequest) error {
	err := s.repo.SetApproval(ctx, id, entity.ApprovalStatus(req.Status), reviewerID, req.Note)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.ErrNotFound
	}
	return err
}
