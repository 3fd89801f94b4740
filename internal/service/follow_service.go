package service

import (
	"context"
	"errors"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultFollowPageSize = 20
	maxFollowPageSize     = 100
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	events     *Emitter
}

type ListFollowsInput struct {
	UserID uuid.UUID
	Limit  int
	Offset int
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, events *Emitter) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo, events: events}
}

// resolve loads the caller and the target and rejects self-follows.
func (s *FollowService) resolve(ctx context.Context, clerkID string, targetID uuid.UUID) (*models.User, *models.User, error) {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, nil, models.NewNotFoundMessage("Target user not found")
		}
		return nil, nil, err
	}
	if target.ID == user.ID {
		return nil, nil, models.NewBadRequestError("You cannot follow yourself")
	}
	return user, target, nil
}

func (s *FollowService) Toggle(ctx context.Context, clerkID string, targetID uuid.UUID) (models.ToggleResult, error) {
	user, target, err := s.resolve(ctx, clerkID, targetID)
	if err != nil {
		return models.ToggleResult{}, err
	}

	active, err := s.followRepo.Toggle(ctx, user.ID, target.ID)
	if err != nil {
		return models.ToggleResult{}, models.NewInternalError(err)
	}
	s.changed(ctx, user, target, active)

	if active {
		return models.ToggleResult{Active: true, Message: "Followed"}, nil
	}
	return models.ToggleResult{Active: false, Message: "Unfollowed"}, nil
}

func (s *FollowService) Follow(ctx context.Context, clerkID string, targetID uuid.UUID) error {
	user, target, err := s.resolve(ctx, clerkID, targetID)
	if err != nil {
		return err
	}
	if err := s.followRepo.Add(ctx, user.ID, target.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return models.NewBadRequestError("You are already following this user")
		}
		return models.NewInternalError(err)
	}
	s.changed(ctx, user, target, true)
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, clerkID string, targetID uuid.UUID) error {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return err
	}
	removed, err := s.followRepo.Remove(ctx, user.ID, targetID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !removed {
		return models.NewNotFoundMessage("You are not following this user")
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		target = &models.User{ID: targetID}
	}
	s.changed(ctx, user, target, false)
	return nil
}

func (s *FollowService) changed(ctx context.Context, user, target *models.User, active bool) {
	observability.InteractionToggles.WithLabelValues("follow", observability.BoolState(active)).Inc()
	cache.InvalidateFollowStats(ctx, user.ID, target.ID)

	evtType := models.EventUserUnfollowed
	if active {
		evtType = models.EventUserFollowed
	}
	s.events.Emit(ctx, models.Event{
		Type: evtType,
		Payload: map[string]any{
			"followerId":  user.ID,
			"followingId": target.ID,
			"username":    user.Username,
		},
		Recipient: target.ClerkID,
	})
}

func (s *FollowService) requireExisting(ctx context.Context, userID uuid.UUID) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewNotFoundError("User", userID)
	}
	return nil
}

// ListFollowing lists the users in.UserID follows.
func (s *FollowService) ListFollowing(ctx context.Context, in ListFollowsInput) ([]models.FollowEntry, error) {
	return s.list(ctx, in, s.followRepo.ListFollowing)
}

// ListFollowers lists the users following in.UserID.
func (s *FollowService) ListFollowers(ctx context.Context, in ListFollowsInput) ([]models.FollowEntry, error) {
	return s.list(ctx, in, s.followRepo.ListFollowers)
}

func (s *FollowService) list(
	ctx context.Context,
	in ListFollowsInput,
	fetch func(context.Context, uuid.UUID, int, int) ([]models.FollowEntry, error),
) ([]models.FollowEntry, error) {
	limit, offset, err := page(in.Limit, in.Offset, defaultFollowPageSize, maxFollowPageSize)
	if err != nil {
		return nil, err
	}
	if err := s.requireExisting(ctx, in.UserID); err != nil {
		return nil, err
	}
	entries, err := fetch(ctx, in.UserID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

// IsFollowing reports whether the caller follows targetID. Callers that have
// not synced yet follow nobody.
func (s *FollowService) IsFollowing(ctx context.Context, clerkID string, targetID uuid.UUID) (bool, error) {
	if clerkID == "" {
		return false, models.NewUnauthorizedError("Authentication required")
	}
	user, err := s.userRepo.GetByClerkID(ctx, clerkID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	following, err := s.followRepo.Exists(ctx, user.ID, targetID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return following, nil
}

func (s *FollowService) Stats(ctx context.Context, userID uuid.UUID) (*models.FollowStats, error) {
	var stats models.FollowStats
	err := cache.Aside(ctx, cache.FollowStatsKey(userID), &stats, cache.FollowStatsTTL, func(ctx context.Context) error {
		if err := s.requireExisting(ctx, userID); err != nil {
			return err
		}
		var err error
		stats, err = s.followRepo.Stats(ctx, userID)
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
