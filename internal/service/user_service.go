package service

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/google/uuid"
)

const maxBioLen = 500

type UserService struct {
	userRepo repository.UserRepository
}

// SyncUserInput is the profile pushed by the client after sign-in. ClerkID
// always comes from the verified token, never from the body.
type SyncUserInput struct {
	ClerkID  string  `json:"-" validate:"required"`
	Username string  `json:"username" validate:"notblank,max=50"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Avatar   string  `json:"avatar" validate:"omitempty,max=2048"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Resolve returns the local user of an external identity.
func (s *UserService) Resolve(ctx context.Context, clerkID string) (*models.User, error) {
	return requireUser(ctx, s.userRepo, clerkID)
}

// Sync creates or refreshes the local mirror of the signed-in user.
func (s *UserService) Sync(ctx context.Context, in SyncUserInput) (*models.User, bool, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			in.Email = nil
		} else {
			in.Email = &email
		}
	}
	if err := validation.Struct(in); err != nil {
		return nil, false, err
	}

	return s.userRepo.Sync(ctx, &models.User{
		ClerkID:  in.ClerkID,
		Username: in.Username,
		Email:    in.Email,
		Avatar:   strings.TrimSpace(in.Avatar),
	})
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateBio(ctx context.Context, clerkID, bio string) (*models.User, error) {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return nil, err
	}

	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > maxBioLen {
		return nil, models.NewValidationError("Bio too long (max 500 characters)")
	}
	return s.userRepo.UpdateBio(ctx, user.ID, bio)
}

// requireUser resolves the acting user. Every mutation starts here.
func requireUser(ctx context.Context, users repository.UserRepository, clerkID string) (*models.User, error) {
	if clerkID == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	return users.GetByClerkID(ctx, clerkID)
}

// viewerID resolves an optional caller. Anonymous or unsynced callers see
// posts without personal flags.
func viewerID(ctx context.Context, users repository.UserRepository, clerkID string) uuid.UUID {
	if clerkID == "" {
		return uuid.Nil
	}
	user, err := users.GetByClerkID(ctx, clerkID)
	if err != nil {
		return uuid.Nil
	}
	return user.ID
}

// page applies the listing defaults. A zero limit takes def; limits outside
// 1..max and negative offsets are rejected.
func page(limit, offset, def, max int) (int, int, error) {
	if limit == 0 {
		limit = def
	}
	if limit < 1 || limit > max {
		return 0, 0, models.NewValidationError("limit must be between 1 and " + strconv.Itoa(max))
	}
	if offset < 0 {
		return 0, 0, models.NewValidationError("offset must not be negative")
	}
	return limit, offset, nil
}
