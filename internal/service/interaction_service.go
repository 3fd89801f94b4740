package service

import (
	"context"
	"errors"
	"time"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultReactionPageSize = 20
	maxReactionPageSize     = 100
)

// reactionText holds the user-facing wording and event types of one kind.
type reactionText struct {
	on, off         string
	already, absent string
	onEvent         string
	offEvent        string
}

var reactionTexts = map[models.ReactionKind]reactionText{
	models.ReactionLike: {
		on:       "Post liked",
		off:      "Like removed",
		already:  "You have already liked this post",
		absent:   "You have not liked this post",
		onEvent:  models.EventPostLiked,
		offEvent: models.EventPostUnliked,
	},
	models.ReactionFavorite: {
		on:       "Post added to favorites",
		off:      "Post removed from favorites",
		already:  "You have already favorited this post",
		absent:   "You have not favorited this post",
		onEvent:  models.EventPostFavorited,
		offEvent: models.EventPostUnfavorited,
	},
}

func (t reactionText) message(active bool) string {
	if active {
		return t.on
	}
	return t.off
}

// InteractionService handles likes and favorites. Both are a (post, user)
// row that is either present or absent.
type InteractionService struct {
	reactions map[models.ReactionKind]repository.ReactionRepository
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	posts     *PostService
	events    *Emitter
}

type ReactionInput struct {
	Kind    models.ReactionKind
	ClerkID string
	PostID  uuid.UUID
}

type ListReactionsInput struct {
	Kind          models.ReactionKind
	ViewerClerkID string
	Limit         int
	Offset        int
}

func NewInteractionService(
	likes repository.ReactionRepository,
	favorites repository.ReactionRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	posts *PostService,
	events *Emitter,
) *InteractionService {
	return &InteractionService{
		reactions: map[models.ReactionKind]repository.ReactionRepository{
			models.ReactionLike:     likes,
			models.ReactionFavorite: favorites,
		},
		postRepo: postRepo,
		userRepo: userRepo,
		posts:    posts,
		events:   events,
	}
}

func (s *InteractionService) repo(kind models.ReactionKind) (repository.ReactionRepository, reactionText, error) {
	repo, ok := s.reactions[kind]
	if !ok || repo == nil {
		return nil, reactionText{}, models.NewBadRequestError("unknown reaction")
	}
	return repo, reactionTexts[kind], nil
}

// resolve loads the acting user and checks that the post exists.
func (s *InteractionService) resolve(ctx context.Context, in ReactionInput) (*models.User, uuid.UUID, error) {
	user, err := requireUser(ctx, s.userRepo, in.ClerkID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	authorID, err := s.postRepo.GetAuthorID(ctx, in.PostID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return user, authorID, nil
}

// Toggle flips the caller's reaction on a post and reports the new state.
func (s *InteractionService) Toggle(ctx context.Context, in ReactionInput) (models.ToggleResult, error) {
	repo, text, err := s.repo(in.Kind)
	if err != nil {
		return models.ToggleResult{}, err
	}
	user, authorID, err := s.resolve(ctx, in)
	if err != nil {
		return models.ToggleResult{}, err
	}

	active, err := repo.Toggle(ctx, in.PostID, user.ID)
	if err != nil {
		return models.ToggleResult{}, models.NewInternalError(err)
	}
	s.changed(ctx, in, user, authorID, active)
	return models.ToggleResult{Active: active, Message: text.message(active)}, nil
}

// Message is the confirmation shown once a reaction of kind was added
// (active) or removed.
func (s *InteractionService) Message(kind models.ReactionKind, active bool) string {
	return reactionTexts[kind].message(active)
}

// Add creates the reaction and fails when it already exists.
func (s *InteractionService) Add(ctx context.Context, in ReactionInput) error {
	repo, text, err := s.repo(in.Kind)
	if err != nil {
		return err
	}
	user, authorID, err := s.resolve(ctx, in)
	if err != nil {
		return err
	}

	if err := repo.Add(ctx, in.PostID, user.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return models.NewBadRequestError(text.already)
		}
		return models.NewInternalError(err)
	}
	s.changed(ctx, in, user, authorID, true)
	return nil
}

// Remove deletes the reaction and fails when there was none.
func (s *InteractionService) Remove(ctx context.Context, in ReactionInput) error {
	repo, text, err := s.repo(in.Kind)
	if err != nil {
		return err
	}
	user, err := requireUser(ctx, s.userRepo, in.ClerkID)
	if err != nil {
		return err
	}

	removed, err := repo.Remove(ctx, in.PostID, user.ID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !removed {
		return models.NewNotFoundMessage(text.absent)
	}
	authorID, err := s.postRepo.GetAuthorID(ctx, in.PostID)
	if err != nil {
		authorID = uuid.Nil
	}
	s.changed(ctx, in, user, authorID, false)
	return nil
}

func (s *InteractionService) changed(ctx context.Context, in ReactionInput, actor *models.User, authorID uuid.UUID, active bool) {
	observability.InteractionToggles.WithLabelValues(string(in.Kind), observability.BoolState(active)).Inc()
	cache.InvalidatePost(ctx, in.PostID)

	text := reactionTexts[in.Kind]
	evtType := text.offEvent
	if active {
		evtType = text.onEvent
	}
	recipient := ""
	if authorID != uuid.Nil {
		recipient = recipientClerkID(ctx, s.userRepo, authorID, actor)
	}
	s.events.Emit(ctx, models.Event{
		Type: evtType,
		Payload: map[string]any{
			"postId": in.PostID,
			"userId": actor.ID,
			"active": active,
		},
		Recipient: recipient,
	})
}

// ListMine lists the posts the caller reacted to, most recent reaction first.
func (s *InteractionService) ListMine(ctx context.Context, in ListReactionsInput) ([]models.PostView, error) {
	user, err := requireUser(ctx, s.userRepo, in.ViewerClerkID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, in, user.ID, user.ID)
}

// ListByUser lists the posts another user reacted to.
func (s *InteractionService) ListByUser(ctx context.Context, userID uuid.UUID, in ListReactionsInput) ([]models.PostView, error) {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", userID)
	}
	return s.list(ctx, in, userID, viewerID(ctx, s.userRepo, in.ViewerClerkID))
}

func (s *InteractionService) list(ctx context.Context, in ListReactionsInput, userID, viewer uuid.UUID) ([]models.PostView, error) {
	repo, _, err := s.repo(in.Kind)
	if err != nil {
		return nil, err
	}
	limit, offset, err := page(in.Limit, in.Offset, defaultReactionPageSize, maxReactionPageSize)
	if err != nil {
		return nil, err
	}

	entries, err := repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uuid.UUID, 0, len(entries))
	reactedAt := make(map[uuid.UUID]time.Time, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PostID)
		reactedAt[e.PostID] = e.CreatedAt
	}

	posts, err := s.postRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	views, err := s.posts.Assemble(ctx, viewer, posts)
	if err != nil {
		return nil, err
	}
	for i := range views {
		at := reactedAt[views[i].ID]
		if in.Kind == models.ReactionFavorite {
			views[i].FavoritedAt = &at
		} else {
			views[i].LikedAt = &at
		}
	}
	return views, nil
}
