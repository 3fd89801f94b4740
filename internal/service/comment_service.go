package service

import (
	"context"
	"strings"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/google/uuid"
)

const (
	defaultCommentPageSize = 50
	maxCommentPageSize     = 100
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	events      *Emitter
}

type CreateCommentInput struct {
	ClerkID  string     `json:"-"`
	PostID   uuid.UUID  `json:"-"`
	Content  string     `json:"content" validate:"notblank,max=1000"`
	ParentID *uuid.UUID `json:"parentId"`
}

type ListCommentsInput struct {
	PostID uuid.UUID
	Limit  int
	Offset int
}

// CommentPage is one page of top-level comments with their replies.
type CommentPage struct {
	Comments []models.CommentView `json:"comments"`
	Total    int64                `json:"total"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	events *Emitter,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		events:      events,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.CommentView, error) {
	user, err := requireUser(ctx, s.userRepo, in.ClerkID)
	if err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	authorID, err := s.postRepo.GetAuthorID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewBadRequestError("Parent comment belongs to a different post")
		}
		// Replies attach to the top-level comment; threads are one level deep.
		if parent.ParentID != nil {
			in.ParentID = parent.ParentID
		}
	}

	comment := &models.Comment{
		PostID:   in.PostID,
		UserID:   user.ID,
		ParentID: in.ParentID,
		Content:  in.Content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, in.PostID)

	view := models.NewCommentView(*comment)
	s.events.Emit(ctx, models.Event{
		Type:      models.EventCommentCreated,
		Payload:   view,
		Recipient: recipientClerkID(ctx, s.userRepo, authorID, user),
	})
	return &view, nil
}

// ListComments returns top-level comments newest first, each with its
// replies oldest first. Replies for the whole page come from one query.
func (s *CommentService) ListComments(ctx context.Context, in ListCommentsInput) (*CommentPage, error) {
	limit, offset, err := page(in.Limit, in.Offset, defaultCommentPageSize, maxCommentPageSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetAuthorID(ctx, in.PostID); err != nil {
		return nil, err
	}

	top, total, err := s.commentRepo.ListTopLevel(ctx, in.PostID, limit, offset)
	if err != nil {
		return nil, err
	}
	parentIDs := make([]uuid.UUID, 0, len(top))
	for _, c := range top {
		parentIDs = append(parentIDs, c.ID)
	}
	replies, err := s.commentRepo.ListReplies(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	byParent := make(map[uuid.UUID][]models.CommentView, len(top))
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		byParent[*r.ParentID] = append(byParent[*r.ParentID], models.NewCommentView(r))
	}

	views := make([]models.CommentView, 0, len(top))
	for _, c := range top {
		v := models.NewCommentView(c)
		v.Replies = byParent[c.ID]
		if v.Replies == nil {
			v.Replies = []models.CommentView{}
		}
		views = append(views, v)
	}
	return &CommentPage{Comments: views, Total: total}, nil
}

func (s *CommentService) DeleteComment(ctx context.Context, clerkID string, id uuid.UUID) error {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return err
	}
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != user.ID {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	if err := s.commentRepo.DeleteWithReplies(ctx, id); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)

	s.events.Emit(ctx, models.Event{
		Type:    models.EventCommentDeleted,
		Payload: map[string]any{"commentId": id, "postId": comment.PostID},
	})
	return nil
}
