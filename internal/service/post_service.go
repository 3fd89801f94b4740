package service

import (
	"context"
	"log/slog"
	"strings"

	"quill/internal/cache"
	"quill/internal/featureflags"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPostPageSize = 20
	maxPostPageSize     = 100
	maxPostImages       = 9
)

// TagSuggester proposes tags for a new post.
type TagSuggester func(ctx context.Context, title, content string) ([]string, error)

type PostService struct {
	postRepo    repository.PostRepository
	tagRepo     repository.TagRepository
	imageRepo   repository.ImageRepository
	userRepo    repository.UserRepository
	suggestTags TagSuggester
	flags       *featureflags.Manager
	events      *Emitter
}

type CreatePostInput struct {
	ClerkID   string   `json:"-"`
	Title     string   `json:"title" validate:"notblank,max=200"`
	Content   string   `json:"content" validate:"notblank"`
	ImageURLs []string `json:"imageUrls" validate:"max=9,dive,imageurl"`
}

type ListPostsInput struct {
	ViewerClerkID string
	Limit         int
	Offset        int
}

func NewPostService(
	postRepo repository.PostRepository,
	tagRepo repository.TagRepository,
	imageRepo repository.ImageRepository,
	userRepo repository.UserRepository,
	suggestTags TagSuggester,
	flags *featureflags.Manager,
	events *Emitter,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		tagRepo:     tagRepo,
		imageRepo:   imageRepo,
		userRepo:    userRepo,
		suggestTags: suggestTags,
		flags:       flags,
		events:      events,
	}
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]models.PostView, error) {
	limit, offset, err := page(in.Limit, in.Offset, defaultPostPageSize, maxPostPageSize)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.Assemble(ctx, viewerID(ctx, s.userRepo, in.ViewerClerkID), posts)
}

func (s *PostService) GetPost(ctx context.Context, viewerClerkID string, id uuid.UUID) (*models.PostView, error) {
	return s.view(ctx, viewerID(ctx, s.userRepo, viewerClerkID), id)
}

func (s *PostService) view(ctx context.Context, viewer, id uuid.UUID) (*models.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.Assemble(ctx, viewer, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// CreatePost stores the post and its images, then tags it. Tagging is best
// effort: the post exists whether or not tags could be generated.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.PostView, error) {
	author, err := requireUser(ctx, s.userRepo, in.ClerkID)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	for i := range in.ImageURLs {
		in.ImageURLs[i] = strings.TrimSpace(in.ImageURLs[i])
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		AuthorID: author.ID,
	}
	if err := s.postRepo.Create(ctx, post, in.ImageURLs); err != nil {
		return nil, err
	}

	if s.suggestTags != nil && s.flags.Enabled(featureflags.AIAutoTags, author.ClerkID) {
		s.tagPost(ctx, post)
	}

	s.events.Emit(ctx, models.Event{
		Type: models.EventPostCreated,
		Payload: map[string]any{
			"postId":   post.ID,
			"authorId": author.ID,
			"title":    post.Title,
		},
	})

	return s.view(ctx, author.ID, post.ID)
}

func (s *PostService) tagPost(ctx context.Context, post *models.Post) {
	fail := func(step string, err error) {
		middleware.Logger.WarnContext(ctx, "post tagging failed",
			slog.String("post_id", post.ID.String()),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	}

	names, err := s.suggestTags(ctx, post.Title, post.Content)
	if err != nil {
		fail("suggest", err)
		return
	}
	names = validation.NormalizeTags(names)
	if len(names) == 0 {
		return
	}
	tags, err := s.tagRepo.FindOrCreate(ctx, names)
	if err != nil {
		fail("find_or_create", err)
		return
	}
	ids := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	if err := s.tagRepo.AttachToPost(ctx, post.ID, ids); err != nil {
		fail("attach", err)
		return
	}
	cache.InvalidatePost(ctx, post.ID)
}

// DeletePost removes a post owned by the caller together with its images,
// reactions, tags and comments.
func (s *PostService) DeletePost(ctx context.Context, clerkID string, id uuid.UUID) error {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, user.ID, id, "You can only delete your own posts"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, id); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)

	s.events.Emit(ctx, models.Event{
		Type:    models.EventPostDeleted,
		Payload: map[string]any{"postId": id, "authorId": user.ID},
	})
	return nil
}

func (s *PostService) requireOwner(ctx context.Context, userID, postID uuid.UUID, denied string) error {
	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return err
	}
	if authorID != userID {
		return models.NewForbiddenError(denied)
	}
	return nil
}

func (s *PostService) GetPostStats(ctx context.Context, id uuid.UUID) (*models.PostStats, error) {
	var stats models.PostStats
	err := cache.Aside(ctx, cache.PostStatsKey(id), &stats, cache.PostStatsTTL, func(ctx context.Context) error {
		if _, err := s.postRepo.GetAuthorID(ctx, id); err != nil {
			return err
		}
		all, err := s.postRepo.Stats(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		stats = all[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *PostService) ListByTag(ctx context.Context, tagName string, in ListPostsInput) ([]models.PostView, error) {
	name, ok := validation.NormalizeTag(tagName)
	if !ok {
		return nil, models.NewValidationError("tag name is invalid")
	}
	limit, offset, err := page(in.Limit, in.Offset, defaultPostPageSize, maxPostPageSize)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByTag(ctx, name, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.Assemble(ctx, viewerID(ctx, s.userRepo, in.ViewerClerkID), posts)
}

func (s *PostService) IsOwner(ctx context.Context, clerkID string, id uuid.UUID) (bool, error) {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return false, err
	}
	authorID, err := s.postRepo.GetAuthorID(ctx, id)
	if err != nil {
		return false, err
	}
	return authorID == user.ID, nil
}

// AttachImage appends an already uploaded image to a post owned by the caller.
func (s *PostService) AttachImage(ctx context.Context, clerkID string, postID uuid.UUID, imageURL string) (*models.PostImage, error) {
	user, err := requireUser(ctx, s.userRepo, clerkID)
	if err != nil {
		return nil, err
	}
	imageURL = strings.TrimSpace(imageURL)
	if err := validation.Var("imageUrl", imageURL, "required,imageurl"); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, user.ID, postID, "You can only add images to your own posts"); err != nil {
		return nil, err
	}

	image, err := s.imageRepo.Append(ctx, postID, imageURL)
	if err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)
	return image, nil
}

// ListMyPosts lists the caller's own posts.
func (s *PostService) ListMyPosts(ctx context.Context, in ListPostsInput) ([]models.PostView, error) {
	user, err := requireUser(ctx, s.userRepo, in.ViewerClerkID)
	if err != nil {
		return nil, err
	}
	return s.listByAuthor(ctx, user.ID, user.ID, in)
}

// ListUserPosts lists another user's posts.
func (s *PostService) ListUserPosts(ctx context.Context, authorID uuid.UUID, in ListPostsInput) ([]models.PostView, error) {
	exists, err := s.userRepo.Exists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("User", authorID)
	}
	return s.listByAuthor(ctx, viewerID(ctx, s.userRepo, in.ViewerClerkID), authorID, in)
}

func (s *PostService) listByAuthor(ctx context.Context, viewer, authorID uuid.UUID, in ListPostsInput) ([]models.PostView, error) {
	limit, offset, err := page(in.Limit, in.Offset, defaultPostPageSize, maxPostPageSize)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.Assemble(ctx, viewer, posts)
}

// Assemble turns posts into views in the given order. The viewer-independent
// part of each view is served from the per-post cache; posts missing from it
// are filled with one grouped query per table. Viewer flags are never cached.
func (s *PostService) Assemble(ctx context.Context, viewer uuid.UUID, posts []models.Post) ([]models.PostView, error) {
	views := make([]models.PostView, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, len(posts))
	var missing []int
	for i, p := range posts {
		ids[i] = p.ID
		if cache.Lookup(ctx, cache.PostKey(p.ID), &views[i]) {
			continue
		}
		views[i] = baseView(p)
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		if err := s.fillAggregates(ctx, views, missing); err != nil {
			return nil, err
		}
	}

	if viewer != uuid.Nil {
		liked, favorited, err := s.postRepo.ViewerFlags(ctx, viewer, ids)
		if err != nil {
			return nil, err
		}
		for i := range views {
			views[i].IsLiked = liked[views[i].ID]
			views[i].IsFavorited = favorited[views[i].ID]
		}
	}
	return views, nil
}

func (s *PostService) fillAggregates(ctx context.Context, views []models.PostView, missing []int) error {
	ids := make([]uuid.UUID, 0, len(missing))
	for _, i := range missing {
		ids = append(ids, views[i].ID)
	}

	var (
		stats map[uuid.UUID]models.PostStats
		tags  map[uuid.UUID][]models.TagView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.postRepo.Stats(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.postRepo.Tags(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, i := range missing {
		v := &views[i]
		st := stats[v.ID]
		v.LikesCount = st.LikesCount
		v.FavoritesCount = st.FavoritesCount
		v.CommentsCount = st.CommentsCount
		if t := tags[v.ID]; len(t) > 0 {
			v.Tags = t
		}
		cache.Store(ctx, cache.PostKey(v.ID), v, cache.PostTTL)
	}
	return nil
}

func baseView(p models.Post) models.PostView {
	images := make([]models.ImageView, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, models.ImageView{ID: img.ID, ImageURL: img.ImageURL})
	}
	return models.PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		AuthorID:  p.AuthorID,
		Author:    p.Author.Snippet(),
		Images:    images,
		Tags:      []models.TagView{},
	}
}
