package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"quill/internal/ai"
	"quill/internal/featureflags"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/google/uuid"
)

const (
	defaultMaxTags     = 5
	defaultSearchLimit = 10
	excerptRunes       = 200
)

// AIService exposes translation, tagging and search on top of the language
// model. Upstream failures surface as INTERNAL_SERVER_ERROR with a generic
// message; the cause is logged.
type AIService struct {
	llm      ai.Completer
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	posts    *PostService
	flags    *featureflags.Manager
}

type TranslateInput struct {
	Text       string `json:"text" validate:"notblank,max=5000"`
	TargetLang string `json:"targetLang" validate:"omitempty,oneof=en zh"`
}

type TranslateResult struct {
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	TargetLang     string `json:"targetLang"`
}

type GenerateTagsInput struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"max=20000"`
	MaxTags int    `json:"maxTags" validate:"omitempty,min=1,max=10"`
}

type SearchInput struct {
	Query         string `json:"q" validate:"notblank,max=200"`
	Limit         int    `json:"limit" validate:"omitempty,min=1,max=50"`
	ViewerClerkID string
}

type SearchResult struct {
	Posts     []models.PostView `json:"posts"`
	Total     int               `json:"total"`
	Keywords  []string          `json:"keywords"`
	AISummary string            `json:"aiSummary"`
}

type rankCandidate struct {
	ID      string
	Title   string
	Excerpt string
}

func NewAIService(
	llm ai.Completer,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	posts *PostService,
	flags *featureflags.Manager,
) *AIService {
	return &AIService{llm: llm, postRepo: postRepo, userRepo: userRepo, posts: posts, flags: flags}
}

// SetPostService completes the wiring once the post service, which itself
// depends on SuggestTags, exists.
func (s *AIService) SetPostService(posts *PostService) {
	s.posts = posts
}

func (s *AIService) complete(ctx context.Context, prompt, failMsg string, data any) (string, error) {
	reply, err := s.llm.Complete(ctx, prompt, data)
	if err == nil {
		return reply, nil
	}
	middleware.Logger.ErrorContext(ctx, "language model call failed",
		slog.String("prompt", prompt),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, ai.ErrNotConfigured) {
		return "", models.NewInternalMessage("AI service is not configured", err)
	}
	return "", models.NewInternalMessage(failMsg, err)
}

func (s *AIService) Translate(ctx context.Context, in TranslateInput) (*TranslateResult, error) {
	if in.TargetLang == "" {
		in.TargetLang = "zh"
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	prompt := ai.PromptTranslateZH
	if in.TargetLang == "en" {
		prompt = ai.PromptTranslateEN
	}
	translated, err := s.complete(ctx, prompt, "Translation failed, please try again later", map[string]any{"Text": in.Text})
	if err != nil {
		return nil, err
	}
	return &TranslateResult{
		OriginalText:   in.Text,
		TranslatedText: translated,
		TargetLang:     in.TargetLang,
	}, nil
}

// GenerateTags never fails because of a malformed reply: it degrades to one
// tag derived from the title.
func (s *AIService) GenerateTags(ctx context.Context, in GenerateTagsInput) ([]string, error) {
	if in.MaxTags == 0 {
		in.MaxTags = defaultMaxTags
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("title or content is required")
	}

	reply, err := s.complete(ctx, ai.PromptTags, "Tag generation failed, please try again later", map[string]any{
		"Title":   in.Title,
		"Content": truncateRunes(in.Content, 4000),
		"MaxTags": in.MaxTags,
	})
	if err != nil {
		return nil, err
	}
	tags, ok := ai.Tags(reply, in.Title, in.MaxTags)
	if !ok {
		observability.AIParseFallbacks.WithLabelValues(ai.PromptTags).Inc()
	}
	return tags, nil
}

// SuggestTags is the TagSuggester used when posts are created.
func (s *AIService) SuggestTags(ctx context.Context, title, content string) ([]string, error) {
	return s.GenerateTags(ctx, GenerateTagsInput{
		Title:   title,
		Content: truncateRunes(content, 20000),
		MaxTags: defaultMaxTags,
	})
}

// Search expands the query into keywords, matches posts locally and lets the
// model rank the candidates.
func (s *AIService) Search(ctx context.Context, in SearchInput) (*SearchResult, error) {
	in.Query = strings.TrimSpace(in.Query)
	if in.Limit == 0 {
		in.Limit = defaultSearchLimit
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	reply, err := s.complete(ctx, ai.PromptExpand, "Search failed, please try again later", map[string]any{"Query": in.Query})
	if err != nil {
		return nil, err
	}
	keywords, ok := ai.Keywords(reply, in.Query)
	if !ok {
		observability.AIParseFallbacks.WithLabelValues(ai.PromptExpand).Inc()
	}

	candidates, err := s.postRepo.Search(ctx, keywords, 2*in.Limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &SearchResult{Posts: []models.PostView{}, Total: 0, Keywords: keywords}, nil
	}

	viewer := viewerID(ctx, s.userRepo, in.ViewerClerkID)
	ordered, summary := candidates, ""
	if s.flags.Enabled(featureflags.AIRerank, in.ViewerClerkID) {
		ordered, summary, err = s.rank(ctx, in.Query, candidates)
		if err != nil {
			return nil, err
		}
	}
	if len(ordered) > in.Limit {
		ordered = ordered[:in.Limit]
	}

	views, err := s.posts.Assemble(ctx, viewer, ordered)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Posts:     views,
		Total:     len(views),
		Keywords:  keywords,
		AISummary: summary,
	}, nil
}

// rank reorders candidates by the model's ranking. When the reply cannot be
// parsed the recency order is kept and the raw reply becomes the summary.
func (s *AIService) rank(ctx context.Context, query string, candidates []models.Post) ([]models.Post, string, error) {
	list := make([]rankCandidate, 0, len(candidates))
	ids := make([]uuid.UUID, 0, len(candidates))
	byID := make(map[uuid.UUID]models.Post, len(candidates))
	for _, p := range candidates {
		list = append(list, rankCandidate{
			ID:      p.ID.String(),
			Title:   p.Title,
			Excerpt: truncateRunes(strings.Join(strings.Fields(p.Content), " "), excerptRunes),
		})
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	reply, err := s.complete(ctx, ai.PromptRank, "Search failed, please try again later", map[string]any{
		"Query":      query,
		"Candidates": list,
	})
	if err != nil {
		return nil, "", err
	}

	ranking, err := ai.ParseRanking(reply)
	if err != nil {
		observability.AIParseFallbacks.WithLabelValues(ai.PromptRank).Inc()
		return candidates, reply, nil
	}

	ordered := make([]models.Post, 0, len(candidates))
	for _, id := range ranking.Order(ids) {
		ordered = append(ordered, byID[id])
	}
	return ordered, ranking.Summary, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
