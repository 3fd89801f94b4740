package server

import (
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type reactionAction int

const (
	reactionToggle reactionAction = iota
	reactionAdd
	reactionRemove
)

// reactionKeys are the response field names of one reaction kind.
var reactionKeys = map[models.ReactionKind]struct{ state, list string }{
	models.ReactionLike:     {"isLiked", "likedPosts"},
	models.ReactionFavorite: {"isFavorited", "favoritedPosts"},
}

// reactionHandler serves the toggle, add and remove routes of likes and
// favorites on /api/posts/:postId.
func (s *Server) reactionHandler(kind models.ReactionKind, action reactionAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		postID, err := parseID(c, "postId")
		if err != nil {
			return nil
		}
		in := service.ReactionInput{Kind: kind, ClerkID: middleware.ClerkID(c), PostID: postID}
		ctx := c.UserContext()

		switch action {
		case reactionToggle:
			res, err := s.interactionService.Toggle(ctx, in)
			if err != nil {
				return respondServiceError(c, err)
			}
			body := fiber.Map{"success": true, "message": res.Message}
			body[reactionKeys[kind].state] = res.Active
			return c.JSON(body)
		case reactionAdd:
			if err := s.interactionService.Add(ctx, in); err != nil {
				return respondServiceError(c, err)
			}
			return c.JSON(fiber.Map{"success": true, "message": s.interactionService.Message(kind, true)})
		default:
			if err := s.interactionService.Remove(ctx, in); err != nil {
				return respondServiceError(c, err)
			}
			return c.JSON(fiber.Map{"success": true, "message": s.interactionService.Message(kind, false)})
		}
	}
}

// GetMyLikedPosts handles GET /api/users/me/likes
func (s *Server) GetMyLikedPosts(c *fiber.Ctx) error {
	return s.listMyReactions(c, models.ReactionLike)
}

// GetMyFavoritedPosts handles GET /api/users/me/favorites
func (s *Server) GetMyFavoritedPosts(c *fiber.Ctx) error {
	return s.listMyReactions(c, models.ReactionFavorite)
}

// GetUserLikedPosts handles GET /api/users/:userId/likes
func (s *Server) GetUserLikedPosts(c *fiber.Ctx) error {
	return s.listUserReactions(c, models.ReactionLike)
}

// GetUserFavoritedPosts handles GET /api/users/:userId/favorites
func (s *Server) GetUserFavoritedPosts(c *fiber.Ctx) error {
	return s.listUserReactions(c, models.ReactionFavorite)
}

func (s *Server) listMyReactions(c *fiber.Ctx, kind models.ReactionKind) error {
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.interactionService.ListMine(c.UserContext(), service.ListReactionsInput{
		Kind:          kind,
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, reactionKeys[kind].list: posts})
}

func (s *Server) listUserReactions(c *fiber.Ctx, kind models.ReactionKind) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.interactionService.ListByUser(c.UserContext(), userID, service.ListReactionsInput{
		Kind:          kind,
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, reactionKeys[kind].list: posts})
}
