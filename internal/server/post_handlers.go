package server

import (
	"quill/internal/middleware"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first, with counts and the caller's like/favorite flags
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (1-100, default 20)"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,posts=[]models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}

// GetPost handles GET /api/posts/:postId
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), middleware.ClerkID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "post": post})
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} object{success=bool,post=models.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ClerkID = middleware.ClerkID(c)

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "post": post})
}

// DeletePost handles DELETE /api/posts/:postId
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), middleware.ClerkID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Post deleted"})
}

// GetPostStats handles GET /api/posts/:postId/stats
func (s *Server) GetPostStats(c *fiber.Ctx) error {
	id, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	stats, err := s.postService.GetPostStats(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// GetPostsByTag handles GET /api/posts/tag/:name
func (s *Server) GetPostsByTag(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.ListByTag(c.UserContext(), c.Params("name"), service.ListPostsInput{
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}

// CheckPostOwnership handles GET /api/posts/:postId/ownership
func (s *Server) CheckPostOwnership(c *fiber.Ctx) error {
	id, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	owner, err := s.postService.IsOwner(c.UserContext(), middleware.ClerkID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "isOwner": owner})
}

// AddPostImage handles POST /api/posts/:postId/images with {"imageUrl": "..."}.
func (s *Server) AddPostImage(c *fiber.Ctx) error {
	id, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	var req struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	image, err := s.postService.AttachImage(c.UserContext(), middleware.ClerkID(c), id, req.ImageURL)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "image": image})
}
