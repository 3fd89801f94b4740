package server

import (
	"quill/internal/middleware"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SyncUser handles POST /api/users/sync. The clerk id always comes from the
// verified token.
// @Summary Sync the signed-in user
// @Description Create or refresh the local profile of the identity in the bearer token
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{username=string,email=string,avatar=string} true "Profile"
// @Success 200 {object} object{success=bool,created=bool,user=models.User}
// @Success 201 {object} object{success=bool,created=bool,user=models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/sync [post]
func (s *Server) SyncUser(c *fiber.Ctx) error {
	var in service.SyncUserInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ClerkID = middleware.ClerkID(c)

	user, created, err := s.userService.Sync(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"created": created,
	})
}

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.Resolve(c.UserContext(), middleware.ClerkID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// GetUserProfile handles GET /api/users/:userId
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// UpdateMyBio handles PATCH /api/users/me/bio
func (s *Server) UpdateMyBio(c *fiber.Ctx) error {
	var req struct {
		Bio string `json:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateBio(c.UserContext(), middleware.ClerkID(c), req.Bio)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// GetMyPosts handles GET /api/users/me/posts
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.ListMyPosts(c.UserContext(), service.ListPostsInput{
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}

// GetUserPosts handles GET /api/users/:userId/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page, err := parsePagination(c)
	if err != nil {
		return nil
	}

	posts, err := s.postService.ListUserPosts(c.UserContext(), authorID, service.ListPostsInput{
		ViewerClerkID: middleware.ClerkID(c),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "posts": posts})
}
