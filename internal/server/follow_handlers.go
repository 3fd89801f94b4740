package server

import (
	"quill/internal/middleware"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ToggleFollow handles POST /api/users/:userId/follow/toggle
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	res, err := s.followService.Toggle(c.UserContext(), middleware.ClerkID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"isFollowing": res.Active,
		"message":     res.Message,
	})
}

// FollowUser handles POST /api/users/:userId/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.followService.Follow(c.UserContext(), middleware.ClerkID(c), targetID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Followed"})
}

// UnfollowUser handles DELETE /api/users/:userId/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.followService.Unfollow(c.UserContext(), middleware.ClerkID(c), targetID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Unfollowed"})
}

// GetFollowing handles GET /api/users/:userId/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	in, err := followsInput(c)
	if err != nil {
		return nil
	}

	following, err := s.followService.ListFollowing(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "following": following})
}

// GetFollowers handles GET /api/users/:userId/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	in, err := followsInput(c)
	if err != nil {
		return nil
	}

	followers, err := s.followService.ListFollowers(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "followers": followers})
}

// GetFollowStatus handles GET /api/users/:userId/follow/status
func (s *Server) GetFollowStatus(c *fiber.Ctx) error {
	targetID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	following, err := s.followService.IsFollowing(c.UserContext(), middleware.ClerkID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "isFollowing": following})
}

// GetFollowStats handles GET /api/users/:userId/follow/stats
func (s *Server) GetFollowStats(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	stats, err := s.followService.Stats(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

func followsInput(c *fiber.Ctx) (service.ListFollowsInput, error) {
	userID, err := parseID(c, "userId")
	if err != nil {
		return service.ListFollowsInput{}, err
	}
	page, err := parsePagination(c)
	if err != nil {
		return service.ListFollowsInput{}, err
	}
	return service.ListFollowsInput{UserID: userID, Limit: page.Limit, Offset: page.Offset}, nil
}
