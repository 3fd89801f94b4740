// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strings"

	"quill/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalClerkID is the fiber.Ctx local holding the verified token subject.
const LocalClerkID = "clerkID"

var cfg *config.Config

var (
	errMissingSubject = errors.New("invalid token structure - missing subject")
	errBadSigning     = errors.New("invalid signing method")
)

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// ParseToken verifies an HS256 bearer token and returns its subject, the
// identity provider's user id.
func ParseToken(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadSigning
		}
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", errMissingSubject
	}
	// Subject claim per RFC 7519
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return unauthorized(c, "Authorization header required")
	}

	tokenString, ok := bearerToken(c)
	if !ok {
		return unauthorized(c, "Invalid authorization header format")
	}

	subject, err := ParseToken(tokenString)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}

	setSubject(c, subject)
	return c.Next()
}

// setSubject stores the subject in locals and in the user context for logging.
func setSubject(c *fiber.Ctx, subject string) {
	c.Locals(LocalClerkID, subject)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, subject))
}

// OptionalAuth resolves the caller when a valid token is present and lets
// anonymous requests through. A present but invalid token is rejected.
func OptionalAuth(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return c.Next()
	}
	return AuthRequired(c)
}

// WebSocketAuthRequired is middleware that validates JWT tokens from query parameters for WebSocket connections.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var ok bool
		if token, ok = bearerToken(c); !ok {
			return unauthorized(c, "Token required")
		}
	}

	subject, err := ParseToken(token)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}

	setSubject(c, subject)
	return c.Next()
}

// ClerkID returns the authenticated subject, or "" for anonymous requests.
func ClerkID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalClerkID).(string)
	return id
}
