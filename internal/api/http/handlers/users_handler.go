package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/karma-nest/job-nest/internal/api/dto"
	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/repository"
	apperrors "github.com/karma-nest/job-nest/pkg/util"
)

// UsersHandler exposes account lookups for authenticated callers.
type UsersHandler struct {
	users repository.UserRepository
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users repository.UserRepository) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Invalid or expired authorization token.")
	}
	return h.respond(c, identity.UserID)
}

// GetByID handles GET /admin/users/:id.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewBadRequest("INVALID_ID", "invalid user id")
	}
	return h.respond(c, id)
}

func (h *UsersHandler) respond(c *fiber.Ctx, id int64) error {
	user, err := h.users.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": toUserResponse(user)})
}

func toUserResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Role:       string(user.Role),
		IsVerified: user.IsVerified,
	}
}
