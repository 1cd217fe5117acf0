package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/karma-nest/job-nest/internal/api/dto"
	"github.com/karma-nest/job-nest/internal/auth"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/service"
	apperrors "github.com/karma-nest/job-nest/pkg/util"
)

// AuthHandler exposes the account and session endpoints.
type AuthHandler struct {
	auth      *service.AuthService
	validator *dto.Validator
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, validator *dto.Validator) *AuthHandler {
	return &AuthHandler{auth: authService, validator: validator}
}

// Register handles POST /auth/register?role=.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	role, err := domain.ParseRole(c.Query("role"))
	if err != nil {
		return apperrors.NewBadRequest("INVALID_ROLE", "Invalid user role.")
	}

	var req dto.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	_, err = h.auth.Register(c.UserContext(), service.RegisterInput{
		Role:         role,
		Email:        req.Email,
		MobileNumber: req.PhoneNumber,
		Password:     req.NewPassword,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "An activation link has been sent to the email associated with your account."},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	_, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(fiber.Map{"data": dto.AuthResponse{AccessToken: token}})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Invalid or expired authorization token.")
	}
	if err := h.auth.Logout(c.UserContext(), identity.UserID); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.MessageResponse{Message: "Logged out successfully."}})
}

// RequestActivation handles POST /auth/activation/request.
func (h *AuthHandler) RequestActivation(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.RequestActivation(c.UserContext(), req.Email); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "An activation link has been sent to the email associated with your account."},
	})
}

// Activate handles GET /auth/activate?token= after the activation link check.
func (h *AuthHandler) Activate(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Invalid or expired authorization token.")
	}
	if _, err := h.auth.ConfirmActivation(c.UserContext(), identity); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "Account successfully verified. You can now login."},
	})
}

// ForgotPassword handles POST /auth/password/forgot.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "A password reset link has been sent to the email associated with your account."},
	})
}

// ResetPassword handles POST /auth/password/reset?token= after the reset link check.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Invalid or expired authorization token.")
	}

	var req dto.ResetPasswordRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), identity, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{
		"data": dto.MessageResponse{Message: "Password reset successful. Please login to continue."},
	})
}

func (h *AuthHandler) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewBadRequest("INVALID_PAYLOAD", "invalid payload")
	}
	if problems := h.validator.Validate(out); problems != nil {
		details := make(map[string]any, len(problems))
		for field, msg := range problems {
			details[field] = msg
		}
		return apperrors.NewValidationError("request validation failed", details)
	}
	return nil
}
