package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/greenside-app/greenside/internal/identity"
)

// Handler exposes registration and login endpoints.
type Handler struct {
	ids *identity.Service
	svc *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsJudge     bool   `json:"is_judge"`
	AccessToken string `json:"access_token"`
}

// Register creates a user account and returns a signed token.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Register(c.UserContext(), identity.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateUser) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, err := h.svc.IssueToken(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(authResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsJudge:     user.IsJudge,
		AccessToken: token,
	})
}

// Login validates credentials and returns a signed token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	token, err := h.svc.IssueToken(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(authResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsJudge:     user.IsJudge,
		AccessToken: token,
	})
}
