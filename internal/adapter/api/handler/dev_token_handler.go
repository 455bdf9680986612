package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
)

// ProfileRegistrar records a profile for users that only exist in
// development (the in-memory store).
type ProfileRegistrar interface {
	Put(user *entity.User)
}

type DevTokenHandler struct {
	tokens   *firebase.DevTokens
	profiles ProfileRegistrar
	expiry   int64
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(tokens *firebase.DevTokens, profiles ProfileRegistrar, expirySeconds int64) *DevTokenHandler {
	return &DevTokenHandler{
		tokens:   tokens,
		profiles: profiles,
		expiry:   expirySeconds,
	}
}

func SetupDevTokenHandler(tokens *firebase.DevTokens, profiles ProfileRegistrar, expirySeconds int64) {
	devTokenHandler = NewDevTokenHandler(tokens, profiles, expirySeconds)
}

// GetDevTokenHandler is nil unless development tokens are enabled.
func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type devTokenRequest struct {
	UID     string `json:"uid" validate:"required,notblank,excludes=_"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// IssueToken mints a token for any uid. Only mounted in development.
func (h *DevTokenHandler) IssueToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, err := h.tokens.Issue(req.UID, req.Name, req.Picture)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	user := &entity.User{ID: req.UID, Name: req.Name, PhotoURL: req.Picture}
	if h.profiles != nil {
		h.profiles.Put(user)
	}

	return response.Success(c, map[string]interface{}{
		"token":      token,
		"expires_in": h.expiry,
		"user":       user,
	})
}
