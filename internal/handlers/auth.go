package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/collegedesk/collegedesk/internal/auth"
	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/response"
)

// AuthHandler exposes login and account endpoints.
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and returns a signed access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"username": user.Username,
			"name":     user.Name,
			"role":     user.Role,
		},
	})
}

type registerCollegeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Name     string `json:"name" validate:"max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterCollege creates a college account. DDPU only.
func (h *AuthHandler) RegisterCollege(c *gin.Context) {
	var req registerCollegeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.CreateCollege(requestContext(c), services.CreateCollegeInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, user)
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByUsername(requestContext(c), currentUsername(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword rotates the caller's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.UpdatePassword(requestContext(c), currentUsername(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// ListColleges returns every registered college. DDPU only.
func (h *AuthHandler) ListColleges(c *gin.Context) {
	colleges, err := h.users.ListColleges(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, colleges)
}

// roleOrCollege resolves which college a request acts on: colleges always act
// as themselves, the regulator may name any college via the query parameter.
func roleOrCollege(c *gin.Context, param string) string {
	if currentRole(c) == models.RoleCollege {
		return currentUsername(c)
	}
	return c.Query(param)
}
