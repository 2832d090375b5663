package v1

import (
	"errors"
	"net/http"
	"regexp"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/avdeyev/tasky/internal/models"
	"github.com/avdeyev/tasky/internal/services"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type userResponse struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfilePic string `json:"profile_pic"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		ProfilePic: user.ProfilePic,
	}
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ProfilePic string `json:"profile_pic"`
}

func (h *handlerImpl) HandleRegister(c *gin.Context) {
	var req registerRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if req.Username == "" || req.Password == "" || req.Email == "" {
		abort(c, newBadRequestError("missing fields"))
		return
	}
	if utf8.RuneCountInString(req.Username) > models.MaxUsernameLen {
		abort(c, newBadRequestError("Username too long (max 10)"))
		return
	}
	if !emailPattern.MatchString(req.Email) {
		abort(c, newBadRequestError("Invalid email format"))
		return
	}

	result, err := h.auth.Register(c, services.RegisterParams{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to register user")
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			abort(c, newBadRequestError("Username already taken"))
		case errors.Is(err, services.ErrEmailTaken):
			abort(c, newBadRequestError("Email already in use"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"token":   result.Token,
		"user":    newUserResponse(result.User),
	})
}

type loginRequest struct {
	// Username matches either the handle or the email.
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *handlerImpl) HandleLogin(c *gin.Context) {
	var req loginRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	result, err := h.auth.Login(c, services.LoginParams{
		Login:    req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to login")
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			abort(c, newUnauthorizedError("Invalid credentials"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"token":   result.Token,
		"user":    newUserResponse(result.User),
	})
}

func (h *handlerImpl) HandleLogout(c *gin.Context) {
	token := c.GetString(tokenCtxKey)

	err := h.auth.Logout(c, token)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to logout")
		abort(c, newInternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type updateProfileRequest struct {
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic"`
	Password   string `json:"password"`
}

func (h *handlerImpl) HandleUpdateProfile(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if utf8.RuneCountInString(req.Username) > models.MaxUsernameLen {
		abort(c, newBadRequestError("Username too long (max 10)"))
		return
	}

	err = h.auth.UpdateProfile(c, services.UpdateProfileParams{
		UserID:     userID,
		Username:   req.Username,
		ProfilePic: req.ProfilePic,
		Password:   req.Password,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update profile")
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			abort(c, newBadRequestError("Username taken"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}
