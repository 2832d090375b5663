package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avdeyev/tasky/internal/services"
)

type shareTaskRequest struct {
	TaskID   int64  `json:"task_id" binding:"required"`
	Username string `json:"username" binding:"required"`
}

func (h *handlerImpl) HandleShareTask(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req shareTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.shares.Share(c, userID, req.TaskID, req.Username)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.TaskID).
			Msg("failed to share task")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError("Task not found"))
		case errors.Is(err, services.ErrNotTaskOwner):
			abort(c, newForbiddenError("Not authorized to share this task"))
		case errors.Is(err, services.ErrUserNotFound):
			abort(c, newBadRequestError("User not found"))
		case errors.Is(err, services.ErrSelfShare):
			abort(c, newBadRequestError("Cannot share with self"))
		case errors.Is(err, services.ErrAlreadyShared):
			abort(c, newBadRequestError("Already shared with user"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func (h *handlerImpl) HandleGetContributors(c *gin.Context) {
	if _, ok := h.requireUserID(c); !ok {
		return
	}

	taskID, err := strconv.ParseInt(c.Query("task_id"), 10, 64)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("invalid task id")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	contributors, err := h.shares.Contributors(c, taskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to fetch contributors")
		abort(c, newInternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contributors})
}

type removeContributorRequest struct {
	TaskID int64 `json:"task_id" binding:"required"`
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *handlerImpl) HandleRemoveContributor(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req removeContributorRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.shares.Remove(c, userID, req.TaskID, req.UserID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.TaskID).
			Msg("failed to remove contributor")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError("Task not found"))
		case errors.Is(err, services.ErrNotTaskOwner):
			abort(c, newForbiddenError("Not authorized"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
