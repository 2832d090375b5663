package v1

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/avdeyev/tasky/internal/models"
	"github.com/avdeyev/tasky/internal/services"
)

type taskResponse struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	ParentID     int64                `json:"parent_id"`
	UserID       int64                `json:"user_id"`
	IsDone       bool                 `json:"is_done"`
	IsExpanded   bool                 `json:"is_expanded"`
	Description  string               `json:"description"`
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date"`
	AssignedTo   string               `json:"assigned_to"`
	Links        string               `json:"links"`
	Notes        string               `json:"notes"`
	Priority     string               `json:"priority"`
	OwnerName    string               `json:"owner_name"`
	ProjectName  string               `json:"project_name,omitempty"`
	Contributors []models.Contributor `json:"contributors"`
}

func newTaskResponse(view services.TaskView) taskResponse {
	contributors := view.Contributors
	if contributors == nil {
		contributors = make([]models.Contributor, 0)
	}
	return taskResponse{
		ID:           view.ID,
		Name:         view.Name,
		ParentID:     view.ParentID,
		UserID:       view.UserID,
		IsDone:       view.IsDone,
		IsExpanded:   view.IsExpanded,
		Description:  view.Description,
		StartDate:    view.StartDate,
		EndDate:      view.EndDate,
		AssignedTo:   view.AssignedTo,
		Links:        view.Links,
		Notes:        view.Notes,
		Priority:     view.Priority,
		OwnerName:    view.OwnerName,
		ProjectName:  view.ProjectName,
		Contributors: contributors,
	}
}

func (h *handlerImpl) HandleGetAll(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	views, err := h.tasks.GetAll(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch visible tasks")
		abort(c, newInternalError())
		return
	}

	response := make([]taskResponse, len(views))
	for i, view := range views {
		response[i] = newTaskResponse(view)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"data":    response,
	})
}

type addTaskRequest struct {
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
}

func (h *handlerImpl) HandleAddTask(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req addTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	if req.Name == "" {
		abort(c, newBadRequestError("Name required"))
		return
	}
	if utf8.RuneCountInString(req.Name) > models.MaxTaskNameLen {
		abort(c, newBadRequestError("Name too long (max 50)"))
		return
	}

	taskID, err := h.tasks.Create(c, services.CreateTaskParams{
		OwnerID:  userID,
		Name:     req.Name,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		switch {
		case errors.Is(err, services.ErrInvalidName):
			abort(c, newBadRequestError("Name required"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "success",
		"id":      taskID,
		"data": gin.H{
			"name":      req.Name,
			"parent_id": req.ParentID,
			"user_id":   userID,
		},
	})
}

func (h *handlerImpl) abortTaskMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		abort(c, newNotFoundError("Task not found"))
	case errors.Is(err, services.ErrNotAuthorized):
		abort(c, newForbiddenError("Not authorized"))
	default:
		abort(c, newInternalError())
	}
}

type updateStatusRequest struct {
	ID     int64 `json:"id" binding:"required"`
	IsDone bool  `json:"is_done"`
}

func (h *handlerImpl) HandleUpdateStatus(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.tasks.SetDone(c, userID, req.ID, req.IsDone)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.ID).
			Msg("failed to update status")
		h.abortTaskMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

type updateExpandedRequest struct {
	ID         int64 `json:"id" binding:"required"`
	IsExpanded bool  `json:"is_expanded"`
}

func (h *handlerImpl) HandleUpdateExpanded(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req updateExpandedRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.tasks.SetExpanded(c, userID, req.ID, req.IsExpanded)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.ID).
			Msg("failed to update expanded flag")
		h.abortTaskMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

type updateDetailsRequest struct {
	ID    int64  `json:"id" binding:"required"`
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *handlerImpl) HandleUpdateDetails(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req updateDetailsRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.tasks.UpdateDetail(c, userID, req.ID, services.DetailField(req.Field), req.Value)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.ID).
			Str("field", req.Field).
			Msg("failed to update detail")
		switch {
		case errors.Is(err, services.ErrInvalidField):
			abort(c, newBadRequestError("invalid field"))
		case errors.Is(err, services.ErrInvalidName):
			abort(c, newBadRequestError("Invalid name (max 50)"))
		case errors.Is(err, services.ErrValueTooLong):
			if req.Field == string(services.FieldNotes) {
				abort(c, newBadRequestError("Notes too long (max 1000)"))
			} else {
				abort(c, newBadRequestError("Description too long (max 1000)"))
			}
		case errors.Is(err, services.ErrInvalidPriority):
			abort(c, newBadRequestError("Invalid priority"))
		default:
			h.abortTaskMutationError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

type deleteTaskRequest struct {
	ID int64 `json:"id" binding:"required"`
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req deleteTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	err = h.tasks.DeleteSubtree(c, userID, req.ID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("task_id", req.ID).
			Msg("failed to delete task")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError("Task not found"))
		case errors.Is(err, services.ErrNotTaskOwner):
			abort(c, newForbiddenError("Only owner can delete"))
		default:
			abort(c, newInternalError())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
