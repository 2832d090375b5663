package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avdeyev/tasky/internal/services"
)

type Handler interface {
	HandleAuthMiddleware(c *gin.Context)

	HandleRegister(c *gin.Context)
	HandleLogin(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleUpdateProfile(c *gin.Context)

	HandleGetAll(c *gin.Context)
	HandleAddTask(c *gin.Context)
	HandleUpdateStatus(c *gin.Context)
	HandleUpdateExpanded(c *gin.Context)
	HandleUpdateDetails(c *gin.Context)
	HandleDeleteTask(c *gin.Context)

	HandleShareTask(c *gin.Context)
	HandleGetContributors(c *gin.Context)
	HandleRemoveContributor(c *gin.Context)
}

type handlerImpl struct {
	logger zerolog.Logger
	auth   services.AuthService
	tasks  services.TaskService
	shares services.ShareService
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	taskService services.TaskService,
	shareService services.ShareService,
) Handler {
	return &handlerImpl{
		logger: logger,
		auth:   authService,
		tasks:  taskService,
		shares: shareService,
	}
}
