package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/avdeyev/tasky/internal/config"
	v1 "github.com/avdeyev/tasky/internal/delivery/http/v1"
	"github.com/avdeyev/tasky/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	registerRoutes(router)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter) {
	jwtCfg := config.Global().JWT

	revoker := services.NewMemoryTokenRevoker()
	authService := services.NewAuthService(
		globalLogger,
		globalPostgresPool,
		revoker,
		jwtCfg.Issuer,
		[]byte(jwtCfg.SigningKey),
		jwtCfg.TokenTTL,
	)
	taskService := services.NewTaskService(globalLogger, globalPostgresPool)
	shareService := services.NewShareService(globalLogger, globalPostgresPool)

	handler := v1.New(globalLogger, authService, taskService, shareService)

	router.POST("/register", handler.HandleRegister)
	router.POST("/login", handler.HandleLogin)
	router.POST("/logout", handler.HandleAuthMiddleware, handler.HandleLogout)

	router.GET("/get_all", handler.HandleAuthMiddleware, handler.HandleGetAll)
	router.POST("/add_tsk", handler.HandleAuthMiddleware, handler.HandleAddTask)
	router.POST("/update_status", handler.HandleAuthMiddleware, handler.HandleUpdateStatus)
	router.POST("/update_expanded", handler.HandleAuthMiddleware, handler.HandleUpdateExpanded)
	router.POST("/update_details", handler.HandleAuthMiddleware, handler.HandleUpdateDetails)
	router.POST("/del_tsk", handler.HandleAuthMiddleware, handler.HandleDeleteTask)

	router.POST("/update_profile", handler.HandleAuthMiddleware, handler.HandleUpdateProfile)

	router.POST("/share_task", handler.HandleAuthMiddleware, handler.HandleShareTask)
	router.GET("/get_contr", handler.HandleAuthMiddleware, handler.HandleGetContributors)
	router.POST("/rem_contr", handler.HandleAuthMiddleware, handler.HandleRemoveContributor)
}
