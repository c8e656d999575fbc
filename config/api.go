package config

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SettingsAPI serves the runtime settings over HTTP.
type SettingsAPI struct {
	store    *SettingsStore
	onUpdate func(Settings)
}

// NewSettingsAPI creates a settings API. onUpdate, when non-nil, is called
// with the new settings after every successful update.
func NewSettingsAPI(store *SettingsStore, onUpdate func(Settings)) *SettingsAPI {
	return &SettingsAPI{
		store:    store,
		onUpdate: onUpdate,
	}
}

// RegisterRoutes mounts the settings routes under /api/v1/meta on r.
func (c *SettingsAPI) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1/meta")
	api.GET("/config", c.HandleGetConfig)
	api.PUT("/config", c.HandleUpdateConfig)
}

// SetupRouter configures a standalone Gin router with only the settings
// routes.
func (c *SettingsAPI) SetupRouter() *gin.Engine {
	router := gin.Default()
	c.RegisterRoutes(router)
	return router
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleGetConfig handles GET /api/v1/meta/config.
func (c *SettingsAPI) HandleGetConfig(ctx *gin.Context) {
	settings, err := c.store.GetSettings()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve configuration"))
		return
	}

	ctx.JSON(http.StatusOK, settings)
}

// HandleUpdateConfig handles PUT /api/v1/meta/config. An empty body returns
// the current settings unchanged.
func (c *SettingsAPI) HandleUpdateConfig(ctx *gin.Context) {
	var update SettingsUpdate
	if err := ctx.ShouldBindJSON(&update); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	settings, err := c.store.UpdateSettings(update)
	if errors.Is(err, ErrInvalidRefreshInterval) {
		ctx.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to update settings: %v", err)
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to update configuration"))
		return
	}

	if c.onUpdate != nil && (update.RefreshInterval != nil || update.Enrich != nil) {
		c.onUpdate(*settings)
	}

	ctx.JSON(http.StatusOK, settings)
}
