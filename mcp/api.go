package mcp

import (
	"errors"
	"net/http"

	"github.com/foomo/notion-mcp/notion"
	"github.com/foomo/notion-mcp/service"
	"github.com/foomo/notion-mcp/service/vo"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API exposes the same operations as the MCP tools as plain JSON endpoints.
type API struct {
	logger  *zap.Logger
	service service.Service
}

func NewAPI(logger *zap.Logger, serviceInstance service.Service) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		logger:  logger,
		service: serviceInstance,
	}
}

// Register mounts the POST endpoints on r.
func (a *API) Register(r gin.IRoutes) {
	r.POST("/search", a.HandleSearch)
	r.POST("/get_page", a.HandleGetPage)
	r.POST("/get_page_content", a.HandleGetPageContent)
	r.POST("/query_database", a.HandleQueryDatabase)
	r.POST("/list_entities", a.HandleListEntities)
	r.POST("/get_entity", a.HandleGetEntity)
	r.POST("/create_page", a.HandleCreatePage)
	r.POST("/update_page", a.HandleUpdatePage)
}

func (a *API) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func (a *API) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, service.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, notion.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, notion.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, notion.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	a.logger.Warn("api call failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func (a *API) HandleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	resp, err := a.service.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) HandleGetPage(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PageID == "" {
		a.badRequest(c, "page_id is required")
		return
	}
	page, err := a.service.GetPage(c.Request.Context(), req.PageID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *API) HandleGetPageContent(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PageID == "" {
		a.badRequest(c, "page_id is required")
		return
	}
	content, err := a.service.GetPageContent(c.Request.Context(), req.PageID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, content)
}

func (a *API) HandleQueryDatabase(c *gin.Context) {
	var req QueryDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DatabaseID == "" {
		a.badRequest(c, "database_id is required")
		return
	}
	pages, err := a.service.QueryDatabase(c.Request.Context(), req.DatabaseID, req.Filter, req.Limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

func (a *API) HandleListEntities(c *gin.Context) {
	var req ListEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	entities, err := a.service.ListEntities(c.Request.Context(), req.DatabaseID, vo.EntityQuery{
		Highlighted: req.Highlighted,
		Services:    req.Services,
		Limit:       req.Limit,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EntitiesResponse{Entities: entities, Count: len(entities)})
}

func (a *API) HandleGetEntity(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PageID == "" {
		a.badRequest(c, "page_id is required")
		return
	}
	entity, err := a.service.GetEntity(c.Request.Context(), req.PageID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if entity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "page has no id or brand name"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (a *API) HandleCreatePage(c *gin.Context) {
	var req vo.CreatePage
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	if req.ParentID == "" {
		a.badRequest(c, "parent_id is required")
		return
	}
	if req.Properties == nil {
		a.badRequest(c, "properties is required")
		return
	}
	page, err := a.service.CreatePage(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *API) HandleUpdatePage(c *gin.Context) {
	var req UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PageID == "" {
		a.badRequest(c, "page_id is required")
		return
	}
	if req.Properties == nil {
		a.badRequest(c, "properties is required")
		return
	}
	page, err := a.service.UpdatePage(c.Request.Context(), req.PageID, req.Properties)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
