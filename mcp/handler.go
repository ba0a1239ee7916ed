package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/foomo/notion-mcp/service"
	"github.com/foomo/notion-mcp/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const Version = "0.1.0"

type SearchRequest struct {
	Query string `json:"query"` // Full text query, empty matches everything
	Limit int    `json:"limit"` // Page size, defaults to 10
}

type PageRequest struct {
	PageID string `json:"page_id"`
}

type QueryDatabaseRequest struct {
	DatabaseID string         `json:"database_id"`
	Filter     map[string]any `json:"filter,omitempty"` // Native Notion filter object
	Limit      int            `json:"limit"`
}

type ListEntitiesRequest struct {
	DatabaseID  string   `json:"database_id,omitempty"` // Falls back to the configured entity database
	Highlighted *bool    `json:"highlighted,omitempty"`
	Services    []string `json:"services,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

type UpdatePageRequest struct {
	PageID     string         `json:"page_id"`
	Properties map[string]any `json:"properties"`
}

type EntitiesResponse struct {
	Entities []vo.Entity `json:"entities"`
	Count    int         `json:"count"`
}

// NewServer creates a new MCP server exposing the notion tools
func NewServer(logger *zap.Logger, serviceInstance service.Service) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		"Notion MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search pages and databases in the Notion workspace, most recently edited first"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
	), mcp.NewTypedToolHandler(getSearchHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("get_page",
		mcp.WithDescription("Get a Notion page with its properties"),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The page id, with or without dashes"),
		),
	), mcp.NewTypedToolHandler(getPageHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("get_page_content",
		mcp.WithDescription("Get the blocks of a Notion page together with their plain text rendering"),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The page id, with or without dashes"),
		),
	), mcp.NewTypedToolHandler(getPageContentHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("query_database",
		mcp.WithDescription("Query the pages of a Notion database"),
		mcp.WithString("database_id",
			mcp.Required(),
			mcp.Description("The database id"),
		),
		mcp.WithObject("filter",
			mcp.Description("Notion filter object, passed through unchanged"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pages (default 100)"),
		),
	), mcp.NewTypedToolHandler(getQueryDatabaseHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List the brands of an entity database as flat records. If services are given they win over highlighted and only the first one is matched"),
		mcp.WithString("database_id",
			mcp.Description("The database id, defaults to the configured entity database"),
		),
		mcp.WithBoolean("highlighted",
			mcp.Description("Only entities whose '00. Highlighted' checkbox equals this value"),
		),
		mcp.WithArray("services",
			mcp.Description("Only entities offering this service"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pages to query (default 100)"),
		),
	), mcp.NewTypedToolHandler(getListEntitiesHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("get_entity",
		mcp.WithDescription("Get a single database page as a flat entity record"),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The page id"),
		),
	), mcp.NewTypedToolHandler(getEntityHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create a page below a database or page. Body content is taken from content blocks or, if absent, from plain text split into paragraphs"),
		mcp.WithString("parent_id",
			mcp.Required(),
			mcp.Description("The parent database or page id"),
		),
		mcp.WithString("parent_type",
			mcp.Description("Parent kind; without it a dashed id is treated as a database and a compact id as a page"),
			mcp.Enum(string(vo.ParentTypeDatabase), string(vo.ParentTypePage)),
		),
		mcp.WithObject("properties",
			mcp.Required(),
			mcp.Description("Notion page properties"),
		),
		mcp.WithArray("content",
			mcp.Description("Notion blocks for the page body"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithString("text",
			mcp.Description("Plain text body, paragraphs separated by a blank line"),
		),
	), mcp.NewTypedToolHandler(getCreatePageHandler(logger, serviceInstance)))

	s.AddTool(mcp.NewTool("update_page",
		mcp.WithDescription("Update the properties of a Notion page"),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("The page id"),
		),
		mcp.WithObject("properties",
			mcp.Required(),
			mcp.Description("Notion page properties to change"),
		),
	), mcp.NewTypedToolHandler(getUpdatePageHandler(logger, serviceInstance)))

	return s
}

type toolHandler[T any] = func(ctx context.Context, request mcp.CallToolRequest, args T) (*mcp.CallToolResult, error)

// jsonResult marshals the response into a text result
func jsonResult(response any) *mcp.CallToolResult {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err))
	}
	return mcp.NewToolResultText(string(responseBytes))
}

func failed(ctx context.Context, logger *zap.Logger, tool string, err error) *mcp.CallToolResult {
	fields := []zap.Field{zap.String("tool", tool), zap.Error(err)}
	if req, ok := httpRequestFromContext(ctx); ok {
		fields = append(fields, zap.String("remoteAddr", req.RemoteAddr))
	}
	logger.Warn("tool call failed", fields...)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func getSearchHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[SearchRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args SearchRequest) (*mcp.CallToolResult, error) {
		response, err := serviceInstance.Search(ctx, args.Query, args.Limit)
		if err != nil {
			return failed(ctx, logger, "search", err), nil
		}
		return jsonResult(response), nil
	}
}

func getPageHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[PageRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("page_id is required"), nil
		}
		page, err := serviceInstance.GetPage(ctx, args.PageID)
		if err != nil {
			return failed(ctx, logger, "get_page", err), nil
		}
		return jsonResult(page), nil
	}
}

func getPageContentHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[PageRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("page_id is required"), nil
		}
		content, err := serviceInstance.GetPageContent(ctx, args.PageID)
		if err != nil {
			return failed(ctx, logger, "get_page_content", err), nil
		}
		return jsonResult(content), nil
	}
}

func getQueryDatabaseHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[QueryDatabaseRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args QueryDatabaseRequest) (*mcp.CallToolResult, error) {
		if args.DatabaseID == "" {
			return mcp.NewToolResultError("database_id is required"), nil
		}
		pages, err := serviceInstance.QueryDatabase(ctx, args.DatabaseID, args.Filter, args.Limit)
		if err != nil {
			return failed(ctx, logger, "query_database", err), nil
		}
		return jsonResult(pages), nil
	}
}

func getListEntitiesHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[ListEntitiesRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args ListEntitiesRequest) (*mcp.CallToolResult, error) {
		entities, err := serviceInstance.ListEntities(ctx, args.DatabaseID, vo.EntityQuery{
			Highlighted: args.Highlighted,
			Services:    args.Services,
			Limit:       args.Limit,
		})
		if err != nil {
			return failed(ctx, logger, "list_entities", err), nil
		}
		return jsonResult(EntitiesResponse{Entities: entities, Count: len(entities)}), nil
	}
}

func getEntityHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[PageRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("page_id is required"), nil
		}
		entity, err := serviceInstance.GetEntity(ctx, args.PageID)
		if err != nil {
			return failed(ctx, logger, "get_entity", err), nil
		}
		if entity == nil {
			return mcp.NewToolResultError(fmt.Sprintf("page %s has no id or brand name", args.PageID)), nil
		}
		return jsonResult(entity), nil
	}
}

func getCreatePageHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[vo.CreatePage] {
	return func(ctx context.Context, request mcp.CallToolRequest, args vo.CreatePage) (*mcp.CallToolResult, error) {
		if args.ParentID == "" {
			return mcp.NewToolResultError("parent_id is required"), nil
		}
		if args.Properties == nil {
			return mcp.NewToolResultError("properties is required"), nil
		}
		page, err := serviceInstance.CreatePage(ctx, args)
		if err != nil {
			return failed(ctx, logger, "create_page", err), nil
		}
		return jsonResult(page), nil
	}
}

func getUpdatePageHandler(logger *zap.Logger, serviceInstance service.Service) toolHandler[UpdatePageRequest] {
	return func(ctx context.Context, request mcp.CallToolRequest, args UpdatePageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("page_id is required"), nil
		}
		if args.Properties == nil {
			return mcp.NewToolResultError("properties is required"), nil
		}
		page, err := serviceInstance.UpdatePage(ctx, args.PageID, args.Properties)
		if err != nil {
			return failed(ctx, logger, "update_page", err), nil
		}
		return jsonResult(page), nil
	}
}
