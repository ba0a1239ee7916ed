package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foomo/notion-mcp/mapping"
	"github.com/foomo/notion-mcp/service/vo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidID = errors.New("invalid notion id")

// NotionAPI is the subset of the Notion client the service relies on.
type NotionAPI interface {
	Search(ctx context.Context, query string, limit int) (*vo.SearchResponse, error)
	GetPage(ctx context.Context, pageID string) (any, error)
	GetBlockChildren(ctx context.Context, blockID string) ([]any, error)
	QueryDatabase(ctx context.Context, databaseID string, filter map[string]any, limit int) ([]any, error)
	CreatePage(ctx context.Context, parent vo.Parent, properties map[string]any, children []any) (any, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) (any, error)
}

type Service interface {
	Search(ctx context.Context, query string, limit int) (*vo.SearchResponse, error)
	GetPage(ctx context.Context, pageID string) (any, error)
	GetPageContent(ctx context.Context, pageID string) (*vo.PageContent, error)
	QueryDatabase(ctx context.Context, databaseID string, filter map[string]any, limit int) ([]any, error)
	ListEntities(ctx context.Context, databaseID string, query vo.EntityQuery) ([]vo.Entity, error)
	GetEntity(ctx context.Context, pageID string) (*vo.Entity, error)
	CreatePage(ctx context.Context, req vo.CreatePage) (any, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) (any, error)
}

type Settings struct {
	// EntityDatabaseID is used by ListEntities when no database is given.
	EntityDatabaseID string
}

type service struct {
	logger   *zap.Logger
	notion   NotionAPI
	settings Settings
}

func NewService(logger *zap.Logger, notion NotionAPI, settings Settings) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		logger:   logger,
		notion:   notion,
		settings: settings,
	}
}

// normalizeID accepts dashed and compact uuids and returns the dashed form.
func normalizeID(kind, id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidID, kind, id)
	}
	return parsed.String(), nil
}

func (s *service) Search(ctx context.Context, query string, limit int) (*vo.SearchResponse, error) {
	resp, err := s.notion.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return resp, nil
}

func (s *service) GetPage(ctx context.Context, pageID string) (any, error) {
	id, err := normalizeID("page", pageID)
	if err != nil {
		return nil, err
	}
	page, err := s.notion.GetPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

func (s *service) GetPageContent(ctx context.Context, pageID string) (*vo.PageContent, error) {
	id, err := normalizeID("page", pageID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.notion.GetBlockChildren(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}
	return &vo.PageContent{
		Content: blocks,
		Text:    vo.Text(mapping.BlocksToText(blocks)),
	}, nil
}

func (s *service) QueryDatabase(ctx context.Context, databaseID string, filter map[string]any, limit int) ([]any, error) {
	id, err := normalizeID("database", databaseID)
	if err != nil {
		return nil, err
	}
	pages, err := s.notion.QueryDatabase(ctx, id, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	return pages, nil
}

// ListEntities queries a database and projects every page it can into an
// entity. Pages without an id or brand name are skipped.
func (s *service) ListEntities(ctx context.Context, databaseID string, query vo.EntityQuery) ([]vo.Entity, error) {
	if databaseID == "" {
		databaseID = s.settings.EntityDatabaseID
	}
	if databaseID == "" {
		return nil, fmt.Errorf("%w: no database configured", ErrInvalidID)
	}
	pages, err := s.QueryDatabase(ctx, databaseID, mapping.BuildFilter(query.Highlighted, query.Services), query.Limit)
	if err != nil {
		return nil, err
	}
	entities := mapping.ProjectEntities(pages)
	if skipped := len(pages) - len(entities); skipped > 0 {
		s.logger.Debug("skipped pages without entity", zap.String("databaseID", databaseID), zap.Int("skipped", skipped))
	}
	return entities, nil
}

// GetEntity returns nil without error when the page does not describe an entity.
func (s *service) GetEntity(ctx context.Context, pageID string) (*vo.Entity, error) {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	entity, ok := mapping.ProjectEntity(page)
	if !ok {
		return nil, nil
	}
	return &entity, nil
}

func (s *service) CreatePage(ctx context.Context, req vo.CreatePage) (any, error) {
	parent, err := resolveParent(req.ParentID, req.ParentType)
	if err != nil {
		return nil, err
	}
	children := req.Content
	if children == nil && req.Text != "" {
		children = mapping.TextToBlocks(req.Text)
	}
	page, err := s.notion.CreatePage(ctx, parent, req.Properties, children)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.logger.Info("page created", zap.String("parent", parent.Key()), zap.String("parentID", parent.ID))
	return page, nil
}

func (s *service) UpdatePage(ctx context.Context, pageID string, properties map[string]any) (any, error) {
	id, err := normalizeID("page", pageID)
	if err != nil {
		return nil, err
	}
	page, err := s.notion.UpdatePage(ctx, id, properties)
	if err != nil {
		return nil, fmt.Errorf("failed to update page: %w", err)
	}
	s.logger.Info("page updated", zap.String("pageID", id))
	return page, nil
}

// resolveParent decides between a database and a page parent. Without an
// explicit type a dashed id is taken as a database, a compact one as a page.
func resolveParent(parentID string, parentType vo.ParentType) (vo.Parent, error) {
	switch parentType {
	case "":
		parentType = vo.ParentTypePage
		if strings.Contains(parentID, "-") {
			parentType = vo.ParentTypeDatabase
		}
	case vo.ParentTypeDatabase, vo.ParentTypePage:
	default:
		return vo.Parent{}, fmt.Errorf("%w: unknown parent type %q", ErrInvalidID, parentType)
	}
	id, err := normalizeID(string(parentType), parentID)
	if err != nil {
		return vo.Parent{}, err
	}
	return vo.Parent{Type: parentType, ID: id}, nil
}
