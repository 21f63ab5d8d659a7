// Package toolsvc manages the tools database: the catalogued AI tools and the
// use cases documenting them.
package toolsvc

import (
	"context"
	"fmt"
	"slices"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/sanitize"
)

// ToolService implements the tool operations on a record repository.
type ToolService struct {
	repo    record.Repository
	uploads *uploadsvc.Service
	log     logging.Logger
}

// NewToolService creates a ToolService. uploads removes the example images of deleted tools.
func NewToolService(repo record.Repository, uploads *uploadsvc.Service) *ToolService {
	return &ToolService{
		repo:    repo,
		uploads: uploads,
		log:     logging.GetLogger("svc.toolsvc.tool_service"),
	}
}

// List returns all tools ordered by name.
func (svc *ToolService) List(ctx context.Context) ([]domain.Tool, error) {
	tools, err := svc.repo.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	return tools, nil
}

// Create adds a tool. Returns domain.ErrToolAlreadyExists if the name is taken.
func (svc *ToolService) Create(ctx context.Context, draft ToolDraft) (tool domain.Tool, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "tool create failed", "error", err)
		} else {
			svc.log.InfoContext(ctx, "tool created", logging.Group("tool", "id", tool.ID, "name", tool.Name))
		}
	}()

	tool, err = sanitizeTool(draft)
	if err != nil {
		return domain.Tool{}, err
	}

	created, err := svc.repo.CreateTool(ctx, tool)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("create tool: %w", err)
	}

	return created, nil
}

// Update replaces every field of tool id.
func (svc *ToolService) Update(ctx context.Context, id int64, draft ToolDraft) (tool domain.Tool, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "tool update failed", "id", id, "error", err)
		} else {
			svc.log.InfoContext(ctx, "tool updated", logging.Group("tool", "id", id, "name", tool.Name))
		}
	}()

	tool, err = sanitizeTool(draft)
	if err != nil {
		return domain.Tool{}, err
	}

	tool.ID = id

	updated, err := svc.repo.UpdateTool(ctx, tool)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("update tool: %w", err)
	}

	return updated, nil
}

// Delete removes tool id together with its use cases and their example images.
func (svc *ToolService) Delete(ctx context.Context, id int64) error {
	return svc.delete(ctx, id, func() error { return svc.repo.DeleteTool(ctx, id) })
}

// DeleteByName removes the tool called name like Delete.
func (svc *ToolService) DeleteByName(ctx context.Context, name string) error {
	tools, err := svc.repo.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	idx := slices.IndexFunc(tools, func(tool domain.Tool) bool { return tool.Name == name })
	if idx < 0 {
		return fmt.Errorf("tool %q: %w", name, domain.ErrNotFound)
	}

	return svc.delete(ctx, tools[idx].ID, func() error { return svc.repo.DeleteToolByName(ctx, name) })
}

func (svc *ToolService) delete(ctx context.Context, id int64, deleteTool func() error) (err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "tool delete failed", "id", id, "error", err)
		} else {
			svc.log.InfoContext(ctx, "tool deleted", "id", id)
		}
	}()

	useCases, err := svc.repo.ListUseCases(ctx, id)
	if err != nil {
		return fmt.Errorf("list use cases: %w", err)
	}

	if err := deleteTool(); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}

	for _, useCase := range useCases {
		svc.uploads.RemoveURLs(ctx, useCase.ExampleImageURLs)
	}

	return nil
}

func sanitizeTool(draft ToolDraft) (domain.Tool, error) {
	tool := domain.Tool{
		Name:        sanitize.Input(draft.Name, sanitize.MaxToolNameLength),
		Model:       sanitize.Input(draft.Model, sanitize.MaxModelLength),
		Tag:         sanitize.Input(draft.Tag, sanitize.MaxTagLength),
		Description: sanitize.Input(draft.Description, sanitize.MaxDescriptionLength),
	}

	if tool.Name == "" {
		return domain.Tool{}, domain.NewValidationError("Tool name required")
	}

	if tool.Tag == "" {
		tool.Tag = defaultTag
	}

	var err error
	if tool.Rating, err = parseRating(draft.Rating); err != nil {
		return domain.Tool{}, err
	}

	return tool, nil
}
