// Package record persists prompts, tools and use cases in a relational database.
package record

import (
	"context"

	"github.com/mkrupp/promptbank/internal/domain"
)

// Repository defines the interface for record persistence.
// Lookups of missing records return an error wrapping domain.ErrNotFound.
type Repository interface {
	// ListPrompts returns all prompts, newest first.
	ListPrompts(ctx context.Context) ([]domain.Prompt, error)
	GetPrompt(ctx context.Context, id int64) (domain.Prompt, error)
	// CreatePrompt inserts prompt and returns it with ID and CreatedAt set.
	CreatePrompt(ctx context.Context, prompt domain.Prompt) (domain.Prompt, error)
	// UpdatePrompt replaces all mutable fields of the prompt with prompt.ID.
	UpdatePrompt(ctx context.Context, prompt domain.Prompt) (domain.Prompt, error)
	DeletePrompt(ctx context.Context, id int64) error

	// ListTools returns all tools ordered by name.
	ListTools(ctx context.Context) ([]domain.Tool, error)
	GetTool(ctx context.Context, id int64) (domain.Tool, error)
	// CreateTool inserts tool. Returns domain.ErrToolAlreadyExists for duplicate names.
	CreateTool(ctx context.Context, tool domain.Tool) (domain.Tool, error)
	UpdateTool(ctx context.Context, tool domain.Tool) (domain.Tool, error)
	// DeleteTool removes the tool and its use cases.
	DeleteTool(ctx context.Context, id int64) error
	DeleteToolByName(ctx context.Context, name string) error

	// ListUseCases returns the use cases of a tool, oldest first.
	ListUseCases(ctx context.Context, toolID int64) ([]domain.UseCase, error)
	GetUseCase(ctx context.Context, id int64) (domain.UseCase, error)
	// CreateUseCase inserts useCase. Returns domain.ErrNotFound if its tool does not exist.
	CreateUseCase(ctx context.Context, useCase domain.UseCase) (domain.UseCase, error)
	UpdateUseCase(ctx context.Context, useCase domain.UseCase) (domain.UseCase, error)
	DeleteUseCase(ctx context.Context, id int64) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
