// Package promptsvc manages the prompt bank: prompts, the tool they were run
// with, their results and notes.
package promptsvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/svc/mediasvc"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/sanitize"
)

// Draft holds the raw, unsanitized fields of a prompt as submitted by a client.
type Draft struct {
	Prompt     any
	Tool       any
	ResultText any
	Notes      any
	Tags       any
}

// PromptService implements the prompt bank operations on a record repository.
// Every text field is sanitized before it is stored.
type PromptService struct {
	repo    record.Repository
	uploads *uploadsvc.Service
	log     logging.Logger
}

// NewPromptService creates a PromptService storing records in repo and files through uploads.
func NewPromptService(repo record.Repository, uploads *uploadsvc.Service) *PromptService {
	return &PromptService{
		repo:    repo,
		uploads: uploads,
		log:     logging.GetLogger("svc.promptsvc.prompt_service"),
	}
}

// List returns all prompts, newest first.
func (svc *PromptService) List(ctx context.Context) ([]domain.Prompt, error) {
	prompts, err := svc.repo.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}

	return prompts, nil
}

// Create stores a new prompt with files as result files. Prompt and tool are
// required, and at least a result text or one file. Creation is all or nothing:
// if a file or the record cannot be stored, already stored files are removed.
func (svc *PromptService) Create(
	ctx context.Context,
	draft Draft,
	files []uploadsvc.Accepted,
) (prompt domain.Prompt, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "prompt create failed", "error", err)
		} else {
			svc.log.InfoContext(ctx, "prompt created", logging.Group("prompt", "id", prompt.ID, "files", len(files)))
		}
	}()

	prompt, err = sanitizeDraft(draft)
	if err != nil {
		return domain.Prompt{}, err
	}

	if prompt.ResultText == "" && len(files) == 0 {
		return domain.Prompt{}, domain.NewValidationError("At least one result (text or file) is required")
	}

	stored, err := svc.uploads.Store(ctx, mediasvc.BucketPromptResults, files, uploadsvc.Strict)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("store files: %w", err)
	}

	prompt.ResultFileURLs = uploadsvc.URLs(stored)

	created, err := svc.repo.CreatePrompt(ctx, prompt)
	if err != nil {
		svc.uploads.Remove(context.WithoutCancel(ctx), stored)

		return domain.Prompt{}, fmt.Errorf("create prompt: %w", err)
	}

	return created, nil
}

// Update replaces the text fields of prompt id and appends files to its result
// files. Files that cannot be stored are skipped.
func (svc *PromptService) Update(
	ctx context.Context,
	id int64,
	draft Draft,
	files []uploadsvc.Accepted,
) (prompt domain.Prompt, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "prompt update failed", "id", id, "error", err)
		} else {
			svc.log.InfoContext(ctx, "prompt updated", logging.Group("prompt", "id", id, "files", len(files)))
		}
	}()

	existing, err := svc.repo.GetPrompt(ctx, id)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("get prompt: %w", err)
	}

	prompt, err = sanitizeDraft(draft)
	if err != nil {
		return domain.Prompt{}, err
	}

	stored, err := svc.uploads.Store(ctx, mediasvc.BucketPromptResults, files, uploadsvc.Lenient)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("store files: %w", err)
	}

	prompt.ID = id
	prompt.ResultFileURLs = append(existing.ResultFileURLs, uploadsvc.URLs(stored)...)

	if prompt.ResultText == "" && len(prompt.ResultFileURLs) == 0 {
		return domain.Prompt{}, domain.NewValidationError("At least one result (text or file) is required")
	}

	updated, err := svc.repo.UpdatePrompt(ctx, prompt)
	if err != nil {
		svc.uploads.Remove(context.WithoutCancel(ctx), stored)

		return domain.Prompt{}, fmt.Errorf("update prompt: %w", err)
	}

	return updated, nil
}

// Delete removes prompt id and its result files.
func (svc *PromptService) Delete(ctx context.Context, id int64) error {
	prompt, err := svc.repo.GetPrompt(ctx, id)
	if err != nil {
		return fmt.Errorf("get prompt: %w", err)
	}

	if err := svc.repo.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}

	svc.uploads.RemoveURLs(ctx, prompt.ResultFileURLs)

	return nil
}

func sanitizeDraft(draft Draft) (domain.Prompt, error) {
	prompt := domain.Prompt{
		Prompt:     sanitize.Input(draft.Prompt, sanitize.MaxPromptLength),
		Tool:       sanitize.Input(draft.Tool, sanitize.MaxToolNameLength),
		ResultText: sanitize.Input(draft.ResultText, sanitize.MaxResultTextLength),
		Notes:      sanitize.Input(draft.Notes, sanitize.MaxNotesLength),
		Tags:       sanitize.Tags(draft.Tags, sanitize.MaxTagLength),
	}

	if prompt.Prompt == "" || prompt.Tool == "" {
		return domain.Prompt{}, domain.NewValidationError("Prompt and tool are required")
	}

	return prompt, nil
}
