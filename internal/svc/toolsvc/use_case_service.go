package toolsvc

import (
	"context"
	"fmt"
	"slices"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/svc/mediasvc"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/sanitize"
)

// UseCaseService implements the use case operations on a record repository.
// Uploaded example images are stored in the tool examples bucket.
type UseCaseService struct {
	repo    record.Repository
	uploads *uploadsvc.Service
	log     logging.Logger
}

// NewUseCaseService creates a UseCaseService.
func NewUseCaseService(repo record.Repository, uploads *uploadsvc.Service) *UseCaseService {
	return &UseCaseService{
		repo:    repo,
		uploads: uploads,
		log:     logging.GetLogger("svc.toolsvc.use_case_service"),
	}
}

// List returns the use cases of tool toolID, oldest first.
func (svc *UseCaseService) List(ctx context.Context, toolID int64) ([]domain.UseCase, error) {
	useCases, err := svc.repo.ListUseCases(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("list use cases: %w", err)
	}

	return useCases, nil
}

// Create adds a use case to the tool given by draft.ToolID. Uploaded files are
// appended to the submitted URLs; if anything fails, they are removed again.
// Returns domain.ErrNotFound if the tool does not exist.
func (svc *UseCaseService) Create(
	ctx context.Context,
	draft UseCaseDraft,
	files []uploadsvc.Accepted,
) (useCase domain.UseCase, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "use case create failed", "error", err)
		} else {
			svc.log.InfoContext(ctx, "use case created",
				logging.Group("use_case", "id", useCase.ID, "tool_id", useCase.ToolID, "files", len(files)))
		}
	}()

	toolID, ok := parseID(draft.ToolID)
	if !ok {
		return domain.UseCase{}, domain.NewValidationError("Tool ID required")
	}

	useCase, err = sanitizeUseCase(draft)
	if err != nil {
		return domain.UseCase{}, err
	}

	useCase.ToolID = toolID

	stored, err := svc.uploads.Store(ctx, mediasvc.BucketToolExamples, files, uploadsvc.Strict)
	if err != nil {
		return domain.UseCase{}, fmt.Errorf("store files: %w", err)
	}

	useCase.ExampleImageURLs = append(useCase.ExampleImageURLs, uploadsvc.URLs(stored)...)

	created, err := svc.repo.CreateUseCase(ctx, useCase)
	if err != nil {
		svc.uploads.Remove(context.WithoutCancel(ctx), stored)

		return domain.UseCase{}, fmt.Errorf("create use case: %w", err)
	}

	return created, nil
}

// Update replaces title and explanation of use case id. Submitted URLs replace
// the existing ones, and images no longer referenced are removed; without the
// field the existing URLs are kept. Uploaded files are appended, skipping those
// that cannot be stored.
func (svc *UseCaseService) Update(
	ctx context.Context,
	id int64,
	draft UseCaseDraft,
	files []uploadsvc.Accepted,
) (useCase domain.UseCase, err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "use case update failed", "id", id, "error", err)
		} else {
			svc.log.InfoContext(ctx, "use case updated", logging.Group("use_case", "id", id, "files", len(files)))
		}
	}()

	existing, err := svc.repo.GetUseCase(ctx, id)
	if err != nil {
		return domain.UseCase{}, fmt.Errorf("get use case: %w", err)
	}

	useCase, err = sanitizeUseCase(draft)
	if err != nil {
		return domain.UseCase{}, err
	}

	if draft.ExampleImageURLs == nil {
		useCase.ExampleImageURLs = existing.ExampleImageURLs
	}

	stored, err := svc.uploads.Store(ctx, mediasvc.BucketToolExamples, files, uploadsvc.Lenient)
	if err != nil {
		return domain.UseCase{}, fmt.Errorf("store files: %w", err)
	}

	useCase.ID = id
	useCase.ToolID = existing.ToolID
	useCase.ExampleImageURLs = append(useCase.ExampleImageURLs, uploadsvc.URLs(stored)...)

	updated, err := svc.repo.UpdateUseCase(ctx, useCase)
	if err != nil {
		svc.uploads.Remove(context.WithoutCancel(ctx), stored)

		return domain.UseCase{}, fmt.Errorf("update use case: %w", err)
	}

	svc.uploads.RemoveURLs(ctx, dropped(existing.ExampleImageURLs, updated.ExampleImageURLs))

	return updated, nil
}

// Delete removes use case id and its example images.
func (svc *UseCaseService) Delete(ctx context.Context, id int64) (err error) {
	defer func() {
		if err != nil {
			svc.log.DebugContext(ctx, "use case delete failed", "id", id, "error", err)
		} else {
			svc.log.InfoContext(ctx, "use case deleted", "id", id)
		}
	}()

	useCase, err := svc.repo.GetUseCase(ctx, id)
	if err != nil {
		return fmt.Errorf("get use case: %w", err)
	}

	if err := svc.repo.DeleteUseCase(ctx, id); err != nil {
		return fmt.Errorf("delete use case: %w", err)
	}

	svc.uploads.RemoveURLs(ctx, useCase.ExampleImageURLs)

	return nil
}

func sanitizeUseCase(draft UseCaseDraft) (domain.UseCase, error) {
	useCase := domain.UseCase{
		Title:       sanitize.Input(draft.Title, sanitize.MaxTitleLength),
		Explanation: sanitize.Input(draft.Explanation, sanitize.MaxDescriptionLength),
	}

	if useCase.Title == "" {
		return domain.UseCase{}, domain.NewValidationError("Title required")
	}

	var err error
	if useCase.ExampleImageURLs, err = parseURLs(draft.ExampleImageURLs); err != nil {
		return domain.UseCase{}, err
	}

	return useCase, nil
}

// dropped returns the URLs of before that are missing from after.
func dropped(before, after []string) []string {
	var urls []string

	for _, url := range before {
		if !slices.Contains(after, url) {
			urls = append(urls, url)
		}
	}

	return urls
}
