package record

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

const useCaseColumns = "id, tool_id, title, explanation, example_image_urls, created_at"

func scanUseCase(row rowScanner) (domain.UseCase, error) {
	var (
		useCase         domain.UseCase
		imageURLs       string
		createdAtMillis int64
	)

	if err := row.Scan(
		&useCase.ID, &useCase.ToolID, &useCase.Title, &useCase.Explanation, &imageURLs, &createdAtMillis,
	); err != nil {
		return domain.UseCase{}, fmt.Errorf("scan use case: %w", classify(err))
	}

	var err error
	if useCase.ExampleImageURLs, err = decodeList(imageURLs); err != nil {
		return domain.UseCase{}, err
	}

	useCase.CreatedAt = time.UnixMilli(createdAtMillis).UTC()

	return useCase, nil
}

// ListUseCases implements Repository.ListUseCases.
func (r *SQLRepository) ListUseCases(ctx context.Context, toolID int64) (useCases []domain.UseCase, err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "list use cases failed", "tool_id", toolID, "error", err)
		} else {
			r.log.DebugContext(ctx, "use cases listed", "tool_id", toolID, "count", len(useCases))
		}
	}()

	rows, err := r.query(ctx,
		"SELECT "+useCaseColumns+" FROM use_cases WHERE tool_id = ? ORDER BY created_at, id", toolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	useCases = []domain.UseCase{}

	for rows.Next() {
		useCase, err := scanUseCase(rows)
		if err != nil {
			return nil, err
		}

		useCases = append(useCases, useCase)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate use cases: %w", err)
	}

	return useCases, nil
}

// GetUseCase implements Repository.GetUseCase.
func (r *SQLRepository) GetUseCase(ctx context.Context, id int64) (domain.UseCase, error) {
	return scanUseCase(r.queryRow(ctx, "SELECT "+useCaseColumns+" FROM use_cases WHERE id = ?", id))
}

// CreateUseCase implements Repository.CreateUseCase.
func (r *SQLRepository) CreateUseCase(ctx context.Context, useCase domain.UseCase) (_ domain.UseCase, err error) {
	defer func() {
		log := r.log.With(logging.Group("use_case", "id", useCase.ID, "tool_id", useCase.ToolID))
		if err != nil {
			log.ErrorContext(ctx, "create use case failed", "error", err)
		} else {
			log.DebugContext(ctx, "use case created")
		}
	}()

	useCase.ID, err = r.insert(ctx,
		"INSERT INTO use_cases (tool_id, title, explanation, example_image_urls, created_at) VALUES (?, ?, ?, ?, ?)",
		useCase.ToolID, useCase.Title, useCase.Explanation, encodeList(useCase.ExampleImageURLs), r.now(),
	)
	if err != nil {
		return domain.UseCase{}, fmt.Errorf("insert use case: %w", err)
	}

	return r.GetUseCase(ctx, useCase.ID)
}

// UpdateUseCase implements Repository.UpdateUseCase.
// The owning tool of a use case never changes.
func (r *SQLRepository) UpdateUseCase(ctx context.Context, useCase domain.UseCase) (_ domain.UseCase, err error) {
	defer func() {
		log := r.log.With(logging.Group("use_case", "id", useCase.ID))
		if err != nil {
			log.ErrorContext(ctx, "update use case failed", "error", err)
		} else {
			log.DebugContext(ctx, "use case updated")
		}
	}()

	if err := r.exec(ctx,
		"UPDATE use_cases SET title = ?, explanation = ?, example_image_urls = ? WHERE id = ?",
		useCase.Title, useCase.Explanation, encodeList(useCase.ExampleImageURLs), useCase.ID,
	); err != nil {
		return domain.UseCase{}, fmt.Errorf("update use case: %w", err)
	}

	return r.GetUseCase(ctx, useCase.ID)
}

// DeleteUseCase implements Repository.DeleteUseCase.
func (r *SQLRepository) DeleteUseCase(ctx context.Context, id int64) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "delete use case failed", "id", id, "error", err)
		} else {
			r.log.DebugContext(ctx, "use case deleted", "id", id)
		}
	}()

	if err := r.exec(ctx, "DELETE FROM use_cases WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete use case: %w", err)
	}

	return nil
}
