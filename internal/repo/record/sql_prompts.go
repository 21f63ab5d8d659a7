package record

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

const promptColumns = "id, prompt, tool, result_text, result_file_urls, notes, tags, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (domain.Prompt, error) {
	var (
		prompt          domain.Prompt
		fileURLs, tags  string
		createdAtMillis int64
	)

	if err := row.Scan(
		&prompt.ID, &prompt.Prompt, &prompt.Tool, &prompt.ResultText,
		&fileURLs, &prompt.Notes, &tags, &createdAtMillis,
	); err != nil {
		return domain.Prompt{}, fmt.Errorf("scan prompt: %w", classify(err))
	}

	var err error
	if prompt.ResultFileURLs, err = decodeList(fileURLs); err != nil {
		return domain.Prompt{}, err
	}

	if prompt.Tags, err = decodeList(tags); err != nil {
		return domain.Prompt{}, err
	}

	prompt.CreatedAt = time.UnixMilli(createdAtMillis).UTC()

	return prompt, nil
}

// ListPrompts implements Repository.ListPrompts.
func (r *SQLRepository) ListPrompts(ctx context.Context) (prompts []domain.Prompt, err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "list prompts failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "prompts listed", "count", len(prompts))
		}
	}()

	rows, err := r.query(ctx, "SELECT "+promptColumns+" FROM prompts ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts = []domain.Prompt{}

	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}

		prompts = append(prompts, prompt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}

	return prompts, nil
}

// GetPrompt implements Repository.GetPrompt.
func (r *SQLRepository) GetPrompt(ctx context.Context, id int64) (domain.Prompt, error) {
	return scanPrompt(r.queryRow(ctx, "SELECT "+promptColumns+" FROM prompts WHERE id = ?", id))
}

// CreatePrompt implements Repository.CreatePrompt.
func (r *SQLRepository) CreatePrompt(ctx context.Context, prompt domain.Prompt) (_ domain.Prompt, err error) {
	defer func() {
		log := r.log.With(logging.Group("prompt", "id", prompt.ID, "tool", prompt.Tool))
		if err != nil {
			log.ErrorContext(ctx, "create prompt failed", "error", err)
		} else {
			log.DebugContext(ctx, "prompt created")
		}
	}()

	createdAt := r.now()

	prompt.ID, err = r.insert(ctx,
		"INSERT INTO prompts (prompt, tool, result_text, result_file_urls, notes, tags, created_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?)",
		prompt.Prompt, prompt.Tool, prompt.ResultText, encodeList(prompt.ResultFileURLs),
		prompt.Notes, encodeList(prompt.Tags), createdAt,
	)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("insert prompt: %w", err)
	}

	return r.GetPrompt(ctx, prompt.ID)
}

// UpdatePrompt implements Repository.UpdatePrompt.
func (r *SQLRepository) UpdatePrompt(ctx context.Context, prompt domain.Prompt) (_ domain.Prompt, err error) {
	defer func() {
		log := r.log.With(logging.Group("prompt", "id", prompt.ID))
		if err != nil {
			log.ErrorContext(ctx, "update prompt failed", "error", err)
		} else {
			log.DebugContext(ctx, "prompt updated")
		}
	}()

	if err := r.exec(ctx,
		"UPDATE prompts SET prompt = ?, tool = ?, result_text = ?, result_file_urls = ?, notes = ?, tags = ?"+
			" WHERE id = ?",
		prompt.Prompt, prompt.Tool, prompt.ResultText, encodeList(prompt.ResultFileURLs),
		prompt.Notes, encodeList(prompt.Tags), prompt.ID,
	); err != nil {
		return domain.Prompt{}, fmt.Errorf("update prompt: %w", err)
	}

	return r.GetPrompt(ctx, prompt.ID)
}

// DeletePrompt implements Repository.DeletePrompt.
func (r *SQLRepository) DeletePrompt(ctx context.Context, id int64) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "delete prompt failed", "id", id, "error", err)
		} else {
			r.log.DebugContext(ctx, "prompt deleted", "id", id)
		}
	}()

	if err := r.exec(ctx, "DELETE FROM prompts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}

	return nil
}
