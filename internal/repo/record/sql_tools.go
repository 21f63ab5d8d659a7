package record

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

const toolColumns = "id, name, model, tag, description, rating, created_at"

func scanTool(row rowScanner) (domain.Tool, error) {
	var (
		tool            domain.Tool
		createdAtMillis int64
	)

	if err := row.Scan(
		&tool.ID, &tool.Name, &tool.Model, &tool.Tag, &tool.Description, &tool.Rating, &createdAtMillis,
	); err != nil {
		return domain.Tool{}, fmt.Errorf("scan tool: %w", classify(err))
	}

	tool.CreatedAt = time.UnixMilli(createdAtMillis).UTC()

	return tool, nil
}

// ListTools implements Repository.ListTools.
func (r *SQLRepository) ListTools(ctx context.Context) (tools []domain.Tool, err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "list tools failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "tools listed", "count", len(tools))
		}
	}()

	rows, err := r.query(ctx, "SELECT "+toolColumns+" FROM tools ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tools = []domain.Tool{}

	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}

		tools = append(tools, tool)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tools: %w", err)
	}

	return tools, nil
}

// GetTool implements Repository.GetTool.
func (r *SQLRepository) GetTool(ctx context.Context, id int64) (domain.Tool, error) {
	return scanTool(r.queryRow(ctx, "SELECT "+toolColumns+" FROM tools WHERE id = ?", id))
}

// CreateTool implements Repository.CreateTool.
func (r *SQLRepository) CreateTool(ctx context.Context, tool domain.Tool) (_ domain.Tool, err error) {
	defer func() {
		log := r.log.With(logging.Group("tool", "id", tool.ID, "name", tool.Name))
		if err != nil {
			log.ErrorContext(ctx, "create tool failed", "error", err)
		} else {
			log.DebugContext(ctx, "tool created")
		}
	}()

	tool.ID, err = r.insert(ctx,
		"INSERT INTO tools (name, model, tag, description, rating, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		tool.Name, tool.Model, tool.Tag, tool.Description, tool.Rating, r.now(),
	)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("insert tool: %w", err)
	}

	return r.GetTool(ctx, tool.ID)
}

// UpdateTool implements Repository.UpdateTool.
func (r *SQLRepository) UpdateTool(ctx context.Context, tool domain.Tool) (_ domain.Tool, err error) {
	defer func() {
		log := r.log.With(logging.Group("tool", "id", tool.ID, "name", tool.Name))
		if err != nil {
			log.ErrorContext(ctx, "update tool failed", "error", err)
		} else {
			log.DebugContext(ctx, "tool updated")
		}
	}()

	if err := r.exec(ctx,
		"UPDATE tools SET name = ?, model = ?, tag = ?, description = ?, rating = ? WHERE id = ?",
		tool.Name, tool.Model, tool.Tag, tool.Description, tool.Rating, tool.ID,
	); err != nil {
		return domain.Tool{}, fmt.Errorf("update tool: %w", err)
	}

	return r.GetTool(ctx, tool.ID)
}

// DeleteTool implements Repository.DeleteTool.
func (r *SQLRepository) DeleteTool(ctx context.Context, id int64) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "delete tool failed", "id", id, "error", err)
		} else {
			r.log.DebugContext(ctx, "tool deleted", "id", id)
		}
	}()

	if err := r.exec(ctx, "DELETE FROM tools WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}

	return nil
}

// DeleteToolByName implements Repository.DeleteToolByName.
func (r *SQLRepository) DeleteToolByName(ctx context.Context, name string) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "delete tool failed", "name", name, "error", err)
		} else {
			r.log.DebugContext(ctx, "tool deleted", "name", name)
		}
	}()

	if err := r.exec(ctx, "DELETE FROM tools WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}

	return nil
}
