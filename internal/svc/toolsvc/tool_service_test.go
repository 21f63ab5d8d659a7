package toolsvc_test

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/audit"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/repo/blob"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/svc/mediasvc"
	"github.com/mkrupp/promptbank/internal/svc/toolsvc"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

type fixture struct {
	tools    *toolsvc.ToolService
	useCases *toolsvc.UseCaseService
	handler  http.Handler
	storage  *mediasvc.BlobStorage
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	repo, err := record.NewSQLRepository(ctx, record.StoreConfig{
		Driver: record.DriverSQLite,
		URL:    filepath.Join(dir, "records.db"),
	}, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	storage, err := mediasvc.NewBlobStorage(ctx,
		blob.FileSystemBlobRepositoryFactory(blob.FileSystemBlobRepositoryConfig{Basedir: filepath.Join(dir, "blob")}),
		mediasvc.DefaultConfig(),
		clk,
		mediasvc.BucketToolExamples,
	)
	require.NoError(t, err)

	uploads := uploadsvc.NewService(storage, audit.NewSecurityLog(logging.NewNopLogger(), clk), uploadsvc.DefaultConfig())
	tools := toolsvc.NewToolService(repo, uploads)
	useCases := toolsvc.NewUseCaseService(repo, uploads)

	return fixture{
		tools:    tools,
		useCases: useCases,
		handler:  toolsvc.NewHTTPTransport(tools, useCases, uploads),
		storage:  storage,
	}
}

func (f fixture) exists(t *testing.T, url string) bool {
	t.Helper()

	bucket, name, ok := f.storage.Locate(url)
	require.True(t, ok, url)

	_, err := f.storage.Fetch(context.Background(), bucket, name, 0)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrNotFound)

		return false
	}

	return true
}

const pngMagic = "\x89PNG\r\n\x1a\n"

func pngData(marker string) []byte {
	data := make([]byte, 256)
	copy(data, pngMagic+marker)

	return data
}

func TestToolService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tool, err := f.tools.Create(ctx, toolsvc.ToolDraft{Name: " Midjourney ", Model: "v6", Rating: float64(4)})
	require.NoError(t, err)
	assert.Equal(t, "Midjourney", tool.Name)
	assert.Equal(t, "Other", tool.Tag, "tag defaults to Other")
	assert.Equal(t, 4, tool.Rating)

	_, err = f.tools.Create(ctx, toolsvc.ToolDraft{Name: "Midjourney"})
	require.ErrorIs(t, err, domain.ErrToolAlreadyExists)

	tests := []struct {
		name   string
		draft  toolsvc.ToolDraft
		reason string
	}{
		{name: "missing name", draft: toolsvc.ToolDraft{Model: "m"}, reason: "Tool name required"},
		{name: "numeric name", draft: toolsvc.ToolDraft{Name: float64(7)}, reason: "Tool name required"},
		{name: "rating too high", draft: toolsvc.ToolDraft{Name: "a", Rating: float64(6)}, reason: "Rating must be between 0 and 5"},
		{name: "fractional rating", draft: toolsvc.ToolDraft{Name: "a", Rating: 2.5}, reason: "Rating must be between 0 and 5"},
		{name: "negative rating", draft: toolsvc.ToolDraft{Name: "a", Rating: "-1"}, reason: "Rating must be between 0 and 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tools.Create(ctx, tt.draft)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestToolService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tool, err := f.tools.Create(ctx, toolsvc.ToolDraft{Name: "Runway", Tag: "Video"})
	require.NoError(t, err)

	updated, err := f.tools.Update(ctx, tool.ID, toolsvc.ToolDraft{Name: "Runway", Tag: "Video", Description: "gen-3", Rating: "5"})
	require.NoError(t, err)
	assert.Equal(t, "gen-3", updated.Description)
	assert.Equal(t, 5, updated.Rating)

	_, err = f.tools.Update(ctx, 4711, toolsvc.ToolDraft{Name: "x"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	useCase, err := f.useCases.Create(ctx, toolsvc.UseCaseDraft{ToolID: float64(tool.ID), Title: "b-roll"},
		[]uploadsvc.Accepted{{Filename: "shot.png", Type: "image/png", Data: pngData("shot")}})
	require.NoError(t, err)
	require.Len(t, useCase.ExampleImageURLs, 1)

	require.NoError(t, f.tools.DeleteByName(ctx, "Runway"))
	require.ErrorIs(t, f.tools.DeleteByName(ctx, "Runway"), domain.ErrNotFound)
	require.ErrorIs(t, f.tools.Delete(ctx, tool.ID), domain.ErrNotFound)

	remaining, err := f.useCases.List(ctx, tool.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.False(t, f.exists(t, useCase.ExampleImageURLs[0]), "example images are removed with their tool")
}

func TestUseCaseService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tool, err := f.tools.Create(ctx, toolsvc.ToolDraft{Name: "DALL-E"})
	require.NoError(t, err)

	useCase, err := f.useCases.Create(ctx, toolsvc.UseCaseDraft{
		ToolID:           strconv.FormatInt(tool.ID, 10),
		Title:            "Logos",
		Explanation:      "flat vector logos",
		ExampleImageURLs: []any{"https://example.com/a.png"},
	}, []uploadsvc.Accepted{{Filename: "b.png", Type: "image/png", Data: pngData("b")}})
	require.NoError(t, err)
	require.Len(t, useCase.ExampleImageURLs, 2)
	assert.Equal(t, "https://example.com/a.png", useCase.ExampleImageURLs[0])

	uploaded := useCase.ExampleImageURLs[1]
	assert.True(t, f.exists(t, uploaded))

	kept, err := f.useCases.Update(ctx, useCase.ID, toolsvc.UseCaseDraft{Title: "Logos v2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Logos v2", kept.Title)
	assert.Equal(t, useCase.ExampleImageURLs, kept.ExampleImageURLs, "omitted URLs are kept")
	assert.Equal(t, tool.ID, kept.ToolID)

	replaced, err := f.useCases.Update(ctx, useCase.ID, toolsvc.UseCaseDraft{
		Title:            "Logos v3",
		ExampleImageURLs: []any{"https://example.com/a.png"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.png"}, replaced.ExampleImageURLs)
	assert.False(t, f.exists(t, uploaded), "dropped uploads are removed")

	second, err := f.useCases.Create(ctx, toolsvc.UseCaseDraft{ToolID: float64(tool.ID), Title: "Icons"}, nil)
	require.NoError(t, err)

	listed, err := f.useCases.List(ctx, tool.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, useCase.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)

	require.NoError(t, f.useCases.Delete(ctx, second.ID))
	require.ErrorIs(t, f.useCases.Delete(ctx, second.ID), domain.ErrNotFound)

	_, err = f.useCases.Create(ctx, toolsvc.UseCaseDraft{ToolID: float64(4711), Title: "orphan"}, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	tests := []struct {
		name   string
		draft  toolsvc.UseCaseDraft
		reason string
	}{
		{name: "missing tool", draft: toolsvc.UseCaseDraft{Title: "t"}, reason: "Tool ID required"},
		{name: "bad tool id", draft: toolsvc.UseCaseDraft{ToolID: "abc", Title: "t"}, reason: "Tool ID required"},
		{name: "missing title", draft: toolsvc.UseCaseDraft{ToolID: float64(tool.ID)}, reason: "Title required"},
		{
			name:   "relative url",
			draft:  toolsvc.UseCaseDraft{ToolID: float64(tool.ID), Title: "t", ExampleImageURLs: []any{"/a.png"}},
			reason: "Invalid example image URL",
		},
		{
			name:   "script url",
			draft:  toolsvc.UseCaseDraft{ToolID: float64(tool.ID), Title: "t", ExampleImageURLs: []any{"javascript:alert(1)"}},
			reason: "Invalid example image URL",
		},
		{
			name:   "not a list",
			draft:  toolsvc.UseCaseDraft{ToolID: float64(tool.ID), Title: "t", ExampleImageURLs: "https://example.com/a.png"},
			reason: "Invalid example image URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.useCases.Create(ctx, tt.draft, nil)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}
