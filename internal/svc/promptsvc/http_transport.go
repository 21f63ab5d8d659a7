package promptsvc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
)

const formFilesField = "files"

// PromptsResponse is the body of the prompt listing.
type PromptsResponse struct {
	Prompts []domain.Prompt `json:"prompts"`
}

// PromptResponse is the body of a created or updated prompt.
type PromptResponse struct {
	Prompt domain.Prompt `json:"prompt"`
}

// HTTPTransport handles HTTP requests for the prompt bank.
// Requests are expected to have passed the session gate already.
type HTTPTransport struct {
	promptSvc *PromptService
	uploads   *uploadsvc.Service
	log       logging.Logger
	mux       *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(promptSvc *PromptService, uploads *uploadsvc.Service) *HTTPTransport {
	ht := &HTTPTransport{
		promptSvc: promptSvc,
		uploads:   uploads,
		log:       logging.GetLogger("svc.promptsvc.http_transport"),
		mux:       http.NewServeMux(),
	}

	ht.mux.HandleFunc("GET /api/prompts", ht.HandleList)
	ht.mux.HandleFunc("POST /api/prompts", ht.HandleCreate)
	ht.mux.HandleFunc("PUT /api/prompts", ht.HandleUpdate)
	ht.mux.HandleFunc("DELETE /api/prompts", ht.HandleDelete)

	return ht
}

// ServeHTTP implements http.Handler and routes
// - GET /api/prompts: list prompts
// - POST /api/prompts: create a prompt from a multipart form
// - PUT /api/prompts?id=: update a prompt from a multipart form
// - DELETE /api/prompts?id=: delete a prompt.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleList lists all prompts.
func (ht *HTTPTransport) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleList(w, r)
}

func (ht *HTTPTransport) handleList(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "prompts listed", &err)

	prompts, err := ht.promptSvc.List(r.Context())
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to fetch prompts")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, PromptsResponse{Prompts: prompts})
}

// HandleCreate creates a prompt.
// Expects a multipart form with prompt, tool, resultText, notes, tags and files.
func (ht *HTTPTransport) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreate(w, r)
}

func (ht *HTTPTransport) handleCreate(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "prompt created", &err)

	draft, files, err := ht.readForm(w, r)
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	prompt, err := ht.promptSvc.Create(r.Context(), draft, files)
	if err != nil {
		uploadsvc.WriteStoreError(w, err, "Failed to save prompt")

		return err
	}

	return http_.WriteJSON(w, http.StatusCreated, PromptResponse{Prompt: prompt})
}

// HandleUpdate updates the prompt given by the id query parameter.
// Expects the same form as HandleCreate; files are added to the existing ones.
func (ht *HTTPTransport) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdate(w, r)
}

func (ht *HTTPTransport) handleUpdate(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "prompt updated", &err)

	id, err := http_.QueryID(r, "id", "ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	draft, files, err := ht.readForm(w, r)
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	prompt, err := ht.promptSvc.Update(r.Context(), id, draft, files)
	if err != nil {
		uploadsvc.WriteStoreError(w, err, "Failed to update prompt")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, PromptResponse{Prompt: prompt})
}

// HandleDelete deletes the prompt given by the id query parameter.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "prompt deleted", &err)

	id, err := http_.QueryID(r, "id", "ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	if err := ht.promptSvc.Delete(r.Context(), id); err != nil {
		http_.WriteServiceError(w, err, "Failed to delete prompt")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, http_.SuccessResponse{Success: true})
}

func (ht *HTTPTransport) readForm(w http.ResponseWriter, r *http.Request) (Draft, []uploadsvc.Accepted, error) {
	if err := uploadsvc.ParseMultipartForm(w, r, ht.uploads.Config()); err != nil {
		return Draft{}, nil, err
	}

	files, err := ht.uploads.Accept(r.Context(), uploadsvc.FormFiles(r, formFilesField), false)
	if err != nil {
		return Draft{}, nil, fmt.Errorf("accept files: %w", err)
	}

	return Draft{
		Prompt:     formValue(r, "prompt"),
		Tool:       formValue(r, "tool"),
		ResultText: formValue(r, "resultText"),
		Notes:      formValue(r, "notes"),
		Tags:       formValue(r, "tags"),
	}, files, nil
}

func (ht *HTTPTransport) logResult(r *http.Request, msg string, errp *error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	ctx := r.Context()
	if err := *errp; err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, domain.ErrNotFound) {
			log.DebugContext(ctx, "request rejected", "error", err)
		} else {
			log.ErrorContext(ctx, "request failed", "error", err)
		}

		return
	}

	log.DebugContext(ctx, msg)
}

// formValue returns the first value of a form field, or nil if it was not submitted.
func formValue(r *http.Request, key string) any {
	if values := r.MultipartForm.Value[key]; len(values) > 0 {
		return values[0]
	}

	return nil
}
