package toolsvc

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
)

const (
	maxJSONBytes   = 64 << 10
	formFilesField = "files"
)

// ToolsResponse is the body of the tool listing.
type ToolsResponse struct {
	Tools []domain.Tool `json:"tools"`
}

// ToolResponse is the body of a created or updated tool.
type ToolResponse struct {
	Tool domain.Tool `json:"tool"`
}

// UseCasesResponse is the body of the use case listing.
type UseCasesResponse struct {
	UseCases []domain.UseCase `json:"use_cases"`
}

// UseCaseResponse is the body of a created or updated use case.
type UseCaseResponse struct {
	UseCase domain.UseCase `json:"use_case"`
}

// HTTPTransport handles HTTP requests for tools and use cases.
// Requests are expected to have passed the session gate already.
type HTTPTransport struct {
	toolSvc    *ToolService
	useCaseSvc *UseCaseService
	uploads    *uploadsvc.Service
	log        logging.Logger
	mux        *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(toolSvc *ToolService, useCaseSvc *UseCaseService, uploads *uploadsvc.Service) *HTTPTransport {
	ht := &HTTPTransport{
		toolSvc:    toolSvc,
		useCaseSvc: useCaseSvc,
		uploads:    uploads,
		log:        logging.GetLogger("svc.toolsvc.http_transport"),
		mux:        http.NewServeMux(),
	}

	ht.mux.HandleFunc("GET /api/tools", ht.HandleListTools)
	ht.mux.HandleFunc("POST /api/tools", ht.HandleCreateTool)
	ht.mux.HandleFunc("PUT /api/tools", ht.HandleUpdateTool)
	ht.mux.HandleFunc("DELETE /api/tools", ht.HandleDeleteTool)

	ht.mux.HandleFunc("GET /api/use-cases", ht.HandleListUseCases)
	ht.mux.HandleFunc("POST /api/use-cases", ht.HandleCreateUseCase)
	ht.mux.HandleFunc("PUT /api/use-cases", ht.HandleUpdateUseCase)
	ht.mux.HandleFunc("DELETE /api/use-cases", ht.HandleDeleteUseCase)

	return ht
}

// ServeHTTP implements http.Handler and routes
// - GET|POST /api/tools, PUT|DELETE /api/tools?id= (DELETE also by ?name=)
// - GET /api/use-cases?tool_id=, POST /api/use-cases, PUT|DELETE /api/use-cases?id=.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleListTools lists all tools.
func (ht *HTTPTransport) HandleListTools(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleListTools(w, r)
}

func (ht *HTTPTransport) handleListTools(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "tools listed", &err)

	tools, err := ht.toolSvc.List(r.Context())
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to fetch tools")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, ToolsResponse{Tools: tools})
}

// HandleCreateTool creates a tool from a JSON body.
func (ht *HTTPTransport) HandleCreateTool(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreateTool(w, r)
}

func (ht *HTTPTransport) handleCreateTool(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "tool created", &err)

	var draft ToolDraft
	if err := http_.DecodeJSON(w, r, maxJSONBytes, &draft); err != nil {
		http_.WriteServiceError(w, err, "Failed to create tool")

		return err
	}

	tool, err := ht.toolSvc.Create(r.Context(), draft)
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to create tool")

		return err
	}

	return http_.WriteJSON(w, http.StatusCreated, ToolResponse{Tool: tool})
}

// HandleUpdateTool updates the tool given by the id query parameter from a JSON body.
func (ht *HTTPTransport) HandleUpdateTool(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdateTool(w, r)
}

func (ht *HTTPTransport) handleUpdateTool(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "tool updated", &err)

	id, err := http_.QueryID(r, "id", "ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	var draft ToolDraft
	if err := http_.DecodeJSON(w, r, maxJSONBytes, &draft); err != nil {
		http_.WriteServiceError(w, err, "Failed to update tool")

		return err
	}

	tool, err := ht.toolSvc.Update(r.Context(), id, draft)
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to update tool")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, ToolResponse{Tool: tool})
}

// HandleDeleteTool deletes the tool given by the id or name query parameter.
func (ht *HTTPTransport) HandleDeleteTool(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDeleteTool(w, r)
}

func (ht *HTTPTransport) handleDeleteTool(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "tool deleted", &err)

	if r.URL.Query().Has("id") {
		var id int64
		if id, err = http_.QueryID(r, "id", "Name required"); err == nil {
			err = ht.toolSvc.Delete(r.Context(), id)
		}
	} else if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		err = ht.toolSvc.DeleteByName(r.Context(), name)
	} else {
		err = domain.NewValidationError("Name required")
	}

	if err != nil {
		http_.WriteServiceError(w, err, "Failed to delete tool")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, http_.SuccessResponse{Success: true})
}

// HandleListUseCases lists the use cases of the tool given by the tool_id query parameter.
func (ht *HTTPTransport) HandleListUseCases(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleListUseCases(w, r)
}

func (ht *HTTPTransport) handleListUseCases(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "use cases listed", &err)

	toolID, err := http_.QueryID(r, "tool_id", "Tool ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	useCases, err := ht.useCaseSvc.List(r.Context(), toolID)
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to fetch use cases")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, UseCasesResponse{UseCases: useCases})
}

// HandleCreateUseCase creates a use case from a JSON body or a multipart form
// carrying example images.
func (ht *HTTPTransport) HandleCreateUseCase(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreateUseCase(w, r)
}

func (ht *HTTPTransport) handleCreateUseCase(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "use case created", &err)

	draft, files, err := ht.readUseCase(w, r)
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to create use case")

		return err
	}

	useCase, err := ht.useCaseSvc.Create(r.Context(), draft, files)
	if err != nil {
		uploadsvc.WriteStoreError(w, err, "Failed to create use case")

		return err
	}

	return http_.WriteJSON(w, http.StatusCreated, UseCaseResponse{UseCase: useCase})
}

// HandleUpdateUseCase updates the use case given by the id query parameter.
// Accepts the same bodies as HandleCreateUseCase.
func (ht *HTTPTransport) HandleUpdateUseCase(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdateUseCase(w, r)
}

func (ht *HTTPTransport) handleUpdateUseCase(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "use case updated", &err)

	id, err := http_.QueryID(r, "id", "Use case ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	draft, files, err := ht.readUseCase(w, r)
	if err != nil {
		http_.WriteServiceError(w, err, "Failed to update use case")

		return err
	}

	useCase, err := ht.useCaseSvc.Update(r.Context(), id, draft, files)
	if err != nil {
		uploadsvc.WriteStoreError(w, err, "Failed to update use case")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, UseCaseResponse{UseCase: useCase})
}

// HandleDeleteUseCase deletes the use case given by the id query parameter.
func (ht *HTTPTransport) HandleDeleteUseCase(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDeleteUseCase(w, r)
}

func (ht *HTTPTransport) handleDeleteUseCase(w http.ResponseWriter, r *http.Request) (err error) {
	defer ht.logResult(r, "use case deleted", &err)

	id, err := http_.QueryID(r, "id", "Use case ID required")
	if err != nil {
		http_.WriteServiceError(w, err, "Internal server error")

		return err
	}

	if err := ht.useCaseSvc.Delete(r.Context(), id); err != nil {
		http_.WriteServiceError(w, err, "Failed to delete use case")

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, http_.SuccessResponse{Success: true})
}

// readUseCase decodes a use case from JSON or, for multipart requests, from
// form fields with example_image_urls repeated once per URL.
func (ht *HTTPTransport) readUseCase(w http.ResponseWriter, r *http.Request) (UseCaseDraft, []uploadsvc.Accepted, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var draft UseCaseDraft
		if err := http_.DecodeJSON(w, r, maxJSONBytes, &draft); err != nil {
			return UseCaseDraft{}, nil, err
		}

		return draft, nil, nil
	}

	if err := uploadsvc.ParseMultipartForm(w, r, ht.uploads.Config()); err != nil {
		return UseCaseDraft{}, nil, err
	}

	files, err := ht.uploads.Accept(r.Context(), uploadsvc.FormFiles(r, formFilesField), true)
	if err != nil {
		return UseCaseDraft{}, nil, fmt.Errorf("accept files: %w", err)
	}

	draft := UseCaseDraft{
		ToolID:      formValue(r, "tool_id"),
		Title:       formValue(r, "title"),
		Explanation: formValue(r, "explanation"),
	}

	if urls, ok := r.MultipartForm.Value["example_image_urls"]; ok {
		draft.ExampleImageURLs = urls
	}

	return draft, files, nil
}

func (ht *HTTPTransport) logResult(r *http.Request, msg string, errp *error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	ctx := r.Context()
	if err := *errp; err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrToolAlreadyExists) {
			log.DebugContext(ctx, "request rejected", "error", err)
		} else {
			log.ErrorContext(ctx, "request failed", "error", err)
		}

		return
	}

	log.DebugContext(ctx, msg)
}

func formValue(r *http.Request, key string) any {
	if values := r.MultipartForm.Value[key]; len(values) > 0 {
		return values[0]
	}

	return nil
}
