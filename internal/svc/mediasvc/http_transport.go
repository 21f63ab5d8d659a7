package mediasvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
)

const (
	urlBucketParam = "bucket"
	urlNameParam   = "name"
	urlWidthParam  = "width"
)

// HTTPTransport serves stored objects publicly, the way a storage bucket with
// public read access would.
type HTTPTransport struct {
	storage Storage
	log     logging.Logger
	mux     *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving objects from storage.
func NewHTTPTransport(storage Storage) *HTTPTransport {
	ht := &HTTPTransport{
		storage: storage,
		log:     logging.GetLogger("svc.mediasvc.http_transport"),
		mux:     http.NewServeMux(),
	}

	ht.mux.HandleFunc(fmt.Sprintf("GET /media/{%s}/{%s}", urlBucketParam, urlNameParam), ht.HandleDownload)

	return ht
}

// ServeHTTP implements http.Handler and routes
// - GET /media/{bucket}/{name}[?width=N]: download an object, images optionally scaled down.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleDownload processes object download requests.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDownload(w, r)
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	bucket, name := r.PathValue(urlBucketParam), r.PathValue(urlNameParam)
	log := ht.log.With(
		logging.Group("http", "method", r.Method, "path", r.URL.Path),
		logging.Group("object", "bucket", bucket, "name", name),
	)

	defer func(ctx context.Context) {
		if err != nil {
			log.DebugContext(ctx, "object download failed", "error", err)
		} else {
			log.DebugContext(ctx, "object downloaded")
		}
	}(r.Context())

	var width int

	if widthStr := r.URL.Query().Get(urlWidthParam); widthStr != "" {
		if width, err = strconv.Atoi(widthStr); err != nil || width <= 0 {
			http_.WriteError(w, http.StatusBadRequest, "Invalid width")

			return errors.Join(fmt.Errorf("parse width %q", widthStr), err)
		}
	}

	obj, err := ht.storage.Fetch(r.Context(), bucket, name, width)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidObjectName):
			http_.WriteError(w, http.StatusNotFound, "Not found")
		default:
			log.ErrorContext(r.Context(), "object fetch failed", "error", err)
			http_.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}

		return fmt.Errorf("fetch: %w", err)
	}

	w.Header().Set("Content-Type", obj.Meta.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")

	http.ServeContent(w, r, obj.Meta.Name, obj.Meta.CreatedAt, bytes.NewReader(obj.Data))

	return nil
}
