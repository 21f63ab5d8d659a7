package uploadsvc

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/mkrupp/promptbank/internal/domain"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
)

// multipartMaxMemory is the part of a form kept in memory; larger files spill to disk.
const multipartMaxMemory = 8 << 20

// ParseMultipartForm parses the multipart body of r, capped at the request
// ceiling of cfg. Oversized or malformed bodies yield a domain.ValidationError.
func ParseMultipartForm(w http.ResponseWriter, r *http.Request, cfg Config) error {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBytes())

	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Join(
				domain.NewValidationError(fmt.Sprintf("Total upload size exceeds %dMB", cfg.MaxTotalMB)),
				err,
			)
		}

		return errors.Join(domain.NewValidationError("Invalid form data"), err)
	}

	return nil
}

// FormFiles returns the files uploaded under field, or nil.
func FormFiles(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}

	return r.MultipartForm.File[field]
}

// WriteStoreError writes the response for a failed create or update: a failed
// strict upload is reported as such, everything else as by http_.WriteServiceError.
func WriteStoreError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, ErrStoreFailed) {
		http_.WriteError(w, http.StatusInternalServerError, "File upload failed")

		return
	}

	http_.WriteServiceError(w, err, fallback)
}
