package uploadsvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/google/uuid"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/audit"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

// ErrStoreFailed is returned when a strict batch could not be stored completely.
var ErrStoreFailed = errors.New("file upload failed")

// Storage is the object storage accepted files are written to.
type Storage interface {
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, bucket, name string) error
	// Locate maps a public URL back to its object. ok is false for foreign URLs.
	Locate(url string) (bucket, name string, ok bool)
}

// Policy decides how a batch reacts to a file that cannot be stored.
type Policy int

const (
	// Strict aborts the batch on the first failure and removes what was already stored.
	Strict Policy = iota
	// Lenient skips failing files and stores the rest.
	Lenient
)

// Accepted is a validated file ready for storage.
type Accepted struct {
	Filename string // sanitized client filename
	Type     string
	Data     []byte
}

// Stored is a file written to storage.
type Stored struct {
	Bucket string
	Name   string
	URL    string
}

// URLs returns the public URLs of stored, in order.
func URLs(stored []Stored) []string {
	urls := make([]string, len(stored))
	for i, s := range stored {
		urls[i] = s.URL
	}

	return urls
}

// Service validates uploaded files and writes them to storage.
type Service struct {
	storage Storage
	events  *audit.SecurityLog
	cfg     Config
	log     logging.Logger
}

// NewService creates a Service writing to storage and reporting rejections to events.
func NewService(storage Storage, events *audit.SecurityLog, cfg Config) *Service {
	return &Service{
		storage: storage,
		events:  events,
		cfg:     cfg,
		log:     logging.GetLogger("svc.uploadsvc.upload_service"),
	}
}

// Config returns the upload limits of the service.
func (s *Service) Config() Config {
	return s.cfg
}

// Accept enforces the batch limits and validates every file of headers.
// Empty parts are skipped. With imagesOnly set, videos are rejected as well.
// The first violation is returned as a domain.ValidationError.
func (s *Service) Accept(
	ctx context.Context,
	headers []*multipart.FileHeader,
	imagesOnly bool,
) (accepted []Accepted, err error) {
	defer func() {
		if err != nil {
			s.log.DebugContext(ctx, "upload rejected", "files", len(headers), "error", err)
		} else {
			s.log.DebugContext(ctx, "upload accepted", "files", len(accepted))
		}
	}()

	batch := make([]domain.Upload, len(headers))
	for i, header := range headers {
		batch[i] = domain.Upload{Name: header.Filename, Type: header.Header.Get("Content-Type"), Size: header.Size}
	}

	if err := s.cfg.CheckBatch(batch); err != nil {
		s.events.Log(ctx, audit.EventUploadRejected, audit.Details{"reason": err.Error(), "files": len(headers)})

		return nil, err
	}

	for i, header := range headers {
		if header.Size == 0 {
			continue
		}

		file, err := s.accept(ctx, header, batch[i], imagesOnly)
		if err != nil {
			return nil, err
		}

		accepted = append(accepted, file)
	}

	return accepted, nil
}

func (s *Service) accept(
	ctx context.Context,
	header *multipart.FileHeader,
	upload domain.Upload,
	imagesOnly bool,
) (Accepted, error) {
	data, err := readAll(header, int64(s.cfg.MaxFileMB)*megabyte+1)
	if err != nil {
		return Accepted{}, fmt.Errorf("read %s: %w", SanitizeFilename(header.Filename), err)
	}

	upload.Content = bytes.NewReader(data)
	upload.Size = int64(len(data))

	result := Validate(upload, s.cfg.MaxFileMB)
	if result.Valid && imagesOnly && !IsImageType(upload.Type) {
		result.Valid = false
		result.Errors = append(result.Errors, "Only images are allowed")
	}

	if !result.Valid {
		details := audit.Details{
			"filename": result.SanitizedFilename,
			"type":     upload.Type,
			"size":     upload.Size,
			"errors":   result.Errors,
		}

		s.events.Log(ctx, audit.EventUploadRejected, details)

		if result.Suspicious {
			s.events.Log(ctx, audit.EventUploadSuspicious, details)
		}

		return Accepted{}, domain.NewValidationError(result.FirstError())
	}

	return Accepted{Filename: result.SanitizedFilename, Type: upload.Type, Data: data}, nil
}

// Store writes files to bucket concurrently under random object names keeping
// the file extension. Results keep the order of files. Under Strict any failure
// removes the files stored so far and fails with ErrStoreFailed; under Lenient
// failing files are left out of the result.
func (s *Service) Store(
	ctx context.Context,
	bucket string,
	files []Accepted,
	policy Policy,
) (stored []Stored, err error) {
	log := s.log.With(logging.Group("upload", "bucket", bucket, "files", len(files), "strict", policy == Strict))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "upload store failed", "error", err)
		} else {
			log.DebugContext(ctx, "upload stored", "stored", len(stored))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMutex sync.Mutex
		errs     []error
		results  = make([]*Stored, len(files))
	)

	for i, file := range files {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := s.storeOne(ctx, bucket, file)
			if err != nil {
				errMutex.Lock()
				errs = append(errs, err)
				errMutex.Unlock()

				if policy == Strict {
					cancel() // stop the remaining uploads
				}

				return
			}

			results[i] = &result
		}()
	}

	wg.Wait()

	for _, result := range results {
		if result != nil {
			stored = append(stored, *result)
		}
	}

	if len(errs) == 0 {
		return stored, nil
	}

	if policy == Strict {
		s.Remove(context.WithoutCancel(ctx), stored)

		return nil, errors.Join(ErrStoreFailed, errors.Join(errs...))
	}

	log.WarnContext(ctx, "skipped files that could not be stored", "error", errors.Join(errs...))

	return stored, nil
}

func (s *Service) storeOne(ctx context.Context, bucket string, file Accepted) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, fmt.Errorf("%s: %w", file.Filename, err)
	}

	name := uuid.NewString() + "." + Extension(file.Filename)

	url, err := s.storage.Upload(ctx, bucket, name, file.Type, file.Data)
	if err != nil {
		return Stored{}, fmt.Errorf("%s: %w", file.Filename, err)
	}

	return Stored{Bucket: bucket, Name: name, URL: url}, nil
}

// Remove deletes stored files, logging failures.
func (s *Service) Remove(ctx context.Context, stored []Stored) {
	for _, file := range stored {
		if err := s.storage.Remove(ctx, file.Bucket, file.Name); err != nil {
			s.log.WarnContext(ctx, "remove stored file failed",
				logging.Group("upload", "bucket", file.Bucket, "name", file.Name),
				"error", err,
			)
		}
	}
}

// RemoveURLs deletes the objects behind urls. URLs not served by the storage are ignored.
func (s *Service) RemoveURLs(ctx context.Context, urls []string) {
	stored := make([]Stored, 0, len(urls))

	for _, url := range urls {
		if bucket, name, ok := s.storage.Locate(url); ok {
			stored = append(stored, Stored{Bucket: bucket, Name: name, URL: url})
		}
	}

	s.Remove(ctx, stored)
}

func readAll(header *multipart.FileHeader, limit int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return data, nil
}
