package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrToolAlreadyExists is returned when a tool with the same name is already catalogued.
	ErrToolAlreadyExists = errors.New("tool already exists")
)

// ValidationError is a request problem that can be reported to the client verbatim.
type ValidationError struct {
	Reason string
}

// NewValidationError creates a ValidationError with the given client-facing reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Prompt is an entry of the prompt bank: a prompt, the tool it was run with and its results.
type Prompt struct {
	ID             int64     `json:"id"`
	Prompt         string    `json:"prompt"`
	Tool           string    `json:"tool"`
	ResultText     string    `json:"result_text"`
	ResultFileURLs []string  `json:"result_file_urls"`
	Notes          string    `json:"notes"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tool is an entry of the tools database.
type Tool struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Model       string    `json:"model"`
	Tag         string    `json:"tag"`
	Description string    `json:"description"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
}

// UseCase documents one application of a tool, optionally with example images.
type UseCase struct {
	ID               int64     `json:"id"`
	ToolID           int64     `json:"tool_id"`
	Title            string    `json:"title"`
	Explanation      string    `json:"explanation"`
	ExampleImageURLs []string  `json:"example_image_urls"`
	CreatedAt        time.Time `json:"created_at"`
}
