package toolsvc

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/mkrupp/promptbank/internal/domain"
)

const (
	defaultTag   = "Other"
	maxRating    = 5
	maxURLLength = 2048
)

// ToolDraft holds the raw, unsanitized fields of a tool as submitted by a client.
type ToolDraft struct {
	Name        any `json:"name"`
	Model       any `json:"model"`
	Tag         any `json:"tag"`
	Description any `json:"description"`
	Rating      any `json:"rating"`
}

// UseCaseDraft holds the raw, unsanitized fields of a use case.
// ExampleImageURLs is nil when the client did not submit the field.
type UseCaseDraft struct {
	ToolID           any `json:"tool_id"`
	Title            any `json:"title"`
	Explanation      any `json:"explanation"`
	ExampleImageURLs any `json:"example_image_urls"`
}

// parseID accepts a positive integer as JSON number or decimal string.
func parseID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v <= 0 || v >= math.MaxInt64 {
			return 0, false
		}

		return int64(v), true
	case json.Number:
		return parseID(v.String())
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)

		return id, err == nil && id > 0
	default:
		return 0, false
	}
}

// parseRating accepts an integer from 0 to 5. A missing rating is 0.
func parseRating(raw any) (int, error) {
	invalid := domain.NewValidationError("Rating must be between 0 and 5")

	var rating float64

	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		rating = v
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, invalid
		}

		rating = float64(n)
	default:
		return 0, invalid
	}

	if rating != math.Trunc(rating) || rating < 0 || rating > maxRating {
		return 0, invalid
	}

	return int(rating), nil
}

// parseURLs accepts a list of absolute http(s) URLs. A missing list yields nil.
func parseURLs(raw any) ([]string, error) {
	invalid := domain.NewValidationError("Invalid example image URL")

	var list []string

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		list = v
	case []any:
		list = make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid
			}

			list = append(list, s)
		}
	default:
		return nil, invalid
	}

	urls := make([]string, 0, len(list))

	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if len(raw) > maxURLLength {
			return nil, invalid
		}

		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid
		}

		urls = append(urls, u.String())
	}

	return urls, nil
}
