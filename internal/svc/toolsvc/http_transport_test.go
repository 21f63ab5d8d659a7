package toolsvc_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/promptbank/internal/svc/toolsvc"
)

func serve(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return req
}

func imageForm(t *testing.T, method, target string, fields map[string][]string, filename, mimeType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, value := range values {
			require.NoError(t, writer.WriteField(key, value))
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)

	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body.Error
}

func TestHTTPTransport_Tools(t *testing.T) {
	f := newFixture(t)

	rec := serve(t, f.handler, jsonRequest(http.MethodPost, "/api/tools",
		`{"name":"Suno","model":"v4","tag":"Audio","rating":3}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created toolsvc.ToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Suno", created.Tool.Name)
	assert.Equal(t, 3, created.Tool.Rating)

	rec = serve(t, f.handler, jsonRequest(http.MethodPost, "/api/tools", `{"name":"Suno"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Tool already exists", errorBody(t, rec))

	rec = serve(t, f.handler, jsonRequest(http.MethodPost, "/api/tools", `{"name":"  "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Tool name required", errorBody(t, rec))

	rec = serve(t, f.handler, jsonRequest(http.MethodPost, "/api/tools", `{"name":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorBody(t, rec))

	id := strconv.FormatInt(created.Tool.ID, 10)

	rec = serve(t, f.handler, jsonRequest(http.MethodPut, "/api/tools?id="+id, `{"name":"Suno","rating":5}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed toolsvc.ToolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Tools, 1)
	assert.Equal(t, 5, listed.Tools[0].Rating)
	assert.Equal(t, "Other", listed.Tools[0].Tag)

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodDelete, "/api/tools", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name required", errorBody(t, rec))

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodDelete, "/api/tools?name=Suno", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodDelete, "/api/tools?id="+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPTransport_UseCases(t *testing.T) {
	f := newFixture(t)

	rec := serve(t, f.handler, jsonRequest(http.MethodPost, "/api/tools", `{"name":"Flux"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var tool toolsvc.ToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tool))

	toolID := strconv.FormatInt(tool.Tool.ID, 10)

	rec = serve(t, f.handler, imageForm(t, http.MethodPost, "/api/use-cases",
		map[string][]string{
			"tool_id":            {toolID},
			"title":              {"Portraits"},
			"example_image_urls": {"https://example.com/p.png"},
		},
		"portrait.png", "image/png", pngData("portrait"),
	))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created toolsvc.UseCaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.UseCase.ExampleImageURLs, 2)
	assert.Contains(t, created.UseCase.ExampleImageURLs[1], "/media/tool-examples/")

	rec = serve(t, f.handler, jsonRequest(http.MethodPost, "/api/use-cases",
		fmt.Sprintf(`{"tool_id":%s,"title":"Landscapes","example_image_urls":[]}`, toolID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodGet, "/api/use-cases?tool_id="+toolID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed toolsvc.UseCasesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.UseCases, 2)
	assert.Equal(t, "Portraits", listed.UseCases[0].Title)

	id := strconv.FormatInt(created.UseCase.ID, 10)

	rec = serve(t, f.handler, jsonRequest(http.MethodPut, "/api/use-cases?id="+id, `{"title":"Portraits v2"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated toolsvc.UseCaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, created.UseCase.ExampleImageURLs, updated.UseCase.ExampleImageURLs)

	rec = serve(t, f.handler, httptest.NewRequest(http.MethodDelete, "/api/use-cases?id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.exists(t, created.UseCase.ExampleImageURLs[1]))
}

func TestHTTPTransport_UseCaseRejections(t *testing.T) {
	f := newFixture(t)

	mp4 := make([]byte, 256)
	copy(mp4, "\x00\x00\x00\x18ftypmp42")

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name:       "list without tool",
			req:        httptest.NewRequest(http.MethodGet, "/api/use-cases", nil),
			wantStatus: http.StatusBadRequest,
			wantError:  "Tool ID required",
		},
		{
			name:       "create without tool",
			req:        jsonRequest(http.MethodPost, "/api/use-cases", `{"title":"t"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Tool ID required",
		},
		{
			name:       "tool id out of range",
			req:        jsonRequest(http.MethodPost, "/api/use-cases", `{"tool_id":9223372036854775807,"title":"t"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Tool ID required",
		},
		{
			name:       "create without title",
			req:        jsonRequest(http.MethodPost, "/api/use-cases", `{"tool_id":1}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Title required",
		},
		{
			name:       "unknown tool",
			req:        jsonRequest(http.MethodPost, "/api/use-cases", `{"tool_id":4711,"title":"t"}`),
			wantStatus: http.StatusNotFound,
			wantError:  "Not found",
		},
		{
			name: "video example",
			req: imageForm(t, http.MethodPost, "/api/use-cases",
				map[string][]string{"tool_id": {"1"}, "title": {"t"}}, "clip.mp4", "video/mp4", mp4),
			wantStatus: http.StatusBadRequest,
			wantError:  "Only images are allowed",
		},
		{
			name:       "update without id",
			req:        jsonRequest(http.MethodPut, "/api/use-cases", `{"title":"t"}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Use case ID required",
		},
		{
			name:       "delete without id",
			req:        httptest.NewRequest(http.MethodDelete, "/api/use-cases", nil),
			wantStatus: http.StatusBadRequest,
			wantError:  "Use case ID required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, f.handler, tt.req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, errorBody(t, rec))
		})
	}
}
