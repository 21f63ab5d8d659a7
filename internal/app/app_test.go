package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/promptbank/internal/app"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	http_ "github.com/mkrupp/promptbank/internal/infra/transport/http"
	"github.com/mkrupp/promptbank/internal/repo/blob"
	"github.com/mkrupp/promptbank/internal/repo/record"
	"github.com/mkrupp/promptbank/internal/repo/revocation"
	"github.com/mkrupp/promptbank/internal/svc/authsvc"
	"github.com/mkrupp/promptbank/internal/svc/mediasvc"
	"github.com/mkrupp/promptbank/internal/svc/promptsvc"
	"github.com/mkrupp/promptbank/internal/svc/ratelimit"
	"github.com/mkrupp/promptbank/internal/svc/uploadsvc"
	"github.com/mkrupp/promptbank/internal/util/clock"
)

const (
	testSecret   = "k3J9xQ2vL8mN4pR7tW1yZ5aB6cD0eF-gH_iJ"
	testPassword = "Sup3r-Secret!pw"
	client       = "203.0.113.9"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	mr := miniredis.RunT(t)

	cfg := app.Config{
		Auth: authsvc.AuthConfig{
			Secret:     testSecret,
			Password:   testPassword,
			TokenTTL:   time.Hour,
			Production: true,
			Cookie:     http_.SessionCookieConfig{Secure: true},
		},
		RateLimit:  ratelimit.DefaultConfig(),
		Upload:     uploadsvc.DefaultConfig(),
		Store:      record.StoreConfig{Driver: record.DriverSQLite, URL: filepath.Join(dir, "records.db")},
		Blob:       blob.FileSystemBlobRepositoryConfig{Basedir: filepath.Join(dir, "blob")},
		Media:      mediasvc.DefaultConfig(),
		Revocation: revocation.RedisRepositoryConfig{Addr: mr.Addr()},
	}

	// the revocation list expires entries against the wall clock
	clk := clock.NewManual(time.Now())

	a, err := app.New(context.Background(), cfg, clk)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	return http_.Middleware(a, logging.NewNopLogger())
}

func do(handler http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req.Header.Set("X-Forwarded-For", client)

	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func login(handler http.Handler, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(fmt.Sprintf(`{"password":%q}`, password)))
	req.Header.Set("Content-Type", "application/json")

	return do(handler, req)
}

func sessionCookie(t *testing.T, handler http.Handler) *http.Cookie {
	t.Helper()

	rec := login(handler, testPassword)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == http_.SessionCookieName {
			return cookie
		}
	}

	require.FailNow(t, "no session cookie")

	return nil
}

func TestApp_GateRejectsAnonymousRequests(t *testing.T) {
	handler := newHandler(t)

	for _, target := range []string{
		"GET /api/prompts",
		"GET /api/tools",
		"GET /api/use-cases?tool_id=1",
		"GET /api/auth/verify",
		"POST /api/auth/logout",
		"DELETE /api/prompts?id=1",
		"GET /api/unknown",
	} {
		method, path, _ := strings.Cut(target, " ")

		rec := do(handler, httptest.NewRequest(method, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String(), target)
	}

	forged := &http.Cookie{Name: http_.SessionCookieName, Value: "eyJhbGciOiJub25lIn0.eyJhdXRoZW50aWNhdGVkIjp0cnVlfQ."}
	rec := do(handler, httptest.NewRequest(http.MethodGet, "/api/prompts", nil), forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApp_SessionLifecycle(t *testing.T) {
	handler := newHandler(t)

	for remaining := 4; remaining >= 1; remaining-- {
		rec := login(handler, "wrong password")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"error":"Incorrect password","remaining":%d}`, remaining), rec.Body.String())
	}

	cookie := sessionCookie(t, handler)

	rec := do(handler, httptest.NewRequest(http.MethodGet, "/api/prompts", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prompts":[]}`, rec.Body.String())

	rec = do(handler, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())

	rec = do(handler, httptest.NewRequest(http.MethodGet, "/api/unknown", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(handler, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(handler, httptest.NewRequest(http.MethodGet, "/api/prompts", nil), cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logged out tokens are revoked")
}

func TestApp_LoginRateLimited(t *testing.T) {
	handler := newHandler(t)

	for range 5 {
		require.Equal(t, http.StatusUnauthorized, login(handler, "wrong password").Code)
	}

	rec := login(handler, testPassword)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestApp_MediaIsPublic(t *testing.T) {
	handler := newHandler(t)
	cookie := sessionCookie(t, handler)

	data := make([]byte, 256)
	copy(data, "\x89PNG\r\n\x1a\n")

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("prompt", "a lighthouse"))
	require.NoError(t, writer.WriteField("tool", "Imagen"))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="files"; filename="lighthouse.png"`)
	header.Set("Content-Type", "image/png")

	part, err := writer.CreatePart(header)
	require.NoError(t, err)

	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/prompts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := do(handler, req, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created promptsvc.PromptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Prompt.ResultFileURLs, 1)

	fileURL, err := url.Parse(created.Prompt.ResultFileURLs[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fileURL.Path, "/media/prompt-results/"), fileURL.Path)

	rec = do(handler, httptest.NewRequest(http.MethodGet, fileURL.Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())
}
