package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/queryd/internal/document"
)

type fakeRunner struct {
	answers []string
	err     error
	gotURL  string
	gotQs   []string
}

func (f *fakeRunner) Run(_ context.Context, docURL string, questions []string) ([]string, error) {
	f.gotURL = docURL
	f.gotQs = questions
	if f.err != nil {
		return nil, f.err
	}
	return f.answers, nil
}

func newTestServer(t *testing.T, runner Runner, token string) *Server {
	t.Helper()
	s, err := NewServer(runner, zap.NewNop(), &Config{Host: "localhost", Port: 0, Token: token})
	require.NoError(t, err)
	return s
}

func doJSON(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(&fakeRunner{}, nil, nil)
	require.Error(t, err)
}

func TestHandleRun_Success(t *testing.T) {
	runner := &fakeRunner{answers: []string{"thirty days", "yes"}}
	s := newTestServer(t, runner, "")

	rec := doJSON(s, http.MethodPost, "/api/v1/run", "",
		`{"documents":"https://example.com/policy.html","questions":["grace period?","covered?"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answers":["thirty days","yes"]}`, rec.Body.String())
	assert.Equal(t, "https://example.com/policy.html", runner.gotURL)
	assert.Equal(t, []string{"grace period?", "covered?"}, runner.gotQs)
}

func TestHandleRun_InputValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"documents":`},
		{"missing documents", `{"questions":["q"]}`},
		{"missing questions", `{"documents":"https://example.com/d.html"}`},
		{"empty questions", `{"documents":"https://example.com/d.html","questions":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeRunner{}, "")
			rec := doJSON(s, http.MethodPost, "/api/v1/run", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRun_BearerAuth(t *testing.T) {
	s := newTestServer(t, &fakeRunner{answers: []string{"a"}}, "sekrit")
	body := `{"documents":"https://example.com/d.html","questions":["q"]}`

	rec := doJSON(s, http.MethodPost, "/api/v1/run", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/run", "wrong", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/run", "sekrit", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, "sekrit")

	rec := doJSON(s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doJSON(s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch failure", document.ErrFetch, http.StatusInternalServerError},
		{"extraction failure", document.ErrExtraction, http.StatusInternalServerError},
		{"unsupported format", document.ErrUnsupportedFormat, http.StatusBadRequest},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeRunner{err: tt.err}, "")
			rec := doJSON(s, http.MethodPost, "/api/v1/run", "",
				`{"documents":"https://example.com/d.html","questions":["q"]}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
