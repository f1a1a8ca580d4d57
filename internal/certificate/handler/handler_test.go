package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attentid/internal/certificate"
	jwttoken "attentid/internal/jwt_token"
	"attentid/internal/platform/metrics"
	dErrors "attentid/pkg/domain-errors"
)

// One registry per test binary; promauto registers globally.
var testMetrics = metrics.New()

type stubService struct {
	issued    certificate.Certificate
	issueErr  error
	verified  certificate.Certificate
	verifyErr error

	gotIdentityID string
	gotPlaceID    string
	gotWindow     time.Duration
}

func (s *stubService) Issue(_ context.Context, identityID, placeID string, _ *time.Time, window time.Duration) (certificate.Certificate, error) {
	s.gotIdentityID = identityID
	s.gotPlaceID = placeID
	s.gotWindow = window
	return s.issued, s.issueErr
}

func (s *stubService) Verify(context.Context, string) (certificate.Certificate, error) {
	return s.verified, s.verifyErr
}

func (s *stubService) Get(context.Context, string) (certificate.Certificate, error) {
	return s.issued, s.issueErr
}

func (s *stubService) ListForIdentity(context.Context, string, int, int) ([]certificate.Certificate, error) {
	return []certificate.Certificate{s.issued}, nil
}

func (s *stubService) ListAll(context.Context, int, int) ([]certificate.Certificate, error) {
	return []certificate.Certificate{s.issued}, nil
}

func newTestServer(t *testing.T, svc Service) (*httptest.Server, string) {
	t.Helper()

	tokens := jwttoken.NewJWTService("test-signing-key", "attentid-test")
	token, err := tokens.GenerateAccessToken("us-1", "jana@example.com", time.Minute)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	h := New(svc, logger, testMetrics, tokens)

	r := chi.NewRouter()
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, token
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestIssueRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp, err := http.Post(srv.URL+"/certificates", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueDefaultsToAuthenticatedSubject(t *testing.T) {
	issued := certificate.Certificate{
		ID:         "cert-1",
		IdentityID: "us-1",
		PlaceID:    "place-a",
		IssuedAt:   time.Now().UTC(),
		Signature:  "sig",
	}
	svc := &stubService{issued: issued}
	srv, token := newTestServer(t, svc)

	body := `{"raspberry_uuid":"place-a","time_window_minutes":15}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/certificates", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "us-1", svc.gotIdentityID)
	assert.Equal(t, "place-a", svc.gotPlaceID)
	assert.Equal(t, 15*time.Minute, svc.gotWindow)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "cert-1", got["id"])
	assert.Equal(t, "place-a", got["raspberry_uuid"])
	assert.Equal(t, "us-1", got["user_id"])
	// The signature stays server-side.
	assert.NotContains(t, got, "signature")
}

func TestIssuePresenceUnverifiedMapsTo400(t *testing.T) {
	svc := &stubService{issueErr: dErrors.New(dErrors.CodePresenceUnverified, "no supporting observations")}
	srv, token := newTestServer(t, svc)

	body := `{"raspberry_uuid":"place-a"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/certificates", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyTamperedMapsTo400(t *testing.T) {
	svc := &stubService{verifyErr: dErrors.New(dErrors.CodeTamperedCertificate, "signature mismatch")}
	srv, token := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/certificates/cert-1/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetNotFoundMapsTo404(t *testing.T) {
	svc := &stubService{issueErr: dErrors.New(dErrors.CodeNotFound, "certificate not found")}
	srv, token := newTestServer(t, svc)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/certificates/cert-missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
