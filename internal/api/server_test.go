package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/scm-mirror/internal/api"
	"github.com/stacklok/scm-mirror/internal/auth"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/service/mocks"
	"github.com/stacklok/scm-mirror/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	server := api.NewServer(mockSvc)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		readinessErr   error
		expectedStatus int
	}{
		{name: "service ready", expectedStatus: http.StatusOK},
		{name: "store unreachable", readinessErr: errors.New("failed to ping store"), expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(tt.readinessErr)

			rr := httptest.NewRecorder()
			api.NewServer(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			if tt.readinessErr == nil {
				assert.Equal(t, "ready", response["status"])
			} else {
				assert.Contains(t, response["error"], "not ready")
			}
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))

	rr := httptest.NewRecorder()
	api.NewServer(mockSvc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestAPIMountedUnderV1(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	caller := service.Principal{User: store.User{Record: store.Record{ID: 1}, Login: "octocat"}, Token: "t"}
	mockSvc.EXPECT().ListOrganizations(gomock.Any(), caller).Return(nil, nil)

	withCaller := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), caller)))
		})
	}
	server := api.NewServer(mockSvc, api.WithMiddlewares(api.LoggingMiddleware, withCaller))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/organizations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnknownRoutesReturnJSONErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "unknown root path", method: http.MethodGet, path: "/openapi.json", wantStatus: http.StatusNotFound},
		{name: "unknown api path", method: http.MethodGet, path: "/api/v1/teams", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/health", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			rr := httptest.NewRecorder()
			api.NewServer(mockSvc).ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}
