package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	v1 "github.com/stacklok/scm-mirror/internal/api/v1"
	"github.com/stacklok/scm-mirror/internal/auth"
	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/service/mocks"
	"github.com/stacklok/scm-mirror/internal/store"
)

var caller = service.Principal{
	User:  store.User{Record: store.Record{ID: 7}, GitHubID: 583231, Login: "octocat"},
	Token: "ghp_test",
}

func queuedJob(jobType string) jobs.Job {
	return jobs.Job{
		ID:        jobType + "-1-abc",
		Type:      jobType,
		Status:    jobs.StatusQueued,
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// serve runs one request through the router, authenticated as caller unless
// anonymous is set.
func serve(t *testing.T, svc service.MirrorService, method, target, body string, anonymous bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if !anonymous {
		req = req.WithContext(auth.WithPrincipal(req.Context(), caller))
	}

	rr := httptest.NewRecorder()
	v1.Router(svc).ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestListOrganizations(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	mockSvc.EXPECT().ListOrganizations(gomock.Any(), caller).Return([]store.Organization{
		{Record: store.Record{ID: 1}, GitHubID: 100, Login: "acme", DefaultLinkURL: "https://acme.example"},
	}, nil)

	rr := serve(t, mockSvc, http.MethodGet, "/organizations", "", false)
	require.Equal(t, http.StatusOK, rr.Code)

	orgs := decode[[]v1.OrganizationResponse](t, rr)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Login)
	assert.Equal(t, int64(100), orgs[0].GitHubID)
	assert.Equal(t, "https://acme.example", orgs[0].DefaultLinkURL)
}

func TestRoutesRequirePrincipal(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))

	for _, target := range []string{"/organizations", "/organizations/1/commits", "/jobs/x"} {
		rr := serve(t, mockSvc, http.MethodGet, target, "", true)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}
}

func TestRegisterOrganization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		setupMock  func(*mocks.MockMirrorService)
		wantStatus int
	}{
		{
			name: "created",
			body: `{"login":"acme","default_link_url":"https://acme.example"}`,
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().RegisterOrganization(gomock.Any(), caller, gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, _ service.Principal,
						opts ...service.Option[service.RegisterOrganizationOptions]) (*store.Organization, error) {
						var o service.RegisterOrganizationOptions
						for _, opt := range opts {
							require.NoError(t, opt(&o))
						}
						assert.Equal(t, "acme", o.Login)
						assert.Equal(t, "https://acme.example", o.DefaultLinkURL)
						return &store.Organization{Record: store.Record{ID: 3}, Login: o.Login}, nil
					})
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed body",
			body:       `{"login":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "already registered",
			body: `{"login":"acme"}`,
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().RegisterOrganization(gomock.Any(), caller, gomock.Any()).
					Return(nil, fmt.Errorf("%w: organization already registered", service.ErrConflict))
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "upstream failure",
			body: `{"login":"acme"}`,
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().RegisterOrganization(gomock.Any(), caller, gomock.Any()).
					Return(nil, github.NewAPIError(http.StatusUnauthorized, "https://api.github.com/orgs/acme", "Bad credentials"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			if tt.setupMock != nil {
				tt.setupMock(mockSvc)
			}

			rr := serve(t, mockSvc, http.MethodPost, "/organizations", tt.body, false)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestJobEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		target    string
		setupMock func(*mocks.MockMirrorService)
		wantType  string
	}{
		{
			name:   "delete organization",
			method: http.MethodDelete,
			target: "/organizations/5",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().DeleteOrganization(gomock.Any(), caller, int64(5)).
					Return(queuedJob(service.JobTypeDeleteOrganization), nil)
			},
			wantType: service.JobTypeDeleteOrganization,
		},
		{
			name:   "sync organization",
			method: http.MethodPost,
			target: "/organizations/5/sync",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().TriggerOrganizationSync(gomock.Any(), caller, int64(5)).
					Return(queuedJob(service.JobTypeSyncOrganization), nil)
			},
			wantType: service.JobTypeSyncOrganization,
		},
		{
			name:   "sync repository",
			method: http.MethodPost,
			target: "/repositories/9/sync",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().TriggerRepositorySync(gomock.Any(), caller, int64(9)).
					Return(queuedJob(service.JobTypeSyncRepository), nil)
			},
			wantType: service.JobTypeSyncRepository,
		},
		{
			name:   "delete user",
			method: http.MethodDelete,
			target: "/me",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().DeleteUser(gomock.Any(), caller).Return(queuedJob(service.JobTypeDeleteUser), nil)
			},
			wantType: service.JobTypeDeleteUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			tt.setupMock(mockSvc)

			rr := serve(t, mockSvc, tt.method, tt.target, "", false)
			require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

			job := decode[v1.JobResponse](t, rr)
			assert.Equal(t, tt.wantType, job.Type)
			assert.Equal(t, "QUEUED", job.Status)
			assert.NotEmpty(t, job.ID)
		})
	}
}

func TestSyncMyOrganizations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setupMock  func(*mocks.MockMirrorService)
		wantStatus int
		wantLogins []string
	}{
		{
			name: "jobs started",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().SyncMyOrganizations(gomock.Any(), caller).Return([]service.OrganizationSyncJob{
					{OrganizationID: 1, OrganizationLogin: "acme", Job: queuedJob(service.JobTypeSyncOrganization)},
					{OrganizationID: 2, OrganizationLogin: "globex", Job: queuedJob(service.JobTypeSyncOrganization)},
				}, nil)
			},
			wantStatus: http.StatusAccepted,
			wantLogins: []string{"acme", "globex"},
		},
		{
			name: "no organizations",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().SyncMyOrganizations(gomock.Any(), caller).Return(nil, nil)
			},
			wantStatus: http.StatusAccepted,
			wantLogins: []string{},
		},
		{
			name: "upstream failure",
			setupMock: func(m *mocks.MockMirrorService) {
				m.EXPECT().SyncMyOrganizations(gomock.Any(), caller).
					Return(nil, github.NewAPIError(http.StatusUnauthorized, "https://api.github.com/user/orgs", "Bad credentials"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			tt.setupMock(mockSvc)

			rr := serve(t, mockSvc, http.MethodPost, "/me/organizations/sync", "", false)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantLogins == nil {
				return
			}

			started := decode[[]v1.OrganizationSyncJobResponse](t, rr)
			logins := make([]string, 0, len(started))
			for _, s := range started {
				logins = append(logins, s.OrganizationLogin)
				assert.Equal(t, service.JobTypeSyncOrganization, s.Job.Type)
			}
			assert.Equal(t, tt.wantLogins, logins)
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"forbidden", fmt.Errorf("%w: role member", service.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: organization 5", service.ErrNotFound), http.StatusNotFound},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
			mockSvc.EXPECT().DeleteOrganization(gomock.Any(), caller, int64(5)).Return(jobs.Job{}, tt.err)

			rr := serve(t, mockSvc, http.MethodDelete, "/organizations/5", "", false)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestInvalidOrganizationID(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))

	for _, target := range []string{"/organizations/acme/sync-status", "/organizations/0/commits", "/organizations/-1/pull-requests"} {
		rr := serve(t, mockSvc, http.MethodGet, target, "", false)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestPullRequestFeed(t *testing.T) {
	t.Parallel()

	merged := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	mockSvc.EXPECT().PullRequestFeed(gomock.Any(), caller, int64(2), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ service.Principal, _ int64,
			opts ...service.Option[service.FeedOptions]) (*service.Page[store.PullRequest], error) {
			o := service.FeedOptions{Limit: service.DefaultPageSize}
			for _, opt := range opts {
				require.NoError(t, opt(&o))
			}
			assert.Equal(t, int64(40), o.BeforeID)
			assert.Equal(t, 2, o.Limit)
			return &service.Page[store.PullRequest]{
				Items: []store.PullRequest{
					{Record: store.Record{ID: 39}, Number: 12, Title: "Fix", Merged: true, MergedAt: &merged},
					{Record: store.Record{ID: 38}, Number: 11, Title: "Add"},
				},
				NextCursor: service.EncodeCursor(38),
			}, nil
		})

	rr := serve(t, mockSvc, http.MethodGet, "/organizations/2/pull-requests?cursor=40&limit=2", "", false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	page := decode[v1.PageResponse[v1.PullRequestResponse]](t, rr)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 12, page.Items[0].Number)
	assert.True(t, page.Items[0].Merged)
	assert.Equal(t, "38", page.NextCursor)
}

func TestCommitFeed(t *testing.T) {
	t.Parallel()

	t.Run("last page omits cursor", func(t *testing.T) {
		t.Parallel()

		mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
		mockSvc.EXPECT().CommitFeed(gomock.Any(), caller, int64(2)).
			Return(&service.Page[store.Commit]{Items: []store.Commit{{SHA: "abc123"}}}, nil)

		rr := serve(t, mockSvc, http.MethodGet, "/organizations/2/commits", "", false)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "next_cursor")

		page := decode[v1.PageResponse[v1.CommitResponse]](t, rr)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "abc123", page.Items[0].SHA)
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		t.Parallel()

		mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
		rr := serve(t, mockSvc, http.MethodGet, "/organizations/2/commits?limit=ten", "", false)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("limit rejected by service", func(t *testing.T) {
		t.Parallel()

		mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
		mockSvc.EXPECT().CommitFeed(gomock.Any(), caller, int64(2), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ service.Principal, _ int64,
				opts ...service.Option[service.FeedOptions]) (*service.Page[store.Commit], error) {
				var o service.FeedOptions
				for _, opt := range opts {
					if err := opt(&o); err != nil {
						return nil, err
					}
				}
				return &service.Page[store.Commit]{}, nil
			})

		rr := serve(t, mockSvc, http.MethodGet, "/organizations/2/commits?limit=0", "", false)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestListSyncStatus(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	mockSvc.EXPECT().ListRepositorySyncStatus(gomock.Any(), caller, int64(2)).Return([]service.RepositorySyncStatus{
		{RepositoryID: 4, RepositoryFullName: "acme/api", LastSyncedCommitSHA: "abc", ErrorMessage: "rate limited"},
	}, nil)

	rr := serve(t, mockSvc, http.MethodGet, "/organizations/2/sync-status", "", false)
	require.Equal(t, http.StatusOK, rr.Code)

	statuses := decode[[]v1.SyncStatusResponse](t, rr)
	require.Len(t, statuses, 1)
	assert.Equal(t, "acme/api", statuses[0].RepositoryFullName)
	assert.Equal(t, "rate limited", statuses[0].ErrorMessage)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	mockSvc := mocks.NewMockMirrorService(gomock.NewController(t))
	finished := time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC)
	done := queuedJob(service.JobTypeSyncOrganization)
	done.Status = jobs.StatusSucceeded
	done.Progress = 100
	done.FinishedAt = &finished
	mockSvc.EXPECT().GetJob(gomock.Any(), done.ID).Return(done, nil)
	mockSvc.EXPECT().GetJob(gomock.Any(), "missing").Return(jobs.Job{}, fmt.Errorf("%w: job missing", service.ErrNotFound))

	rr := serve(t, mockSvc, http.MethodGet, "/jobs/"+done.ID, "", false)
	require.Equal(t, http.StatusOK, rr.Code)
	job := decode[v1.JobResponse](t, rr)
	assert.Equal(t, "SUCCEEDED", job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.FinishedAt)

	rr = serve(t, mockSvc, http.MethodGet, "/jobs/missing", "", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
