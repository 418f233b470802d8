package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/service/mocks"
)

// createTestApp creates a MirrorApp with a mocked service. It constructs the
// app directly to avoid wiring storage and GitHub.
func createTestApp(t *testing.T, addr string) (*MirrorApp, *jobs.Service, *bool) {
	t.Helper()

	svc := mocks.NewMockMirrorService(gomock.NewController(t))
	cfg := config.Default()

	appCfg := &mirrorAppConfig{
		config:         cfg,
		address:        addr,
		requestTimeout: 10 * time.Second,
		readTimeout:    10 * time.Second,
		writeTimeout:   15 * time.Second,
		idleTimeout:    60 * time.Second,
		authMiddleware: func(next http.Handler) http.Handler { return next },
	}
	server, err := buildHTTPServer(context.Background(), appCfg, svc)
	require.NoError(t, err)

	jobService, err := jobs.New(jobs.WithWorkers(1))
	require.NoError(t, err)

	appCtx, cancel := context.WithCancel(context.Background())
	cleaned := false
	return &MirrorApp{
		config:          cfg,
		components:      &AppComponents{Jobs: jobService, MirrorService: svc},
		httpServer:      server,
		shutdownTimeout: 5 * time.Second,
		ctx:             appCtx,
		cancelFunc: func() {
			cleaned = true
			cancel()
		},
	}, jobService, &cleaned
}

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestMirrorApp_StartAndStop(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	app, _, cleaned := createTestApp(t, addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))
	assert.True(t, *cleaned)
	assert.Error(t, app.ctx.Err())

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestMirrorApp_StopWaitsForJobs(t *testing.T) {
	t.Parallel()

	app, jobService, _ := createTestApp(t, freeAddr(t))

	release := make(chan struct{})
	finished := make(chan struct{})
	job := jobService.Submit("organization_sync", func(context.Context, jobs.Progress) error {
		<-release
		close(finished)
		return nil
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the running job finished")
	}
	got, ok := jobService.Find(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusSucceeded, got.Status)
}

func TestMirrorApp_StopTimesOutOnStuckJob(t *testing.T) {
	t.Parallel()

	app, jobService, cleaned := createTestApp(t, freeAddr(t))

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	started := make(chan struct{})
	jobService.Submit("organization_delete", func(context.Context, jobs.Progress) error {
		close(started)
		<-release
		return nil
	})
	<-started

	err := app.Stop(50 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, *cleaned, "storage is released even when jobs are stuck")
}

func TestMirrorApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	app, _, _ := createTestApp(t, freeAddr(t))

	require.NoError(t, app.Stop(time.Second))
	require.NoError(t, app.Stop(time.Second))
}

func TestMirrorApp_StopWithNilCancelFunc(t *testing.T) {
	t.Parallel()

	app, _, _ := createTestApp(t, freeAddr(t))
	app.cancelFunc = nil

	require.NoError(t, app.Stop(0))
}

func TestMirrorApp_Getters(t *testing.T) {
	t.Parallel()

	app, _, _ := createTestApp(t, "127.0.0.1:0")

	assert.NotNil(t, app.GetConfig())
	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	assert.NotNil(t, app.Components().MirrorService)
}

func TestMirrorApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	app, _, _ := createTestApp(t, listener.Addr().String())

	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}
