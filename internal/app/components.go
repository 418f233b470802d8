package app

import (
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
	mirrorsync "github.com/stacklok/scm-mirror/internal/sync"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store is the persistence backend shared by every component
	Store store.Store

	// Jobs runs sync and delete work in the background
	Jobs *jobs.Service

	// Locks serializes work on the same organization or repository
	Locks *lock.Manager

	// Orchestrator runs organization and repository sync passes
	Orchestrator *mirrorsync.Orchestrator

	// MirrorService provides the mirror business logic
	MirrorService service.MirrorService
}
