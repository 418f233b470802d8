package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/authz"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// PullRequestFeed pages through the organization's pull requests, newest first
func (s *mirrorService) PullRequestFeed(
	ctx context.Context, p service.Principal, orgID int64, opts ...service.Option[service.FeedOptions],
) (*service.Page[store.PullRequest], error) {
	ctx, span := s.startSpan(ctx, "mirrorService.PullRequestFeed",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	page, err := feed(ctx, s, p, orgID, opts, s.store.PullRequests().Feed, func(pr store.PullRequest) int64 {
		return pr.ID
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(page.Items)))
	return page, nil
}

// CommitFeed pages through the organization's commits, newest first
func (s *mirrorService) CommitFeed(
	ctx context.Context, p service.Principal, orgID int64, opts ...service.Option[service.FeedOptions],
) (*service.Page[store.Commit], error) {
	ctx, span := s.startSpan(ctx, "mirrorService.CommitFeed",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	page, err := feed(ctx, s, p, orgID, opts, s.store.Commits().Feed, func(c store.Commit) int64 {
		return c.ID
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(page.Items)))
	return page, nil
}

// feed runs one feed query. It asks for one row more than the page size to
// find out whether a further page exists.
func feed[T any](
	ctx context.Context,
	s *mirrorService,
	p service.Principal,
	orgID int64,
	opts []service.Option[service.FeedOptions],
	query func(ctx context.Context, orgID, beforeID int64, limit int) ([]T, error),
	id func(T) int64,
) (*service.Page[T], error) {
	options := &service.FeedOptions{Limit: service.DefaultPageSize}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	_, membership, err := s.requireMembership(ctx, p, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, membership, authz.ActionRead); err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		otel.AttrPageSize.Int(options.Limit),
		otel.AttrHasCursor.Bool(options.BeforeID > 0),
	)
	slog.DebugContext(ctx, "Feed query",
		"organization_id", orgID,
		"limit", options.Limit,
		"before_id", options.BeforeID,
		"request_id", middleware.GetReqID(ctx))

	rows, err := query(ctx, orgID, options.BeforeID, options.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}

	page := &service.Page[T]{Items: rows}
	if len(rows) > options.Limit {
		page.Items = rows[:options.Limit]
		page.NextCursor = service.EncodeCursor(id(page.Items[len(page.Items)-1]))
	}
	return page, nil
}
