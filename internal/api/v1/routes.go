// Package v1 provides the mirror REST API handlers.
package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/scm-mirror/internal/api/common"
	"github.com/stacklok/scm-mirror/internal/auth"
	"github.com/stacklok/scm-mirror/internal/service"
)

// maxRequestBodyBytes bounds JSON request bodies
const maxRequestBodyBytes = 1 << 20

// Routes handles HTTP requests for the v1 API.
type Routes struct {
	service service.MirrorService
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc service.MirrorService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates and configures the HTTP router for the v1 API.
// Handlers expect the auth middleware to have stored a principal.
func Router(svc service.MirrorService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/organizations", routes.listOrganizations)
	r.Post("/organizations", routes.registerOrganization)
	r.Route("/organizations/{id}", func(r chi.Router) {
		r.Delete("/", routes.deleteOrganization)
		r.Post("/sync", routes.triggerOrganizationSync)
		r.Get("/sync-status", routes.listSyncStatus)
		r.Get("/pull-requests", routes.pullRequestFeed)
		r.Get("/commits", routes.commitFeed)
	})
	r.Delete("/me", routes.deleteUser)
	r.Post("/me/organizations/sync", routes.syncMyOrganizations)
	r.Post("/repositories/{id}/sync", routes.triggerRepositorySync)
	r.Get("/jobs/{id}", routes.getJob)

	return r
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		common.WriteErrorResponse(w, "authentication required", http.StatusUnauthorized)
	}
	return p, ok
}

// orgRequest resolves the caller and the {id} path parameter.
func orgRequest(w http.ResponseWriter, r *http.Request) (service.Principal, int64, bool) {
	p, ok := principal(w, r)
	if !ok {
		return p, 0, false
	}
	id, err := common.ParseIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return p, 0, false
	}
	return p, id, true
}

// listOrganizations handles GET /api/v1/organizations
//
// @Summary		List organizations
// @Description	List the organizations the caller is a member of
// @Tags			organizations
// @Produce		json
// @Success		200	{array}		OrganizationResponse
// @Failure		401	{object}	common.ErrorResponse
// @Router			/api/v1/organizations [get]
func (routes *Routes) listOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	orgs, err := routes.service.ListOrganizations(r.Context(), p)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	resp := make([]OrganizationResponse, 0, len(orgs))
	for _, o := range orgs {
		resp = append(resp, newOrganizationResponse(o))
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// registerOrganization handles POST /api/v1/organizations
//
// @Summary		Register organization
// @Tags			organizations
// @Accept			json
// @Produce		json
// @Param			body	body		RegisterOrganizationRequest	true	"Organization to register"
// @Success		201		{object}	OrganizationResponse
// @Failure		400		{object}	common.ErrorResponse
// @Failure		409		{object}	common.ErrorResponse
// @Failure		502		{object}	common.ErrorResponse
// @Router			/api/v1/organizations [post]
func (routes *Routes) registerOrganization(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req RegisterOrganizationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	opts := []service.Option[service.RegisterOrganizationOptions]{service.WithLogin(req.Login)}
	if req.DefaultLinkURL != "" {
		opts = append(opts, service.WithDefaultLinkURL(req.DefaultLinkURL))
	}

	org, err := routes.service.RegisterOrganization(r.Context(), p, opts...)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newOrganizationResponse(*org), http.StatusCreated)
}

// syncMyOrganizations handles POST /api/v1/me/organizations/sync
//
// @Summary		Synchronize my organizations
// @Description	Register every organization the caller's token can see and start a sync job for each
// @Tags			sync
// @Produce		json
// @Success		202	{array}		OrganizationSyncJobResponse
// @Failure		401	{object}	common.ErrorResponse
// @Failure		502	{object}	common.ErrorResponse
// @Router			/api/v1/me/organizations/sync [post]
func (routes *Routes) syncMyOrganizations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	started, err := routes.service.SyncMyOrganizations(r.Context(), p)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	resp := make([]OrganizationSyncJobResponse, 0, len(started))
	for _, s := range started {
		resp = append(resp, OrganizationSyncJobResponse{
			OrganizationID:    s.OrganizationID,
			OrganizationLogin: s.OrganizationLogin,
			Job:               newJobResponse(s.Job),
		})
	}
	common.WriteJSONResponse(w, resp, http.StatusAccepted)
}

// deleteUser handles DELETE /api/v1/me
//
// @Summary		Delete my account
// @Description	Tombstone the caller and their memberships in the background
// @Tags			users
// @Produce		json
// @Success		202	{object}	JobResponse
// @Failure		401	{object}	common.ErrorResponse
// @Router			/api/v1/me [delete]
func (routes *Routes) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	job, err := routes.service.DeleteUser(r.Context(), p)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newJobResponse(job), http.StatusAccepted)
}

// deleteOrganization handles DELETE /api/v1/organizations/{id}
//
// @Summary		Delete organization
// @Description	Tombstone the organization in the background. Requires the admin or owner role.
// @Tags			organizations
// @Produce		json
// @Param			id	path		int	true	"Organization ID"
// @Success		202	{object}	JobResponse
// @Failure		403	{object}	common.ErrorResponse
// @Failure		404	{object}	common.ErrorResponse
// @Router			/api/v1/organizations/{id} [delete]
func (routes *Routes) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}

	job, err := routes.service.DeleteOrganization(r.Context(), p, id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newJobResponse(job), http.StatusAccepted)
}

// triggerOrganizationSync handles POST /api/v1/organizations/{id}/sync
//
// @Summary		Synchronize organization
// @Tags			sync
// @Produce		json
// @Param			id	path		int	true	"Organization ID"
// @Success		202	{object}	JobResponse
// @Failure		404	{object}	common.ErrorResponse
// @Router			/api/v1/organizations/{id}/sync [post]
func (routes *Routes) triggerOrganizationSync(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}

	job, err := routes.service.TriggerOrganizationSync(r.Context(), p, id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newJobResponse(job), http.StatusAccepted)
}

// triggerRepositorySync handles POST /api/v1/repositories/{id}/sync
//
// @Summary		Synchronize repository
// @Tags			sync
// @Produce		json
// @Param			id	path		int	true	"Repository ID"
// @Success		202	{object}	JobResponse
// @Failure		404	{object}	common.ErrorResponse
// @Router			/api/v1/repositories/{id}/sync [post]
func (routes *Routes) triggerRepositorySync(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}

	job, err := routes.service.TriggerRepositorySync(r.Context(), p, id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newJobResponse(job), http.StatusAccepted)
}

// listSyncStatus handles GET /api/v1/organizations/{id}/sync-status
//
// @Summary		Repository sync status
// @Tags			sync
// @Produce		json
// @Param			id	path		int	true	"Organization ID"
// @Success		200	{array}		SyncStatusResponse
// @Router			/api/v1/organizations/{id}/sync-status [get]
func (routes *Routes) listSyncStatus(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}

	statuses, err := routes.service.ListRepositorySyncStatus(r.Context(), p, id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	resp := make([]SyncStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, newSyncStatusResponse(s))
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// pullRequestFeed handles GET /api/v1/organizations/{id}/pull-requests
//
// @Summary		Pull request feed
// @Tags			feeds
// @Produce		json
// @Param			id		path		int		true	"Organization ID"
// @Param			cursor	query		string	false	"Cursor from a previous page"
// @Param			limit	query		int		false	"Page size"
// @Success		200		{object}	PageResponse[PullRequestResponse]
// @Router			/api/v1/organizations/{id}/pull-requests [get]
func (routes *Routes) pullRequestFeed(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}
	opts, ok := feedOptions(w, r)
	if !ok {
		return
	}

	page, err := routes.service.PullRequestFeed(r.Context(), p, id, opts...)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, mapPage(page, newPullRequestResponse), http.StatusOK)
}

// commitFeed handles GET /api/v1/organizations/{id}/commits
//
// @Summary		Commit feed
// @Tags			feeds
// @Produce		json
// @Param			id		path		int		true	"Organization ID"
// @Param			cursor	query		string	false	"Cursor from a previous page"
// @Param			limit	query		int		false	"Page size"
// @Success		200		{object}	PageResponse[CommitResponse]
// @Router			/api/v1/organizations/{id}/commits [get]
func (routes *Routes) commitFeed(w http.ResponseWriter, r *http.Request) {
	p, id, ok := orgRequest(w, r)
	if !ok {
		return
	}
	opts, ok := feedOptions(w, r)
	if !ok {
		return
	}

	page, err := routes.service.CommitFeed(r.Context(), p, id, opts...)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, mapPage(page, newCommitResponse), http.StatusOK)
}

// feedOptions parses the cursor and limit query parameters.
func feedOptions(w http.ResponseWriter, r *http.Request) ([]service.Option[service.FeedOptions], bool) {
	query := r.URL.Query()

	var opts []service.Option[service.FeedOptions]
	if cursor := query.Get("cursor"); cursor != "" {
		opts = append(opts, service.WithCursor(cursor))
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			common.WriteErrorResponse(w, "Invalid limit parameter: must be an integer", http.StatusBadRequest)
			return nil, false
		}
		opts = append(opts, service.WithLimit(limit))
	}
	return opts, true
}

// getJob handles GET /api/v1/jobs/{id}
//
// @Summary		Get job
// @Tags			jobs
// @Produce		json
// @Param			id	path		string	true	"Job ID"
// @Success		200	{object}	JobResponse
// @Failure		404	{object}	common.ErrorResponse
// @Router			/api/v1/jobs/{id} [get]
func (routes *Routes) getJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}
	id, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := routes.service.GetJob(r.Context(), id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, newJobResponse(job), http.StatusOK)
}
