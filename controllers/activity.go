package controllers

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"

	"github.com/pumpdev/pumphouse/middleware"
	"github.com/pumpdev/pumphouse/models"
	"github.com/pumpdev/pumphouse/policy"
	"github.com/pumpdev/pumphouse/store"
)

// allowedMethods is what the activity resource advertises on OPTIONS.
const allowedMethods = "OPTIONS, GET, PUT, DELETE"

// Activity is the controller logic for a single stored activity,
// addressed by the activity's own id URL
type Activity struct {
	Scheme, Domain string
	Store          store.Store
}

// NewActivity creates a new Activity controller
func NewActivity(scheme, domain string, st store.Store) Activity {
	return Activity{
		Scheme: scheme,
		Domain: domain,
		Store:  st,
	}
}

// resourceID rebuilds the stored activity id from the request path. The
// id doubles as the resource's canonical URL.
func (a Activity) resourceID(r *http.Request) string {
	return a.routeURL("/api/activity/" + chi.URLParam(r, "activityID")).String()
}

func (a Activity) routeURL(path string) *url.URL {
	return &url.URL{
		Scheme: a.Scheme,
		Host:   a.Domain,
		Path:   path,
	}
}

// Options reports the allowed method set. It succeeds regardless of
// authentication state.
func (a Activity) Options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", allowedMethods)
	w.WriteHeader(http.StatusOK)
}

// Get serves the stored activity. Any authenticated actor may read,
// owner or not.
func (a Activity) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())

	act, err := a.Store.Get(r.Context(), a.resourceID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := policy.Authorize(actor, policy.Read, act.Actor.ID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, act)
}

// Put merges the request body into the stored activity. Only the owning
// actor may update; the identity fields stay pinned to their stored
// values whatever the body says.
func (a Activity) Put(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())
	id := a.resourceID(r)

	existing, err := a.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := policy.Authorize(actor, policy.Update, existing.Actor.ID); err != nil {
		writeError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxActivitySz)
	bodyBytes, err := ioutil.ReadAll(body)
	if err != nil {
		errorResponse(w, r, http.StatusNotAcceptable, errors.New("could not read request body"))
		return
	}

	var patch models.Activity
	err = json.Unmarshal(bodyBytes, &patch)
	if err != nil {
		errorResponse(w, r, http.StatusBadRequest, errors.New("incorrect json request format"))
		return
	}
	delete(patch.Extra, "@context")

	updated, err := a.Store.Replace(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, updated)
}

// Delete removes the stored activity. Only the owning actor may delete;
// success is a plain confirmation, not the deleted object.
func (a Activity) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())
	id := a.resourceID(r)

	existing, err := a.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := policy.Authorize(actor, policy.Delete, existing.Actor.ID); err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.Store.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, "Deleted")
}
