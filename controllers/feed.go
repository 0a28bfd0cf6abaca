package controllers

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/piprate/json-gold/ld"

	"github.com/pumpdev/pumphouse/middleware"
	"github.com/pumpdev/pumphouse/models"
	"github.com/pumpdev/pumphouse/policy"
	"github.com/pumpdev/pumphouse/store"
)

// Feed is a controller that accepts new activities posted to a user's
// feed endpoint
type Feed struct {
	loader *ld.RFC7324CachingDocumentLoader
	proc   *ld.JsonLdProcessor
	opts   *ld.JsonLdOptions
	store  store.Store
	strict bool
}

// NewFeed creates a new Feed controller. When strict is set, payloads
// carrying an @context must expand cleanly as JSON-LD before they are
// accepted.
func NewFeed(st store.Store, client *http.Client, strict bool) *Feed {
	loader := ld.NewRFC7324CachingDocumentLoader(client)
	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = loader

	return &Feed{
		loader: loader,
		proc:   ld.NewJsonLdProcessor(),
		opts:   opts,
		store:  st,
		strict: strict,
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || actor.IsAnonymous() {
		errorResponse(w, r, http.StatusUnauthorized, errors.New("credentials required"))
		return
	}

	// Only the feed's own actor may post to it.
	nickname := chi.URLParam(r, "nickname")
	if nickname != actor.Nickname {
		errorResponse(w, r, http.StatusForbidden, policy.ErrDenied)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxActivitySz)
	bodyBytes, err := ioutil.ReadAll(body)
	if err != nil {
		errorResponse(w, r, http.StatusNotAcceptable, errors.New("could not read request body"))
		return
	}

	var raw map[string]interface{}
	err = json.Unmarshal(bodyBytes, &raw)
	if err != nil {
		errorResponse(w, r, http.StatusBadRequest, errors.New("incorrect json request format"))
		return
	}

	if f.strict {
		if _, hasContext := raw["@context"]; hasContext {
			_, err = f.proc.Expand(raw, f.opts)
			if err != nil {
				errorResponse(w, r, http.StatusUnsupportedMediaType, err)
				return
			}
		}
	}

	var act models.Activity
	err = json.Unmarshal(bodyBytes, &act)
	if err != nil {
		errorResponse(w, r, http.StatusBadRequest, errors.New("incorrect activity format"))
		return
	}
	delete(act.Extra, "@context")

	// The server owns the derived fields: drop whatever the client sent
	// and bind the activity to the authenticated caller.
	act.ID = ""
	act.Published = ""
	act.Updated = ""
	act.Actor = models.Actor{
		ID:          actor.ID,
		ObjectType:  "person",
		DisplayName: actor.DisplayName,
	}

	created, err := f.store.Create(r.Context(), act)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, created)
}
