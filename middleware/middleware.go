package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pumpdev/pumphouse/credentials"
)

type contextKey string

const actorContextKey contextKey = "pumphouse.actor"

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor credentials.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the actor the authentication middleware
// resolved for this request.
func ActorFromContext(ctx context.Context) (credentials.Actor, bool) {
	v := ctx.Value(actorContextKey)
	if v == nil {
		return credentials.Anonymous, false
	}
	actor, ok := v.(credentials.Actor)
	return actor, ok
}

// ParseCredential extracts the four credential parts from an
// Authorization header of the OAuth parameter form. The second return
// is false when the header is absent or not an OAuth header at all.
func ParseCredential(header string) (credentials.Credential, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return credentials.Credential{}, false
	}
	if !strings.HasPrefix(strings.ToLower(header), "oauth ") {
		return credentials.Credential{}, false
	}

	params := make(map[string]string)
	for _, pair := range strings.Split(header[len("OAuth "):], ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		params[key] = value
	}

	return credentials.Credential{
		ConsumerKey:    params["oauth_consumer_key"],
		ConsumerSecret: params["oauth_consumer_secret"],
		Token:          params["oauth_token"],
		TokenSecret:    params["oauth_token_secret"],
	}, true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `OAuth realm="pumphouse"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

// Authenticate is a middleware which resolves the request's credential
// to an actor and fails the request if the credential is missing or any
// of its four parts is wrong. OPTIONS requests pass through untouched so
// the allowed method set stays discoverable without credentials.
func Authenticate(store credentials.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cred, present := ParseCredential(r.Header.Get("Authorization"))
			if !present {
				unauthorized(w, "credentials required")
				return
			}

			actor, err := store.Validate(r.Context(), cred)
			if err != nil {
				unauthorized(w, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
