package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gofrs/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/pumpdev/pumphouse/controllers"
	"github.com/pumpdev/pumphouse/credentials"
	mware "github.com/pumpdev/pumphouse/middleware"
	"github.com/pumpdev/pumphouse/store"
)

func main() {
	configPath := flag.String("config", "pumphouse.toml", "path to the config file")
	flag.Parse()

	conf, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	ctx := context.Background()

	db, err := openDB(conf.Server.Database)
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}

	credStore := credentials.NewDBStore(conf.Server.Scheme, conf.Server.Hostname, db)
	if err := credStore.Init(ctx); err != nil {
		log.Fatalf("could not initialize credential store: %v", err)
	}

	actStore := store.NewDBStore(newActivityID(conf.Server.Scheme, conf.Server.Hostname), db)
	if err := actStore.Init(ctx); err != nil {
		log.Fatalf("could not initialize activity store: %v", err)
	}

	feed := controllers.NewFeed(actStore, http.DefaultClient, conf.Server.StrictJSONLD)
	activity := controllers.NewActivity(conf.Server.Scheme, conf.Server.Hostname, actStore)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mware.Metrics)
		r.Use(mware.Authenticate(credStore))

		r.Post("/api/user/{nickname}/feed", feed.ServeHTTP)
		r.Route("/api/activity/{activityID}", func(r chi.Router) {
			r.Options("/", activity.Options)
			r.Get("/", activity.Get)
			r.Put("/", activity.Put)
			r.Delete("/", activity.Delete)
		})
	})

	err = http.ListenAndServe(conf.Server.Addr, r)
	if err != nil {
		panic(err)
	}
}

// newActivityID mints activity ids that double as the resource's
// canonical URL on this server.
func newActivityID(scheme, domain string) store.IDFunc {
	return func() (string, error) {
		id, err := uuid.NewV4()
		if err != nil {
			return "", err
		}

		u := url.URL{
			Scheme: scheme,
			Host:   domain,
			Path:   "/api/activity/" + id.String(),
		}
		return u.String(), nil
	}
}

func openDB(path string) (*bun.DB, error) {
	if path == "" {
		path = ":memory:?cache=shared"
	}

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if strings.Contains(path, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
