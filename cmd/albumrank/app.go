package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/albums"
	"github.com/justestif/albumrank/internal/artwork"
	"github.com/justestif/albumrank/internal/catalog"
	"github.com/justestif/albumrank/internal/compare"
	"github.com/justestif/albumrank/internal/config"
	"github.com/justestif/albumrank/internal/db"
	"github.com/justestif/albumrank/internal/elo"
	"github.com/justestif/albumrank/internal/lists"
	"github.com/justestif/albumrank/internal/logging"
	"github.com/justestif/albumrank/internal/memstore"
	"github.com/justestif/albumrank/internal/metrics"
	"github.com/justestif/albumrank/internal/ranking"
	"github.com/justestif/albumrank/internal/share"
	"github.com/justestif/albumrank/internal/web"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db    *db.DB // nil for the memory store
	store *db.Store

	art        artwork.Store
	artHandler http.Handler // set for the directory store
	catalogs   *catalog.Registry

	lists   *lists.Service
	ranking *ranking.Service
	compare *compare.Service
	share   *share.Service
	albums  *albums.Service
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openArtwork(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCatalogs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Store.Driver == config.StoreMemory {
		a.logger.Warn("using in-memory store; data is lost on exit")
		a.store = memstore.New().Repositories()
		return nil
	}

	database, err := db.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if a.cfg.Database.Migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return err
		}
	}
	a.db = database
	a.store = database.Store()
	return nil
}

func (a *app) openArtwork(ctx context.Context) error {
	ac := a.cfg.Artwork
	switch ac.Driver {
	case config.ArtworkMinio:
		store, err := artwork.NewMinioStore(ctx, artwork.MinioConfig{
			Endpoint:  ac.Minio.Endpoint,
			AccessKey: ac.Minio.AccessKey,
			SecretKey: ac.Minio.SecretKey,
			Bucket:    ac.Minio.Bucket,
			Region:    ac.Minio.Region,
			UseSSL:    ac.Minio.UseSSL,
			PublicURL: ac.Minio.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("opening artwork bucket: %w", err)
		}
		a.art = store
	default:
		store, err := artwork.NewDirStore(ac.Dir, ac.BaseURL)
		if err != nil {
			return fmt.Errorf("opening artwork directory: %w", err)
		}
		a.art = store
		a.artHandler = store.Handler()
	}
	return nil
}

func (a *app) openCatalogs(ctx context.Context) error {
	cc := a.cfg.Catalog
	searchers := []catalog.Searcher{
		catalog.NewCached(catalog.NewITunes(cc.Limit), cc.CacheTTL),
		catalog.NewCached(catalog.NewMusicBrainz(cc.UserAgent, cc.Limit), cc.CacheTTL),
	}

	if cc.Spotify.Enabled() {
		sp, err := catalog.NewSpotify(ctx, cc.Spotify.ClientID, cc.Spotify.ClientSecret, cc.Limit)
		if err != nil {
			return fmt.Errorf("creating spotify catalog: %w", err)
		}
		searchers = append(searchers, catalog.NewCached(sp, cc.CacheTTL))
	} else {
		a.logger.Info("spotify catalog disabled: no client credentials")
	}

	a.catalogs = catalog.NewRegistry(searchers...)
	return nil
}

func (a *app) buildServices() error {
	rc := a.cfg.Ranking
	engine, err := elo.NewEngine(rc.K, rc.Baseline)
	if err != nil {
		return fmt.Errorf("configuring rating engine: %w", err)
	}

	a.ranking = ranking.New(a.store,
		ranking.WithLogger(a.logger),
		ranking.WithMetrics(a.metrics),
	)
	a.lists = lists.New(a.store.Lists,
		lists.WithLogger(a.logger),
		lists.WithMetrics(a.metrics),
	)
	a.compare = compare.New(a.store, a.ranking.Allocator(),
		compare.WithEngine(engine),
		compare.WithNearest(rc.Nearest),
		compare.WithLogger(a.logger),
		compare.WithMetrics(a.metrics),
	)
	a.share = share.New(a.store, a.ranking, share.WithLogger(a.logger))
	a.albums = albums.New(a.store, a.ranking, a.lists, a.art,
		albums.WithCatalogs(a.catalogs),
		albums.WithFetcher(artwork.NewFetcher(a.cfg.Catalog.UserAgent)),
		albums.WithBaseline(engine.Baseline),
		albums.WithLogger(a.logger),
		albums.WithMetrics(a.metrics),
	)
	return nil
}

func (a *app) authenticator() (*web.Authenticator, error) {
	ac := a.cfg.Auth
	return web.NewAuthenticator(web.AuthConfig{
		Secret:     ac.JWTSecret,
		Issuer:     ac.Issuer,
		Audience:   ac.Audience,
		ProfileTTL: ac.ProfileTTL,
	}, a.store.Users, a.logger)
}

func (a *app) server() (*web.Server, error) {
	auth, err := a.authenticator()
	if err != nil {
		return nil, err
	}

	sc := a.cfg.Server
	opts := []web.Option{
		web.WithLogger(a.logger),
		web.WithMetrics(a.registry, a.metrics),
	}
	if a.artHandler != nil {
		opts = append(opts, web.WithArtworkHandler(a.artHandler))
	}

	return web.NewServer(web.ServerConfig{
		Addr:            sc.Addr,
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     sc.IdleTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, web.Services{
		Lists:    a.lists,
		Ranking:  a.ranking,
		Compare:  a.compare,
		Share:    a.share,
		Albums:   a.albums,
		Catalogs: a.catalogs,
		Artwork:  a.art,
	}, auth, opts...), nil
}

// Close releases the database pool and flushes the logger.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
