package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/glasslink/faceid/internal/config"
	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/extract"
	"github.com/glasslink/faceid/internal/imageproc"
	"github.com/glasslink/faceid/internal/store"
	"github.com/glasslink/faceid/internal/store/mariadb"
	"github.com/glasslink/faceid/internal/store/postgres"
)

// buildStore selects the identity store backend: DATABASE_URL wins, then
// MARIADB_DSN, then the JSON file store. The returned cleanup is safe to call
// once.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating PostgreSQL schema: %w", err)
		}
		log.Println("Using PostgreSQL identity store")
		return postgres.NewEnrollmentStore(pool), func() { pool.Close() }, nil

	case cfg.MariaDB.DSN != "":
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MariaDB: %w", err)
		}
		if err := pool.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("preparing MariaDB schema: %w", err)
		}
		log.Println("Using MariaDB identity store")
		return mariadb.NewEnrollmentStore(pool), func() { pool.Close() }, nil

	default:
		fileStore, err := store.NewFileStore(cfg.Store.EncodingsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening encodings file: %w", err)
		}
		log.Printf("Using file identity store at %s", cfg.Store.EncodingsPath)
		return fileStore, func() {}, nil
	}
}

// buildExtractor loads the dlib models. When loading fails the service still
// starts with a stub that reports the outage on every call, so operators see
// 503s instead of a crash loop.
func buildExtractor(cfg *config.Config) extract.Extractor {
	ex, err := extract.NewDlib(cfg.Extractor.ModelsDir)
	if err != nil {
		log.Printf("Warning: face models unavailable: %v", err)
		return extract.Unavailable{Reason: fmt.Sprintf("models not loaded from %s", cfg.Extractor.ModelsDir)}
	}
	return ex
}

// buildEngine assembles the matching engine from config.
func buildEngine(cfg *config.Config, ex extract.Extractor, st store.Store, opts ...engine.Option) *engine.Engine {
	quality := engine.QualityConfig{
		MinFacePx:              cfg.Defaults.Quality.MinFacePx,
		EnrollBlurThreshold:    cfg.Defaults.Quality.EnrollBlurThreshold,
		RecognizeBlurThreshold: cfg.Defaults.Quality.RecognizeBlurThreshold,
	}
	limits := imageproc.Limits{
		MaxBytes:     cfg.Defaults.Image.MaxBytes,
		MaxDimension: cfg.Defaults.Image.MaxDimension,
	}
	opts = append(opts, engine.WithImageLimits(limits))
	return engine.New(ex, st, cfg.Matching.Tolerance, quality, opts...)
}

// buildPopulationIndex preloads the in-memory nearest-neighbor index from
// the store. Returns nil when the population cannot be listed; the engine
// then falls back to exact scans.
func buildPopulationIndex(ctx context.Context, st store.Store) *store.PopulationIndex {
	recs, err := st.List(ctx)
	if err != nil {
		log.Printf("Warning: could not preload population index: %v", err)
		return nil
	}
	idx := store.NewPopulationIndex()
	for _, rec := range recs {
		idx.Add(rec.UserID, rec.Vector)
	}
	log.Printf("Population index ready with %d identities", idx.Len())
	return idx
}
