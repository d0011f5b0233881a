// Package app wires configuration into the session, store and workers shared
// by the kiosk server and the terminal runner.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/bridge"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/database"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/repository"
	"github.com/stemsi/exstem-rmib/internal/rmib"
	"github.com/stemsi/exstem-rmib/internal/worker"
)

// Catalog returns the configured category catalog.
func Catalog(cfg *config.Config) ([]model.Category, error) {
	if cfg.CategoriesFile == "" {
		return model.DefaultCategories, nil
	}
	return model.LoadCategories(cfg.CategoriesFile)
}

// NewSession builds an unstarted session for the configured mode.
func NewSession(cfg *config.Config, categories []model.Category) (*rmib.Session, error) {
	mode, err := rmib.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return rmib.NewSession(mode, categories)
}

// Stores holds the opened progress store. Redis is nil in http mode.
type Stores struct {
	Store bridge.Store
	Redis *redis.Client
}

// Close releases the Redis connection, if any.
func (s *Stores) Close() {
	if s.Redis != nil {
		s.Redis.Close()
	}
}

// OpenStore opens the store selected by cfg.Store.
func OpenStore(ctx context.Context, cfg *config.Config, categories []model.Category, log zerolog.Logger) (*Stores, error) {
	switch cfg.Store {
	case "redis":
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		repo := repository.NewProgressRepository(rdb, cfg.StudentID, categories, cfg.ResultPath())
		return &Stores{Store: repo, Redis: rdb}, nil

	case "http", "":
		store, err := newHTTPStore(cfg, cfg.StudentID, log)
		if err != nil {
			return nil, err
		}
		return &Stores{Store: store}, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// BackendStores returns the factory the sync worker uses to reach the school
// backend for each queued student.
func BackendStores(cfg *config.Config, log zerolog.Logger) worker.StoreFactory {
	return func(ctx context.Context, studentID int) (bridge.Store, error) {
		store, err := newHTTPStore(cfg, studentID, log)
		if err != nil {
			return nil, err
		}
		if err := store.RefreshTokens(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
}

func newHTTPStore(cfg *config.Config, studentID int, log zerolog.Logger) (*bridge.HTTPStore, error) {
	return bridge.NewHTTPStore(
		cfg.StudentURL(studentID),
		bridge.WithTimeout(cfg.RequestTimeout),
		bridge.WithLogger(log.With().Int("student_id", studentID).Logger()),
	)
}
