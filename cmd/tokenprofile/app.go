package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
	"github.com/MRamiBalles/tokenprofile/internal/domain/profile"
	"github.com/MRamiBalles/tokenprofile/internal/domain/rules"
	"github.com/MRamiBalles/tokenprofile/internal/engine"
	"github.com/MRamiBalles/tokenprofile/internal/events"
	"github.com/MRamiBalles/tokenprofile/internal/infra/cache"
	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
	"github.com/MRamiBalles/tokenprofile/internal/network"
	"github.com/MRamiBalles/tokenprofile/internal/platform/config"
	"github.com/MRamiBalles/tokenprofile/internal/platform/logger"
	"github.com/MRamiBalles/tokenprofile/internal/platform/metrics"
	"github.com/MRamiBalles/tokenprofile/internal/store"
	"github.com/MRamiBalles/tokenprofile/internal/tags"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg     config.Config
	world   *config.World
	log     *logger.Logger
	metrics *metrics.Collector

	db        *sql.DB
	worldRepo *storage.SQLiteWorldRepository
	eventRepo *storage.SQLiteEventRepository
	flags     storage.FlagStore

	eventLog *events.EventLog
	store    *store.Store
	engine   *engine.Engine
	service  *network.Service
}

func newApp(cfg config.Config) (*app, error) {
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Development: cfg.LogDev})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	world, err := config.LoadWorld(cfg.WorldPath)
	if err != nil {
		return nil, err
	}
	settings := world.Settings

	log.Info("Initializing SQLite database", logger.String("path", cfg.DBPath))
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	flags, err := cache.NewFlagCache(storage.NewSQLiteFlagStore(db), cfg.CacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	m := metrics.Get()
	eventRepo := storage.NewSQLiteEventRepository(db)
	eventLog := events.NewEventLog(storage.NewEventPersister(eventRepo))

	st := store.New(flags,
		store.WithEventLog(eventLog),
		store.WithLogger(log),
		store.WithMetrics(m),
		store.WithRoleGate(settings),
	)

	matcher := tags.NewMatcher(settings).
		RegisterTags(tags.NewFlagTagProvider()).
		RegisterChannels(tags.NewVisionChannelProvider(settings.VisionChannels))

	var evalOpts []rules.Option
	if cfg.DebugVisibility {
		evalOpts = append(evalOpts, rules.WithTracer(func(subject *entity.Entity, p *profile.Paragraph, viewer *entity.Entity, reason string) {
			viewerID := ""
			if viewer != nil {
				viewerID = viewer.ID
			}
			log.Debug("paragraph hidden",
				logger.String("subject", subject.ID),
				logger.String("paragraph", p.ID),
				logger.String("viewer", viewerID),
				logger.String("reason", reason),
			)
		}))
	}
	en := engine.NewEngine(st, rules.NewEvaluator(settings, matcher, evalOpts...), settings,
		engine.WithLogger(log), engine.WithMetrics(m))

	worldRepo := storage.NewSQLiteWorldRepository(db)
	return &app{
		cfg:       cfg,
		world:     world,
		log:       log,
		metrics:   m,
		db:        db,
		worldRepo: worldRepo,
		eventRepo: eventRepo,
		flags:     flags,
		eventLog:  eventLog,
		store:     st,
		engine:    en,
		service:   network.NewService(worldRepo, st, en),
	}, nil
}

func (a *app) Close() error {
	_ = a.log.Sync()
	return a.db.Close()
}

// seedWorld upserts the world's users and entities. Seeded flags are written
// to entities whose document is empty, or to every entity when force is set.
func (a *app) seedWorld(ctx context.Context, force bool) error {
	for _, us := range a.world.Users {
		if err := a.worldRepo.UpsertUser(ctx, us.User()); err != nil {
			return err
		}
	}
	for _, es := range a.world.Entities {
		if err := a.worldRepo.UpsertEntity(ctx, es.Entity()); err != nil {
			return err
		}
		doc, err := es.FlagDocument()
		if err != nil {
			return err
		}
		current, err := a.flags.Document(ctx, es.ID)
		if err != nil {
			return err
		}
		if !force && len(gjson.ParseBytes(current).Map()) > 0 {
			continue
		}
		var setErr error
		gjson.ParseBytes(doc).ForEach(func(key, value gjson.Result) bool {
			setErr = a.flags.Set(ctx, es.ID, key.String(), []byte(value.Raw))
			return setErr == nil
		})
		if setErr != nil {
			return fmt.Errorf("failed to seed flags of %s: %w", es.ID, setErr)
		}
	}
	a.log.Info("World seeded",
		logger.Int("users", len(a.world.Users)),
		logger.Int("entities", len(a.world.Entities)),
	)
	return nil
}
