package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/auth"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/media"
	"github.com/matheus3301/chatsync/internal/mongostore"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	Debug       bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideSettings,
			provideStore,
			provideBackend,
			provideProfiles,
			provideAuth,
			provideNotifier,
			provideImageHost,
			provideStreamSync,
			provideListSync,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if p.Debug {
		level = zapcore.DebugLevel
	}
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName, level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	var held *lock.HeldError
	if errors.As(err, &held) {
		logger.Error("profile already served", zap.Int("pid", held.PID), zap.Time("since", held.Since))
	}
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideSettings(logger *zap.Logger) (*config.Settings, error) {
	s, err := config.OpenSettings(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	cfg := s.Snapshot()
	logger.Info("settings loaded",
		zap.String("backend", cfg.Backend.Kind),
		zap.Bool("notifications", cfg.Notifications),
		zap.Duration("session_duration", cfg.SessionDuration.Duration))
	return s, nil
}

// provideStore opens the profile's SQLite database. It always exists: it
// holds accounts and the saved sign-in even when documents live in MongoDB.
func provideStore(lc fx.Lifecycle, p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	lc.Append(fx.StopHook(db.Close))
	return db, nil
}

type backendOut struct {
	fx.Out

	Backend   intsync.Backend
	Directory profile.Directory
	Writer    api.ProfileWriter
	Searcher  api.MessageSearcher
	Stats     api.StoreStats
}

func provideBackend(lc fx.Lifecycle, settings *config.Settings, db *store.DB, logger *zap.Logger) (backendOut, error) {
	cfg := settings.Snapshot().Backend
	if cfg.Kind != "mongo" {
		return backendOut{Backend: db, Directory: db, Writer: db, Searcher: db, Stats: db}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return backendOut{}, err
	}
	lc.Append(fx.StopHook(ms.Close))
	return backendOut{Backend: ms, Directory: ms, Writer: ms}, nil
}

func provideProfiles(dir profile.Directory) *profile.Cache {
	return profile.NewCache(dir)
}

func provideAuth(db *store.DB, b *bus.Bus, settings *config.Settings, logger *zap.Logger) *auth.Provider {
	return auth.NewProvider(db, b, settings.SessionDuration(), logger)
}

// provideNotifier always shows alerts locally and also pushes them to Kafka
// when brokers are configured. The notifications setting gates both.
func provideNotifier(lc fx.Lifecycle, settings *config.Settings, b *bus.Bus, authp *auth.Provider, logger *zap.Logger) intsync.Notifier {
	fan := notify.Fanout{notify.NewBus(b)}

	push := settings.Snapshot().Push
	if len(push.KafkaBrokers) > 0 {
		recipient := func() string {
			p, err := authp.Current(context.Background())
			if err != nil || p == nil {
				return ""
			}
			return p.UserID
		}
		k := notify.NewKafka(push.KafkaBrokers, push.KafkaTopic, recipient, logger)
		lc.Append(fx.StopHook(k.Close))
		fan = append(fan, k)
		logger.Info("push notifications enabled", zap.Strings("brokers", push.KafkaBrokers), zap.String("topic", push.KafkaTopic))
	}

	return &notify.Gate{Next: fan, Enabled: settings.NotificationsEnabled}
}

func provideImageHost(p Params, settings *config.Settings, logger *zap.Logger) (intsync.ImageUploader, error) {
	cfg := settings.Snapshot().Media
	limits := media.Limits{MaxBytes: cfg.MaxBytes, MaxDimension: cfg.MaxDimension}

	if cfg.S3Bucket == "" {
		return media.NewHost(&media.FileUploader{Dir: session.MediaDir(p.ProfileName)}, limits, logger), nil
	}
	up, err := media.NewS3Uploader(context.Background(), cfg.S3Region, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("s3 uploader: %w", err)
	}
	logger.Info("images hosted on s3", zap.String("bucket", cfg.S3Bucket), zap.String("region", cfg.S3Region))
	return media.NewHost(up, limits, logger), nil
}

func provideStreamSync(backend intsync.Backend, profiles *profile.Cache, notifier intsync.Notifier, images intsync.ImageUploader, b *bus.Bus, logger *zap.Logger) *intsync.StreamSync {
	return intsync.NewStreamSync(backend, profiles, notifier, images, b, logger)
}

func provideListSync(backend intsync.Backend, profiles *profile.Cache, notifier intsync.Notifier, stream *intsync.StreamSync, b *bus.Bus, logger *zap.Logger) *intsync.ListSync {
	return intsync.NewListSync(backend, profiles, notifier, stream, b, logger)
}

type serviceIn struct {
	fx.In

	Params   Params
	Auth     *auth.Provider
	List     *intsync.ListSync
	Stream   *intsync.StreamSync
	Machine  *status.Machine
	Settings *config.Settings
	Profiles *profile.Cache
	Writer   api.ProfileWriter
	Searcher api.MessageSearcher
	Stats    api.StoreStats
	Bus      *bus.Bus
	Logger   *zap.Logger
}

func provideService(in serviceIn) *api.Service {
	return api.NewService(api.Deps{
		ProfileName: in.Params.ProfileName,
		Auth:        in.Auth,
		List:        in.List,
		Stream:      in.Stream,
		Machine:     in.Machine,
		Settings:    in.Settings,
		Profiles:    in.Profiles,
		Directory:   in.Writer,
		Searcher:    in.Searcher,
		Stats:       in.Stats,
		Bus:         in.Bus,
		Logger:      in.Logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, svc *api.Service, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go trackReadiness(ctx, b, machine, logger)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := svc.Resume(ctx); err != nil {
				logger.Error("resume failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			svc.Shutdown()
			srv.Stop(stopCtx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
