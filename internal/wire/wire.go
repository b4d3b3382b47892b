// Package wire assembles the gradebook application. App is the one context
// object holding the store, the encryption key and the services; it is built
// once per process and passed down instead of living in package globals.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	cliadapter "github.com/example/gradebook/internal/adapters/cli"
	"github.com/example/gradebook/internal/adapters/remote"
	"github.com/example/gradebook/internal/adapters/sqlite"
	"github.com/example/gradebook/internal/app"
	"github.com/example/gradebook/internal/config"
	"github.com/example/gradebook/internal/core/credential"
	"github.com/example/gradebook/internal/core/grading"
	"github.com/example/gradebook/internal/core/outbox"
	"github.com/example/gradebook/internal/ctxutil"
	"github.com/example/gradebook/internal/db"
	"github.com/example/gradebook/internal/ipc"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// settingSessionToken holds the encrypted token of the CLI's signed-in session.
const settingSessionToken = "cli.session_token"

// Options tunes New. The zero value is production behaviour.
type Options struct {
	Now           func() time.Time
	RemoteOptions []remote.Option
}

// App holds everything one process needs.
type App struct {
	Settings  *config.Settings
	Config    *config.Config
	Recovery  *config.Recovery
	DB        *sql.DB
	Logger    *zap.Logger
	Validator *validation.Validator

	Auth       primary.AuthService
	Sections   primary.SectionService
	Students   primary.StudentService
	Subjects   primary.SubjectService
	GradeItems primary.GradeItemService
	Scores     primary.ScoreService
	Grades     primary.GradeService
	Sync       primary.SyncService

	settingsRepo *sqlite.SettingsRepository
	cipher       *credential.Cipher
}

// New bootstraps the data root, opens the store and builds the services.
func New(ctx context.Context, settings *config.Settings, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cfg, recovery, err := config.Bootstrap(settings.DataDir, now())
	if err != nil {
		return nil, err
	}
	if recovery != nil {
		logger.Warn("local store reset",
			zap.String("reason", recovery.Reason),
			zap.String("moved_to", recovery.MovedTo))
	}

	dbPath := filepath.Join(settings.DataDir, cfg.Database)
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, database, settings, logger, now, opts)
	if err != nil {
		database.Close()
		return nil, err
	}
	a.Config = cfg
	a.Recovery = recovery
	logger.Debug("gradebook ready", zap.String("database", dbPath))
	return a, nil
}

func build(ctx context.Context, database *sql.DB, settings *config.Settings, logger *zap.Logger, now func() time.Time, opts Options) (*App, error) {
	key, created, err := db.EnsureEncryptionKey(ctx, database)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("generated a new encryption key")
	}
	cipher, err := credential.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gradingCfg, err := settings.GradingConfig()
	if err != nil {
		return nil, err
	}
	engine, err := grading.NewEngine(gradingCfg)
	if err != nil {
		return nil, err
	}

	v := validation.New()

	// Create repository adapters (secondary ports) with the injected DB
	sectionRepo := sqlite.NewSectionRepository(database)
	studentRepo := sqlite.NewStudentRepository(database)
	subjectRepo := sqlite.NewSubjectRepository(database)
	itemRepo := sqlite.NewGradeItemRepository(database)
	scoreRepo := sqlite.NewScoreRepository(database)
	gradeRepo := sqlite.NewQuarterlyGradeRepository(database)
	settingsRepo := sqlite.NewSettingsRepository(database)

	remoteOpts := append([]remote.Option{
		remote.WithPageSize(settings.RemotePageSize),
		remote.WithTimeout(settings.RemoteTimeout),
		remote.WithLogger(logger.Named("remote")),
	}, opts.RemoteOptions...)

	a := &App{
		Settings:  settings,
		DB:        database,
		Logger:    logger,
		Validator: v,

		Auth: app.NewAuthService(
			sqlite.NewUserRepository(database),
			sqlite.NewSessionRepository(database),
			sqlite.NewAuditRepository(database),
			cipher, v,
			app.AuthConfig{SessionTTL: settings.SessionTTL, Now: now, Logger: logger.Named("auth")},
		),
		Sections:   app.NewSectionService(sectionRepo, v),
		Students:   app.NewStudentService(studentRepo, sectionRepo, v),
		Subjects:   app.NewSubjectService(subjectRepo, sectionRepo, v),
		GradeItems: app.NewGradeItemService(itemRepo, subjectRepo, v),
		Scores:     app.NewScoreService(scoreRepo, studentRepo, itemRepo, v, logger.Named("scores")),
		Grades:     app.NewGradeService(itemRepo, scoreRepo, gradeRepo, studentRepo, subjectRepo, engine, v),
		Sync: app.NewSyncCoordinator(
			sqlite.NewOutboxRepository(database),
			sqlite.NewSnapshotRepository(database),
			sqlite.NewSyncHistoryRepository(database),
			settingsRepo,
			remote.Factory(remoteOpts...),
			cipher, v,
			app.SyncConfig{
				BaseURL: settings.RemoteBaseURL,
				Token:   settings.RemoteToken,
				Backoff: outbox.BackoffPolicy{
					Initial:    settings.BackoffInitial,
					Max:        settings.BackoffMax,
					Multiplier: settings.BackoffMultiplier,
				},
				SeedConcurrency: settings.SeedConcurrency,
				Now:             now,
				Logger:          logger.Named("sync"),
			},
		),

		settingsRepo: settingsRepo,
		cipher:       cipher,
	}

	if n, err := a.Auth.PurgeExpiredSessions(ctx); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Debug("purged expired sessions", zap.Int64("count", n))
	}
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.DB.Close()
}

// Services returns the services in the shape the IPC layer takes.
func (a *App) Services() ipc.Services {
	return ipc.Services{
		Auth:       a.Auth,
		Sections:   a.Sections,
		Students:   a.Students,
		Subjects:   a.Subjects,
		GradeItems: a.GradeItems,
		Scores:     a.Scores,
		Grades:     a.Grades,
		Sync:       a.Sync,
	}
}

// Dispatcher returns an IPC dispatcher over the services.
func (a *App) Dispatcher() *ipc.Dispatcher {
	return ipc.NewDispatcher(a.Services(), a.Validator, a.Logger.Named("ipc"))
}

// ============================================================================
// CLI session
// ============================================================================

// SaveSession remembers token as the CLI's signed-in session.
func (a *App) SaveSession(ctx context.Context, token string) error {
	sealed, err := a.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}
	return a.settingsRepo.Set(ctx, settingSessionToken, sealed)
}

// SessionToken returns the CLI's remembered session token, or "".
func (a *App) SessionToken(ctx context.Context) (string, error) {
	sealed, err := a.settingsRepo.Get(ctx, settingSessionToken)
	if errors.Is(err, secondary.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	token, err := a.cipher.Decrypt(sealed)
	if errors.Is(err, credential.ErrUndecryptable) {
		return "", nil
	}
	return token, err
}

// ClearSession forgets the CLI's session.
func (a *App) ClearSession(ctx context.Context) error {
	return a.settingsRepo.Delete(ctx, settingSessionToken)
}

// WithSession attaches the signed-in user, if any, to ctx. A remembered
// session that has expired is forgotten.
func (a *App) WithSession(ctx context.Context) (context.Context, error) {
	token, err := a.SessionToken(ctx)
	if err != nil || token == "" {
		return ctx, err
	}
	session, err := a.Auth.ValidateSession(ctx, token)
	if err != nil {
		return ctx, err
	}
	if session == nil {
		return ctx, a.ClearSession(ctx)
	}
	return ctxutil.WithActorID(ctx, session.UserID), nil
}

// ============================================================================
// CLI adapters
// ============================================================================

// RosterAdapter returns a roster adapter writing to out.
func (a *App) RosterAdapter(out io.Writer) *cliadapter.RosterAdapter {
	return cliadapter.NewRosterAdapter(a.Sections, a.Students, a.Subjects, out)
}

// GradeAdapter returns a grade adapter writing to out.
func (a *App) GradeAdapter(out io.Writer) *cliadapter.GradeAdapter {
	return cliadapter.NewGradeAdapter(a.GradeItems, a.Scores, a.Grades, out)
}

// SyncAdapter returns a sync adapter writing to out.
func (a *App) SyncAdapter(out io.Writer) *cliadapter.SyncAdapter {
	return cliadapter.NewSyncAdapter(a.Sync, out)
}

// AuthAdapter returns an auth adapter writing to out.
func (a *App) AuthAdapter(out io.Writer) *cliadapter.AuthAdapter {
	return cliadapter.NewAuthAdapter(a.Auth, out)
}
