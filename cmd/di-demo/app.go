package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dozm/di/v2"
	"github.com/dozm/di/v2/httpscope"
)

type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// database closes the connection pool when the container is disposed.
type database struct {
	*gorm.DB
}

func (d *database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type dsn string

func openDatabase(source dsn, logger *zap.Logger) (*database, error) {
	db, err := gorm.Open(sqlite.Open(string(source)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Note{}); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}

	logger.Info("database opened", zap.String("dsn", string(source)))
	return &database{DB: db}, nil
}

type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item *T) error
}

type gormRepository[T any] struct {
	db *gorm.DB
}

func newGormRepository[T any](db *database) *gormRepository[T] {
	return &gormRepository[T]{db: db.Session(&gorm.Session{})}
}

func (r *gormRepository[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	err := r.db.WithContext(ctx).Find(&items).Error
	return items, err
}

func (r *gormRepository[T]) Create(ctx context.Context, item *T) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// requestLogger is the logger of one request scope.
type requestLogger struct {
	*zap.Logger
	started time.Time
}

func newRequestLogger(logger *zap.Logger) *requestLogger {
	return &requestLogger{Logger: logger.Named("request"), started: time.Now()}
}

func (l *requestLogger) Dispose() {
	l.Debug("request scope disposed", zap.Duration("elapsed", time.Since(l.started)))
}

type noteService struct {
	repo Repository[Note]
	log  *requestLogger
}

func newNoteService(repo Repository[Note], log *requestLogger) *noteService {
	return &noteService{repo: repo, log: log}
}

func (s *noteService) Add(ctx context.Context, text string) (*Note, error) {
	note := &Note{Text: text}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}
	s.log.Info("note added", zap.Uint("id", note.ID))
	return note, nil
}

func newContainer(opts di.Options, logger *zap.Logger, source dsn) (di.Container, error) {
	b := di.Builder()
	b.ConfigureOptions(func(o *di.Options) { *o = opts })

	di.AddInstance[*zap.Logger](b, logger)
	di.AddInstance[dsn](b, source)
	di.AddSingleton[*database](b, openDatabase)
	di.AddOpenGeneric[Repository[any], *gormRepository[any]](b, di.Lifetime_Scoped,
		di.Close[Repository[Note]](newGormRepository[Note]))
	di.AddScoped[*requestLogger](b, newRequestLogger)
	di.AddScoped[*noteService](b, newNoteService)

	return b.TryBuild()
}

func newRouter(c di.Container, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpscope.Middleware(di.Get[di.ScopeFactory](c),
		httpscope.OnDisposeError(func(r *http.Request, err error) {
			logger.Error("request scope dispose failed", zap.String("path", r.URL.Path), zap.Error(err))
		})))

	r.Get("/notes", listNotes)
	r.Post("/notes", addNote)
	return r
}

func listNotes(w http.ResponseWriter, r *http.Request) {
	repo, err := di.TryGet[Repository[Note]](httpscope.FromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	notes, err := repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func addNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	svc, err := di.TryGet[*noteService](httpscope.FromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	note, err := svc.Add(r.Context(), body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
