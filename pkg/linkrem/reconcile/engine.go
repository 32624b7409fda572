// Package reconcile applies link and tag mutations to the database.
//
// Every mutation runs in a single transaction: a link's scalar fields and its
// tag set are committed together or not at all. Tags left without any link are
// swept after the commit; a failed sweep is logged and never undoes the edit.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrLocked   = errors.New("tag is locked")
)

// ShortcutKeyPattern is the accepted shape of a shortcut key
var ShortcutKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidationError represents a rejected input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalidator is told whenever an owner's tags may have changed
type Invalidator interface {
	InvalidateOwner(ctx context.Context, ownerID uint)
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for best-effort failures
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithInvalidator registers a cache to invalidate after each committed mutation
func WithInvalidator(i Invalidator) Option {
	return func(e *Engine) { e.invalidator = i }
}

// Engine performs transactional link, tag and session mutations
type Engine struct {
	db          *gorm.DB
	logger      *slog.Logger
	invalidator Invalidator
	tracer      trace.Tracer
}

// New creates an engine over db
func New(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/Uzaifm127/linkrem/pkg/linkrem/reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DB returns the underlying database handle
func (e *Engine) DB() *gorm.DB {
	return e.db
}

func (e *Engine) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "reconcile."+op)
}

// finish records the outcome of op on the span and in metrics.
// It returns err translated to the package's sentinel errors.
func (e *Engine) finish(span trace.Span, op string, changed bool, err error) error {
	err = translate(err)
	outcome := "unchanged"
	switch {
	case err == nil && changed:
		outcome = "changed"
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrLocked):
		outcome = "locked"
	case isValidation(err):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.Reconciliations.WithLabelValues(op, outcome).Inc()
	return err
}

func (e *Engine) invalidate(ctx context.Context, ownerID uint) {
	if e.invalidator != nil {
		e.invalidator.InvalidateOwner(ctx, ownerID)
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func isValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// normalizeURL checks that raw is an absolute URL and drops one trailing slash
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{"Invalid Name or URL"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &ValidationError{"Invalid URL"}
	}
	if len(raw) > 1 && strings.HasSuffix(raw, "/") {
		raw = raw[:len(raw)-1]
	}
	return raw, nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &ValidationError{"Invalid Name or URL"}
	}
	if len(name) > 191 {
		return "", &ValidationError{"Name is too long"}
	}
	return name, nil
}
