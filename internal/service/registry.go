package service

import (
	"log/slog"
	"reflect"
)

// Registry maps a capability type to one singleton instance. It is populated
// exactly once at construction and only read afterwards, so lookups need no
// locking.
type Registry struct {
	logger   *slog.Logger
	services map[reflect.Type]any
}

// PopulateFunc performs all Register calls for a server's service set. It runs
// once, before the registry is handed to any connection.
type PopulateFunc func(*Registry)

func NewRegistry(logger *slog.Logger, populate PopulateFunc) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:   logger,
		services: make(map[reflect.Type]any),
	}
	if populate != nil {
		populate(r)
	}
	r.logger.Info("services registered", "count", len(r.services))
	return r
}

// Register binds svc as the singleton for type S. The registry is write-once:
// a second registration for the same type is ignored.
func Register[S any](r *Registry, svc S) {
	t := reflect.TypeOf((*S)(nil)).Elem()
	if _, exists := r.services[t]; exists {
		r.logger.Warn("service already registered", "type", t.String())
		return
	}
	r.services[t] = svc
	r.logger.Debug("service registered", "type", t.String())
}

// Lookup returns the instance registered for type S. A miss logs an error and
// reports ok=false; it never panics.
func Lookup[S any](r *Registry) (S, bool) {
	t := reflect.TypeOf((*S)(nil)).Elem()
	svc, ok := r.services[t]
	if !ok {
		var zero S
		r.logger.Error("service not registered", "type", t.String())
		return zero, false
	}
	return svc.(S), true
}

// Len reports the number of registered services.
func (r *Registry) Len() int {
	return len(r.services)
}
