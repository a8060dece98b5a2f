package persist

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/tracing"
)

// TracedStore wraps a Store with a span per load and save.
type TracedStore struct {
	inner   domain.Store
	tracer  trace.Tracer
	backend string
}

var _ domain.Store = (*TracedStore)(nil)

// NewTracedStore wraps store. The backend attribute comes from the store's
// Name method when it has one.
func NewTracedStore(store domain.Store, tracer trace.Tracer) *TracedStore {
	backend := "unknown"
	if named, ok := store.(interface{ Name() string }); ok {
		backend = named.Name()
	}
	return &TracedStore{inner: store, tracer: tracer, backend: backend}
}

func (s *TracedStore) Name() string { return s.backend }

func (s *TracedStore) Load(ctx context.Context) (*domain.RawState, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanStoreLoad,
		trace.WithAttributes(attribute.String(tracing.AttrStoreBackend, s.backend)))

	raw, err := s.inner.Load(ctx)
	if err == nil {
		if raw == nil {
			span.SetAttributes(attribute.Bool(tracing.AttrStateAbsent, true))
		} else {
			span.SetAttributes(
				attribute.Int(tracing.AttrLayoutCount, len(raw.Layouts)),
				attribute.Int(tracing.AttrRecentCount, len(raw.Recent)),
			)
		}
	}
	tracing.EndWithError(span, err)
	return raw, err
}

func (s *TracedStore) Save(ctx context.Context, state domain.State) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanStoreSave,
		trace.WithAttributes(
			attribute.String(tracing.AttrStoreBackend, s.backend),
			attribute.Int(tracing.AttrLayoutCount, len(state.Layouts)),
			attribute.Int(tracing.AttrRecentCount, len(state.Recent)),
		))

	err := s.inner.Save(ctx, state)
	tracing.EndWithError(span, err)
	return err
}

func (s *TracedStore) Close() error {
	return s.inner.Close()
}
