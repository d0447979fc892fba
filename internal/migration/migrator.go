// Package migration runs the idOS reconciliation pass over a store.
//
// A pass lists every owner, loads that owner's tasks, resolves each task
// against a fresh per-owner Registry and writes back only the idOS field of
// tasks whose identifier changed. Owner read failures and record write
// failures are logged and recorded in the Summary; only failing to list the
// owners aborts the pass. Re-running the pass is the recovery mechanism.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/idosync/internal/idos"
	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/store"
	"github.com/zjrosen/idosync/internal/tracing"
)

// Observer receives every decision and failure of a pass, synchronously and
// in order.
type Observer interface {
	// OnDecision is called once per task. applied is true when the new idOS
	// was written to the store.
	OnDecision(owner string, d idos.Decision, applied bool)

	// OnFailure is called with an *OwnerReadError or *RecordWriteError.
	OnFailure(err error)
}

// Options configures a Migrator.
type Options struct {
	// DryRun computes decisions without writing.
	DryRun bool

	// Resolver tunes identifier derivation.
	Resolver idos.Options

	// Tracer receives pass, owner and update spans. Defaults to a no-op tracer.
	Tracer trace.Tracer

	// Observer, when set, is notified of every decision and failure.
	Observer Observer
}

// Migrator drives passes against one store.
type Migrator struct {
	store    store.Store
	resolver *idos.Resolver
	tracer   trace.Tracer
	observer Observer
	dryRun   bool
}

// New creates a Migrator.
func New(s store.Store, opts Options) *Migrator {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Migrator{
		store:    s,
		resolver: idos.NewResolver(opts.Resolver),
		tracer:   tracer,
		observer: opts.Observer,
		dryRun:   opts.DryRun,
	}
}

// Run executes one pass.
//
// It returns a *TopLevelReadError, and no summary, when the owners cannot be
// listed. When ctx is cancelled the pass stops before the next owner and
// returns the partial summary together with the context error. Otherwise it
// returns the summary and a nil error, even if some owners or records failed.
func (m *Migrator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	sum := newSummary(uuid.NewString(), m.dryRun)

	ctx, span := m.tracer.Start(ctx, tracing.SpanPass, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, sum.RunID),
		attribute.Bool(tracing.AttrDryRun, m.dryRun),
	))
	defer span.End()

	log.Info(log.CatMigrate, "Starting pass", "run", sum.RunID, "dryRun", m.dryRun)

	owners, err := store.Keys(ctx, m.store, store.OwnersRoot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing owners failed")
		log.ErrorErr(log.CatMigrate, "Failed to list owners", err, "run", sum.RunID)
		return nil, &TopLevelReadError{Path: store.OwnersRoot, Err: err}
	}
	sum.OwnersTotal = len(owners)
	if len(owners) == 0 {
		log.Info(log.CatMigrate, "No owners found", "path", "/"+store.OwnersRoot)
	}

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			sum.Interrupted = true
			sum.Duration = time.Since(started)
			span.SetStatus(codes.Error, "interrupted")
			log.Warn(log.CatMigrate, "Pass interrupted", "run", sum.RunID, "nextOwner", owner)
			return sum, fmt.Errorf("pass interrupted: %w", err)
		}
		// An owner that has started is finished even if ctx is cancelled.
		m.migrateOwner(context.WithoutCancel(ctx), owner, sum)
	}

	sum.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int(tracing.AttrUpdated, sum.RecordsUpdated),
		attribute.Int(tracing.AttrFailed, sum.FailureCount()),
	)
	log.Info(log.CatMigrate, "Pass finished",
		"run", sum.RunID,
		"owners", sum.OwnersProcessed,
		"updated", sum.RecordsUpdated,
		"changed", sum.RecordsChanged,
		"failures", sum.FailureCount(),
		"duration", sum.Duration.Round(time.Millisecond),
	)
	return sum, nil
}

func (m *Migrator) migrateOwner(ctx context.Context, owner string, sum *Summary) {
	ctx, span := m.tracer.Start(ctx, tracing.SpanOwner, trace.WithAttributes(
		attribute.String(tracing.AttrOwner, owner),
	))
	defer span.End()

	log.Info(log.CatMigrate, "Processing owner", "owner", owner)

	children, err := m.store.ReadChildren(ctx, store.TasksPath(owner))
	if err != nil {
		readErr := &OwnerReadError{Owner: owner, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading tasks failed")
		log.ErrorErr(log.CatMigrate, "Failed to read tasks, skipping owner", err, "owner", owner)
		m.fail(sum, readErr)
		return
	}
	if len(children) == 0 {
		span.AddEvent(tracing.EventOwnerSkipped)
		log.Info(log.CatMigrate, "No tasks for owner", "owner", owner)
		sum.OwnersEmpty++
		return
	}

	records := make([]idos.Record, 0, len(children))
	for _, child := range children {
		rec, err := idos.ParseRecord(child.Key, child.Value)
		if err != nil {
			span.AddEvent(tracing.EventRecordSkipped, trace.WithAttributes(attribute.String(tracing.AttrRecord, child.Key)))
			if errors.Is(err, idos.ErrNotRecord) {
				log.Debug(log.CatMigrate, "Skipping non-task value", "owner", owner, "key", child.Key)
			} else {
				log.Warn(log.CatMigrate, "Skipping undecodable task", "owner", owner, "key", child.Key, "error", err)
			}
			sum.RecordsSkipped++
			continue
		}
		records = append(records, rec)
	}
	span.SetAttributes(attribute.Int(tracing.AttrRecords, len(records)))
	sum.RecordsScanned += len(records)

	reg := idos.NewRegistry(records)
	path := store.TasksPath(owner)
	for _, rec := range records {
		d := m.resolver.Resolve(rec, reg)
		sum.Actions[d.Action]++

		if !d.Changed {
			sum.RecordsUnchanged++
			m.observe(owner, d, false)
			continue
		}

		sum.RecordsChanged++
		logDecision(owner, d, m.dryRun)
		if m.dryRun {
			m.observe(owner, d, false)
			continue
		}

		if err := m.write(ctx, path, owner, d); err != nil {
			log.ErrorErr(log.CatMigrate, "Failed to update task", err, "owner", owner, "key", d.Key)
			m.fail(sum, &RecordWriteError{Owner: owner, Key: d.Key, IDOS: d.IDOS, Err: err})
			continue
		}
		sum.RecordsUpdated++
		m.observe(owner, d, true)
	}

	sum.OwnersProcessed++
}

// write issues the single-field update for one decision.
func (m *Migrator) write(ctx context.Context, path, owner string, d idos.Decision) error {
	ctx, span := m.tracer.Start(ctx, tracing.SpanRecordUpdate, trace.WithAttributes(
		attribute.String(tracing.AttrOwner, owner),
		attribute.String(tracing.AttrRecord, d.Key),
		attribute.String(tracing.AttrAction, string(d.Action)),
		attribute.String(tracing.AttrPrevious, d.Previous),
		attribute.String(tracing.AttrIDOS, d.IDOS),
	))
	defer span.End()

	if err := m.store.Update(ctx, path, d.Key, map[string]any{idos.FieldIDOS: d.IDOS}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}

func (m *Migrator) fail(sum *Summary, err error) {
	sum.addFailure(err)
	if m.observer != nil {
		m.observer.OnFailure(err)
	}
}

func (m *Migrator) observe(owner string, d idos.Decision, applied bool) {
	if m.observer != nil {
		m.observer.OnDecision(owner, d, applied)
	}
}

func logDecision(owner string, d idos.Decision, dryRun bool) {
	fields := []any{"owner", owner, "key", d.Key, "idOS", d.IDOS, "dryRun", dryRun}
	switch d.Action {
	case idos.ActionAssigned:
		log.Info(log.CatMigrate, "Adding idOS", fields...)
	default:
		log.Info(log.CatMigrate, "Rewriting idOS", append(fields, "from", d.Previous, "action", d.Action)...)
	}
}
