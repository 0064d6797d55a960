// Package commands implements the write side of the hierarchy: every
// handler loads one tree inside a unit of work, mutates it through the
// domain and saves it together with its events.
package commands

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/google/uuid"
)

// Deps are the collaborators shared by the command handlers. Cache and
// Metrics may be nil.
type Deps struct {
	Repo    domain.Repository
	Outbox  outbox.Repository
	UoW     sharedApplication.UnitOfWork
	Cache   application.HierarchyCache
	Metrics observability.Metrics
}

type mutation func(ctx context.Context, tree *domain.Tree) error

// unchanged is the mutation for trees built before the unit of work starts.
func unchanged(context.Context, *domain.Tree) error { return nil }

func (d Deps) onMilestone(ctx context.Context, s sharedApplication.Session, milestoneID uuid.UUID, fn mutation) (*domain.Tree, error) {
	return d.run(ctx, s, func(txCtx context.Context) (*domain.Tree, error) {
		return d.Repo.FindByID(txCtx, milestoneID)
	}, fn)
}

func (d Deps) onNode(ctx context.Context, s sharedApplication.Session, nodeID uuid.UUID, fn mutation) (*domain.Tree, error) {
	return d.run(ctx, s, func(txCtx context.Context) (*domain.Tree, error) {
		return d.Repo.FindByNodeID(txCtx, nodeID)
	}, fn)
}

func (d Deps) run(ctx context.Context, s sharedApplication.Session, load func(context.Context) (*domain.Tree, error), fn mutation) (*domain.Tree, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	timer := observability.StartTimer("hierarchy_write").WithMetrics(d.Metrics)
	tree, err := sharedApplication.InUnitOfWork(ctx, d.UoW, func(txCtx context.Context) (*domain.Tree, error) {
		tree, err := load(txCtx)
		if err != nil {
			return nil, err
		}
		if err := fn(txCtx, tree); err != nil {
			return nil, err
		}
		return tree, d.save(txCtx, s, tree)
	})
	timer.Stop(ctx, err)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, tree.RootID())
	return tree, nil
}

// save persists the tree and queues its events in the same transaction.
func (d Deps) save(ctx context.Context, s sharedApplication.Session, tree *domain.Tree) error {
	if err := d.Repo.Save(ctx, tree); err != nil {
		return err
	}
	return d.queue(ctx, s, tree)
}

// queue writes the tree's pending events to the outbox.
func (d Deps) queue(ctx context.Context, s sharedApplication.Session, tree *domain.Tree) error {
	events := tree.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.EventMetadataFor(ctx, s))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := d.Outbox.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	tree.ClearDomainEvents()
	return nil
}

// invalidate drops the cached view after a commit. Cache failures never
// fail a committed command; stale entries expire with their TTL.
func (d Deps) invalidate(ctx context.Context, milestoneID uuid.UUID) {
	if d.Cache != nil {
		_ = d.Cache.Invalidate(ctx, milestoneID)
	}
}

func requireTask(tree *domain.Tree, id uuid.UUID) (*domain.Node, error) {
	n, err := tree.Node(id)
	if err != nil {
		return nil, err
	}
	if !n.IsTask() {
		return nil, domain.ErrNotATask
	}
	return n, nil
}

func (d Deps) count(name string, n int, tags ...observability.Tag) {
	if d.Metrics != nil && n > 0 {
		d.Metrics.Counter(name, int64(n), tags...)
	}
}

// countRejection counts capacity rejections by node kind.
func (d Deps) countRejection(err error, kind domain.Kind) {
	if errors.Is(err, domain.ErrCapacityExceeded) {
		d.count(observability.MetricCapacityRejections, 1, observability.T("kind", string(kind)))
	}
}

// ignoreViolation drops the over-allocation diagnostic, which only
// describes stored data and never blocks a write.
func ignoreViolation(err error) error {
	if errors.Is(err, domain.ErrCapacityViolation) {
		return nil
	}
	return err
}
