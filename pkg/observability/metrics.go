package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const (
	metricOpsTotal       = "rbmap.tree.ops.total"
	metricRotationsTotal = "rbmap.tree.rotations.total"
	metricFixupsTotal    = "rbmap.tree.fixups.total"
	metricDeficitsTotal  = "rbmap.tree.deficits.total"

	attrOp     = "op"
	attrResult = "result"
	attrPhase  = "phase"

	resultInserted = "inserted"
	resultUpdated  = "updated"
	resultDeleted  = "deleted"
	resultMissing  = "missing"

	phaseInsert = "insert"
	phaseDelete = "delete"
)

// TreeMetrics records the structural work of an [rbtree.Map] as OTel counters.
// It implements [rbtree.Observer].
type TreeMetrics struct {
	opsTotal       metric.Int64Counter
	rotationsTotal metric.Int64Counter
	fixupsTotal    metric.Int64Counter
	deficitsTotal  metric.Int64Counter

	inserted metric.MeasurementOption
	updated  metric.MeasurementOption
	deleted  metric.MeasurementOption
	missing  metric.MeasurementOption

	insertPhase metric.MeasurementOption
	deletePhase metric.MeasurementOption
}

// NewTreeMetrics creates the tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Total number of map mutations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	rotationsTotal, err := mt.Int64Counter(metricRotationsTotal,
		metric.WithDescription("Total number of single tree rotations"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRotationsTotal, err)
	}

	fixupsTotal, err := mt.Int64Counter(metricFixupsTotal,
		metric.WithDescription("Total number of rebalancing steps"),
		metric.WithUnit("{fixup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFixupsTotal, err)
	}

	deficitsTotal, err := mt.Int64Counter(metricDeficitsTotal,
		metric.WithDescription("Total number of black leaves removed"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDeficitsTotal, err)
	}

	return &TreeMetrics{
		opsTotal:       opsTotal,
		rotationsTotal: rotationsTotal,
		fixupsTotal:    fixupsTotal,
		deficitsTotal:  deficitsTotal,

		inserted: opAttrs(rbtree.OpSet, resultInserted),
		updated:  opAttrs(rbtree.OpSet, resultUpdated),
		deleted:  opAttrs(rbtree.OpDelete, resultDeleted),
		missing:  opAttrs(rbtree.OpDelete, resultMissing),

		insertPhase: metric.WithAttributeSet(attribute.NewSet(attribute.String(attrPhase, phaseInsert))),
		deletePhase: metric.WithAttributeSet(attribute.NewSet(attribute.String(attrPhase, phaseDelete))),
	}, nil
}

func opAttrs(op rbtree.Op, result string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.String(attrOp, string(op)),
		attribute.String(attrResult, result),
	))
}

// Observe records the counters changed by one map mutation.
func (tm *TreeMetrics) Observe(op rbtree.Op, delta rbtree.Stats) {
	ctx := context.Background()

	switch {
	case delta.Inserts > 0:
		tm.opsTotal.Add(ctx, delta.Inserts, tm.inserted)
	case delta.Updates > 0:
		tm.opsTotal.Add(ctx, delta.Updates, tm.updated)
	case delta.Deletes > 0:
		tm.opsTotal.Add(ctx, delta.Deletes, tm.deleted)
	case op == rbtree.OpDelete:
		tm.opsTotal.Add(ctx, 1, tm.missing)
	}

	if delta.Rotations > 0 {
		tm.rotationsTotal.Add(ctx, delta.Rotations)
	}

	if delta.InsertFixups > 0 {
		tm.fixupsTotal.Add(ctx, delta.InsertFixups, tm.insertPhase)
	}

	if delta.DeleteFixups > 0 {
		tm.fixupsTotal.Add(ctx, delta.DeleteFixups, tm.deletePhase)
	}

	if delta.Deficits > 0 {
		tm.deficitsTotal.Add(ctx, delta.Deficits)
	}
}
