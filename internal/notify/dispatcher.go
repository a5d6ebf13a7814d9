package notify

import (
	"context"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/metrics"
	"payment-service/internal/worker"

	"go.uber.org/zap"
)

type Submitter interface {
	Submit(task worker.Task) error
}

type SalesNotifier interface {
	UpdateOrderStatus(ctx context.Context, orderCode string, status SalesStatus) error
}

// Dispatcher hands committed transactions to the worker pool for downstream delivery.
// Delivery is best effort and at most once.
type Dispatcher struct {
	pool      Submitter
	sales     SalesNotifier
	publisher Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

func NewDispatcher(pool Submitter, sales SalesNotifier, publisher Publisher, m *metrics.Metrics, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Dispatcher{
		pool:      pool,
		sales:     sales,
		publisher: publisher,
		metrics:   m,
		timeout:   timeout,
		now:       time.Now,
		log:       log.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch never blocks; the transaction is copied before the task is queued.
func (d *Dispatcher) Dispatch(tx *entity.Transaction) {
	snapshot := *tx
	event := NewEvent(&snapshot, d.now())

	err := d.pool.Submit(func() { d.deliver(snapshot, event) })
	if err != nil {
		d.log.Warn("Notification dropped",
			zap.Error(err),
			zap.String("order_code", snapshot.OrderCode),
			zap.String("status", string(snapshot.Status)),
		)
		d.metrics.Notifications.WithLabelValues(targetSales, "dropped").Inc()
	}
}

func (d *Dispatcher) deliver(tx entity.Transaction, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if status, ok := SalesStatusFor(tx.Status); ok {
		if err := d.sales.UpdateOrderStatus(ctx, tx.OrderCode, status); err != nil {
			d.log.Error("Failed to notify sales service",
				zap.Error(err),
				zap.String("order_code", tx.OrderCode),
				zap.String("sales_status", string(status)),
			)
			d.metrics.Notifications.WithLabelValues(targetSales, "failed").Inc()
		} else {
			d.log.Info("Sales service notified",
				zap.String("order_code", tx.OrderCode),
				zap.String("sales_status", string(status)),
			)
			d.metrics.Notifications.WithLabelValues(targetSales, "ok").Inc()
		}
	}

	if _, disabled := d.publisher.(NopPublisher); disabled {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.log.Error("Failed to publish payment event",
			zap.Error(err),
			zap.String("order_code", tx.OrderCode),
		)
		d.metrics.Notifications.WithLabelValues(targetKafka, "failed").Inc()
		return
	}
	d.metrics.Notifications.WithLabelValues(targetKafka, "ok").Inc()
}
