package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/metrics"
	"payment-service/internal/worker"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type salesCall struct {
	OrderCode string
	Status    SalesStatus
}

type fakeSales struct {
	mu    sync.Mutex
	calls []salesCall
	err   error
	done  chan struct{}
}

func (f *fakeSales) UpdateOrderStatus(_ context.Context, orderCode string, status SalesStatus) error {
	f.mu.Lock()
	f.calls = append(f.calls, salesCall{orderCode, status})
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type rejectingPool struct{}

func (rejectingPool) Submit(worker.Task) error { return worker.ErrQueueFull }

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func newTransaction(status entity.TransactionStatus) *entity.Transaction {
	return &entity.Transaction{
		ID:        uuid.New(),
		OrderCode: "ORD-1",
		Amount:    decimal.RequireFromString("100"),
		Status:    status,
	}
}

func Test_Dispatcher_Dispatch(t *testing.T) {
	t.Run("Approved sends PAGADA and publishes", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		pool := worker.NewPool(1, 4, m.WorkerQueueDepth, zap.NewNop())
		sales := &fakeSales{}
		publisher := &recordingPublisher{}
		d := NewDispatcher(pool, sales, publisher, m, time.Second, zap.NewNop())

		tx := newTransaction(entity.TransactionStatusApproved)
		d.Dispatch(tx)
		// later mutations must not leak into the queued task
		tx.Status = entity.TransactionStatusRefunded
		pool.Stop()

		require.Len(t, sales.calls, 1)
		assert.Equal(t, salesCall{"ORD-1", SalesStatusPaid}, sales.calls[0])
		require.Len(t, publisher.events, 1)
		assert.Equal(t, "APPROVED", publisher.events[0].Status)
		assert.Equal(t, 1.0, counterValue(t, m.Notifications.WithLabelValues("sales", "ok")))
	})
	t.Run("Pending publishes only", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		pool := worker.NewPool(1, 4, nil, zap.NewNop())
		sales := &fakeSales{}
		publisher := &recordingPublisher{}
		d := NewDispatcher(pool, sales, publisher, m, time.Second, zap.NewNop())

		d.Dispatch(newTransaction(entity.TransactionStatusPending))
		pool.Stop()

		assert.Empty(t, sales.calls)
		assert.Len(t, publisher.events, 1)
	})
	t.Run("Sales failure is counted", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		pool := worker.NewPool(1, 4, nil, zap.NewNop())
		sales := &fakeSales{err: errors.New("connection refused")}
		d := NewDispatcher(pool, sales, nil, m, time.Second, zap.NewNop())

		d.Dispatch(newTransaction(entity.TransactionStatusRejected))
		pool.Stop()

		require.Len(t, sales.calls, 1)
		assert.Equal(t, SalesStatusRejected, sales.calls[0].Status)
		assert.Equal(t, 1.0, counterValue(t, m.Notifications.WithLabelValues("sales", "failed")))
	})
	t.Run("Full queue drops", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		d := NewDispatcher(rejectingPool{}, &fakeSales{}, nil, m, time.Second, zap.NewNop())

		d.Dispatch(newTransaction(entity.TransactionStatusApproved))

		assert.Equal(t, 1.0, counterValue(t, m.Notifications.WithLabelValues("sales", "dropped")))
	})
	t.Run("Dispatch does not wait for delivery", func(t *testing.T) {
		m := metrics.New(prometheus.NewRegistry())
		pool := worker.NewPool(1, 4, nil, zap.NewNop())
		sales := &fakeSales{done: make(chan struct{})}
		d := NewDispatcher(pool, sales, nil, m, time.Second, zap.NewNop())

		returned := make(chan struct{})
		go func() {
			d.Dispatch(newTransaction(entity.TransactionStatusApproved))
			close(returned)
		}()

		select {
		case <-returned:
		case <-time.After(time.Second):
			t.Fatal("Dispatch blocked on delivery")
		}
		<-sales.done
		pool.Stop()
	})
}
