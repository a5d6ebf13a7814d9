package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-service/internal/data/entity"
	"payment-service/internal/data/repository"
	"payment-service/internal/gateway"
	"payment-service/internal/metrics"
	"payment-service/pkg/apperror"
	"payment-service/pkg/cache"
	"payment-service/pkg/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// memTransactions mimics the postgres repository: copies in and out, version checks
// and a unique reference number.
type memTransactions struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entity.Transaction
	updates int

	processedAtWrites int
	failNextUpdate    error
}

func newMemTransactions() *memTransactions {
	return &memTransactions{rows: make(map[uuid.UUID]*entity.Transaction)}
}

func cloneTransaction(tx *entity.Transaction) *entity.Transaction {
	c := *tx
	if tx.ReferenceNumber != nil {
		v := *tx.ReferenceNumber
		c.ReferenceNumber = &v
	}
	if tx.RejectionReason != nil {
		v := *tx.RejectionReason
		c.RejectionReason = &v
	}
	if tx.MaskedCardNumber != nil {
		v := *tx.MaskedCardNumber
		c.MaskedCardNumber = &v
	}
	if tx.CardType != nil {
		v := *tx.CardType
		c.CardType = &v
	}
	if tx.ProcessedAt != nil {
		v := *tx.ProcessedAt
		c.ProcessedAt = &v
	}
	return &c
}

// caller holds mu
func (m *memTransactions) referenceTaken(ref *string, except uuid.UUID) bool {
	if ref == nil {
		return false
	}
	for id, row := range m.rows {
		if id != except && row.ReferenceNumber != nil && *row.ReferenceNumber == *ref {
			return true
		}
	}
	return false
}

func (m *memTransactions) Create(_ context.Context, tx *entity.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.referenceTaken(tx.ReferenceNumber, tx.ID) {
		return repository.ErrDuplicate
	}
	if tx.Version == 0 {
		tx.Version = 1
	}
	m.rows[tx.ID] = cloneTransaction(tx)
	return nil
}

func (m *memTransactions) FindByID(_ context.Context, id uuid.UUID) (*entity.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return cloneTransaction(row), nil
}

func (m *memTransactions) FindByReferenceNumber(_ context.Context, reference string) (*entity.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.Reference() == reference {
			return cloneTransaction(row), nil
		}
	}
	return nil, nil
}

func (m *memTransactions) FindLatestByOrderCode(ctx context.Context, orderCode string) (*entity.Transaction, error) {
	rows, _ := m.FindByOrderCode(ctx, orderCode)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (m *memTransactions) FindByOrderCode(_ context.Context, orderCode string) ([]*entity.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.Transaction
	for _, row := range m.rows {
		if row.OrderCode == orderCode {
			out = append(out, cloneTransaction(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memTransactions) Update(_ context.Context, tx *entity.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNextUpdate; err != nil {
		m.failNextUpdate = nil
		return err
	}

	current, ok := m.rows[tx.ID]
	if !ok || current.Version != tx.Version {
		return repository.ErrVersionConflict
	}
	if m.referenceTaken(tx.ReferenceNumber, tx.ID) {
		return repository.ErrDuplicate
	}
	if tx.ProcessedAt != nil && (current.ProcessedAt == nil || !current.ProcessedAt.Equal(*tx.ProcessedAt)) {
		m.processedAtWrites++
	}

	tx.Version++
	m.rows[tx.ID] = cloneTransaction(tx)
	m.updates++
	return nil
}

func (m *memTransactions) all() []*entity.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*entity.Transaction, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, cloneTransaction(row))
	}
	return out
}

type memMethods struct {
	methods map[string]*entity.PaymentMethod
}

func newMemMethods() *memMethods {
	return &memMethods{methods: map[string]*entity.PaymentMethod{
		"CASH":        {ID: "CASH", Name: "Cash", Type: entity.PaymentMethodTypeCash, IsActive: true},
		"CREDIT_CARD": {ID: "CREDIT_CARD", Name: "Credit Card", Type: entity.PaymentMethodTypeCard, IsActive: true, Commission: decimal.RequireFromString("0.0499")},
		"MERCADOPAGO": {ID: "MERCADOPAGO", Name: "Mercado Pago", Type: entity.PaymentMethodTypeDigitalWallet, IsActive: true},
		"CHEQUE":      {ID: "CHEQUE", Name: "Cheque", Type: entity.PaymentMethodTypeTransfer, IsActive: false},
	}}
}

func (m *memMethods) FindByID(_ context.Context, id string) (*entity.PaymentMethod, error) {
	return m.methods[id], nil
}

func (m *memMethods) FindAllActive(_ context.Context) ([]*entity.PaymentMethod, error) {
	var out []*entity.PaymentMethod
	for _, pm := range m.methods {
		if pm.IsActive {
			out = append(out, pm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	payments    map[int64]*gateway.Payment
	preferences []gateway.PreferenceRequest
	prefErr     error
	getErr      error
	getCalls    int32

	// runs before the preference is minted, outside mu
	onPreference func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[int64]*gateway.Payment)}
}

func (g *fakeGateway) CreatePreference(_ context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	if hook := g.onPreference; hook != nil {
		g.onPreference = nil
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.preferences = append(g.preferences, req)
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	id := fmt.Sprintf("pref-%d", len(g.preferences))
	return &gateway.Preference{
		ID:               id,
		InitPoint:        "https://gateway.example/init/" + id,
		SandboxInitPoint: "https://sandbox.gateway.example/init/" + id,
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id int64) (*gateway.Payment, error) {
	atomic.AddInt32(&g.getCalls, 1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.getErr != nil {
		err := g.getErr
		return nil, err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, &apperror.GatewayError{Code: "not_found", Message: "Payment not found", StatusCode: 404}
	}
	c := *p
	return &c, nil
}

func (g *fakeGateway) setPayment(p *gateway.Payment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *fakeGateway) calls() int {
	return int(atomic.LoadInt32(&g.getCalls))
}

type recordingNotifier struct {
	mu         sync.Mutex
	dispatched []entity.Transaction
}

func (n *recordingNotifier) Dispatch(tx *entity.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, *tx)
}

type fixture struct {
	txs      *memTransactions
	methods  *memMethods
	gateway  *fakeGateway
	notifier *recordingNotifier
	dedupe   *cache.MemoryCache
	metrics  *metrics.Metrics
	config   *utils.Config
	svc      *Service
}

func testConfig() *utils.Config {
	return &utils.Config{
		App:     utils.AppConfig{BaseURL: "https://pay.example.com"},
		Gateway: utils.GatewayConfig{Currency: "ARS", StatementDescriptor: "PAYMENT-SERVICE", Sandbox: true},
		Redis:   utils.RedisConfig{DedupeTTL: time.Hour},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		txs:      newMemTransactions(),
		methods:  newMemMethods(),
		gateway:  newFakeGateway(),
		notifier: &recordingNotifier{},
		dedupe:   cache.NewMemory(),
		metrics:  metrics.New(prometheus.NewRegistry()),
		config:   testConfig(),
	}
	repo := &repository.Repository{Transaction: f.txs, PaymentMethod: f.methods}
	f.svc = NewService(repo, Dependencies{
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Dedupe:   f.dedupe,
		Metrics:  f.metrics,
	}, f.config, zap.NewNop())
	return f
}

func approvedPayment(id int64, orderCode, amount string) *gateway.Payment {
	return &gateway.Payment{
		ID:                id,
		Status:            gateway.PaymentStatusApproved,
		StatusDetail:      "accredited",
		ExternalReference: orderCode,
		TransactionAmount: decimal.RequireFromString(amount),
		PaymentMethodID:   "visa",
		Card:              &gateway.Card{LastFourDigits: "4242"},
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
