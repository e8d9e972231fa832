package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/karat-checkout/internal/domain/payment"
)

const testSecret = "test-webhook-secret"

// --- Mock implementations ---

// memoryRepo is a compare-and-set-faithful in-memory Repository. Transition
// holds a single mutex across the read-compare-write, mirroring the
// single-row atomicity the postgres implementation provides.
type memoryRepo struct {
	mu        sync.Mutex
	byIntent  map[string]*Order
	insertErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byIntent: make(map[string]*Order)}
}

func (m *memoryRepo) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.byIntent[o.IntentID]; ok {
		return ErrDuplicateIntent
	}
	cp := *o
	m.byIntent[o.IntentID] = &cp
	return nil
}

func (m *memoryRepo) FindByIntentID(_ context.Context, intentID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byIntent[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.byIntent {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, ownerID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Order
	for _, o := range m.byIntent {
		if ownerID == "" || o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryRepo) Transition(_ context.Context, intentID string, from, to Status, confirmationID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byIntent[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStaleTransition
	}
	o.Status = to
	if confirmationID != "" {
		o.ConfirmationID = confirmationID
	}
	cp := *o
	return &cp, nil
}

type mockBroker struct {
	mu       sync.Mutex
	intentID string
	err      error
	calls    []string // references seen
}

func (m *mockBroker) CreateIntent(_ context.Context, _ int64, _, reference string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, reference)
	if m.err != nil {
		return "", m.err
	}
	return m.intentID, nil
}

// --- Helpers ---

func newTestService(repo Repository, broker payment.IntentBroker) *Service {
	return NewService(repo, broker, ServiceConfig{
		Currency:      "INR",
		WebhookSecret: testSecret,
	}, nil)
}

func cartItem(productID string, price string, qty int) LineItem {
	return LineItem{
		ProductID: productID,
		Name:      "Item " + productID,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

// --- Tests ---

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{intentID: "order_1"})

	_, err := svc.CreateOrder(context.Background(), "user-1", nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{intentID: "order_1"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "10.00", 0),
	})

	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
	assert.Equal(t, "p1", liErr.ProductID)
}

func TestCreateOrder_NegativePrice(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{intentID: "order_1"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "-5.00", 1),
	})

	var liErr *InvalidLineItemError
	require.ErrorAs(t, err, &liErr)
}

func TestCreateOrder_AmountMatchesCart(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_rp1"})

	result, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 2),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(100000), result.AmountMinorUnits) // 1000 rupees in paise
	assert.Equal(t, "INR", result.Currency)
	assert.Equal(t, StatusPending, result.Order.Status)
	assert.Equal(t, "order_rp1", result.Order.IntentID)
	assert.True(t, decimal.RequireFromString("1000").Equal(result.Order.Total))

	stored, err := repo.FindByIntentID(context.Background(), "order_rp1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Empty(t, stored.ConfirmationID)
}

func TestCreateOrder_MixedCartTotal(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{intentID: "order_rp2"})

	result, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "19.99", 3),
		cartItem("p2", "0.01", 1),
	})

	require.NoError(t, err)
	// 59.97 + 0.01 = 59.98 rupees = 5998 paise.
	assert.Equal(t, int64(5998), result.AmountMinorUnits)
}

func TestCreateOrder_ProcessorFailureSurfaced(t *testing.T) {
	broker := &mockBroker{err: payment.ErrProcessorUnavailable}
	repo := newMemoryRepo()
	svc := newTestService(repo, broker)

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "10.00", 1),
	})

	require.ErrorIs(t, err, payment.ErrProcessorUnavailable)
	// No order row may exist: the intent was never created.
	orders, lerr := repo.List(context.Background(), "")
	require.NoError(t, lerr)
	assert.Empty(t, orders)
}

func TestCreateOrder_InsertFailureIsReconciliationFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.insertErr = errors.New("store down")
	svc := newTestService(repo, &mockBroker{intentID: "order_orphan"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "10.00", 1),
	})

	var rfErr *ReconciliationFailureError
	require.ErrorAs(t, err, &rfErr)
	assert.Equal(t, "order_orphan", rfErr.IntentID)
	assert.Equal(t, "user-1", rfErr.OwnerID)
	assert.True(t, decimal.RequireFromString("10.00").Equal(rfErr.Amount))
}

func TestCreateOrder_UniqueReferences(t *testing.T) {
	broker := &mockBroker{intentID: "order_x"}
	repo := newMemoryRepo()
	svc := newTestService(repo, broker)

	items := []LineItem{cartItem("p1", "10.00", 1)}
	_, err := svc.CreateOrder(context.Background(), "user-1", items)
	require.NoError(t, err)

	// Second create against the same broker intent collides in the store,
	// but the references sent to the processor must still differ.
	_, _ = svc.CreateOrder(context.Background(), "user-1", items)

	require.Len(t, broker.calls, 2)
	assert.NotEqual(t, broker.calls[0], broker.calls[1])
}

func TestConfirmPayment_HappyPath(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_pay"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 2),
	})
	require.NoError(t, err)

	sig := payment.Sign("order_pay", "pay_123", testSecret)
	result, err := svc.ConfirmPayment(context.Background(), "order_pay", "pay_123", sig)

	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, StatusPaid, result.Order.Status)
	assert.Equal(t, "pay_123", result.Order.ConfirmationID)
}

func TestConfirmPayment_DuplicateIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_dup"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 2),
	})
	require.NoError(t, err)

	sig := payment.Sign("order_dup", "pay_456", testSecret)

	first, err := svc.ConfirmPayment(context.Background(), "order_dup", "pay_456", sig)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)

	second, err := svc.ConfirmPayment(context.Background(), "order_dup", "pay_456", sig)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, StatusPaid, second.Order.Status)
	assert.Equal(t, "pay_456", second.Order.ConfirmationID)
}

func TestConfirmPayment_TamperedSignature(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_sig"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 2),
	})
	require.NoError(t, err)

	badSig := payment.Sign("order_sig", "pay_789", "wrong-secret")

	for range 3 {
		_, err = svc.ConfirmPayment(context.Background(), "order_sig", "pay_789", badSig)
		require.ErrorIs(t, err, ErrSignatureMismatch)
	}

	stored, err := repo.FindByIntentID(context.Background(), "order_sig")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Empty(t, stored.ConfirmationID)
}

func TestConfirmPayment_UnknownIntent(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{})

	_, err := svc.ConfirmPayment(context.Background(), "order_missing", "pay_1", "sig")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_race"})

	_, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 2),
	})
	require.NoError(t, err)

	sig := payment.Sign("order_race", "pay_race", testSecret)

	const callers = 8
	results := make([]*ConfirmPaymentResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.ConfirmPayment(context.Background(), "order_race", "pay_race", sig)
		}()
	}
	wg.Wait()

	// Every caller gets a success-class result; exactly one performed the
	// transition.
	winners := 0
	for i := range callers {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, StatusPaid, results[i].Order.Status)
		if !results[i].AlreadyProcessed {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestAdvanceStatus_LinearHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_adv"})

	created, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 1),
	})
	require.NoError(t, err)
	orderID := created.Order.ID

	sig := payment.Sign("order_adv", "pay_adv", testSecret)
	_, err = svc.ConfirmPayment(context.Background(), "order_adv", "pay_adv", sig)
	require.NoError(t, err)

	shipped, err := svc.AdvanceStatus(context.Background(), orderID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, shipped.Status)

	delivered, err := svc.AdvanceStatus(context.Background(), orderID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, delivered.Status)
}

func TestAdvanceStatus_NoSkipping(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_skip"})

	created, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 1),
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), created.Order.ID, StatusShipped)

	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusPending, itErr.From)
	assert.Equal(t, StatusShipped, itErr.To)
}

func TestAdvanceStatus_PaidNotReachable(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_nopay"})

	created, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 1),
	})
	require.NoError(t, err)

	// Marking an order Paid without a verified confirmation is forbidden
	// even though Paid is Pending's successor in the state machine.
	_, err = svc.AdvanceStatus(context.Background(), created.Order.ID, StatusPaid)

	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestAdvanceStatus_CancelPending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &mockBroker{intentID: "order_cancel"})

	created, err := svc.CreateOrder(context.Background(), "user-1", []LineItem{
		cartItem("p1", "500", 1),
	})
	require.NoError(t, err)

	cancelled, err := svc.AdvanceStatus(context.Background(), created.Order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// A confirmation arriving after cancellation is a no-op, not a revival.
	sig := payment.Sign("order_cancel", "pay_late", testSecret)
	result, err := svc.ConfirmPayment(context.Background(), "order_cancel", "pay_late", sig)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, StatusCancelled, result.Order.Status)
}

func TestAdvanceStatus_UnknownOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &mockBroker{})

	_, err := svc.AdvanceStatus(context.Background(), "nope", StatusShipped)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders_FilterByOwner(t *testing.T) {
	repo := newMemoryRepo()
	broker := &mockBroker{}
	svc := newTestService(repo, broker)

	broker.intentID = "order_a"
	_, err := svc.CreateOrder(context.Background(), "alice", []LineItem{cartItem("p1", "10", 1)})
	require.NoError(t, err)

	broker.intentID = "order_b"
	_, err = svc.CreateOrder(context.Background(), "bob", []LineItem{cartItem("p2", "20", 1)})
	require.NoError(t, err)

	all, err := svc.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	alice, err := svc.ListOrders(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "alice", alice[0].OwnerID)
}
