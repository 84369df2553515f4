package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-discount-engine/internal/domain"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager serializes every transaction behind one mutex, which stands in
// for the row-lock discipline the real store enforces: two "transactions"
// touching the same code can never interleave.
type mockTxManager struct {
	mu sync.Mutex
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// memPlanRepo is a small in-memory implementation used by unit tests.
type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.SubscriptionPlan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.SubscriptionPlan)}
}

func (m *memPlanRepo) Save(ctx context.Context, _ repository.Tx, p *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) FindDefault(ctx context.Context, _ repository.Tx) (*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.IsDefault {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPlanRepo) List(ctx context.Context, _ repository.Tx) ([]*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// memCodeRepo keeps codes by id with a code-string index, mirroring the
// unique constraint on the code column.
type memCodeRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.DiscountCode
	byCode  map[string]string
	lockErr error // simulate FOR UPDATE NOWAIT contention
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{store: make(map[string]*model.DiscountCode), byCode: make(map[string]string)}
}

func (m *memCodeRepo) Save(ctx context.Context, _ repository.Tx, c *model.DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byCode[c.Code]; ok && id != c.ID {
		return domain.ErrAlreadyExists
	}
	cp := *c
	m.store[c.ID] = &cp
	m.byCode[c.Code] = c.ID
	return nil
}

func (m *memCodeRepo) FindByCode(ctx context.Context, _ repository.Tx, code string) (*model.DiscountCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *memCodeRepo) LockByCode(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	return m.FindByCode(ctx, tx, code)
}

func (m *memCodeRepo) LockByID(ctx context.Context, _ repository.Tx, id string) (*model.DiscountCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) ListActiveCodes(ctx context.Context, _ repository.Tx) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for code, id := range m.byCode {
		if m.store[id].IsActive {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memCodeRepo) List(ctx context.Context, _ repository.Tx) ([]*model.DiscountCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DiscountCode
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memCodeRepo) AdjustUses(ctx context.Context, _ repository.Tx, codeID string, currentDelta, reservedDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[codeID]
	if !ok {
		return domain.ErrNotFound
	}
	c.CurrentUses += currentDelta
	c.ReservedUses += reservedDelta
	return nil
}

// get reads the stored code without copying; test assertions only.
func (m *memCodeRepo) get(id string) *model.DiscountCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id]
}

type memReservationRepo struct {
	mu    sync.RWMutex
	store map[string]*model.DiscountReservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{store: make(map[string]*model.DiscountReservation)}
}

func (m *memReservationRepo) Insert(ctx context.Context, _ repository.Tx, r *model.DiscountReservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[r.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *memReservationRepo) LockByID(ctx context.Context, _ repository.Tx, id string) (*model.DiscountReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReservationRepo) FindLiveByCodeAndEmail(ctx context.Context, _ repository.Tx, codeID, email string, now time.Time) (*model.DiscountReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.store {
		if r.CodeID == codeID && r.CustomerEmail == email && r.Live(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memReservationRepo) CountLiveByCode(ctx context.Context, _ repository.Tx, codeID string, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.store {
		if r.CodeID == codeID && r.Live(now) {
			n++
		}
	}
	return n, nil
}

func (m *memReservationRepo) ListExpiredForUpdate(ctx context.Context, _ repository.Tx, now time.Time, limit int) ([]*model.DiscountReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DiscountReservation
	for _, r := range m.store {
		if r.RedeemedAt == nil && r.ReapedAt == nil && !r.ExpiresAt.After(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memReservationRepo) MarkRedeemed(ctx context.Context, _ repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.RedeemedAt != nil {
		return domain.ErrNotFound
	}
	t := at
	r.RedeemedAt = &t
	return nil
}

func (m *memReservationRepo) MarkReaped(ctx context.Context, _ repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.ReapedAt != nil || r.RedeemedAt != nil {
		return domain.ErrNotFound
	}
	t := at
	r.ReapedAt = &t
	return nil
}

func (m *memReservationRepo) get(id string) *model.DiscountReservation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id]
}

type memRedemptionRepo struct {
	mu         sync.RWMutex
	store      map[string]*model.DiscountRedemption
	byProvider map[string]string
}

func newMemRedemptionRepo() *memRedemptionRepo {
	return &memRedemptionRepo{
		store:      make(map[string]*model.DiscountRedemption),
		byProvider: make(map[string]string),
	}
}

func (m *memRedemptionRepo) Insert(ctx context.Context, _ repository.Tx, r *model.DiscountRedemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byProvider[r.ProviderSubscriptionID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *r
	m.store[r.ID] = &cp
	m.byProvider[r.ProviderSubscriptionID] = r.ID
	return nil
}

func (m *memRedemptionRepo) FindByProviderSubscriptionID(ctx context.Context, _ repository.Tx, providerSubID string) (*model.DiscountRedemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byProvider[providerSubID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.store[id]
	return &cp, nil
}

func (m *memRedemptionRepo) CountByCodeAndEmail(ctx context.Context, _ repository.Tx, codeID, email string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.store {
		if r.CodeID == codeID && r.CustomerEmail == email {
			n++
		}
	}
	return n, nil
}

// testEnv bundles the repositories and use cases most tests need.
type testEnv struct {
	plans        *memPlanRepo
	codes        *memCodeRepo
	reservations *memReservationRepo
	redemptions  *memRedemptionRepo
	tm           *mockTxManager
}

func newTestEnv() *testEnv {
	return &testEnv{
		plans:        newMemPlanRepo(),
		codes:        newMemCodeRepo(),
		reservations: newMemReservationRepo(),
		redemptions:  newMemRedemptionRepo(),
		tm:           &mockTxManager{},
	}
}

func (e *testEnv) seedPlan(id string, price float64, active bool) *model.SubscriptionPlan {
	p := &model.SubscriptionPlan{
		ID:           id,
		Name:         "Pro Monthly",
		Price:        price,
		Currency:     "USD",
		BillingCycle: model.BillingCycleMonthly,
		IsActive:     active,
		CreatedAt:    time.Now(),
	}
	_ = e.plans.Save(context.Background(), repository.NoTX, p)
	return p
}

func (e *testEnv) seedCode(c *model.DiscountCode) *model.DiscountCode {
	_ = e.codes.Save(context.Background(), repository.NoTX, c)
	return c
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }
