package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pacigest/pacigest/internal/domain/account"
	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
)

// -- Mock Payment Repository --

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) Transition(_ context.Context, id uuid.UUID, from Status, c StatusChange) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != from {
		return nil, apperr.InvalidState("only " + string(from) + " payments can become " + string(c.To))
	}
	p.Status = c.To
	switch c.To {
	case StatusCompleted:
		at := c.At
		p.PaidAt = &at
	case StatusFailed:
		p.FailureReason = c.Reason
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) List(_ context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Payment
	for _, p := range m.payments {
		if p.DoctorID != doctorID || (f.Status != "" && p.Status != f.Status) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return result, len(result), nil
}

// -- Mock Subscription Store --

type mockSubs struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
	err  error
}

func (m *mockSubs) Get(_ context.Context, doctorID uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sub, ok := m.subs[doctorID]
	if !ok {
		return nil, apperr.NotFound("subscription")
	}
	cp := *sub
	return &cp, nil
}

func (m *mockSubs) Renew(_ context.Context, doctorID uuid.UUID, plan account.Plan, endsAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[doctorID]
	if !ok {
		return apperr.NotFound("subscription")
	}
	sub.Plan = plan
	sub.Status = account.StatusActive
	sub.EndsAt = &endsAt
	return nil
}

// -- Helpers --

type testEnv struct {
	svc    *Service
	repo   *mockPaymentRepo
	subs   *mockSubs
	doctor *auth.Session
	now    time.Time
}

func newTestEnv() *testEnv {
	doctorID := uuid.New()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	trialEnd := now.Add(3 * 24 * time.Hour)
	env := &testEnv{
		repo: newMockPaymentRepo(),
		subs: &mockSubs{subs: map[uuid.UUID]*Subscription{
			doctorID: {DoctorID: doctorID, Plan: account.PlanTrial, Status: account.StatusTrialing, TrialEndsAt: &trialEnd},
		}},
		doctor: &auth.Session{UserID: doctorID, Role: auth.RoleDoctor, DoctorID: doctorID},
		now:    now,
	}
	env.svc = NewService(env.repo, env.subs, nil, zerolog.Nop())
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) pay(t *testing.T, months int) *Payment {
	t.Helper()
	p, err := env.svc.Create(context.Background(), env.doctor, CreatePaymentRequest{
		Provider: ProviderTransfer, AmountCents: 2900, Currency: "eur", Plan: account.PlanBasic, PeriodMonths: months,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

// -- Tests --

func TestCreatePayment(t *testing.T) {
	env := newTestEnv()
	p := env.pay(t, 1)
	if p.Status != StatusPending {
		t.Errorf("expected pending, got %s", p.Status)
	}
	if p.Currency != "EUR" {
		t.Errorf("expected upper-cased currency, got %s", p.Currency)
	}
}

func TestCreatePayment_Validation(t *testing.T) {
	env := newTestEnv()
	valid := CreatePaymentRequest{Provider: ProviderStripe, AmountCents: 100, Currency: "USD", Plan: account.PlanPremium, PeriodMonths: 12}
	tests := []struct {
		name   string
		mutate func(r *CreatePaymentRequest)
	}{
		{"zero amount", func(r *CreatePaymentRequest) { r.AmountCents = 0 }},
		{"bad currency", func(r *CreatePaymentRequest) { r.Currency = "EURO" }},
		{"trial plan", func(r *CreatePaymentRequest) { r.Plan = account.PlanTrial }},
		{"unknown provider", func(r *CreatePaymentRequest) { r.Provider = "cash" }},
		{"no period", func(r *CreatePaymentRequest) { r.PeriodMonths = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if _, err := env.svc.Create(context.Background(), env.doctor, req); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCompletePayment_RenewsSubscription(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.pay(t, 1)

	paid, err := env.svc.Complete(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if paid.Status != StatusCompleted || paid.PaidAt == nil {
		t.Errorf("unexpected payment %+v", paid)
	}

	sub, _ := env.subs.Get(ctx, env.doctor.DoctorID)
	want := env.now.AddDate(0, 1, 0)
	if sub.Status != account.StatusActive || sub.Plan != account.PlanBasic || !sub.EndsAt.Equal(want) {
		t.Errorf("expected active basic until %v, got %+v", want, sub)
	}

	// A second payment stacks on top of the remaining period.
	second := env.pay(t, 2)
	if _, err := env.svc.Complete(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	sub, _ = env.subs.Get(ctx, env.doctor.DoctorID)
	if want := want.AddDate(0, 2, 0); !sub.EndsAt.Equal(want) {
		t.Errorf("expected stacked end %v, got %v", want, sub.EndsAt)
	}

	if _, err := env.svc.Complete(ctx, p.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("completing twice: expected invalid state, got %v", err)
	}
}

func TestRenewedUntil(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(10 * 24 * time.Hour)
	tests := []struct {
		name    string
		current *time.Time
		want    time.Time
	}{
		{"no period", nil, now.AddDate(0, 3, 0)},
		{"lapsed", &past, now.AddDate(0, 3, 0)},
		{"running", &future, future.AddDate(0, 3, 0)},
	}
	for _, tt := range tests {
		if got := renewedUntil(tt.current, now, 3); !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFailAndRefund(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	failed := env.pay(t, 1)
	got, err := env.svc.Fail(ctx, failed.ID, "card declined")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.FailureReason == nil {
		t.Errorf("unexpected failed payment %+v", got)
	}
	if _, err := env.svc.Refund(ctx, failed.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("refunding a failed payment: expected invalid state, got %v", err)
	}

	paid := env.pay(t, 1)
	if _, err := env.svc.Refund(ctx, paid.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("refunding a pending payment: expected invalid state, got %v", err)
	}
	env.svc.Complete(ctx, paid.ID)
	refunded, err := env.svc.Refund(ctx, paid.ID)
	if err != nil || refunded.Status != StatusRefunded {
		t.Errorf("refund: %+v %v", refunded, err)
	}
}

func TestHandleEvent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := env.pay(t, 1)

	tests := []struct {
		name string
		ev   ProviderEvent
		want error
	}{
		{"unknown type", ProviderEvent{PaymentID: p.ID, Type: "payment.disputed"}, apperr.ErrValidation},
		{"missing payment", ProviderEvent{Type: EventCompleted}, apperr.ErrValidation},
		{"unknown payment", ProviderEvent{PaymentID: uuid.New(), Type: EventCompleted}, apperr.ErrNotFound},
		{"failure without reason", ProviderEvent{PaymentID: p.ID, Type: EventFailed}, apperr.ErrValidation},
		{"failure with blank reason", ProviderEvent{PaymentID: p.ID, Type: EventFailed, Reason: " \t"}, apperr.ErrValidation},
		{"refund before completion", ProviderEvent{PaymentID: p.ID, Type: EventRefunded}, apperr.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.HandleEvent(ctx, tt.ev); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	paid, err := env.svc.HandleEvent(ctx, ProviderEvent{PaymentID: p.ID, Type: EventCompleted})
	if err != nil || paid.Status != StatusCompleted {
		t.Fatalf("complete: %+v %v", paid, err)
	}
	sub, _ := env.subs.Get(ctx, env.doctor.DoctorID)
	if sub.Status != account.StatusActive {
		t.Errorf("expected active subscription, got %+v", sub)
	}
}

func TestPayment_CrossDoctor(t *testing.T) {
	env := newTestEnv()
	p := env.pay(t, 1)
	otherID := uuid.New()
	other := &auth.Session{UserID: otherID, Role: auth.RoleDoctor, DoctorID: otherID}
	if _, err := env.svc.Get(context.Background(), other, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestSubscriptionActive(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := env.doctor.DoctorID

	active, err := env.svc.SubscriptionActive(ctx, id)
	if err != nil || !active {
		t.Errorf("running trial should be active: %v %v", active, err)
	}

	env.now = env.now.Add(4 * 24 * time.Hour)
	if active, _ := env.svc.SubscriptionActive(ctx, id); active {
		t.Error("trial past its end should be inactive")
	}

	p := env.pay(t, 1)
	env.svc.Complete(ctx, p.ID)
	if active, _ := env.svc.SubscriptionActive(ctx, id); !active {
		t.Error("paid subscription should be active")
	}

	sub, err := env.svc.Subscription(ctx, env.doctor)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Active || sub.DaysLeft < 28 {
		t.Errorf("unexpected subscription view %+v", sub)
	}

	env.subs.err = errors.New("connection refused")
	if _, err := env.svc.SubscriptionActive(ctx, id); err == nil {
		t.Error("expected lookup error to propagate")
	}
}

func TestSubscription_ActiveAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)
	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"active until later", Subscription{Status: account.StatusActive, EndsAt: &later}, true},
		{"active but ended", Subscription{Status: account.StatusActive, EndsAt: &earlier}, false},
		{"active without end", Subscription{Status: account.StatusActive}, false},
		{"trialing", Subscription{Status: account.StatusTrialing, TrialEndsAt: &later}, true},
		{"expired", Subscription{Status: account.StatusExpired, EndsAt: &later}, false},
		{"cancelled", Subscription{Status: account.StatusCancelled, EndsAt: &later}, false},
	}
	for _, tt := range tests {
		if got := tt.sub.ActiveAt(now); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}
