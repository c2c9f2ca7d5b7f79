package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/ccc-cruise/service-promo/internal/domain/capacity"
	promoDomain "github.com/ccc-cruise/service-promo/internal/domain/promo"
	travelerDomain "github.com/ccc-cruise/service-promo/internal/domain/traveler"
	usageDomain "github.com/ccc-cruise/service-promo/internal/domain/usage"
	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the transactional store. WithTx
// snapshots all state and restores it when fn fails, so rollback
// properties hold in tests the same way they do against Postgres.
type fakeStore struct {
	mu        sync.Mutex
	promos    map[uuid.UUID]*promoDomain.PromoCode
	usages    map[uuid.UUID]*usageDomain.Entry
	counters  map[string]capacity.Counter
	travelers map[uuid.UUID]*travelerDomain.Traveler
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		promos:    make(map[uuid.UUID]*promoDomain.PromoCode),
		usages:    make(map[uuid.UUID]*usageDomain.Entry),
		counters:  make(map[string]capacity.Counter),
		travelers: make(map[uuid.UUID]*travelerDomain.Traveler),
	}
}

func counterKey(category string, codeType promoDomain.CodeType) string {
	return category + "|" + string(codeType)
}

func clonePromo(p *promoDomain.PromoCode) *promoDomain.PromoCode {
	return promoDomain.Reconstruct(p.ID(), p.Code(), p.Type(), p.Status(), p.MaxUses(), p.AssignedTo(), p.CreatedAt(), p.UpdatedAt())
}

func cloneUsage(e *usageDomain.Entry) *usageDomain.Entry {
	return usageDomain.Reconstruct(e.ID(), e.PromoCodeID(), e.BookingRef(), e.TravelerID(), e.Category(), e.Status(), e.ReservedAt(), e.ConsumedAt(), e.ReleasedAt(), e.CreatedAt(), e.UpdatedAt())
}

func cloneTraveler(t *travelerDomain.Traveler) *travelerDomain.Traveler {
	clone := &travelerDomain.Traveler{ID: t.ID, BookingRef: t.BookingRef, Idx: t.Idx}
	if t.PromoCodeID != nil {
		id := *t.PromoCodeID
		clone.PromoCodeID = &id
	}
	return clone
}

func (s *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for id, p := range s.promos {
		snap.promos[id] = clonePromo(p)
	}
	for id, e := range s.usages {
		snap.usages[id] = cloneUsage(e)
	}
	for k, c := range s.counters {
		snap.counters[k] = c
	}
	for id, t := range s.travelers {
		snap.travelers[id] = cloneTraveler(t)
	}
	return snap
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.promos = snap.promos
	s.usages = snap.usages
	s.counters = snap.counters
	s.travelers = snap.travelers
}

// WithTx implements TxRunner with rollback-on-error.
func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Seed helpers.

func (s *fakeStore) addPromo(code string, codeType promoDomain.CodeType, maxUses int) *promoDomain.PromoCode {
	p, err := promoDomain.NewPromoCode(code, codeType, maxUses, promoDomain.Assignment{})
	if err != nil {
		panic(err)
	}
	s.promos[p.ID()] = p
	return p
}

func (s *fakeStore) addTraveler(bookingRef string, idx int) *travelerDomain.Traveler {
	t := &travelerDomain.Traveler{ID: uuid.New(), BookingRef: bookingRef, Idx: idx}
	s.travelers[t.ID] = t
	return t
}

func (s *fakeStore) setCap(category string, codeType promoDomain.CodeType, limit int) {
	s.counters[counterKey(category, codeType)] = capacity.Counter{
		Category: category, CodeType: codeType, Cap: limit,
	}
}

func (s *fakeStore) setCounter(category string, codeType promoDomain.CodeType, limit, claimed int) {
	s.counters[counterKey(category, codeType)] = capacity.Counter{
		Category: category, CodeType: codeType, Cap: limit, Claimed: claimed,
	}
}

func (s *fakeStore) claimed(category string, codeType promoDomain.CodeType) int {
	return s.counters[counterKey(category, codeType)].Claimed
}

func insertUsage(t *testing.T, s *fakeStore, p *promoDomain.PromoCode, trav *travelerDomain.Traveler, category string, consumed bool) *usageDomain.Entry {
	t.Helper()
	e, err := usageDomain.NewEntry(p.ID(), trav.BookingRef, trav.ID, category)
	if err != nil {
		t.Fatalf("new usage entry: %v", err)
	}
	if consumed {
		if err := e.Consume(); err != nil {
			t.Fatalf("consume usage entry: %v", err)
		}
	}
	s.usages[e.ID()] = e
	return e
}

// fakePromoRepo implements promo.Repository.
type fakePromoRepo struct{ store *fakeStore }

func (r *fakePromoRepo) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	if _, err := r.FindByCode(ctx, p.Code()); err == nil {
		return domain.NewConflictError("promo code %s already exists", p.Code())
	}
	r.store.promos[p.ID()] = clonePromo(p)
	return nil
}

func (r *fakePromoRepo) SaveBatch(ctx context.Context, codes []*promoDomain.PromoCode) error {
	for _, p := range codes {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePromoRepo) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	r.store.promos[p.ID()] = clonePromo(p)
	return nil
}

func (r *fakePromoRepo) FindByCode(_ context.Context, code string) (*promoDomain.PromoCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, p := range r.store.promos {
		if p.Code() == normalized {
			return clonePromo(p), nil
		}
	}
	return nil, domain.NewNotFoundError("promo code", code)
}

func (r *fakePromoRepo) FindByID(_ context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	p, ok := r.store.promos[id]
	if !ok {
		return nil, domain.NewNotFoundError("promo code", id.String())
	}
	return clonePromo(p), nil
}

func (r *fakePromoRepo) List(_ context.Context, page, limit int) ([]*promoDomain.PromoCode, int64, error) {
	var codes []*promoDomain.PromoCode
	for _, p := range r.store.promos {
		codes = append(codes, clonePromo(p))
	}
	return codes, int64(len(codes)), nil
}

func (r *fakePromoRepo) CountByType(_ context.Context) (map[promoDomain.CodeType]int64, error) {
	counts := make(map[promoDomain.CodeType]int64)
	for _, p := range r.store.promos {
		counts[p.Type()]++
	}
	return counts, nil
}

// fakeUsageRepo implements usage.Repository.
type fakeUsageRepo struct{ store *fakeStore }

func (r *fakeUsageRepo) Insert(_ context.Context, e *usageDomain.Entry) error {
	for _, existing := range r.store.usages {
		if existing.PromoCodeID() == e.PromoCodeID() &&
			existing.TravelerID() == e.TravelerID() &&
			existing.BookingRef() == e.BookingRef() &&
			existing.Active() {
			return domain.NewConflictError("promo code already reserved for this traveler")
		}
	}
	r.store.usages[e.ID()] = cloneUsage(e)
	return nil
}

func (r *fakeUsageRepo) FindByID(_ context.Context, id uuid.UUID) (*usageDomain.Entry, error) {
	e, ok := r.store.usages[id]
	if !ok {
		return nil, domain.NewNotFoundError("usage entry", id.String())
	}
	return cloneUsage(e), nil
}

func (r *fakeUsageRepo) FindActive(_ context.Context, promoCodeID, travelerID uuid.UUID, bookingRef string) (*usageDomain.Entry, error) {
	for _, e := range r.store.usages {
		if e.PromoCodeID() == promoCodeID && e.TravelerID() == travelerID && e.BookingRef() == bookingRef && e.Active() {
			return cloneUsage(e), nil
		}
	}
	return nil, nil
}

func (r *fakeUsageRepo) FindActiveByTraveler(_ context.Context, travelerID uuid.UUID, bookingRef string) (*usageDomain.Entry, error) {
	for _, e := range r.store.usages {
		if e.TravelerID() == travelerID && e.BookingRef() == bookingRef && e.Active() {
			return cloneUsage(e), nil
		}
	}
	return nil, nil
}

func (r *fakeUsageRepo) ListReservedByBooking(_ context.Context, bookingRef string) ([]*usageDomain.Entry, error) {
	var entries []*usageDomain.Entry
	for _, e := range r.store.usages {
		if e.BookingRef() == bookingRef && e.Status() == usageDomain.StatusReserved {
			entries = append(entries, cloneUsage(e))
		}
	}
	return entries, nil
}

func (r *fakeUsageRepo) CountActiveByCode(_ context.Context, promoCodeID uuid.UUID) (int64, error) {
	var count int64
	for _, e := range r.store.usages {
		if e.PromoCodeID() == promoCodeID && e.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeUsageRepo) CountConsumedByCode(_ context.Context, promoCodeID uuid.UUID) (int64, error) {
	var count int64
	for _, e := range r.store.usages {
		if e.PromoCodeID() == promoCodeID && e.Status() == usageDomain.StatusConsumed {
			count++
		}
	}
	return count, nil
}

func (r *fakeUsageRepo) ConsumedCountByType(ctx context.Context) (map[promoDomain.CodeType]int64, error) {
	counts := make(map[promoDomain.CodeType]int64)
	for _, e := range r.store.usages {
		if e.Status() != usageDomain.StatusConsumed {
			continue
		}
		p, ok := r.store.promos[e.PromoCodeID()]
		if !ok {
			return nil, fmt.Errorf("dangling promo code id %s", e.PromoCodeID())
		}
		counts[p.Type()]++
	}
	return counts, nil
}

func (r *fakeUsageRepo) ActiveCountsByCode(_ context.Context) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	for _, e := range r.store.usages {
		if e.Active() {
			counts[e.PromoCodeID()]++
		}
	}
	return counts, nil
}

func (r *fakeUsageRepo) MarkConsumed(_ context.Context, id uuid.UUID) (bool, error) {
	e, ok := r.store.usages[id]
	if !ok || e.Status() != usageDomain.StatusReserved {
		return false, nil
	}
	if err := e.Consume(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeUsageRepo) MarkReleased(_ context.Context, id uuid.UUID) (bool, error) {
	e, ok := r.store.usages[id]
	if !ok || e.Status() != usageDomain.StatusReserved {
		return false, nil
	}
	if err := e.Release(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeUsageRepo) ConsumeAllReserved(_ context.Context, bookingRef string) (int64, error) {
	var count int64
	for _, e := range r.store.usages {
		if e.BookingRef() == bookingRef && e.Status() == usageDomain.StatusReserved {
			if err := e.Consume(); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

// fakeCapacityLedger implements capacity.Ledger.
type fakeCapacityLedger struct{ store *fakeStore }

func (l *fakeCapacityLedger) TryClaim(_ context.Context, category string, codeType promoDomain.CodeType, count int) (int, error) {
	if count < 0 {
		return 0, domain.NewInvalidInputError("claim count cannot be negative")
	}
	key := counterKey(category, codeType)
	c, ok := l.store.counters[key]
	if !ok {
		return count, nil
	}

	granted := count
	if remaining := c.Cap - c.Claimed; granted > remaining {
		granted = remaining
	}
	if granted < 0 {
		granted = 0
	}
	c.Claimed += granted
	l.store.counters[key] = c
	return granted, nil
}

func (l *fakeCapacityLedger) Release(_ context.Context, category string, codeType promoDomain.CodeType, count int) error {
	key := counterKey(category, codeType)
	c, ok := l.store.counters[key]
	if !ok {
		return nil
	}
	c.Claimed -= count
	if c.Claimed < 0 {
		c.Claimed = 0
	}
	l.store.counters[key] = c
	return nil
}

func (l *fakeCapacityLedger) Seed(_ context.Context, counters []capacity.Counter) error {
	for _, c := range counters {
		l.store.counters[counterKey(c.Category, c.CodeType)] = c
	}
	return nil
}

func (l *fakeCapacityLedger) Snapshot(_ context.Context) ([]capacity.Counter, error) {
	var counters []capacity.Counter
	for _, c := range l.store.counters {
		counters = append(counters, c)
	}
	return counters, nil
}

// fakeTravelerRepo implements traveler.Repository.
type fakeTravelerRepo struct{ store *fakeStore }

func (r *fakeTravelerRepo) FindByBookingAndIdx(_ context.Context, bookingRef string, idx int) (*travelerDomain.Traveler, error) {
	for _, t := range r.store.travelers {
		if t.BookingRef == bookingRef && t.Idx == idx {
			return cloneTraveler(t), nil
		}
	}
	return nil, domain.NewNotFoundError("traveler", fmt.Sprintf("%s/%d", bookingRef, idx))
}

func (r *fakeTravelerRepo) ListFromIdx(_ context.Context, bookingRef string, fromIdx int) ([]*travelerDomain.Traveler, error) {
	var travelers []*travelerDomain.Traveler
	for _, t := range r.store.travelers {
		if t.BookingRef == bookingRef && t.Idx >= fromIdx {
			travelers = append(travelers, cloneTraveler(t))
		}
	}
	return travelers, nil
}

func (r *fakeTravelerRepo) SetPromoRef(_ context.Context, id uuid.UUID, promoCodeID *uuid.UUID) error {
	t, ok := r.store.travelers[id]
	if !ok {
		return domain.NewNotFoundError("traveler", id.String())
	}
	if promoCodeID == nil {
		t.PromoCodeID = nil
	} else {
		ref := *promoCodeID
		t.PromoCodeID = &ref
	}
	return nil
}

func (r *fakeTravelerRepo) DeleteFromIdx(_ context.Context, bookingRef string, fromIdx int) error {
	for id, t := range r.store.travelers {
		if t.BookingRef == bookingRef && t.Idx >= fromIdx {
			delete(r.store.travelers, id)
		}
	}
	return nil
}

// fakePublisher records emitted events.
type fakePublisher struct {
	consumed []string
	released []string
}

func (p *fakePublisher) PromoConsumed(_ context.Context, bookingRef string, _ int64) {
	p.consumed = append(p.consumed, bookingRef)
}

func (p *fakePublisher) PromoReleased(_ context.Context, bookingRef, _ string) {
	p.released = append(p.released, bookingRef)
}
