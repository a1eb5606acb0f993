package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/zenbook/service-booking/internal/domain/booking"
	"github.com/zenbook/service-booking/internal/domain/identity"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/kafka"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// --- Bookings ---

type fakeBookingRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*bookingDomain.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{rows: map[uuid.UUID]*bookingDomain.Booking{}}
}

func copyBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		b.ID(), b.CustomerID(), b.TherapistID(), b.Details(), b.Status(),
		b.ApprovedAt(), b.StartedAt(), b.CompletedAt(), b.DeclinedAt(),
		b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
}

func matches(b *bookingDomain.Booking, f bookingDomain.ListFilter) bool {
	if f.CustomerID != nil && b.CustomerID() != *f.CustomerID {
		return false
	}
	if f.TherapistID != nil && b.TherapistID() != *f.TherapistID {
		return false
	}
	if f.Status != nil && b.Status() != *f.Status {
		return false
	}
	return true
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.rows[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	return copyBooking(b), nil
}

func (r *fakeBookingRepo) filtered(f bookingDomain.ListFilter) []*bookingDomain.Booking {
	var out []*bookingDomain.Booking
	for _, b := range r.rows {
		if matches(b, f) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out
}

func (r *fakeBookingRepo) List(_ context.Context, f bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filtered(f)
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *fakeBookingRepo) FindScheduledOn(_ context.Context, date time.Time, status bookingDomain.BookingStatus) ([]*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.rows {
		if b.Status() == status && b.BookingDate().Equal(date) {
			out = append(out, copyBooking(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context, f bookingDomain.ListFilter) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, b := range r.rows {
		if matches(b, f) {
			out[b.Status().String()]++
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) CustomersOf(_ context.Context, therapistID uuid.UUID) ([]bookingDomain.CustomerBookingCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCustomer := map[uuid.UUID]*bookingDomain.CustomerBookingCount{}
	for _, b := range r.rows {
		if b.TherapistID() != therapistID {
			continue
		}
		c, ok := byCustomer[b.CustomerID()]
		if !ok {
			c = &bookingDomain.CustomerBookingCount{CustomerID: b.CustomerID()}
			byCustomer[b.CustomerID()] = c
		}
		c.BookingsCount++
		if b.CreatedAt().After(c.LastBookingAt) {
			c.LastBookingAt = b.CreatedAt()
		}
	}
	out := make([]bookingDomain.CustomerBookingCount, 0, len(byCustomer))
	for _, c := range byCustomer {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID()] = copyBooking(b)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[b.ID()]
	if !ok || cur.Version() != b.Version()-1 || cur.Status() != expected {
		return apperror.NewConflictError("Booking was modified by another request. Please reload and try again.")
	}
	r.rows[b.ID()] = copyBooking(b)
	return nil
}

func (r *fakeBookingRepo) Delete(_ context.Context, id uuid.UUID, expected *bookingDomain.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[id]
	if !ok {
		return apperror.NewNotFoundError("Booking", id.String())
	}
	if expected != nil && cur.Status() != *expected {
		return apperror.NewConflictError("Booking was modified by another request. Please reload and try again.")
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeBookingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- Users ---

type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*userDomain.User
	// onDelete runs inside Delete, mirroring the cascading transaction.
	onDelete func(id uuid.UUID)
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: map[uuid.UUID]*userDomain.User{}}
}

func copyUser(u *userDomain.User) *userDomain.User {
	return userDomain.Reconstruct(
		u.ID(), u.Name(), u.Email(), u.PasswordHash(), u.Role(),
		u.Phone(), u.Bio(), u.Address(), u.ProfileImage(),
		u.EmailVerifiedAt(), u.CreatedAt(), u.UpdatedAt(),
	)
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, apperror.NewNotFoundError("User", id.String())
	}
	return copyUser(u), nil
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]*userDomain.User{}
	for _, id := range ids {
		if u, ok := r.rows[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*userDomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email() == email {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NewNotFoundError("User", email)
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string, exclude uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email() == email && u.ID() != exclude {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) List(_ context.Context, roles []identity.Role, page, limit int) ([]*userDomain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*userDomain.User
	for _, u := range r.rows {
		for _, role := range roles {
			if u.Role() == role {
				all = append(all, copyUser(u))
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email() < all[j].Email() })
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context) (map[identity.Role]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[identity.Role]int64{}
	for _, u := range r.rows {
		out[u.Role()]++
	}
	return out, nil
}

func (r *fakeUserRepo) Save(_ context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[u.ID()] = copyUser(u)
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *userDomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[u.ID()]; !ok {
		return apperror.NewNotFoundError("User", u.ID().String())
	}
	r.rows[u.ID()] = copyUser(u)
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperror.NewNotFoundError("User", id.String())
	}
	delete(r.rows, id)
	if r.onDelete != nil {
		r.onDelete(id)
	}
	return nil
}

// --- Therapist profiles ---

type fakeProfileRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*therapistDomain.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{rows: map[uuid.UUID]*therapistDomain.Profile{}}
}

func copyProfile(p *therapistDomain.Profile) *therapistDomain.Profile {
	return therapistDomain.Reconstruct(
		p.ID(), p.UserID(), p.Phone(), p.Address(), p.Bio(),
		p.IsAvailable(), p.Version(), p.CreatedAt(), p.UpdatedAt(),
	)
}

func (r *fakeProfileRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*therapistDomain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[userID]
	if !ok {
		return nil, apperror.NewNotFoundError("TherapistProfile", userID.String())
	}
	return copyProfile(p), nil
}

func (r *fakeProfileRepo) FindByUserIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*therapistDomain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]*therapistDomain.Profile{}
	for _, id := range ids {
		if p, ok := r.rows[id]; ok {
			out[id] = copyProfile(p)
		}
	}
	return out, nil
}

func (r *fakeProfileRepo) ListAvailable(_ context.Context) ([]*therapistDomain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*therapistDomain.Profile
	for _, p := range r.rows {
		if p.IsAvailable() {
			out = append(out, copyProfile(p))
		}
	}
	return out, nil
}

func (r *fakeProfileRepo) Save(_ context.Context, p *therapistDomain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.UserID()] = copyProfile(p)
	return nil
}

func (r *fakeProfileRepo) Update(_ context.Context, p *therapistDomain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[p.UserID()]
	if !ok || cur.Version() != p.Version()-1 {
		return apperror.NewConflictError("Therapist profile was modified by another request.")
	}
	r.rows[p.UserID()] = copyProfile(p)
	return nil
}

func (r *fakeProfileRepo) SetAvailability(_ context.Context, userID uuid.UUID, available bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[userID]
	if !ok {
		return apperror.NewNotFoundError("TherapistProfile", userID.String())
	}
	if cur.IsAvailable() == available {
		return apperror.NewConflictError("Availability was changed by another request.")
	}
	next := copyProfile(cur)
	next.SetAvailability(available, now)
	r.rows[userID] = next
	return nil
}

// --- Token store ---

type fakeTokenStore struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{values: map[string]string{}, counts: map[string]int64{}}
}

func (s *fakeTokenStore) Put(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeTokenStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", userDomain.ErrTokenNotFound
	}
	return v, nil
}

func (s *fakeTokenStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeTokenStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.counts, k)
	}
	return nil
}

func (s *fakeTokenStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// --- Events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	topics []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic string, evt kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last(eventType string) (kafka.CloudEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i], true
		}
	}
	return kafka.CloudEvent{}, false
}

// --- Fixture ---

type fixture struct {
	bookings  *fakeBookingRepo
	users     *fakeUserRepo
	profiles  *fakeProfileRepo
	tokens    *fakeTokenStore
	publisher *recordingPublisher

	bookingSvc   *BookingService
	therapistSvc *TherapistService
	adminSvc     *AdminService
}

func newFixture() *fixture {
	f := &fixture{
		bookings:  newFakeBookingRepo(),
		users:     newFakeUserRepo(),
		profiles:  newFakeProfileRepo(),
		tokens:    newFakeTokenStore(),
		publisher: &recordingPublisher{},
	}
	f.users.onDelete = func(id uuid.UUID) {
		f.bookings.mu.Lock()
		for bid, b := range f.bookings.rows {
			if b.CustomerID() == id || b.TherapistID() == id {
				delete(f.bookings.rows, bid)
			}
		}
		f.bookings.mu.Unlock()
		f.profiles.mu.Lock()
		delete(f.profiles.rows, id)
		f.profiles.mu.Unlock()
	}

	log := zap.NewNop()
	gate := NewAvailabilityGate(f.users, f.profiles)
	f.bookingSvc = NewBookingService(f.bookings, f.users, gate, f.publisher, nil, fixedClock, log)
	f.therapistSvc = NewTherapistService(f.profiles, f.users, f.bookingSvc, nil, f.publisher, fixedClock, log)
	f.adminSvc = NewAdminService(f.users, f.profiles, f.bookingSvc, nil, 4, fixedClock, log)
	return f
}

func (f *fixture) addUser(role identity.Role) identity.Principal {
	id := uuid.New()
	verified := testNow
	email := role.String() + "-" + id.String()[:8] + "@example.com"
	u := userDomain.Reconstruct(id, "User "+id.String()[:4], email, "hash", role, "", "", "", "", &verified, testNow, testNow)
	_ = f.users.Save(context.Background(), u)
	return identity.Principal{ID: id, Role: role}
}

func (f *fixture) addTherapist(available bool) identity.Principal {
	p := f.addUser(identity.RoleTherapist)
	profile := therapistDomain.Reconstruct(uuid.New(), p.ID, "0123", "KL", "", available, 1, testNow, testNow)
	_ = f.profiles.Save(context.Background(), profile)
	return p
}

func (f *fixture) seedBooking(customer, therapist identity.Principal, status bookingDomain.BookingStatus, createdAt time.Time) *bookingDomain.Booking {
	details := bookingDomain.Details{
		BookingDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		BookingTime: "10:00",
		Address:     "12 Jalan Ampang",
		ServiceType: "Swedish massage",
	}
	b := bookingDomain.ReconstructBooking(uuid.New(), customer.ID, therapist.ID, details, status,
		nil, nil, nil, nil, 1, createdAt, createdAt)
	_ = f.bookings.Save(context.Background(), b)
	return b
}
