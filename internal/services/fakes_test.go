package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/models"
	"github.com/lnurl-gateway/backend/internal/repositories"
	"go.uber.org/zap"
)

// memStore holds every table behind one mutex, so each method behaves like
// the single conditional statement the Postgres repositories run.
type memStore struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
	configs    map[string]*models.PaymentConfig
	invoices   map[uuid.UUID]*models.InvoiceRecord
	channels   map[string]*models.ChannelRequest
	sessions   map[uuid.UUID]*models.AuthSession
	audit      []models.AuditLog
	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		challenges: map[string]*models.Challenge{},
		configs:    map[string]*models.PaymentConfig{},
		invoices:   map[uuid.UUID]*models.InvoiceRecord{},
		channels:   map[string]*models.ChannelRequest{},
		sessions:   map[uuid.UUID]*models.AuthSession{},
	}
}

func redeemable(c *models.Challenge, kind string, now time.Time) bool {
	return c.Kind == kind && c.State == models.ChallengeStateUnused && !c.Expired(now)
}

// --- ChallengeStore ---

func (m *memStore) Create(_ context.Context, c *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[c.K1]; ok {
		return errors.New("duplicate k1")
	}
	cp := *c
	m.challenges[c.K1] = &cp
	return nil
}

func (m *memStore) transition(kind, k1, to string, now time.Time) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[k1]
	if !ok || !redeemable(c, kind, now) {
		return nil, repositories.ErrNotFound
	}
	c.State = to
	c.ConsumedAt = &now
	cp := *c
	return &cp, nil
}

func (m *memStore) Claim(_ context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	return m.transition(kind, k1, models.ChallengeStateUsed, now)
}

func (m *memStore) Cancel(_ context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	return m.transition(kind, k1, models.ChallengeStateCancelled, now)
}

func (m *memStore) Peek(_ context.Context, kind, k1 string, now time.Time) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[k1]
	if !ok || !redeemable(c, kind, now) {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) SetWithdrawResult(_ context.Context, k1 string, amountSat int64, pr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[k1]
	if !ok || c.State != models.ChallengeStateUsed || c.AmountSat != nil {
		return repositories.ErrNotFound
	}
	c.AmountSat = &amountSat
	c.PaymentRequest = &pr
	return nil
}

func (m *memStore) challenge(k1 string) models.Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.challenges[k1]
}

// --- PaymentStore / SettlementStore ---

func (m *memStore) CreateConfig(_ context.Context, c *models.PaymentConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	m.configs[c.ID] = &cp
	return nil
}

func (m *memStore) UpsertAddressConfig(_ context.Context, c *models.PaymentConfig) (*models.PaymentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.configs[c.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *c
	cp.CreatedAt = time.Now().UTC()
	m.configs[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetConfig(_ context.Context, id string) (*models.PaymentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListConfigs(_ context.Context, limit, offset int) ([]models.PaymentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentConfig
	for _, c := range m.configs {
		out = append(out, *c)
	}
	return page(out, limit, offset), nil
}

func (m *memStore) CreateInvoice(_ context.Context, i *models.InvoiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.ID = uuid.New()
	i.Paid = false
	cp := *i
	m.invoices[i.ID] = &cp
	return nil
}

func (m *memStore) GetInvoice(_ context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.invoices[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m *memStore) ListInvoices(_ context.Context, f repositories.InvoiceFilter) ([]models.InvoiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InvoiceRecord
	for _, i := range m.invoices {
		if f.PaymentID != nil && i.PaymentID != *f.PaymentID {
			continue
		}
		if f.Paid != nil && i.Paid != *f.Paid {
			continue
		}
		out = append(out, *i)
	}
	return page(out, f.Limit, f.Offset), nil
}

func (m *memStore) MarkPaid(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.invoices[id]
	if !ok || i.Paid {
		return false, nil
	}
	i.Paid = true
	i.PaidAt = &now
	return true, nil
}

func (m *memStore) invoice(id uuid.UUID) models.InvoiceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.invoices[id]
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// --- AuditLogger ---

func (m *memStore) Log(_ context.Context, entry models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.audit {
		out = append(out, a.Action)
	}
	return out
}

// channelStore and sessionStore share memStore's tables but have their own
// method sets, since the store interfaces overlap in names.
type channelStore struct{ *memStore }

func (s channelStore) Create(_ context.Context, c *models.ChannelRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("insert failed")
	}
	c.ID = uuid.New()
	c.State = models.ChannelStatePending
	c.UpdatedAt = c.CreatedAt
	cp := *c
	s.channels[c.K1] = &cp
	return nil
}

func (s channelStore) ClaimAndCollect(_ context.Context, k1, remoteID string, private bool, now time.Time) (*models.ChannelRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[k1]
	c, found := s.channels[k1]
	if !ok || !redeemable(ch, models.ChallengeKindChannel, now) || !found || c.State != models.ChannelStatePending {
		return nil, repositories.ErrNotFound
	}
	ch.State = models.ChallengeStateUsed
	ch.ConsumedAt = &now
	c.State = models.ChannelStateCollected
	c.RemoteID = &remoteID
	c.Private = private
	c.UpdatedAt = now
	cp := *c
	return &cp, nil
}

func (s channelStore) Transition(_ context.Context, k1 string, from []string, to string, now time.Time) (*models.ChannelRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.channels[k1]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	for _, f := range from {
		if c.State == f {
			c.State = to
			c.UpdatedAt = now
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s channelStore) List(_ context.Context, state *string, limit, offset int) ([]models.ChannelRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChannelRequest
	for _, c := range s.channels {
		if state != nil && c.State != *state {
			continue
		}
		out = append(out, *c)
	}
	return page(out, limit, offset), nil
}

func (s channelStore) state(k1 string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[k1].State
}

type sessionStore struct{ *memStore }

func (s sessionStore) ClaimAndCreate(_ context.Context, k1, linkingKey string, now, expiresAt time.Time) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[k1]
	if !ok || !redeemable(c, models.ChallengeKindAuth, now) {
		return nil, repositories.ErrNotFound
	}
	c.State = models.ChallengeStateUsed
	c.ConsumedAt = &now

	sess := &models.AuthSession{
		ID:         uuid.New(),
		K1:         k1,
		LinkingKey: linkingKey,
		Action:     c.Action,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

func (s sessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s sessionStore) GetByK1(_ context.Context, k1 string) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.K1 == k1 {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s sessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// --- lightning ---

type fakeNode struct {
	mu sync.Mutex

	info       *lightning.NodeInfo
	infoErr    error
	infoCalls  int
	decoded    map[string]*lightning.DecodedInvoice
	decodeErr  error
	payErr     error
	paid       []string
	invoices   []int64 // amountSat of every CreateInvoice call
	invoiceErr error
	settled    map[string]bool
	statusErr  error
	statusHits int
	opened     chan string
	openErr    error
	address    string
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		info: &lightning.NodeInfo{
			IdentityPubkey: "02" + repeat("ab", 32),
			URIs:           []string{"02" + repeat("ab", 32) + "@127.0.0.1:9735"},
			SyncedToChain:  true,
		},
		decoded: map[string]*lightning.DecodedInvoice{},
		settled: map[string]bool{},
		opened:  make(chan string, 8),
		address: "bcrt1qexampleaddress",
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func (f *fakeNode) GetInfo(context.Context) (*lightning.NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeNode) CreateInvoice(_ context.Context, amountSat int64, _ string, _ int64) (*lightning.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	f.invoices = append(f.invoices, amountSat)
	n := len(f.invoices)
	return &lightning.Invoice{
		PaymentRequest: "lnbcrt" + repeat("q", n) + "1pexample",
		PaymentHash:    repeat("0", 62) + string(rune('a'+n%6)) + string(rune('0'+n%10)),
	}, nil
}

func (f *fakeNode) DecodeInvoice(_ context.Context, pr string) (*lightning.DecodedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	d, ok := f.decoded[pr]
	if !ok {
		return nil, errors.New("invoice not decodable")
	}
	return d, nil
}

func (f *fakeNode) PayInvoice(_ context.Context, pr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payErr != nil {
		return f.payErr
	}
	f.paid = append(f.paid, pr)
	return nil
}

func (f *fakeNode) GetInvoiceStatus(_ context.Context, hash string) (*lightning.InvoiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusHits++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.settled[hash] {
		return &lightning.InvoiceStatus{Settled: true, State: "SETTLED"}, nil
	}
	return &lightning.InvoiceStatus{State: "OPEN"}, nil
}

func (f *fakeNode) OpenChannel(_ context.Context, remote string, _ int64, _ bool) error {
	f.opened <- remote
	return f.openErr
}

func (f *fakeNode) NewAddress(context.Context) (string, error) {
	return f.address, nil
}

func (f *fakeNode) settle(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[hash] = true
}

func (f *fakeNode) paidCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paid)
}

// --- events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return &config.Config{
		PublicURL:           "https://lnurl.test",
		AddressDomain:       "lnurl.test",
		NodeTimeout:         time.Second,
		NodeInfoTTL:         time.Minute,
		WithdrawMinMsat:     1000,
		WithdrawMaxMsat:     100000000,
		WithdrawDescription: "test withdraw",
		PayMinMsat:          1000,
		PayMaxMsat:          100000000,
		PayCommentMax:       140,
		PayDescription:      "test pay",
		InvoiceExpiry:       time.Hour,
		ChannelCapacitySat:  100000,
		AuthChallengeTTL:    5 * time.Minute,
		SessionTTL:          24 * time.Hour,
		JWTSecret:           "test-secret",
		HealthCacheTTL:      time.Minute,
	}
}

var testLog = zap.NewNop()
