package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/launchpal/launchpal/internal/crypto"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/db/repositories"
	"github.com/launchpal/launchpal/internal/platform"
)

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New().String()
	if u.Subscription == "" {
		u.ApplyPlan(models.PlanFree)
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdatePlan(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (f *fakeUsers) GetOrCreateUserByOIDC(ctx context.Context, sub, email, name string) (*models.User, error) {
	f.mu.Lock()
	for _, u := range f.users {
		if u.OIDCSub != nil && *u.OIDCSub == sub {
			cp := *u
			f.mu.Unlock()
			return &cp, nil
		}
	}
	f.mu.Unlock()
	u := &models.User{Email: email, Name: name, OIDCSub: &sub}
	if err := f.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (f *fakeUsers) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

type fakeUsage struct {
	mu      sync.Mutex
	records []*models.UsageRecord
}

func (f *fakeUsage) Insert(_ context.Context, rec *models.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uuid.New().String()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeUsage) Totals(_ context.Context, userID string, from, to time.Time) (models.UsageTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t models.UsageTotals
	for _, r := range f.records {
		if r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			t.Requests += r.Requests
			t.Cost += r.Cost
		}
	}
	return t, nil
}

func (f *fakeUsage) ByEndpoint(_ context.Context, userID string, from, to time.Time) ([]repositories.EndpointUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := map[string]int{}
	out := []repositories.EndpointUsage{}
	for _, r := range f.records {
		if r.UserID != userID || r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		i, ok := idx[r.Endpoint]
		if !ok {
			i = len(out)
			idx[r.Endpoint] = i
			out = append(out, repositories.EndpointUsage{Endpoint: r.Endpoint})
		}
		out[i].Requests += r.Requests
		out[i].Cost += r.Cost
	}
	return out, nil
}

// seed adds n records for userID at the given time without going through the meter.
func (f *fakeUsage) seed(userID string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		f.records = append(f.records, &models.UsageRecord{UserID: userID, Endpoint: "seed", Requests: 1, Cost: 0.01, CreatedAt: at})
	}
}

func (f *fakeUsage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeCreds struct {
	mu   sync.Mutex
	rows map[string]*models.PlatformCredential
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{rows: map[string]*models.PlatformCredential{}}
}

func credKey(userID, p string) string { return userID + "/" + p }

func (f *fakeCreds) Upsert(_ context.Context, c *models.PlatformCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := credKey(c.UserID, c.Platform)
	if existing, ok := f.rows[k]; ok {
		existing.Credentials = c.Credentials
		existing.IsActive = true
		c.ID = existing.ID
		return nil
	}
	c.ID = uuid.New().String()
	c.IsActive = true
	cp := *c
	f.rows[k] = &cp
	return nil
}

func (f *fakeCreds) Get(_ context.Context, userID, p string) (*models.PlatformCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[credKey(userID, p)]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCreds) Deactivate(_ context.Context, userID, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[credKey(userID, p)]; ok {
		c.IsActive = false
	}
	return nil
}

func (f *fakeCreds) ListByUser(_ context.Context, userID string) ([]*models.PlatformCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.PlatformCredential{}
	for _, c := range f.rows {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCreds) CountActiveExcept(_ context.Context, userID, p string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.rows {
		if c.UserID == userID && c.Platform != p && c.IsActive {
			n++
		}
	}
	return n, nil
}

type fakeProducts struct {
	mu   sync.Mutex
	rows map[string]*models.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{rows: map[string]*models.Product{}}
}

func (f *fakeProducts) Create(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New().String()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeProducts) GetForOwner(_ context.Context, id, userID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok && p.UserID == userID {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProducts) List(_ context.Context, userID, p string) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Product{}
	for _, row := range f.rows {
		if row.UserID == userID && (p == "" || row.Platform == p) {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProducts) CountByUser(_ context.Context, userID string) (int, error) {
	rows, _ := f.List(context.Background(), userID, "")
	return len(rows), nil
}

func (f *fakeProducts) Update(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok && p.UserID == userID {
		delete(f.rows, id)
		return true, nil
	}
	return false, nil
}

type fakeLaunches struct {
	mu      sync.Mutex
	rows    map[string]*models.Launch
	metrics []*models.LaunchMetric
}

func newFakeLaunches() *fakeLaunches {
	return &fakeLaunches{rows: map[string]*models.Launch{}}
}

func (f *fakeLaunches) Create(_ context.Context, l *models.Launch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = uuid.New().String()
	cp := *l
	f.rows[l.ID] = &cp
	return nil
}

func (f *fakeLaunches) GetForOwner(_ context.Context, id, userID string) (*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.rows[id]; ok && l.UserID == userID {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeLaunches) GetByID(_ context.Context, id string) (*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.rows[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeLaunches) List(_ context.Context, userID, status string) ([]*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Launch{}
	for _, l := range f.rows {
		if l.UserID == userID && (status == "" || l.Status == status) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLaunches) CountByProduct(_ context.Context, productID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.rows {
		if l.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (f *fakeLaunches) Transition(_ context.Context, id, from, to string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	switch to {
	case models.LaunchActive:
		l.StartedAt = &at
	case models.LaunchCompleted, models.LaunchFailed:
		l.CompletedAt = &at
	}
	return true, nil
}

func (f *fakeLaunches) MarkScheduled(_ context.Context, id, platformLaunchID string, when time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok || l.Status != models.LaunchDraft {
		return false, nil
	}
	l.Status = models.LaunchScheduled
	l.PlatformLaunchID = &platformLaunchID
	l.ScheduledAt = when
	return true, nil
}

func (f *fakeLaunches) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Launch{}
	for _, l := range f.rows {
		if l.Status == models.LaunchScheduled && !l.ScheduledAt.After(now) && len(out) < limit {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLaunches) ListActive(_ context.Context) ([]*models.Launch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Launch{}
	for _, l := range f.rows {
		if l.Status == models.LaunchActive {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLaunches) InsertMetric(_ context.Context, m *models.LaunchMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New().String()
	f.metrics = append(f.metrics, m)
	return nil
}

func (f *fakeLaunches) ListMetrics(_ context.Context, launchID string) ([]*models.LaunchMetric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.LaunchMetric{}
	for _, m := range f.metrics {
		if m.LaunchID == launchID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeLaunches) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

type fakeKeys struct {
	mu   sync.Mutex
	keys []*models.APIKey
}

func (f *fakeKeys) CreateAPIKey(_ context.Context, k *models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k.ID = uuid.New().String()
	k.CreatedAt = time.Now()
	f.keys = append(f.keys, k)
	return nil
}

func (f *fakeKeys) ListAPIKeysByUser(_ context.Context, userID string) ([]*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.APIKey{}
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKeys) DeleteAPIKeysByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.keys[:0]
	for _, k := range f.keys {
		if k.UserID != userID {
			kept = append(kept, k)
		}
	}
	f.keys = kept
	return nil
}

// ---------------------------------------------------------------------------
// Adapter stub
// ---------------------------------------------------------------------------

type stubAdapter struct {
	mu         sync.Mutex
	creds      platform.Credentials
	created    []platform.ProductDraft
	scheduled  []string
	metrics    platform.Metrics
	trending   []platform.TrendingProduct
	hunters    []platform.Hunter
	comments   []platform.Comment
	createErr  error
	metricsErr error

	hunterTopic   string
	commentPostID string
	commentLimit  int
}

func (s *stubAdapter) Authenticate(context.Context) error { return nil }

func (s *stubAdapter) CreateProduct(_ context.Context, d platform.ProductDraft) (*platform.CreatedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, d)
	return &platform.CreatedProduct{PlatformID: "ph-post-1", URL: "https://www.producthunt.com/posts/" + strings.ToLower(d.Name)}, nil
}

func (s *stubAdapter) ScheduleLaunch(_ context.Context, productID string, when time.Time) (*platform.ScheduledLaunch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, productID)
	return &platform.ScheduledLaunch{PlatformLaunchID: "ph_launch_1", ScheduledAt: when}, nil
}

func (s *stubAdapter) GetLaunchMetrics(context.Context, string) (*platform.Metrics, error) {
	if s.metricsErr != nil {
		return nil, s.metricsErr
	}
	m := s.metrics
	return &m, nil
}

func (s *stubAdapter) Trending(_ context.Context, _ string, limit int) ([]platform.TrendingProduct, error) {
	if limit < len(s.trending) {
		return s.trending[:limit], nil
	}
	return s.trending, nil
}

func (s *stubAdapter) FindHunters(_ context.Context, topic string, minFollowers int) ([]platform.Hunter, error) {
	s.hunterTopic = topic
	var out []platform.Hunter
	for _, h := range s.hunters {
		if h.Followers >= minFollowers {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *stubAdapter) Comments(_ context.Context, postID string, limit int) ([]platform.Comment, error) {
	s.commentPostID, s.commentLimit = postID, limit
	return s.comments, nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	users    *fakeUsers
	usage    *fakeUsage
	creds    *fakeCreds
	products *fakeProducts
	launches *fakeLaunches
	keys     *fakeKeys
	adapter  *stubAdapter
	builds   int

	meter    *Meter
	credS    *CredentialService
	productS *ProductService
	launchS  *LaunchService
}

const testUserID = "user-1"

func newTestUser(plan string) *models.User {
	u := &models.User{ID: testUserID, Email: "alice@example.com", Name: "Alice"}
	u.ApplyPlan(plan)
	return u
}

func newFixture(t *testing.T, user *models.User) *fixture {
	t.Helper()
	cipher, err := crypto.NewTokenCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	f := &fixture{
		users:    newFakeUsers(user),
		usage:    &fakeUsage{},
		creds:    newFakeCreds(),
		products: newFakeProducts(),
		launches: newFakeLaunches(),
		keys:     &fakeKeys{},
		adapter:  &stubAdapter{metrics: platform.Metrics{Votes: 120, Comments: 15, Engagement: platform.EngagementScore(120, 15)}},
	}
	reg := platform.NewRegistry()
	reg.Register(platform.ProductHunt, func(c platform.Credentials) (platform.Adapter, error) {
		f.builds++
		f.adapter.creds = c
		return f.adapter, nil
	})

	f.meter = NewMeter(f.users, f.usage)
	f.credS = NewCredentialService(f.creds, f.users, f.meter, cipher, reg)
	f.productS = NewProductService(f.products, f.launches, f.users, f.credS, f.meter, nil)
	f.launchS = NewLaunchService(f.launches, f.products, f.credS, f.meter, nil)
	return f
}

// connect stores Product Hunt credentials for the test user.
func (f *fixture) connect(t *testing.T) {
	t.Helper()
	if _, err := f.credS.Connect(context.Background(), testUserID, platform.ProductHunt, map[string]string{"accessToken": "tok"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// createProduct creates a product through the service.
func (f *fixture) createProduct(t *testing.T) *CreatedProduct {
	t.Helper()
	p, err := f.productS.Create(context.Background(), testUserID, CreateProductInput{
		Platform:    platform.ProductHunt,
		Name:        "Rocket",
		Tagline:     "Ship faster",
		Description: "A launch helper",
		Website:     "https://rocket.example.com",
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return p
}
