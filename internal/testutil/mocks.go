// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lucsky/cuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "renda-edge/internal/common/errors"
	"renda-edge/internal/storage"
)

// MockStorage implements storage.Storage in memory.
type MockStorage struct {
	mu        sync.RWMutex
	contacts  []*storage.ContactMessage
	clicks    []*storage.WhatsAppClick
	views     []*storage.PageView
	favorites map[string]map[string]time.Time
	users     map[string]*storage.AdminUser

	// ErrorOnMethod injects an error returned by the named method.
	ErrorOnMethod map[string]error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		favorites:     make(map[string]map[string]time.Time),
		users:         make(map[string]*storage.AdminUser),
		ErrorOnMethod: make(map[string]error),
	}
}

func (m *MockStorage) fail(method string) error {
	return m.ErrorOnMethod[method]
}

func (m *MockStorage) Close() error { return m.fail("Close") }

func (m *MockStorage) Health(context.Context) error { return m.fail("Health") }

func (m *MockStorage) CreateContact(_ context.Context, msg *storage.ContactMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateContact"); err != nil {
		return err
	}
	msg.ID = cuid.New()
	msg.CreatedAt = time.Now().UTC()
	m.contacts = append(m.contacts, msg)
	return nil
}

func (m *MockStorage) ListContacts(_ context.Context, limit, offset int) ([]*storage.ContactMessage, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListContacts"); err != nil {
		return nil, 0, err
	}
	out := make([]*storage.ContactMessage, 0, len(m.contacts))
	for i := len(m.contacts) - 1; i >= 0; i-- {
		out = append(out, m.contacts[i])
	}
	total := len(out)
	if offset > total {
		offset = total
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// Contacts returns every stored contact in insertion order.
func (m *MockStorage) Contacts() []*storage.ContactMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*storage.ContactMessage(nil), m.contacts...)
}

func (m *MockStorage) RecordClick(_ context.Context, click *storage.WhatsAppClick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RecordClick"); err != nil {
		return err
	}
	click.ID = cuid.New()
	click.CreatedAt = time.Now().UTC()
	m.clicks = append(m.clicks, click)
	return nil
}

func (m *MockStorage) Clicks() []*storage.WhatsAppClick {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*storage.WhatsAppClick(nil), m.clicks...)
}

func (m *MockStorage) RecordPageView(_ context.Context, view *storage.PageView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RecordPageView"); err != nil {
		return err
	}
	view.ID = cuid.New()
	view.CreatedAt = time.Now().UTC()
	m.views = append(m.views, view)
	return nil
}

func (m *MockStorage) PageViews() []*storage.PageView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*storage.PageView(nil), m.views...)
}

func (m *MockStorage) AddFavorite(_ context.Context, sessionID, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddFavorite"); err != nil {
		return err
	}
	if m.favorites[sessionID] == nil {
		m.favorites[sessionID] = make(map[string]time.Time)
	}
	if _, ok := m.favorites[sessionID][slug]; !ok {
		m.favorites[sessionID][slug] = time.Now().UTC()
	}
	return nil
}

func (m *MockStorage) RemoveFavorite(_ context.Context, sessionID, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RemoveFavorite"); err != nil {
		return err
	}
	delete(m.favorites[sessionID], slug)
	return nil
}

func (m *MockStorage) ListFavorites(_ context.Context, sessionID string) ([]*storage.Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ListFavorites"); err != nil {
		return nil, err
	}
	out := make([]*storage.Favorite, 0, len(m.favorites[sessionID]))
	for slug, at := range m.favorites[sessionID] {
		out = append(out, &storage.Favorite{SessionID: sessionID, ProductSlug: slug, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductSlug < out[j].ProductSlug })
	return out, nil
}

func (m *MockStorage) CreateAdminUser(_ context.Context, username, password string) (*storage.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateAdminUser"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Username == username {
			return nil, apperrors.ConflictError("admin user already exists")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &storage.AdminUser{ID: cuid.New(), Username: username, PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
	m.users[u.ID] = u
	return u, nil
}

func (m *MockStorage) GetAdminUser(_ context.Context, id string) (*storage.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("GetAdminUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFoundError("admin user")
	}
	return u, nil
}

func (m *MockStorage) ValidateAdminUser(_ context.Context, username, password string) (*storage.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("ValidateAdminUser"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.Username == username &&
			bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil {
			return u, nil
		}
	}
	return nil, apperrors.AuthError("invalid credentials")
}

func (m *MockStorage) AdminUserCount(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("AdminUserCount"); err != nil {
		return 0, err
	}
	return len(m.users), nil
}

// AnalyticsSummary computes only the totals; top lists stay empty.
func (m *MockStorage) AnalyticsSummary(_ context.Context, since time.Time, _ int) (*storage.AnalyticsSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("AnalyticsSummary"); err != nil {
		return nil, err
	}
	s := &storage.AnalyticsSummary{
		Since:       since,
		TopProducts: []storage.ProductClicks{},
		TopPages:    []storage.PageViews{},
		ClicksByDay: []storage.DayCount{},
	}
	sessions := make(map[string]struct{})
	for _, v := range m.views {
		if !v.CreatedAt.Before(since) {
			s.PageViews++
			sessions[v.SessionID] = struct{}{}
		}
	}
	s.UniqueSessions = len(sessions)
	for _, c := range m.clicks {
		if !c.CreatedAt.Before(since) {
			s.WhatsAppClicks++
		}
	}
	for _, c := range m.contacts {
		if !c.CreatedAt.Before(since) {
			s.Contacts++
		}
	}
	for _, favs := range m.favorites {
		s.Favorites += len(favs)
	}
	return s, nil
}

func (m *MockStorage) PurgeAnalytics(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("PurgeAnalytics"); err != nil {
		return 0, err
	}
	var n int64
	views := m.views[:0]
	for _, v := range m.views {
		if v.CreatedAt.Before(before) {
			n++
			continue
		}
		views = append(views, v)
	}
	m.views = views
	clicks := m.clicks[:0]
	for _, c := range m.clicks {
		if c.CreatedAt.Before(before) {
			n++
			continue
		}
		clicks = append(clicks, c)
	}
	m.clicks = clicks
	return n, nil
}

var _ storage.Storage = (*MockStorage)(nil)

// RecordingPublisher stores every published contact.
type RecordingPublisher struct {
	mu        sync.Mutex
	Published []*storage.ContactMessage
	Err       error
}

func (p *RecordingPublisher) PublishContact(_ context.Context, msg *storage.ContactMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, msg)
	return p.Err
}

func (p *RecordingPublisher) Close() error { return nil }

// Calls returns how many contacts were published.
func (p *RecordingPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}

// RecordingInvalidator records cache invalidations in call order.
type RecordingInvalidator struct {
	mu    sync.Mutex
	paths []string
	tags  []string
}

func (r *RecordingInvalidator) InvalidatePath(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *RecordingInvalidator) InvalidateTag(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
	return nil
}

func (r *RecordingInvalidator) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *RecordingInvalidator) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

// Calls returns the total number of invalidations.
func (r *RecordingInvalidator) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths) + len(r.tags)
}
