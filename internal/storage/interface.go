package storage

import (
	"context"
	"time"
)

// Storage persists everything the site records about visitors and admins.
// CMS content is not stored here.
type Storage interface {
	Close() error
	Health(ctx context.Context) error

	// Contact form submissions
	CreateContact(ctx context.Context, msg *ContactMessage) error
	// ListContacts returns a page of messages, newest first, and the total count.
	ListContacts(ctx context.Context, limit, offset int) ([]*ContactMessage, int, error)

	RecordClick(ctx context.Context, click *WhatsAppClick) error
	RecordPageView(ctx context.Context, view *PageView) error

	// Favorites are keyed by visitor session. Adding an existing favorite
	// and removing a missing one both succeed.
	AddFavorite(ctx context.Context, sessionID, productSlug string) error
	RemoveFavorite(ctx context.Context, sessionID, productSlug string) error
	ListFavorites(ctx context.Context, sessionID string) ([]*Favorite, error)

	// Admin users
	CreateAdminUser(ctx context.Context, username, password string) (*AdminUser, error)
	GetAdminUser(ctx context.Context, id string) (*AdminUser, error)
	// ValidateAdminUser returns an AuthError for unknown users and wrong passwords alike.
	ValidateAdminUser(ctx context.Context, username, password string) (*AdminUser, error)
	AdminUserCount(ctx context.Context) (int, error)

	// AnalyticsSummary aggregates activity since the given time. limit caps
	// the top-N lists.
	AnalyticsSummary(ctx context.Context, since time.Time, limit int) (*AnalyticsSummary, error)
	// PurgeAnalytics deletes page views and clicks older than before and
	// returns how many rows went.
	PurgeAnalytics(ctx context.Context, before time.Time) (int64, error)
}

type ContactMessage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Message     string    `json:"message"`
	ProductSlug string    `json:"productSlug,omitempty"`
	SessionID   string    `json:"-"`
	IP          string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

type WhatsAppClick struct {
	ID           string    `json:"id"`
	ProductSlug  string    `json:"productSlug"`
	ProductTitle string    `json:"productTitle"`
	SessionID    string    `json:"-"`
	Source       string    `json:"source"` // "button" or "redirect"
	UserAgent    string    `json:"-"`
	Referrer     string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Favorite struct {
	SessionID   string    `json:"-"`
	ProductSlug string    `json:"productSlug"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PageView struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	SessionID string    `json:"-"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type AdminUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ProductClicks struct {
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Clicks int    `json:"clicks"`
}

type PageViews struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	Since          time.Time       `json:"since"`
	PageViews      int             `json:"pageViews"`
	UniqueSessions int             `json:"uniqueSessions"`
	WhatsAppClicks int             `json:"whatsappClicks"`
	Contacts       int             `json:"contacts"`
	Favorites      int             `json:"favorites"`
	TopProducts    []ProductClicks `json:"topProducts"`
	TopPages       []PageViews     `json:"topPages"`
	ClicksByDay    []DayCount      `json:"clicksByDay"`
}
