// Package sqlstore implements storage.Storage on database/sql for SQLite
// (mattn/go-sqlite3) and PostgreSQL (pgx stdlib).
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lucsky/cuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

// Store is a storage.Storage backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
	logger  logging.Logger
}

// Open connects, pings and migrates. typ is "sqlite" or "postgres".
func Open(ctx context.Context, typ, dsn string, logger logging.Logger) (*Store, error) {
	var d dialect
	switch typ {
	case "sqlite":
		d = sqliteDialect
		dsn = sqliteDSN(dsn)
	case "postgres":
		d = postgresDialect
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", typ))
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.name == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.WithFields(logging.String("component", "storage")),
	}
	if err := newMigrator(db, d, s.logger).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	err := s.queryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *Store) stamp(t *time.Time) {
	if t.IsZero() {
		*t = s.now()
	} else {
		*t = t.UTC()
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if stderrors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pgconn.PgError
	if stderrors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

func (s *Store) CreateContact(ctx context.Context, msg *storage.ContactMessage) error {
	if msg.ID == "" {
		msg.ID = cuid.New()
	}
	s.stamp(&msg.CreatedAt)
	_, err := s.exec(ctx, `INSERT INTO contact_messages
		(id, name, email, phone, subject, message, product_slug, session_id, ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Email, msg.Phone, msg.Subject, msg.Message,
		msg.ProductSlug, msg.SessionID, msg.IP, msg.CreatedAt)
	if err != nil {
		return errors.InternalError("failed to save contact message", err)
	}
	return nil
}

func (s *Store) ListContacts(ctx context.Context, limit, offset int) ([]*storage.ContactMessage, int, error) {
	total, err := s.count(ctx, "SELECT COUNT(*) FROM contact_messages")
	if err != nil {
		return nil, 0, errors.InternalError("failed to count contact messages", err)
	}

	rows, err := s.query(ctx, `SELECT id, name, email, phone, subject, message, product_slug, session_id, ip, created_at
		FROM contact_messages ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list contact messages", err)
	}
	defer rows.Close()

	var out []*storage.ContactMessage
	for rows.Next() {
		var m storage.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message,
			&m.ProductSlug, &m.SessionID, &m.IP, &m.CreatedAt); err != nil {
			return nil, 0, errors.InternalError("failed to scan contact message", err)
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

func (s *Store) RecordClick(ctx context.Context, click *storage.WhatsAppClick) error {
	if click.ID == "" {
		click.ID = cuid.New()
	}
	s.stamp(&click.CreatedAt)
	_, err := s.exec(ctx, `INSERT INTO whatsapp_clicks
		(id, product_slug, product_title, session_id, source, user_agent, referrer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		click.ID, click.ProductSlug, click.ProductTitle, click.SessionID, click.Source,
		click.UserAgent, click.Referrer, click.CreatedAt)
	if err != nil {
		return errors.InternalError("failed to record click", err)
	}
	return nil
}

func (s *Store) RecordPageView(ctx context.Context, view *storage.PageView) error {
	if view.ID == "" {
		view.ID = cuid.New()
	}
	s.stamp(&view.CreatedAt)
	_, err := s.exec(ctx, `INSERT INTO page_views (id, path, session_id, referrer, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		view.ID, view.Path, view.SessionID, view.Referrer, view.UserAgent, view.CreatedAt)
	if err != nil {
		return errors.InternalError("failed to record page view", err)
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, sessionID, productSlug string) error {
	_, err := s.exec(ctx, `INSERT INTO favorites (session_id, product_slug, created_at) VALUES (?, ?, ?)
		ON CONFLICT (session_id, product_slug) DO NOTHING`, sessionID, productSlug, s.now())
	if err != nil {
		return errors.InternalError("failed to add favorite", err)
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, sessionID, productSlug string) error {
	_, err := s.exec(ctx, "DELETE FROM favorites WHERE session_id = ? AND product_slug = ?", sessionID, productSlug)
	if err != nil {
		return errors.InternalError("failed to remove favorite", err)
	}
	return nil
}

func (s *Store) ListFavorites(ctx context.Context, sessionID string) ([]*storage.Favorite, error) {
	rows, err := s.query(ctx, `SELECT session_id, product_slug, created_at FROM favorites
		WHERE session_id = ? ORDER BY created_at DESC, product_slug`, sessionID)
	if err != nil {
		return nil, errors.InternalError("failed to list favorites", err)
	}
	defer rows.Close()

	out := []*storage.Favorite{}
	for rows.Next() {
		var f storage.Favorite
		if err := rows.Scan(&f.SessionID, &f.ProductSlug, &f.CreatedAt); err != nil {
			return nil, errors.InternalError("failed to scan favorite", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *Store) CreateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error) {
	if username == "" || password == "" {
		return nil, errors.ValidationError("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.InternalError("failed to hash password", err)
	}

	user := &storage.AdminUser{
		ID:           cuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	_, err = s.exec(ctx, "INSERT INTO admin_users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.ConflictError("admin user already exists").WithContext("username", username)
		}
		return nil, errors.InternalError("failed to create admin user", err)
	}
	return user, nil
}

func (s *Store) scanAdmin(row *sql.Row) (*storage.AdminUser, error) {
	var u storage.AdminUser
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundError("admin user")
		}
		return nil, errors.InternalError("failed to load admin user", err)
	}
	return &u, nil
}

func (s *Store) GetAdminUser(ctx context.Context, id string) (*storage.AdminUser, error) {
	return s.scanAdmin(s.queryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM admin_users WHERE id = ?", id))
}

func (s *Store) ValidateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error) {
	user, err := s.scanAdmin(s.queryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?", username))
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			return nil, errors.AuthError("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.AuthError("invalid credentials")
	}
	return user, nil
}

func (s *Store) AdminUserCount(ctx context.Context) (int, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM admin_users")
	if err != nil {
		return 0, errors.InternalError("failed to count admin users", err)
	}
	return n, nil
}

func (s *Store) AnalyticsSummary(ctx context.Context, since time.Time, limit int) (*storage.AnalyticsSummary, error) {
	since = since.UTC()
	if limit <= 0 {
		limit = 10
	}
	summary := &storage.AnalyticsSummary{
		Since:       since,
		TopProducts: []storage.ProductClicks{},
		TopPages:    []storage.PageViews{},
		ClicksByDay: []storage.DayCount{},
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&summary.PageViews, "SELECT COUNT(*) FROM page_views WHERE created_at >= ?"},
		{&summary.UniqueSessions, "SELECT COUNT(DISTINCT session_id) FROM page_views WHERE created_at >= ? AND session_id <> ''"},
		{&summary.WhatsAppClicks, "SELECT COUNT(*) FROM whatsapp_clicks WHERE created_at >= ?"},
		{&summary.Contacts, "SELECT COUNT(*) FROM contact_messages WHERE created_at >= ?"},
		{&summary.Favorites, "SELECT COUNT(*) FROM favorites WHERE created_at >= ?"},
	}
	for _, c := range counts {
		n, err := s.count(ctx, c.query, since)
		if err != nil {
			return nil, errors.InternalError("failed to compute analytics", err)
		}
		*c.dst = n
	}

	rows, err := s.query(ctx, `SELECT product_slug, MAX(product_title), COUNT(*) AS clicks FROM whatsapp_clicks
		WHERE created_at >= ? GROUP BY product_slug ORDER BY clicks DESC, product_slug LIMIT ?`, since, limit)
	if err != nil {
		return nil, errors.InternalError("failed to compute top products", err)
	}
	for rows.Next() {
		var p storage.ProductClicks
		if err := rows.Scan(&p.Slug, &p.Title, &p.Clicks); err != nil {
			rows.Close()
			return nil, errors.InternalError("failed to scan top products", err)
		}
		summary.TopProducts = append(summary.TopProducts, p)
	}
	rows.Close()

	rows, err = s.query(ctx, `SELECT path, COUNT(*) AS views FROM page_views
		WHERE created_at >= ? GROUP BY path ORDER BY views DESC, path LIMIT ?`, since, limit)
	if err != nil {
		return nil, errors.InternalError("failed to compute top pages", err)
	}
	for rows.Next() {
		var p storage.PageViews
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			rows.Close()
			return nil, errors.InternalError("failed to scan top pages", err)
		}
		summary.TopPages = append(summary.TopPages, p)
	}
	rows.Close()

	day := s.dialect.dayExpr("created_at")
	rows, err = s.query(ctx, fmt.Sprintf(`SELECT %s AS day, COUNT(*) FROM whatsapp_clicks
		WHERE created_at >= ? GROUP BY day ORDER BY day`, day), since)
	if err != nil {
		return nil, errors.InternalError("failed to compute clicks by day", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d storage.DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, errors.InternalError("failed to scan clicks by day", err)
		}
		summary.ClicksByDay = append(summary.ClicksByDay, d)
	}
	return summary, rows.Err()
}

func (s *Store) PurgeAnalytics(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"page_views", "whatsapp_clicks"} {
		res, err := s.exec(ctx, "DELETE FROM "+table+" WHERE created_at < ?", before.UTC())
		if err != nil {
			return total, errors.InternalError("failed to purge "+table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

var _ storage.Storage = (*Store)(nil)
