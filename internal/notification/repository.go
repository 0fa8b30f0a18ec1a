package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists notifications for later retrieval by the member.
type Repository interface {
	Create(ctx context.Context, n Notification) error
	ListByMember(ctx context.Context, memberID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// StoreNotifier persists every notification and mirrors it to the logger.
type StoreNotifier struct {
	repo   Repository
	logger *slog.Logger
}

// NewStoreNotifier builds a persisting notifier.
func NewStoreNotifier(repo Repository, logger *slog.Logger) *StoreNotifier {
	return &StoreNotifier{repo: repo, logger: logger}
}

// Send stores the notification, assigning id and timestamp when absent.
func (s *StoreNotifier) Send(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("notification", "member_id", n.MemberID, "title", n.Title, "topic", n.Topic)
	}
	return nil
}

// PostgresRepository stores notifications in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed notification repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a notification row.
func (r *PostgresRepository) Create(ctx context.Context, n Notification) error {
	_, err := r.db.Exec(ctx, `INSERT INTO notifications
        (id, member_id, title, description, severity, topic, link, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.MemberID, n.Title, n.Description, n.Severity, n.Topic, n.Link, n.Read, n.CreatedAt.UTC())
	return err
}

// ListByMember returns the newest notifications for a member.
func (r *PostgresRepository) ListByMember(ctx context.Context, memberID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT id, member_id, title, description, severity, topic, link, read, created_at
        FROM notifications WHERE member_id = $1 ORDER BY created_at DESC LIMIT $2`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var createdAt time.Time
		if err := rows.Scan(&n.ID, &n.MemberID, &n.Title, &n.Description, &n.Severity,
			&n.Topic, &n.Link, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt = createdAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}

// MemoryRepository keeps notifications in memory for tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []Notification
}

// NewMemoryRepository constructs an in-memory notification repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends a notification.
func (r *MemoryRepository) Create(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

// ListByMember returns stored notifications for the member, newest last.
func (r *MemoryRepository) ListByMember(_ context.Context, memberID string, limit int) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Notification
	for _, n := range r.items {
		if n.MemberID == memberID {
			out = append(out, n)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// MarkRead flags a stored notification as read.
func (r *MemoryRepository) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Read = true
		}
	}
	return nil
}

// All returns every stored notification, for test assertions.
func (r *MemoryRepository) All() []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
