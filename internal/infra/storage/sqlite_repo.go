package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/tokenprofile/internal/domain/entity"
)

// ---------------------------------------------------------
// SQLiteFlagStore
// ---------------------------------------------------------

// SQLiteFlagStore implements FlagStore with one row per entity document.
// Each write is a read-modify-write inside a transaction.
type SQLiteFlagStore struct {
	db *sql.DB
}

func NewSQLiteFlagStore(db *sql.DB) *SQLiteFlagStore {
	return &SQLiteFlagStore{db: db}
}

func (s *SQLiteFlagStore) Document(ctx context.Context, entityID string) ([]byte, error) {
	doc, err := s.load(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte(emptyDocument), nil
	}
	return doc, nil
}

func (s *SQLiteFlagStore) Get(ctx context.Context, entityID, key string) ([]byte, error) {
	doc, err := s.load(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}
	return getPath(doc, key), nil
}

func (s *SQLiteFlagStore) Set(ctx context.Context, entityID, key string, value any) error {
	return s.modify(ctx, entityID, func(doc []byte) ([]byte, error) {
		return setPath(doc, key, value)
	})
}

func (s *SQLiteFlagStore) Unset(ctx context.Context, entityID, key string) error {
	return s.modify(ctx, entityID, func(doc []byte) ([]byte, error) {
		if doc == nil {
			return nil, nil
		}
		return unsetPath(doc, key)
	})
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteFlagStore) load(ctx context.Context, q querier, entityID string) ([]byte, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM flags WHERE entity_id = ?`, entityID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flags for %s: %w", entityID, err)
	}
	return []byte(doc), nil
}

func (s *SQLiteFlagStore) modify(ctx context.Context, entityID string, fn func([]byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin flag transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := s.load(ctx, tx, entityID)
	if err != nil {
		return err
	}
	next, err := fn(doc)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	query := `
		INSERT INTO flags (entity_id, doc, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET doc=excluded.doc, last_updated=excluded.last_updated
	`
	if _, err := tx.ExecContext(ctx, query, entityID, string(next), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store flags for %s: %w", entityID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flags for %s: %w", entityID, err)
	}
	return nil
}

// ---------------------------------------------------------
// SQLiteEventRepository
// ---------------------------------------------------------

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event ChangeEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, entity_id, timestamp, event_type, actor_id, target_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.EntityID, event.Timestamp.UTC(), event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const selectEvents = `SELECT id, entity_id, timestamp, event_type, actor_id, target_id, payload FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...any) ([]ChangeEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []ChangeEvent
	for rows.Next() {
		var e ChangeEvent
		var payloadStr string
		if err := rows.Scan(&e.ID, &e.EntityID, &e.Timestamp, &e.EventType, &e.ActorID, &e.TargetID, &payloadStr); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetByEntityID(ctx context.Context, entityID string) ([]ChangeEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE entity_id = ? ORDER BY seq ASC`, entityID)
}

func (r *SQLiteEventRepository) GetByActorID(ctx context.Context, actorID string) ([]ChangeEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE actor_id = ? ORDER BY seq ASC`, actorID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string) ([]ChangeEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE event_type = ? ORDER BY seq ASC`, eventType)
}

// ---------------------------------------------------------
// SQLiteWorldRepository
// ---------------------------------------------------------

// SQLiteWorldRepository implements WorldRepository for SQLite.
type SQLiteWorldRepository struct {
	db *sql.DB
}

func NewSQLiteWorldRepository(db *sql.DB) *SQLiteWorldRepository {
	return &SQLiteWorldRepository{db: db}
}

func (r *SQLiteWorldRepository) UpsertUser(ctx context.Context, u entity.User) error {
	query := `
		INSERT INTO users (user_id, name, role) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET name=excluded.name, role=excluded.role
	`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Name, int(u.Role)); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (r *SQLiteWorldRepository) GetUser(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	var role int
	err := r.db.QueryRowContext(ctx, `SELECT user_id, name, role FROM users WHERE user_id = ?`, id).
		Scan(&u.ID, &u.Name, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Role = entity.Role(role)
	return &u, nil
}

func (r *SQLiteWorldRepository) ListUsers(ctx context.Context) ([]entity.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, name, role FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		var u entity.User
		var role int
		if err := rows.Scan(&u.ID, &u.Name, &role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = entity.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteWorldRepository) UpsertEntity(ctx context.Context, e entity.Entity) error {
	ownership, err := json.Marshal(e.Ownership)
	if err != nil {
		return fmt.Errorf("failed to marshal ownership: %w", err)
	}
	var visible sql.NullBool
	if e.Visible != nil {
		visible = sql.NullBool{Bool: *e.Visible, Valid: true}
	}

	query := `
		INSERT INTO entities (entity_id, actor_id, name, disposition, visible, ownership_json, default_ownership)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			actor_id=excluded.actor_id,
			name=excluded.name,
			disposition=excluded.disposition,
			visible=excluded.visible,
			ownership_json=excluded.ownership_json,
			default_ownership=excluded.default_ownership
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.ActorID, e.Name, string(e.Disposition), visible, string(ownership), int(e.DefaultOwnership),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", e.ID, err)
	}
	return nil
}

const selectEntities = `SELECT entity_id, actor_id, name, disposition, visible, ownership_json, default_ownership FROM entities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entity.Entity, error) {
	var (
		e         entity.Entity
		disp      string
		visible   sql.NullBool
		ownership string
		defLevel  int
	)
	if err := row.Scan(&e.ID, &e.ActorID, &e.Name, &disp, &visible, &ownership, &defLevel); err != nil {
		return nil, err
	}
	e.Disposition = entity.ParseDisposition(disp)
	if visible.Valid {
		v := visible.Bool
		e.Visible = &v
	}
	if err := json.Unmarshal([]byte(ownership), &e.Ownership); err != nil {
		return nil, fmt.Errorf("failed to decode ownership of %s: %w", e.ID, err)
	}
	e.DefaultOwnership = entity.OwnershipLevel(defLevel)
	return &e, nil
}

func (r *SQLiteWorldRepository) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	e, err := scanEntity(r.db.QueryRowContext(ctx, selectEntities+` WHERE entity_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteWorldRepository) ListEntities(ctx context.Context) ([]entity.Entity, error) {
	rows, err := r.db.QueryContext(ctx, selectEntities+` ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
