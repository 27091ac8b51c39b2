package postgres

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/storage"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	userColumns  = []string{"username", "password", "display_name", "online", "created_at"}
	eventColumns = []string{"event_id", "sender", "opponent", "status", "turn", "move", "created_at", "updated_at"}
)

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and optionally applies the schema
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "invalid postgres url")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "failed to ping postgres")
	}

	s := &Storage{pool: pool}
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates the tables if they do not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return eris.Wrap(err, "failed to apply schema")
	}
	return nil
}

// Close releases the connection pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func qExec(ctx context.Context, db querier, q sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return db.Exec(ctx, sql, args...)
}

func qQuery(ctx context.Context, db querier, q sq.Sqlizer) (pgx.Rows, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.Query(ctx, sql, args...)
}

func qRow(ctx context.Context, db querier, q sq.Sqlizer) (pgx.Row, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	return db.QueryRow(ctx, sql, args...), nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.Username, &u.Password, &u.DisplayName, &u.Online, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e      model.Event
		status string
	)
	if err := row.Scan(&e.EventID, &e.Sender, &e.Opponent, &status, &e.Turn, &e.Move, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	return &e, nil
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	q := psql.Insert(usersTable).
		Columns(userColumns...).
		Values(user.Username, user.Password, user.DisplayName, user.Online, user.CreatedAt)

	if _, err := qExec(ctx, s.pool, q); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return model.ErrUserExists
		}
		return eris.Wrapf(err, "failed to create user %s", user.Username)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	row, err := qRow(ctx, s.pool, psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"username": username}))
	if err != nil {
		return nil, eris.Wrap(err, "failed to build user query")
	}

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, eris.Wrapf(err, "failed to get user %s", username)
	}
	return user, nil
}

func (s *Storage) SetUserOnline(ctx context.Context, username string, online bool) error {
	tag, err := qExec(ctx, s.pool, psql.Update(usersTable).Set("online", online).Where(sq.Eq{"username": username}))
	if err != nil {
		return eris.Wrapf(err, "failed to update presence for %s", username)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (s *Storage) ListOnlineUsers(ctx context.Context) ([]*model.User, error) {
	q := psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"online": true}).OrderBy("username")
	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list online users")
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to list online users")
	}
	return users, nil
}

func (s *Storage) ResetPresence(ctx context.Context) error {
	if _, err := qExec(ctx, s.pool, psql.Update(usersTable).Set("online", false).Where(sq.Eq{"online": true})); err != nil {
		return eris.Wrap(err, "failed to reset presence")
	}
	return nil
}

// Event operations

func (s *Storage) CreateEvent(ctx context.Context, event *model.Event) (model.EventID, error) {
	q := psql.Insert(eventsTable).
		Columns("sender", "opponent", "status", "turn", "move", "created_at", "updated_at").
		Values(event.Sender, event.Opponent, string(event.Status), event.Turn, event.Move, event.CreatedAt, event.UpdatedAt).
		Suffix("RETURNING event_id")

	row, err := qRow(ctx, s.pool, q)
	if err != nil {
		return 0, eris.Wrap(err, "failed to build event insert")
	}

	var id model.EventID
	if err := row.Scan(&id); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, model.ErrUserNotFound
		}
		return 0, eris.Wrap(err, "failed to create event")
	}
	return id, nil
}

func (s *Storage) GetEvent(ctx context.Context, id model.EventID) (*model.Event, error) {
	return s.getEvent(ctx, s.pool, id, false)
}

func (s *Storage) getEvent(ctx context.Context, db querier, id model.EventID, forUpdate bool) (*model.Event, error) {
	q := psql.Select(eventColumns...).From(eventsTable).Where(sq.Eq{"event_id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	row, err := qRow(ctx, db, q)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build event query")
	}

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, eris.Wrapf(err, "failed to get event %d", id)
	}
	return event, nil
}

func (s *Storage) ListEventsForUser(ctx context.Context, username string) ([]*model.Event, error) {
	q := psql.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Or{sq.Eq{"sender": username}, sq.Eq{"opponent": username}}).
		OrderBy("event_id")

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list events for %s", username)
	}
	defer rows.Close()

	events := []*model.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "failed to scan event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "failed to list events for %s", username)
	}
	return events, nil
}

func (s *Storage) UpdateEvent(ctx context.Context, id model.EventID, fn storage.EventMutator) (*model.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	event, err := s.getEvent(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if err := fn(event); err != nil {
		return nil, err
	}
	event.EventID = id

	q := psql.Update(eventsTable).
		Set("status", string(event.Status)).
		Set("turn", event.Turn).
		Set("move", event.Move).
		Set("updated_at", event.UpdatedAt).
		Where(sq.Eq{"event_id": id})
	if _, err := qExec(ctx, tx, q); err != nil {
		return nil, eris.Wrapf(err, "failed to update event %d", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrapf(err, "failed to commit event %d", id)
	}
	return event, nil
}

func (s *Storage) Truncate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE events, users RESTART IDENTITY"); err != nil {
		return eris.Wrap(err, "failed to truncate tables")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "failed to commit truncate")
	}
	return nil
}
