package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/klipach/courier/log"
)

const (
	DBDriver     = "postgres"
	nodesChannel = "courier_nodes"
)

// Schema creates the node table. Every written path is one row; the value of a path
// without a row of its own is the object of its direct children.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	value      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS nodes_parent_idx ON nodes (parent);
`

// Postgres is a Client on PostgreSQL. Writes publish the changed path with
// pg_notify; subscriptions LISTEN on one shared connection and re-read their path
// when a related path changes.
type Postgres struct {
	db  *sqlx.DB
	dsn string

	mu       sync.Mutex
	listener *pq.Listener
	subs     map[*pgSub]struct{}
}

type pgSub struct {
	pollSub
	path    string
	refresh chan struct{}
}

// NewPostgres wraps an open database. dsn is used for the dedicated LISTEN connection.
func NewPostgres(db *sqlx.DB, dsn string) *Postgres {
	return &Postgres{
		db:   db,
		dsn:  dsn,
		subs: map[*pgSub]struct{}{},
	}
}

// ConnectPostgres opens the database and makes sure the schema exists.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, DBDriver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgres(db, dsn), nil
}

type nodeRow struct {
	Path  string `db:"path"`
	Value []byte `db:"value"`
}

func (p *Postgres) Get(ctx context.Context, path string) (Snapshot, error) {
	var value []byte
	err := p.db.GetContext(ctx, &value, `SELECT value FROM nodes WHERE path = $1`, path)
	if err == nil {
		return NewSnapshot(path, value), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, unavailable("get", path, err)
	}

	var rows []nodeRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT path, value FROM nodes WHERE parent = $1 ORDER BY path`, path); err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	if len(rows) == 0 {
		return NewSnapshot(path, nil), nil
	}
	children := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		children[lastKey(row.Path)] = row.Value
	}
	raw, err := json.Marshal(children)
	if err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	return NewSnapshot(path, raw), nil
}

func (p *Postgres) Set(ctx context.Context, path string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return unavailable("set", path, err)
	}
	if v == nil {
		return p.Remove(ctx, path)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return unavailable("set", path, err)
	}
	return p.write(ctx, "set", path, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (path, parent, value) VALUES ($1, $2, $3)
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			path, parentPath(path), raw,
		)
		return err
	})
}

func (p *Postgres) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := map[string]any{}
	removed := []string{}
	for k, f := range fields {
		v, err := normalize(f)
		if err != nil {
			return unavailable("update", path, err)
		}
		if v == nil {
			removed = append(removed, k)
			continue
		}
		set[k] = v
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return unavailable("update", path, err)
	}
	return p.write(ctx, "update", path, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (path, parent, value) VALUES ($1, $2, $3::jsonb - $4::text[])
			ON CONFLICT (path) DO UPDATE SET value = (nodes.value || EXCLUDED.value) - $4::text[], updated_at = now()`,
			path, parentPath(path), raw, pq.Array(removed),
		)
		return err
	})
}

func (p *Postgres) Push(ctx context.Context, path string, value any) (string, error) {
	key := NewKey()
	if err := p.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Postgres) Remove(ctx context.Context, path string) error {
	return p.write(ctx, "remove", path, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = $1 OR path LIKE $2`,
			path, escapeLike(path)+"/%",
		)
		return err
	})
}

// write runs fn and announces path in the same transaction, so listeners only
// hear about committed changes.
func (p *Postgres) write(ctx context.Context, op, path string, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(op, path, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return unavailable(op, path, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, nodesChannel, path); err != nil {
		_ = tx.Rollback()
		return unavailable(op, path, err)
	}
	return unavailable(op, path, tx.Commit())
}

func (p *Postgres) Subscribe(ctx context.Context, path string, onValue func(Snapshot), onError func(error)) (Subscription, error) {
	if err := p.listen(ctx); err != nil {
		return nil, unavailable("subscribe", path, err)
	}
	first, err := p.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pgSub{
		pollSub: pollSub{cancel: cancel},
		path:    path,
		refresh: make(chan struct{}, 1),
	}
	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.subs, sub)
			p.mu.Unlock()
		}()
		last := string(first.Value)
		sub.emit(func() { onValue(first) })
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.refresh:
			}
			snap, err := p.Get(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sub.emit(func() {
					if onError != nil {
						onError(err)
					}
				})
				continue
			}
			if string(snap.Value) == last {
				continue
			}
			last = string(snap.Value)
			sub.emit(func() { onValue(snap) })
		}
	}()
	return sub, nil
}

// listen starts the shared LISTEN connection once.
func (p *Postgres) listen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil {
		return nil
	}
	logger := log.LoggerFromContext(ctx)
	l := pq.NewListener(p.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", slog.Int("event", int(ev)), slog.String(log.ErrorMsgLogField, err.Error()))
		}
	})
	if err := l.Listen(nodesChannel); err != nil {
		_ = l.Close()
		return err
	}
	p.listener = l
	go p.dispatch(l)
	return nil
}

func (p *Postgres) dispatch(l *pq.Listener) {
	for n := range l.Notify {
		p.mu.Lock()
		for sub := range p.subs {
			// a nil notification follows a reconnect: changes may have been missed
			if n == nil || related(sub.path, n.Extra) {
				select {
				case sub.refresh <- struct{}{}:
				default:
				}
			}
		}
		p.mu.Unlock()
	}
}

// Close stops the LISTEN connection and closes the database.
func (p *Postgres) Close() error {
	p.mu.Lock()
	l := p.listener
	p.listener = nil
	p.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}
	return p.db.Close()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
