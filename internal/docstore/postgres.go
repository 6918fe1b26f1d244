package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	notifyChannel = "docstore_changes"
	maxTxAttempts = 5
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_parent_idx ON documents (parent);
`

// Postgres stores documents as JSONB rows and fans out changes with
// LISTEN/NOTIFY.
type Postgres struct {
	db *pgxpool.Pool

	mu       sync.Mutex
	watchers map[int]*pgWatcher
	nextID   int
	cancel   context.CancelFunc
	started  bool
}

type pgWatcher struct {
	path  string
	query *Query
	kick  chan struct{}
}

func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	return &Postgres{db: db, watchers: map[int]*pgWatcher{}}, nil
}

// OpenPostgres connects a pool to databaseURL and prepares the document table.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (p *Postgres) Get(ctx context.Context, path string) (*Snapshot, error) {
	return pgGet(ctx, p.db, path, false)
}

func (p *Postgres) Set(ctx context.Context, path string, data map[string]interface{}) error {
	return p.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(path, data)
	})
}

func (p *Postgres) Merge(ctx context.Context, path string, data map[string]interface{}) error {
	return p.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Merge(path, data)
	})
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	return p.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(path)
	})
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	if !validCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	filter := map[string]interface{}{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode filter: %w", err)
	}

	rows, err := p.db.Query(ctx,
		`SELECT path, id, data FROM documents WHERE parent = $1 AND data @> $2::jsonb ORDER BY id`,
		q.Collection, raw)
	if err != nil {
		return nil, fmt.Errorf("docstore: query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var path, id string
		var body []byte
		if err := rows.Scan(&path, &id, &body); err != nil {
			return nil, fmt.Errorf("docstore: scan: %w", err)
		}
		data, err := decodeJSON(body)
		if err != nil {
			return nil, err
		}
		out = append(out, &Snapshot{Path: path, ID: id, Exists: true, Data: data})
	}
	return out, rows.Err()
}

func (p *Postgres) WatchDoc(ctx context.Context, path string, fn DocFunc) {
	if _, _, err := splitPath(path); err != nil {
		fn(nil, err)
		return
	}
	w := &pgWatcher{path: path, kick: make(chan struct{}, 1)}
	p.watch(ctx, w, func() {
		snap, err := p.Get(ctx, path)
		if err != nil && !errors.Is(err, ErrNotFound) {
			if ctx.Err() == nil {
				fn(nil, err)
			}
			return
		}
		fn(snap, nil)
	})
}

func (p *Postgres) WatchQuery(ctx context.Context, q Query, fn QueryFunc) {
	if !validCollection(q.Collection) {
		fn(nil, ErrInvalidPath)
		return
	}
	w := &pgWatcher{query: &q, kick: make(chan struct{}, 1)}
	p.watch(ctx, w, func() {
		snaps, err := p.Query(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				fn(nil, err)
			}
			return
		}
		fn(snaps, nil)
	})
}

// watch runs emit once and again after every coalesced change notification.
func (p *Postgres) watch(ctx context.Context, w *pgWatcher, emit func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = w
	if !p.started {
		p.started = true
		lctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		go p.listen(lctx)
	}
	p.mu.Unlock()

	w.kick <- struct{}{}
	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.watchers, id)
			p.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.kick:
				emit()
			}
		}
	}()
}

func (p *Postgres) listen(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := p.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("docstore: listener stopped: %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	// Changes made while disconnected are picked up by a full refresh.
	p.kickAll(func(*pgWatcher) bool { return true })

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		changed := n.Payload
		p.kickAll(func(w *pgWatcher) bool { return w.wants(changed) })
	}
}

// wants reports whether a change to path can alter what w emits.
func (w *pgWatcher) wants(path string) bool {
	if w.query != nil {
		parent, _, err := splitPath(path)
		return err == nil && w.query.Collection == parent
	}
	return w.path == path
}

func (p *Postgres) kickAll(match func(*pgWatcher) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.watchers {
		if !match(w) {
			continue
		}
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// RunTransaction retries serialization failures.
func (p *Postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, p.db, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{ctx: ctx, tx: tx})
		})
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "40001" {
			continue
		}
		return err
	}
	return fmt.Errorf("docstore: transaction aborted after %d attempts: %w", maxTxAttempts, err)
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.db.Close()
	return nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Get(path string) (*Snapshot, error) {
	return pgGet(t.ctx, t.tx, path, true)
}

func (t *pgTx) Create(path string, data map[string]interface{}) error {
	parent, id, err := splitPath(path)
	if err != nil {
		return err
	}
	body, err := json.Marshal(stripDeletes(data))
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", path, err)
	}
	tag, err := t.tx.Exec(t.ctx,
		`INSERT INTO documents (path, parent, id, data) VALUES ($1, $2, $3, $4::jsonb) ON CONFLICT (path) DO NOTHING`,
		path, parent, id, body)
	if err != nil {
		return fmt.Errorf("docstore: create %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return t.notify(path)
}

func (t *pgTx) Set(path string, data map[string]interface{}) error {
	return t.upsert(path, stripDeletes(data))
}

func (t *pgTx) Merge(path string, data map[string]interface{}) error {
	current, err := pgGet(t.ctx, t.tx, path, true)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	doc := map[string]interface{}{}
	if current != nil && current.Exists {
		doc = current.Data
	}
	mergeMaps(doc, data)
	return t.upsert(path, doc)
}

func (t *pgTx) Delete(path string) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	if _, err := t.tx.Exec(t.ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", path, err)
	}
	return t.notify(path)
}

func (t *pgTx) upsert(path string, data map[string]interface{}) error {
	parent, id, err := splitPath(path)
	if err != nil {
		return err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", path, err)
	}
	_, err = t.tx.Exec(t.ctx, `
		INSERT INTO documents (path, parent, id, data) VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		path, parent, id, body)
	if err != nil {
		return fmt.Errorf("docstore: write %s: %w", path, err)
	}
	return t.notify(path)
}

// notify is delivered by Postgres only when the transaction commits.
func (t *pgTx) notify(path string) error {
	_, err := t.tx.Exec(t.ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path)
	return err
}

func pgGet(ctx context.Context, q queryer, path string, forUpdate bool) (*Snapshot, error) {
	_, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	sql := `SELECT data FROM documents WHERE path = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var body []byte
	err = q.QueryRow(ctx, sql, path).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Snapshot{Path: path, ID: id}, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s: %w", path, err)
	}
	data, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Path: path, ID: id, Exists: true, Data: data}, nil
}

func decodeJSON(body []byte) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("docstore: decode json: %w", err)
	}
	return data, nil
}
