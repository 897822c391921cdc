package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/memexlabs/memex/internal/episode"
	"github.com/memexlabs/memex/internal/errs"
	"github.com/memexlabs/memex/internal/pattern"
	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/stmtcache"
)

// maxBatchErrors bounds BatchResult.Errors to a fixed-size error list.
const maxBatchErrors = 50

const schemaDDL = `
CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS episode_metadata (
	episode_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episode_metadata_kv ON episode_metadata(key, value);
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	success_rate REAL NOT NULL,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS heuristics (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	rel_type TEXT NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE TABLE IF NOT EXISTS embeddings (
	episode_id TEXT PRIMARY KEY,
	vector BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS summaries (
	episode_id TEXT PRIMARY KEY,
	summary TEXT NOT NULL
);
`

// SQLite is the modernc.org/sqlite-backed durable Store implementation.
// Every stored object is serialized deterministically via encoding/json
// (stable field order, struct tags) and stored as raw JSON; this
// façade applies no compression.
type SQLite struct {
	db    *sql.DB
	stmts *stmtcache.Cache
	connID string
}

// Open creates or attaches to a sqlite database at path (":memory:" for
// an ephemeral store) and ensures the schema exists.
func Open(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap("store.open", errs.KindStorage, err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, errs.Wrap("store.open", errs.KindStorage, err)
	}
	return &SQLite{db: db, stmts: stmtcache.New(64, 16), connID: "primary"}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) prep(query string) (*sql.Stmt, error) {
	return s.stmts.Prepare(s.db, s.connID, query)
}

func (s *SQLite) StoreEpisode(ctx context.Context, e *episode.Episode) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errs.Wrap("store.store_episode", errs.KindSerialization, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("store.store_episode", errs.KindStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO episodes(id, data) VALUES(?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, e.ID, data); err != nil {
		return errs.Wrap("store.store_episode", errs.KindStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM episode_metadata WHERE episode_id = ?`, e.ID); err != nil {
		return errs.Wrap("store.store_episode", errs.KindStorage, err)
	}
	for k, v := range e.Metadata {
		if _, err := tx.ExecContext(ctx, `INSERT INTO episode_metadata(episode_id, key, value) VALUES(?, ?, ?)`, e.ID, k, v); err != nil {
			return errs.Wrap("store.store_episode", errs.KindStorage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap("store.store_episode", errs.KindStorage, err)
	}
	return nil
}

func (s *SQLite) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	stmt, err := s.prep(`SELECT data FROM episodes WHERE id = ?`)
	if err != nil {
		return nil, errs.Wrap("store.get_episode", errs.KindStorage, err)
	}
	var data []byte
	if err := stmt.QueryRowContext(ctx, id).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap("store.get_episode", errs.KindNotFound, errs.ErrEpisodeNotFound)
		}
		return nil, errs.Wrap("store.get_episode", errs.KindStorage, err)
	}
	var e episode.Episode
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errs.Wrap("store.get_episode", errs.KindSerialization, err)
	}
	return &e, nil
}

func (s *SQLite) DeleteEpisode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("store.delete_episode", errs.KindStorage, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id); err != nil {
		return errs.Wrap("store.delete_episode", errs.KindStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM episode_metadata WHERE episode_id = ?`, id); err != nil {
		return errs.Wrap("store.delete_episode", errs.KindStorage, err)
	}
	return tx.Commit()
}

func (s *SQLite) QueryEpisodesByMetadata(ctx context.Context, key, value string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT episode_id FROM episode_metadata WHERE key = ? AND value = ?`, key, value)
	if err != nil {
		return nil, errs.Wrap("store.query_episodes_by_metadata", errs.KindStorage, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap("store.query_episodes_by_metadata", errs.KindStorage, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLite) StorePattern(ctx context.Context, p *pattern.Pattern) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errs.Wrap("store.store_pattern", errs.KindSerialization, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO patterns(id, kind, success_rate, data) VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, success_rate = excluded.success_rate, data = excluded.data`,
		p.ID, string(p.Kind), p.SuccessRate, data)
	if err != nil {
		return errs.Wrap("store.store_pattern", errs.KindStorage, err)
	}
	return nil
}

func (s *SQLite) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM patterns WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap("store.get_pattern", errs.KindNotFound, errs.ErrPatternNotFound)
		}
		return nil, errs.Wrap("store.get_pattern", errs.KindStorage, err)
	}
	var p pattern.Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap("store.get_pattern", errs.KindSerialization, err)
	}
	return &p, nil
}

func (s *SQLite) QueryPatterns(ctx context.Context, filter PatternFilter) ([]*pattern.Pattern, error) {
	query := `SELECT data FROM patterns WHERE success_rate >= ?`
	args := []interface{}{filter.MinSuccess}
	if filter.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*filter.Kind))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap("store.query_patterns", errs.KindStorage, err)
	}
	defer rows.Close()

	var out []*pattern.Pattern
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.Wrap("store.query_patterns", errs.KindStorage, err)
		}
		var p pattern.Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errs.Wrap("store.query_patterns", errs.KindSerialization, err)
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *SQLite) StoreHeuristic(ctx context.Context, h *pattern.Heuristic) error {
	data, err := json.Marshal(h)
	if err != nil {
		return errs.Wrap("store.store_heuristic", errs.KindSerialization, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO heuristics(id, data) VALUES(?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, h.ID, data)
	if err != nil {
		return errs.Wrap("store.store_heuristic", errs.KindStorage, err)
	}
	return nil
}

func (s *SQLite) GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM heuristics WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.Wrap("store.get_heuristic", errs.KindNotFound, errs.ErrHeuristicNotFound)
		}
		return nil, errs.Wrap("store.get_heuristic", errs.KindStorage, err)
	}
	var h pattern.Heuristic
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errs.Wrap("store.get_heuristic", errs.KindSerialization, err)
	}
	return &h, nil
}

func (s *SQLite) StoreRelationship(ctx context.Context, r relationship.Relationship) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errs.Wrap("store.store_relationship", errs.KindSerialization, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO relationships(id, from_id, to_id, rel_type, data) VALUES(?, ?, ?, ?, ?)`,
		r.ID, r.From, r.To, string(r.Type), data)
	if err != nil {
		return errs.Wrap("store.store_relationship", errs.KindStorage, err)
	}
	return nil
}

func (s *SQLite) GetRelationships(ctx context.Context, episodeID string, dir Direction) ([]relationship.Relationship, error) {
	var query string
	switch dir {
	case DirectionOutgoing:
		query = `SELECT data FROM relationships WHERE from_id = ?`
	case DirectionIncoming:
		query = `SELECT data FROM relationships WHERE to_id = ?`
	default:
		query = `SELECT data FROM relationships WHERE from_id = ? OR to_id = ?`
	}
	args := []interface{}{episodeID}
	if dir == DirectionBoth {
		args = append(args, episodeID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap("store.get_relationships", errs.KindStorage, err)
	}
	defer rows.Close()

	var out []relationship.Relationship
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errs.Wrap("store.get_relationships", errs.KindStorage, err)
		}
		var r relationship.Relationship
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, errs.Wrap("store.get_relationships", errs.KindSerialization, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLite) DeleteRelationship(ctx context.Context, from, to string, t relationship.Type) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE from_id = ? AND to_id = ? AND rel_type = ?`,
		from, to, string(t))
	if err != nil {
		return errs.Wrap("store.delete_relationship", errs.KindStorage, err)
	}
	return nil
}

func (s *SQLite) StorePatternsBatch(ctx context.Context, ps []*pattern.Pattern) BatchResult {
	return s.batch(ctx, len(ps), func(tx *sql.Tx, i int) error {
		p := ps[i]
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO patterns(id, kind, success_rate, data) VALUES(?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, success_rate = excluded.success_rate, data = excluded.data`,
			p.ID, string(p.Kind), p.SuccessRate, data)
		return err
	}, func(i int) string { return ps[i].ID })
}

func (s *SQLite) GetPatternsBatch(ctx context.Context, ids []string) ([]*pattern.Pattern, BatchResult) {
	out := make([]*pattern.Pattern, len(ids))
	res := s.batch(ctx, len(ids), func(tx *sql.Tx, i int) error {
		var data []byte
		err := tx.QueryRowContext(ctx, `SELECT data FROM patterns WHERE id = ?`, ids[i]).Scan(&data)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("not found: %s", ids[i])
			}
			return err
		}
		var p pattern.Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		out[i] = &p
		return nil
	}, func(i int) string { return ids[i] })
	return out, res
}

func (s *SQLite) UpdatePatternsBatch(ctx context.Context, ps []*pattern.Pattern) BatchResult {
	return s.StorePatternsBatch(ctx, ps)
}

func (s *SQLite) DeletePatternsBatch(ctx context.Context, ids []string) BatchResult {
	return s.batch(ctx, len(ids), func(tx *sql.Tx, i int) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE id = ?`, ids[i])
		return err
	}, func(i int) string { return ids[i] })
}

// batch executes n indexed operations under a single transaction; any
// element failure rolls back the whole batch.
func (s *SQLite) batch(ctx context.Context, n int, op func(tx *sql.Tx, i int) error, idOf func(i int) string) BatchResult {
	res := BatchResult{Processed: n}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		res.Failed = n
		res.Errors = append(res.Errors, BatchError{Message: err.Error()})
		return res
	}

	for i := 0; i < n; i++ {
		if err := op(tx, i); err != nil {
			_ = tx.Rollback()
			res.Failed = n
			res.Succeeded = 0
			if len(res.Errors) < maxBatchErrors {
				res.Errors = append(res.Errors, BatchError{ID: idOf(i), Message: err.Error()})
			}
			return res
		}
	}

	if err := tx.Commit(); err != nil {
		res.Failed = n
		res.Errors = append(res.Errors, BatchError{Message: err.Error()})
		return res
	}
	res.Succeeded = n
	return res
}

var _ Store = (*SQLite)(nil)
