package state

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	episode_id    TEXT PRIMARY KEY,
	catalog_hash  TEXT NOT NULL,
	config_yaml   TEXT,
	seed          INTEGER,
	policy        TEXT,
	rewards_json  TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	steps         INTEGER NOT NULL DEFAULT 0,
	total_reward  REAL NOT NULL DEFAULT 0,
	terminated    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id    TEXT NOT NULL,
	step_index    INTEGER NOT NULL,
	action        INTEGER NOT NULL,
	description   TEXT NOT NULL,
	reward        REAL NOT NULL,
	terminated    INTEGER NOT NULL,
	action_valid  INTEGER NOT NULL,
	observation   BLOB NOT NULL,
	info_json     TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id),
	UNIQUE (episode_id, step_index)
);
`

// #endregion schema

// ErrEpisodeNotFound is returned when an episode ID has no row.
var ErrEpisodeNotFound = errors.New("episode not found")

// #region store-struct
// Store records episodes and their transitions in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := ensureColumn(db, "episodes", "rewards_json", "TEXT"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// ensureColumn adds a column to databases created before it existed.
func ensureColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("table info %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("table info %s: %w", table, err)
	}
	rows.Close()
	if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region create-episode
// CreateEpisode inserts an open episode row.
func (s *Store) CreateEpisode(rec EpisodeRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	var seed interface{}
	if rec.Seed != nil {
		seed = *rec.Seed
	}
	_, err := s.db.Exec(
		`INSERT INTO episodes (episode_id, catalog_hash, config_yaml, seed, policy, rewards_json, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.CatalogHash, nullIfEmpty(rec.ConfigYAML), seed, nullIfEmpty(rec.Policy),
		nullIfEmpty(rec.RewardsJSON), rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// #endregion create-episode

// #region finish-episode
// FinishEpisode stores the totals of an episode and closes it.
func (s *Store) FinishEpisode(episodeID string, steps int, totalReward float64, terminated bool) error {
	res, err := s.db.Exec(
		`UPDATE episodes SET finished_at = ?, steps = ?, total_reward = ?, terminated = ?
		 WHERE episode_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), steps, totalReward, boolToInt(terminated), episodeID,
	)
	if err != nil {
		return fmt.Errorf("finish episode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish episode: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish episode %s: %w", episodeID, ErrEpisodeNotFound)
	}
	return nil
}

// #endregion finish-episode

// #region get-episode
const episodeColumns = `episode_id, catalog_hash, config_yaml, seed, policy, rewards_json, started_at, finished_at, steps, total_reward, terminated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (EpisodeRecord, error) {
	var rec EpisodeRecord
	var configYAML, policy, rewards, finished sql.NullString
	var seed sql.NullInt64
	var started string
	var terminated int
	if err := row.Scan(&rec.EpisodeID, &rec.CatalogHash, &configYAML, &seed, &policy, &rewards,
		&started, &finished, &rec.Steps, &rec.TotalReward, &terminated); err != nil {
		return EpisodeRecord{}, err
	}
	rec.ConfigYAML = configYAML.String
	rec.Policy = policy.String
	rec.RewardsJSON = rewards.String
	if seed.Valid {
		v := seed.Int64
		rec.Seed = &v
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	rec.Terminated = terminated != 0
	return rec, nil
}

// GetEpisode retrieves a recorded episode by ID.
func (s *Store) GetEpisode(id string) (EpisodeRecord, error) {
	rec, err := scanEpisode(s.db.QueryRow(`SELECT `+episodeColumns+` FROM episodes WHERE episode_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return EpisodeRecord{}, fmt.Errorf("get episode %s: %w", id, ErrEpisodeNotFound)
	}
	if err != nil {
		return EpisodeRecord{}, fmt.Errorf("get episode %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-episode

// #region list-episodes
// ListEpisodes returns the most recently started episodes.
func (s *Store) ListEpisodes(limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(`SELECT `+episodeColumns+` FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		rec, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion list-episodes

// #region list-transitions
// ListTransitions returns the transitions of an episode in step order.
func (s *Store) ListTransitions(episodeID string) ([]TransitionRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, step_index, action, description, reward, terminated, action_valid,
		        observation, info_json, created_at
		 FROM transitions WHERE episode_id = ? ORDER BY step_index ASC`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionRecord
	for rows.Next() {
		var tr TransitionRecord
		var terminated, valid int
		var obs []byte
		var info sql.NullString
		var created string
		if err := rows.Scan(&tr.EpisodeID, &tr.StepIndex, &tr.Action, &tr.Description, &tr.Reward,
			&terminated, &valid, &obs, &info, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		tr.Terminated = terminated != 0
		tr.ActionValid = valid != 0
		tr.Observation = DecodeVector(obs)
		tr.InfoJSON = info.String
		tr.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// #endregion list-transitions

// #region vector-encoding
// EncodeVector packs v as little-endian float32s.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a buffer written by EncodeVector. Trailing bytes that
// do not form a full float32 are ignored.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
