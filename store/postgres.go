package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"astroarena/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS ships (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	passphrase  TEXT NOT NULL UNIQUE,
	cosmetics   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS high_scores (
	id          UUID PRIMARY KEY,
	player_name TEXT NOT NULL,
	score       INTEGER NOT NULL,
	round       INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS high_scores_rank_idx ON high_scores (score DESC, created_at);
`

// postgres 错误码
const (
	codeUniqueViolation   = "23505"
	codeInvalidTextRepr   = "22P02"
	defaultConnectTimeout = 5 * time.Second
	maxOpenConns          = 10
)

// Postgres lib/pq 实现。外观字段整体存为 jsonb（以文本参数传入，pq 会把 []byte 当 bytea 编码）。
type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres 连接、探活并建表
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*Postgres, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Info("connected to postgres")
	return &Postgres{db: db, log: log}, nil
}

func (p *Postgres) FindShip(ctx context.Context, passphrase string) (Ship, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, name, passphrase, cosmetics, created_at, updated_at FROM ships WHERE passphrase = $1`, passphrase)
	return scanShip(row)
}

func (p *Postgres) GetShip(ctx context.Context, id string) (Ship, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Ship{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT id, name, passphrase, cosmetics, created_at, updated_at FROM ships WHERE id = $1`, id)
	return scanShip(row)
}

func (p *Postgres) ListShips(ctx context.Context) ([]Ship, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, '' AS passphrase, cosmetics, created_at, updated_at FROM ships ORDER BY created_at`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []Ship
	for rows.Next() {
		s, err := scanShip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

func (p *Postgres) CreateShip(ctx context.Context, s Ship) (Ship, error) {
	if err := validateShip(s); err != nil {
		return Ship{}, err
	}
	cos, err := json.Marshal(s.Cosmetics)
	if err != nil {
		return Ship{}, err
	}
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO ships (id, name, passphrase, cosmetics, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.Passphrase, string(cos), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Ship{}, mapErr(err)
	}
	return s, nil
}

func (p *Postgres) UpdateShip(ctx context.Context, s Ship) (Ship, error) {
	if err := validateShip(s); err != nil {
		return Ship{}, err
	}
	if _, err := uuid.Parse(s.ID); err != nil {
		return Ship{}, ErrNotFound
	}
	cos, err := json.Marshal(s.Cosmetics)
	if err != nil {
		return Ship{}, err
	}
	s.UpdatedAt = time.Now().UTC()
	err = p.db.QueryRowContext(ctx,
		`UPDATE ships SET name = $2, passphrase = $3, cosmetics = $4, updated_at = $5 WHERE id = $1 RETURNING created_at`,
		s.ID, s.Name, s.Passphrase, string(cos), s.UpdatedAt).Scan(&s.CreatedAt)
	if err != nil {
		return Ship{}, mapErr(err)
	}
	return s, nil
}

func (p *Postgres) TopScores(ctx context.Context, limit int) ([]HighScore, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, player_name, score, round, created_at FROM high_scores ORDER BY score DESC, created_at LIMIT $1`,
		clampLimit(limit))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []HighScore
	for rows.Next() {
		var h HighScore
		if err := rows.Scan(&h.ID, &h.PlayerName, &h.Score, &h.Round, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err())
}

func (p *Postgres) AddScore(ctx context.Context, h HighScore) (HighScore, error) {
	if err := validateScore(h); err != nil {
		return HighScore{}, err
	}
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO high_scores (id, player_name, score, round, created_at) VALUES ($1, $2, $3, $4, $5)`,
		h.ID, h.PlayerName, h.Score, h.Round, h.CreatedAt)
	if err != nil {
		return HighScore{}, mapErr(err)
	}
	return h, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShip(row scanner) (Ship, error) {
	var (
		s   Ship
		cos []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Passphrase, &cos, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Ship{}, mapErr(err)
	}
	if len(cos) > 0 {
		var c protocol.Cosmetics
		if err := json.Unmarshal(cos, &c); err != nil {
			return Ship{}, fmt.Errorf("decode cosmetics of ship %s: %w", s.ID, err)
		}
		s.Cosmetics = c
	}
	return s, nil
}

// mapErr 把驱动错误转成包内哨兵错误
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case codeInvalidTextRepr:
			return fmt.Errorf("%w: %s", ErrInvalid, pqErr.Message)
		}
	}
	return err
}
