// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/partyrounds/internal/cache"
)

// Session statuses as stored in session_games.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_games (
	lobby_id   UUID PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'in_progress',
	started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ended_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS session_actions (
	lobby_id       UUID NOT NULL REFERENCES session_games (lobby_id) ON DELETE CASCADE,
	action_index   INT NOT NULL,
	actor_id       UUID,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL DEFAULT '{}',
	occurred_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (lobby_id, action_index)
);

CREATE TABLE IF NOT EXISTS session_results (
	lobby_id     UUID NOT NULL REFERENCES session_games (lobby_id) ON DELETE CASCADE,
	player_id    UUID NOT NULL,
	display_name TEXT NOT NULL,
	score        INT NOT NULL,
	placement    INT NOT NULL,
	PRIMARY KEY (lobby_id, player_id)
);
`

// SessionGame is one archived session row.
type SessionGame struct {
	LobbyID   uuid.UUID
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// SessionResult is one player's archived final standing.
type SessionResult struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	Placement   int       `json:"placement"`
}

// Archive writes the session action feed to Postgres. The game server never reads it.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// EnsureSchema creates the archive tables if they are missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// WriteBatch stores recs in one transaction. Replayed records are ignored, a
// game_finished record completes the session and records its standings, and a
// session_closed record on a session that never finished abandons it.
func (a *Archive) WriteBatch(ctx context.Context, recs []cache.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d for %s: %w", rec.ActionIndex, rec.LobbyID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx write batch: %w", err)
	}
	return nil
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec cache.ActionRecord) error {
	occurred := time.UnixMilli(rec.Timestamp)
	upsertGame := `
		INSERT INTO session_games (lobby_id, status, started_at)
		VALUES ($1, 'in_progress', $2)
		ON CONFLICT (lobby_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGame, rec.LobbyID, occurred); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	if rec.ActionPayload == nil {
		payload = []byte("{}")
	}
	var actor *uuid.UUID
	if rec.ActorID != uuid.Nil {
		actor = &rec.ActorID
	}
	insertAction := `
		INSERT INTO session_actions (lobby_id, action_index, actor_id, action_type, action_payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lobby_id, action_index) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertAction, rec.LobbyID, rec.ActionIndex, actor, rec.ActionType, payload, occurred); err != nil {
		return err
	}

	switch rec.ActionType {
	case cache.ActionGameFinished:
		finalize := `
			UPDATE session_games
			SET status = 'completed', ended_at = $2
			WHERE lobby_id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalize, rec.LobbyID, occurred); err != nil {
			return err
		}
		return insertResultsTx(ctx, tx, rec)
	case cache.ActionSessionClosed:
		_, err := tx.Exec(ctx, `
			UPDATE session_games
			SET status = 'abandoned', ended_at = $2
			WHERE lobby_id = $1 AND status = 'in_progress'
		`, rec.LobbyID, occurred)
		return err
	}
	return nil
}

// insertResultsTx stores the standings carried by a game_finished record. The payload
// has been through JSON, so it is decoded again rather than type-asserted.
func insertResultsTx(ctx context.Context, tx pgx.Tx, rec cache.ActionRecord) error {
	raw, ok := rec.ActionPayload["standings"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var standings []SessionResult
	if err := json.Unmarshal(data, &standings); err != nil {
		return fmt.Errorf("decode standings: %w", err)
	}
	q := `
		INSERT INTO session_results (lobby_id, player_id, display_name, score, placement)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lobby_id, player_id)
		DO UPDATE SET display_name = $3, score = $4, placement = $5
	`
	for i, s := range standings {
		if _, err := tx.Exec(ctx, q, rec.LobbyID, s.PlayerID, s.DisplayName, s.Score, i+1); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned abandons a session that is still in progress. It reports whether a row
// changed.
func (a *Archive) MarkAbandoned(ctx context.Context, lobbyID uuid.UUID) (bool, error) {
	tag, err := a.pool.Exec(ctx, `
		UPDATE session_games
		SET status = 'abandoned', ended_at = NOW()
		WHERE lobby_id = $1 AND status = 'in_progress'
	`, lobbyID)
	if err != nil {
		return false, fmt.Errorf("mark %s abandoned: %w", lobbyID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ErrNoSession is returned when a lobby was never archived.
var ErrNoSession = errors.New("session not archived")

// Session loads one archived session row.
func (a *Archive) Session(ctx context.Context, lobbyID uuid.UUID) (SessionGame, error) {
	var g SessionGame
	err := a.pool.QueryRow(ctx, `
		SELECT lobby_id, status, started_at, ended_at FROM session_games WHERE lobby_id = $1
	`, lobbyID).Scan(&g.LobbyID, &g.Status, &g.StartedAt, &g.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionGame{}, ErrNoSession
	}
	if err != nil {
		return SessionGame{}, fmt.Errorf("load session %s: %w", lobbyID, err)
	}
	return g, nil
}

// Actions loads a session's archived actions in order.
func (a *Archive) Actions(ctx context.Context, lobbyID uuid.UUID) ([]cache.ActionRecord, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT action_index, actor_id, action_type, action_payload, occurred_at
		FROM session_actions WHERE lobby_id = $1 ORDER BY action_index
	`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("query actions for %s: %w", lobbyID, err)
	}
	defer rows.Close()

	var out []cache.ActionRecord
	for rows.Next() {
		var (
			rec      cache.ActionRecord
			actor    *uuid.UUID
			payload  []byte
			occurred time.Time
		)
		if err := rows.Scan(&rec.ActionIndex, &actor, &rec.ActionType, &payload, &occurred); err != nil {
			return nil, err
		}
		rec.LobbyID = lobbyID
		if actor != nil {
			rec.ActorID = *actor
		}
		if err := json.Unmarshal(payload, &rec.ActionPayload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		rec.Timestamp = occurred.UnixMilli()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Results loads a finished session's standings, best first.
func (a *Archive) Results(ctx context.Context, lobbyID uuid.UUID) ([]SessionResult, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT player_id, display_name, score, placement
		FROM session_results WHERE lobby_id = $1 ORDER BY placement
	`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("query results for %s: %w", lobbyID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionResult, error) {
		var r SessionResult
		err := row.Scan(&r.PlayerID, &r.DisplayName, &r.Score, &r.Placement)
		return r, err
	})
}
