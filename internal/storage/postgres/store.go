package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventScope/internal/model"
	"eventScope/internal/network"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS contract_events (
		network      TEXT   NOT NULL,
		contract     TEXT   NOT NULL,
		block_number BIGINT NOT NULL,
		log_index    BIGINT NOT NULL,
		event_name   TEXT   NOT NULL,
		tx_hash      TEXT   NOT NULL,
		block_hash   TEXT   NOT NULL,
		args         JSONB  NOT NULL,
		exported_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (network, contract, block_number, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS contract_events_name_idx ON contract_events (network, contract, event_name)`,
	`CREATE TABLE IF NOT EXISTS role_members (
		network     TEXT NOT NULL,
		contract    TEXT NOT NULL,
		actor       TEXT NOT NULL,
		role        TEXT NOT NULL,
		member      BOOLEAN NOT NULL,
		exported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (network, contract, actor, role)
	)`,
}

// Store exports events and role membership to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the export tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

type eventRow struct {
	network     string
	contract    string
	blockNumber int64
	logIndex    int64
	name        string
	txHash      string
	blockHash   string
	args        []byte
}

func eventRows(net network.Network, events []model.LogEvent) ([]eventRow, error) {
	rows := make([]eventRow, 0, len(events))
	for _, event := range events {
		args := event.Args
		if args == nil {
			args = []model.Arg{}
		}
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode args for %s@%d: %w", event.Event, event.BlockNumber, err)
		}
		rows = append(rows, eventRow{
			network:     net.String(),
			contract:    event.Contract,
			blockNumber: int64(event.BlockNumber),
			logIndex:    int64(event.LogIndex),
			name:        event.Event,
			txHash:      event.TxHash,
			blockHash:   event.BlockHash,
			args:        encoded,
		})
	}
	return rows, nil
}

// UpsertEvents inserts decoded events, replacing rows with the same log position.
func (s *Store) UpsertEvents(ctx context.Context, net network.Network, events []model.LogEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows, err := eventRows(net, events)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO contract_events (
				network, contract, block_number, log_index, event_name, tx_hash, block_hash, args, exported_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (network, contract, block_number, log_index)
			DO UPDATE SET
				event_name = EXCLUDED.event_name,
				tx_hash = EXCLUDED.tx_hash,
				block_hash = EXCLUDED.block_hash,
				args = EXCLUDED.args,
				exported_at = now()
		`,
			row.network,
			row.contract,
			row.blockNumber,
			row.logIndex,
			row.name,
			row.txHash,
			row.blockHash,
			row.args,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}
	}
	return nil
}

// ReplaceRoleMembers swaps the stored role snapshot of a contract for members.
func (s *Store) ReplaceRoleMembers(ctx context.Context, net network.Network, contract string, members []model.RoleMember) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin role export: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM role_members WHERE network = $1 AND contract = $2`, net.String(), contract); err != nil {
		return fmt.Errorf("clear role members: %w", err)
	}

	if len(members) > 0 {
		rows := make([][]interface{}, 0, len(members))
		for _, m := range members {
			rows = append(rows, []interface{}{net.String(), contract, m.Actor, m.Role, m.Member})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"role_members"},
			[]string{"network", "contract", "actor", "role", "member"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy role members: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role export: %w", err)
	}
	return nil
}
