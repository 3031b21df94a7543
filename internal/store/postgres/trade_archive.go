package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/monachad/matchfeed/internal/domain"
)

// TradeArchive implements domain.TradeArchive using PostgreSQL. The relay may
// redeliver events after a reconnect, so duplicates (same match, kind, and
// transaction hash) are silently skipped via ON CONFLICT DO NOTHING.
type TradeArchive struct {
	pool *pgxpool.Pool
}

// NewTradeArchive creates a TradeArchive backed by the given connection pool.
func NewTradeArchive(pool *pgxpool.Pool) *TradeArchive {
	return &TradeArchive{pool: pool}
}

const insertTradeSQL = `
	INSERT INTO match_trades (
		match_id, kind, monachad_address, supporter_address,
		trade_type, dex, amount, position_type, leverage, asset_id,
		tx_hash, observed_at_ms
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9, $10,
		$11, $12
	) ON CONFLICT (match_id, kind, tx_hash) DO NOTHING`

// ArchiveShadow inserts a batch of copy trades using pgx Batch.
func (a *TradeArchive) ArchiveShadow(ctx context.Context, trades []domain.ShadowTrade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(insertTradeSQL,
			t.MatchID, "shadow", t.MonachadAddress, nullable(t.SupporterAddress),
			string(t.TradeType), t.Dex, t.Amount,
			nullable(string(t.PositionType)), nullable(t.Leverage), nullable(t.AssetID),
			t.TransactionHash, t.Timestamp,
		)
	}

	return a.send(ctx, batch, len(trades))
}

// ArchiveOriginal inserts a batch of Monachad trades using pgx Batch.
func (a *TradeArchive) ArchiveOriginal(ctx context.Context, trades []domain.OriginalTrade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(insertTradeSQL,
			t.MatchID, "original", t.MonachadAddress, nil,
			string(t.TradeType), t.Dex, t.Amount,
			nullable(string(t.PositionType)), nullable(t.Leverage), nullable(t.AssetID),
			t.TransactionHash, t.Timestamp,
		)
	}

	return a.send(ctx, batch, len(trades))
}

func (a *TradeArchive) send(ctx context.Context, batch *pgx.Batch, n int) error {
	br := a.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: archive trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time interface check.
var _ domain.TradeArchive = (*TradeArchive)(nil)
