package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type portfolioRepository struct {
	psql *pgxpool.Pool
}

func NewPortfolioRepository(pool *pgxpool.Pool) domain.PortfolioRepository {
	return &portfolioRepository{
		psql: pool,
	}
}

func (pr *portfolioRepository) GetPosition(ctx context.Context, accountID, symbol string) (*domain.Position, error) {
	query := `SELECT
			account_id,
			symbol,
			quantity,
			avg_cost::TEXT,
			invested::TEXT,
			created_at,
			updated_at
		FROM arena.positions
		WHERE account_id = $1 AND symbol = $2`
	position := &Position{}
	if err := pr.psql.QueryRow(ctx, query, accountID, symbol).Scan(
		&position.AccountID,
		&position.Symbol,
		&position.Quantity,
		&position.AvgCost,
		&position.Invested,
		&position.CreatedAt,
		&position.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, errs.NewStack(err)
	}

	return position.CreateDomain()
}

func (pr *portfolioRepository) GetPositions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	query := `SELECT
			account_id,
			symbol,
			quantity,
			avg_cost::TEXT,
			invested::TEXT,
			created_at,
			updated_at
		FROM arena.positions
		WHERE account_id = $1
		ORDER BY symbol ASC`
	rows, err := pr.psql.Query(ctx, query, accountID)
	if err != nil {
		return nil, errs.NewStack(err)
	}
	defer rows.Close()

	positions := []*domain.Position{}
	for rows.Next() {
		position := &Position{}
		if err := rows.Scan(
			&position.AccountID,
			&position.Symbol,
			&position.Quantity,
			&position.AvgCost,
			&position.Invested,
			&position.CreatedAt,
			&position.UpdatedAt,
		); err != nil {
			return nil, errs.NewStack(err)
		}

		domainPosition, err := position.CreateDomain()
		if err != nil {
			return nil, errs.NewStack(err)
		}
		positions = append(positions, domainPosition)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStack(err)
	}

	return positions, nil
}

func (pr *portfolioRepository) GetHeldSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM arena.positions ORDER BY symbol ASC`
	rows, err := pr.psql.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStack(err)
	}
	defer rows.Close()

	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errs.NewStack(err)
	}

	return symbols, nil
}

// Settle locks the account row, so cash, position and transaction log commit together.
func (pr *portfolioRepository) Settle(ctx context.Context, settlement *domain.Settlement) error {
	record := settlement.Transaction

	tx, err := pr.psql.Begin(ctx)
	if err != nil {
		return errs.NewStack(err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error("failed to rollback transaction", zap.Error(err))
		}
	}()

	query := `SELECT cash::TEXT FROM arena.accounts WHERE id = $1 FOR UPDATE`
	var rawCash string
	if err := tx.QueryRow(ctx, query, record.AccountID).Scan(&rawCash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return traderrs.ErrAccountNotFound
		}

		return errs.NewStack(err)
	}

	cash, err := decimal.NewFromString(rawCash)
	if err != nil {
		return errs.NewStack(err)
	}

	cash = cash.Add(settlement.CashDelta)
	if cash.IsNegative() {
		return traderrs.ErrInsufficientFunds
	}

	query = `UPDATE arena.accounts SET cash = $1::NUMERIC, updated_at = NOW() WHERE id = $2`
	if _, err = tx.Exec(ctx, query, cash.String(), record.AccountID); err != nil {
		return errs.NewStack(err)
	}

	if position := settlement.Position; position.Open() {
		query = `INSERT INTO arena.positions(account_id, symbol, quantity, avg_cost, invested)
			VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
			ON CONFLICT (account_id, symbol) DO UPDATE
			SET quantity = EXCLUDED.quantity,
				avg_cost = EXCLUDED.avg_cost,
				invested = EXCLUDED.invested,
				updated_at = NOW()`
		if _, err = tx.Exec(ctx, query,
			record.AccountID,
			record.Symbol,
			position.Quantity,
			position.AvgCost.String(),
			position.Invested.String(),
		); err != nil {
			return errs.NewStack(err)
		}
	} else {
		query = `DELETE FROM arena.positions WHERE account_id = $1 AND symbol = $2`
		if _, err = tx.Exec(ctx, query, record.AccountID, record.Symbol); err != nil {
			return errs.NewStack(err)
		}
	}

	query = `INSERT INTO arena.transactions(id, account_id, symbol, side, quantity, price, total, realized_pnl, created_at)
		VALUES ($1::UUID, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`
	if _, err = tx.Exec(ctx, query,
		record.ID,
		record.AccountID,
		record.Symbol,
		string(record.Side),
		record.Quantity,
		record.Price.String(),
		record.Total.String(),
		record.RealizedPnL.String(),
		record.CreatedAt,
	); err != nil {
		return errs.NewStack(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.NewStack(err)
	}

	return nil
}

func (pr *portfolioRepository) GetTransactions(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	query := `SELECT
			id::TEXT,
			account_id,
			symbol,
			side,
			quantity,
			price::TEXT,
			total::TEXT,
			realized_pnl::TEXT,
			created_at
		FROM arena.transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := pr.psql.Query(ctx, query, accountID, limitArg)
	if err != nil {
		return nil, errs.NewStack(err)
	}
	defer rows.Close()

	transactions := []*domain.Transaction{}
	for rows.Next() {
		transaction := &Transaction{}
		if err := rows.Scan(
			&transaction.ID,
			&transaction.AccountID,
			&transaction.Symbol,
			&transaction.Side,
			&transaction.Quantity,
			&transaction.Price,
			&transaction.Total,
			&transaction.RealizedPnL,
			&transaction.CreatedAt,
		); err != nil {
			return nil, errs.NewStack(err)
		}

		domainTransaction, err := transaction.CreateDomain()
		if err != nil {
			return nil, errs.NewStack(err)
		}
		transactions = append(transactions, domainTransaction)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStack(err)
	}

	return transactions, nil
}
