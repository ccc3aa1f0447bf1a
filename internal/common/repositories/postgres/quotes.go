package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/pkg/errs"
)

type quotesRepository struct {
	psql *pgxpool.Pool
}

func NewQuotesRepository(pool *pgxpool.Pool) domain.QuotesRepository {
	return &quotesRepository{
		psql: pool,
	}
}

func (qr *quotesRepository) UpsertQuotes(ctx context.Context, quotes []*domain.Quote) error {
	query := `INSERT INTO arena.quotes(symbol, name, price, change, change_percent, fetched_at)
		VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6)
		ON CONFLICT (symbol) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent,
			fetched_at = EXCLUDED.fetched_at`

	batch := &pgx.Batch{}
	for _, quote := range quotes {
		batch.Queue(query,
			quote.Symbol,
			quote.Name,
			quote.Price.String(),
			nullString(quote.Change),
			nullString(quote.ChangePercent),
			quote.FetchedAt,
		)
	}

	if err := qr.psql.SendBatch(ctx, batch).Close(); err != nil {
		return errs.NewStack(err)
	}

	return nil
}

func (qr *quotesRepository) GetQuotes(ctx context.Context) ([]*domain.Quote, error) {
	query := `SELECT
			symbol,
			name,
			price::TEXT,
			change::TEXT,
			change_percent::TEXT,
			fetched_at
		FROM arena.quotes
		ORDER BY symbol ASC`
	rows, err := qr.psql.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStack(err)
	}
	defer rows.Close()

	quotes := []*domain.Quote{}
	for rows.Next() {
		quote := &Quote{}
		if err := rows.Scan(
			&quote.Symbol,
			&quote.Name,
			&quote.Price,
			&quote.Change,
			&quote.ChangePercent,
			&quote.FetchedAt,
		); err != nil {
			return nil, errs.NewStack(err)
		}

		domainQuote, err := quote.CreateDomain()
		if err != nil {
			return nil, errs.NewStack(err)
		}
		quotes = append(quotes, domainQuote)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStack(err)
	}

	return quotes, nil
}

func (qr *quotesRepository) GetLastUpdated(ctx context.Context) (time.Time, error) {
	query := `SELECT MAX(fetched_at) FROM arena.quotes`
	var last *time.Time
	if err := qr.psql.QueryRow(ctx, query).Scan(&last); err != nil {
		return time.Time{}, errs.NewStack(err)
	}

	if last == nil {
		return time.Time{}, nil
	}

	return last.UTC(), nil
}
