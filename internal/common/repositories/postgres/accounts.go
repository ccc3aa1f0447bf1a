package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/pkg/errs"
)

type accountsRepository struct {
	psql *pgxpool.Pool
}

func NewAccountsRepository(pool *pgxpool.Pool) domain.AccountsRepository {
	return &accountsRepository{
		psql: pool,
	}
}

// EnsureAccount relies on the primary key: concurrent first accesses create exactly one row.
func (ar *accountsRepository) EnsureAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `INSERT INTO arena.accounts(
			id,
			display_name,
			cash
		)
		VALUES ($1, $2, $3::NUMERIC)
		ON CONFLICT (id) DO NOTHING`
	if _, err := ar.psql.Exec(ctx, query, account.ID, account.DisplayName, account.Cash.String()); err != nil {
		return nil, errs.NewStack(err)
	}

	return ar.GetAccount(ctx, account.ID)
}

func (ar *accountsRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT
			id,
			display_name,
			cash::TEXT,
			created_at,
			updated_at
		FROM arena.accounts WHERE id = $1`
	account := &Account{}
	if err := ar.psql.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.DisplayName,
		&account.Cash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, traderrs.ErrAccountNotFound
		}

		return nil, errs.NewStack(err)
	}

	return account.CreateDomain()
}

func (ar *accountsRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT
			id,
			display_name,
			cash::TEXT,
			created_at,
			updated_at
		FROM arena.accounts
		ORDER BY id ASC`
	rows, err := ar.psql.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStack(err)
	}
	defer rows.Close()

	accounts := []*domain.Account{}
	for rows.Next() {
		account := &Account{}
		if err := rows.Scan(
			&account.ID,
			&account.DisplayName,
			&account.Cash,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, errs.NewStack(err)
		}

		domainAccount, err := account.CreateDomain()
		if err != nil {
			return nil, errs.NewStack(err)
		}
		accounts = append(accounts, domainAccount)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStack(err)
	}

	return accounts, nil
}

func (ar *accountsRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	query := `UPDATE arena.accounts
		SET display_name = $1,
			updated_at = NOW()
		WHERE id = $2`
	tag, err := ar.psql.Exec(ctx, query, displayName, id)
	if err != nil {
		return errs.NewStack(err)
	}

	if tag.RowsAffected() == 0 {
		return traderrs.ErrAccountNotFound
	}

	return nil
}
