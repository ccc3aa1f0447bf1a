//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
	"github.com/leonid6372/stock-arena/migrations"
	"github.com/leonid6372/stock-arena/pkg/goosemigrate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "arena"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	if err := setupDatabase(ctx, container); err != nil {
		fmt.Fprintf(os.Stderr, "postgres setup failed: %v\n", err)
		exitCode = 1
	} else {
		exitCode = m.Run()
	}

	if testPool != nil {
		testPool.Close()
	}
	_ = container.Terminate(ctx)

	os.Exit(exitCode)
}

func setupDatabase(ctx context.Context, container testcontainers.Container) error {
	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/arena?sslmode=disable", host, port.Port())

	// the database may accept connections a moment after the port opens
	var migrateErr error
	for range 10 {
		if migrateErr = goosemigrate.NewMigrator(dsn, migrations.FS, "arena").Up(); migrateErr == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if migrateErr != nil {
		return fmt.Errorf("migrate: %w", migrateErr)
	}

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}

	return nil
}

func newAccount(t *testing.T, accounts domain.AccountsRepository, cash string) *domain.Account {
	t.Helper()

	account, err := accounts.EnsureAccount(context.Background(), &domain.Account{
		ID:          uuid.NewString(),
		DisplayName: "tester",
		Cash:        decimal.RequireFromString(cash),
	})
	require.NoError(t, err)

	return account
}

func TestEnsureAccountIdempotent(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountsRepository(testPool)

	first := newAccount(t, accounts, "10000")

	second, err := accounts.EnsureAccount(ctx, &domain.Account{ID: first.ID, Cash: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.True(t, second.Cash.Equal(decimal.NewFromInt(10000)))
	require.Equal(t, "tester", second.DisplayName)

	require.NoError(t, accounts.UpdateDisplayName(ctx, first.ID, "renamed"))
	renamed, err := accounts.GetAccount(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", renamed.DisplayName)

	_, err = accounts.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, traderrs.ErrAccountNotFound)
}

func TestSettleRoundTrip(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountsRepository(testPool)
	portfolio := NewPortfolioRepository(testPool)

	account := newAccount(t, accounts, "1000")

	buy := &domain.Settlement{
		CashDelta: decimal.RequireFromString("-301.5"),
		Position: &domain.Position{
			AccountID: account.ID,
			Symbol:    "AAPL",
			Quantity:  3,
			AvgCost:   decimal.RequireFromString("100.5"),
			Invested:  decimal.RequireFromString("301.5"),
		},
		Transaction: &domain.Transaction{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Symbol:    "AAPL",
			Side:      domain.SideBuy,
			Quantity:  3,
			Price:     decimal.RequireFromString("100.5"),
			Total:     decimal.RequireFromString("301.5"),
			CreatedAt: time.Now().UTC(),
		},
	}
	require.NoError(t, portfolio.Settle(ctx, buy))

	stored, err := accounts.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, stored.Cash.Equal(decimal.RequireFromString("698.5")))

	position, err := portfolio.GetPosition(ctx, account.ID, "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(3), position.Quantity)
	require.True(t, position.AvgCost.Equal(decimal.RequireFromString("100.5")))

	sell := &domain.Settlement{
		CashDelta: decimal.RequireFromString("330"),
		Position:  &domain.Position{AccountID: account.ID, Symbol: "AAPL"},
		Transaction: &domain.Transaction{
			ID:          uuid.NewString(),
			AccountID:   account.ID,
			Symbol:      "AAPL",
			Side:        domain.SideSell,
			Quantity:    3,
			Price:       decimal.NewFromInt(110),
			Total:       decimal.NewFromInt(330),
			RealizedPnL: decimal.RequireFromString("28.5"),
			CreatedAt:   time.Now().UTC().Add(time.Second),
		},
	}
	require.NoError(t, portfolio.Settle(ctx, sell))

	position, err = portfolio.GetPosition(ctx, account.ID, "AAPL")
	require.NoError(t, err)
	require.Nil(t, position)

	transactions, err := portfolio.GetTransactions(ctx, account.ID, 0)
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	require.Equal(t, domain.SideSell, transactions[0].Side)
	require.True(t, transactions[0].RealizedPnL.Equal(decimal.RequireFromString("28.5")))
}

func TestSettleRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountsRepository(testPool)
	portfolio := NewPortfolioRepository(testPool)

	account := newAccount(t, accounts, "10")

	err := portfolio.Settle(ctx, &domain.Settlement{
		CashDelta: decimal.NewFromInt(-11),
		Position:  &domain.Position{AccountID: account.ID, Symbol: "KO", Quantity: 1, AvgCost: decimal.NewFromInt(11), Invested: decimal.NewFromInt(11)},
		Transaction: &domain.Transaction{
			ID: uuid.NewString(), AccountID: account.ID, Symbol: "KO", Side: domain.SideBuy,
			Quantity: 1, Price: decimal.NewFromInt(11), Total: decimal.NewFromInt(11), CreatedAt: time.Now(),
		},
	})
	require.ErrorIs(t, err, traderrs.ErrInsufficientFunds)

	transactions, err := portfolio.GetTransactions(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Empty(t, transactions)
}

func TestQuotesSnapshot(t *testing.T) {
	ctx := context.Background()
	quotes := NewQuotesRepository(testPool)

	fetchedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, quotes.UpsertQuotes(ctx, []*domain.Quote{
		{Symbol: "MSFT", Name: "Microsoft", Price: decimal.RequireFromString("410.25"), FetchedAt: fetchedAt},
		{Symbol: "XOM", Price: decimal.NewFromInt(110), Change: decimal.NewNullDecimal(decimal.RequireFromString("-1.2")), FetchedAt: fetchedAt.Add(time.Minute)},
	}))

	stored, err := quotes.GetQuotes(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "MSFT", stored[0].Symbol)
	require.False(t, stored[0].Change.Valid)
	require.True(t, stored[1].Change.Decimal.Equal(decimal.RequireFromString("-1.2")))

	last, err := quotes.GetLastUpdated(ctx)
	require.NoError(t, err)
	require.Equal(t, fetchedAt.Add(time.Minute), last)
}
