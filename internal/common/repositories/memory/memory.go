// Package memory implements the record store with in-process maps.
// Used for development and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/traderrs"
)

type positionKey struct {
	accountID string
	symbol    string
}

// Store implements domain.AccountsRepository, domain.PortfolioRepository and domain.QuotesRepository.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	positions    map[positionKey]*domain.Position
	transactions []*domain.Transaction
	quotes       map[string]*domain.Quote

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[string]*domain.Account),
		positions: make(map[positionKey]*domain.Position),
		quotes:    make(map[string]*domain.Quote),
		now:       time.Now,
	}
}

func (s *Store) EnsureAccount(_ context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[account.ID]; ok {
		return existing.Clone(), nil
	}

	stored := account.Clone()
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.accounts[account.ID] = stored

	return stored.Clone(), nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, traderrs.ErrAccountNotFound
	}

	return account.Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		accounts = append(accounts, account.Clone())
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	return accounts, nil
}

func (s *Store) UpdateDisplayName(_ context.Context, id, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return traderrs.ErrAccountNotFound
	}

	account.DisplayName = displayName
	account.UpdatedAt = s.now().UTC()

	return nil
}

func (s *Store) GetPosition(_ context.Context, accountID, symbol string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[positionKey{accountID, symbol}]
	if !ok {
		return nil, nil
	}

	return position.Clone(), nil
}

func (s *Store) GetPositions(_ context.Context, accountID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := []*domain.Position{}
	for key, position := range s.positions {
		if key.accountID == accountID && position.Open() {
			positions = append(positions, position.Clone())
		}
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return positions, nil
}

func (s *Store) GetHeldSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key, position := range s.positions {
		if position.Open() {
			seen[key.symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols, nil
}

// Settle applies the whole settlement under a single lock after checking every precondition.
func (s *Store) Settle(_ context.Context, settlement *domain.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := settlement.Transaction

	account, ok := s.accounts[tx.AccountID]
	if !ok {
		return traderrs.ErrAccountNotFound
	}

	cash := account.Cash.Add(settlement.CashDelta)
	if cash.IsNegative() {
		return traderrs.ErrInsufficientFunds
	}

	now := s.now().UTC()
	key := positionKey{tx.AccountID, tx.Symbol}

	account.Cash = cash
	account.UpdatedAt = now

	if settlement.Position.Open() {
		position := settlement.Position.Clone()
		if existing, ok := s.positions[key]; ok {
			position.CreatedAt = existing.CreatedAt
		} else {
			position.CreatedAt = now
		}
		position.UpdatedAt = now
		s.positions[key] = position
	} else {
		delete(s.positions, key)
	}

	record := *tx
	s.transactions = append(s.transactions, &record)

	return nil
}

func (s *Store) GetTransactions(_ context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := []*domain.Transaction{}
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if limit > 0 && len(transactions) == limit {
			break
		}

		if tx := s.transactions[i]; tx.AccountID == accountID {
			record := *tx
			transactions = append(transactions, &record)
		}
	}

	return transactions, nil
}

func (s *Store) UpsertQuotes(_ context.Context, quotes []*domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, quote := range quotes {
		stored := *quote
		stored.Stale = false
		s.quotes[quote.Symbol] = &stored
	}

	return nil
}

func (s *Store) GetQuotes(_ context.Context) ([]*domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]*domain.Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		stored := *quote
		quotes = append(quotes, &stored)
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })

	return quotes, nil
}

func (s *Store) GetLastUpdated(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, quote := range s.quotes {
		if quote.FetchedAt.After(last) {
			last = quote.FetchedAt
		}
	}

	return last, nil
}
