package leaderboard

import (
	"context"
	"errors"
	"time"

	"github.com/leonid6372/stock-arena/internal/common/domain"
	"github.com/leonid6372/stock-arena/internal/metrics"
	"github.com/leonid6372/stock-arena/internal/quotes"
	"github.com/leonid6372/stock-arena/pkg/errs"
	"github.com/leonid6372/stock-arena/pkg/log"
	"go.uber.org/zap"
)

var ErrRefreshFailed = errors.New("no quote could be refreshed")

type QuoteRefresher interface {
	Refresh(ctx context.Context, symbols []string) *quotes.Batch
}

type HeldSymbols interface {
	GetHeldSymbols(ctx context.Context) ([]string, error)
}

type Refresher struct {
	held      HeldSymbols
	prices    QuoteRefresher
	snapshots domain.QuotesRepository
	cooldown  *Cooldown
}

type RefreshReport struct {
	Refreshed     []string  `json:"refreshed"`
	Failed        []string  `json:"failed"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	NextAllowedAt time.Time `json:"next_allowed_at"`
}

type RefreshStatus struct {
	LastRefresh   time.Time     `json:"last_refresh"`
	LastStored    time.Time     `json:"last_stored"`
	Remaining     time.Duration `json:"-"`
	RemainingSecs int64         `json:"remaining_seconds"`
}

// NewRefresher builds the bulk refresher. snapshots may be nil when quotes are not persisted.
func NewRefresher(held HeldSymbols, prices QuoteRefresher, snapshots domain.QuotesRepository, cooldown *Cooldown) *Refresher {
	return &Refresher{
		held:      held,
		prices:    prices,
		snapshots: snapshots,
		cooldown:  cooldown,
	}
}

// RefreshAllQuotes refetches every held symbol, at most once per cooldown window.
// Within the window it returns a CooldownError and does nothing.
func (r *Refresher) RefreshAllQuotes(ctx context.Context) (*RefreshReport, error) {
	previous, err := r.cooldown.claim()
	if err != nil {
		metrics.QuoteRefreshes.WithLabelValues("cooldown").Inc()
		return nil, err
	}

	report, err := r.refresh(ctx)
	if err != nil {
		r.cooldown.restore(previous)
		metrics.QuoteRefreshes.WithLabelValues("failed").Inc()
		return nil, err
	}

	result := "ok"
	if len(report.Failed) > 0 {
		result = "partial"
	}
	metrics.QuoteRefreshes.WithLabelValues(result).Inc()

	log.Info("quotes refreshed",
		zap.Int("refreshed", len(report.Refreshed)),
		zap.Strings("failed", report.Failed),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

func (r *Refresher) refresh(ctx context.Context) (*RefreshReport, error) {
	report := &RefreshReport{
		StartedAt: r.cooldown.LastRefresh(),
		Refreshed: []string{},
		Failed:    []string{},
	}

	symbols, err := r.held.GetHeldSymbols(ctx)
	if err != nil {
		return nil, errs.NewStack(err)
	}

	batch := r.prices.Refresh(ctx, symbols)

	fresh := make([]*domain.Quote, 0, len(batch.Quotes))
	for _, symbol := range symbols {
		quote, ok := batch.Quotes[symbol]
		if !ok || quote.Stale {
			report.Failed = append(report.Failed, symbol)
			continue
		}

		fresh = append(fresh, quote)
		report.Refreshed = append(report.Refreshed, symbol)
	}

	if len(symbols) > 0 && len(fresh) == 0 {
		return nil, ErrRefreshFailed
	}

	if r.snapshots != nil && len(fresh) > 0 {
		if err := r.snapshots.UpsertQuotes(ctx, fresh); err != nil {
			log.Error("failed to store quote snapshots", zap.Error(errs.NewStack(err)))
		}
	}

	report.FinishedAt = r.cooldown.now()
	report.NextAllowedAt = report.StartedAt.Add(r.cooldown.Window())

	return report, nil
}

// Status reports when quotes were last refreshed and how long the cooldown still runs.
func (r *Refresher) Status(ctx context.Context) (*RefreshStatus, error) {
	remaining := r.cooldown.Remaining()

	status := &RefreshStatus{
		LastRefresh:   r.cooldown.LastRefresh(),
		Remaining:     remaining,
		RemainingSecs: int64((remaining + time.Second - 1) / time.Second),
	}

	if r.snapshots != nil {
		stored, err := r.snapshots.GetLastUpdated(ctx)
		if err != nil {
			return nil, errs.NewStack(err)
		}
		status.LastStored = stored
	}

	return status, nil
}
