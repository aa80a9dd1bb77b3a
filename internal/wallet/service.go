package wallet

import (
	"context"
	"fmt"

	"github.com/greenside-app/greenside/internal/ledger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Balance is the caller-facing view of one currency account.
type Balance struct {
	Currency       ledger.Currency `json:"currency"`
	Spendable      int64           `json:"spendable"`
	Escrow         int64           `json:"escrow"`
	LifetimeEarned int64           `json:"lifetime_earned"`
}

// Stats summarises a user's wagering history from the transaction log.
type Stats struct {
	WagersWon      int   `json:"wagers_won"`
	WagersLost     int   `json:"wagers_lost"`
	TotalStaked    int64 `json:"total_staked"`
	TotalWon       int64 `json:"total_won"`
	LifetimeEarned int64 `json:"lifetime_earned"`
}

// Service is a read model over the ledger. It never mutates balances;
// funding and wager flows own the writes.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds a wallet read service.
func NewService(led ledger.Ledger) *Service {
	return &Service{ledger: led}
}

// Balances returns the user's point and cash accounts.
func (s *Service) Balances(ctx context.Context, userID string) ([]Balance, error) {
	out := make([]Balance, 0, 2)
	for _, currency := range []ledger.Currency{ledger.CurrencyPoints, ledger.CurrencyCash} {
		acct, err := s.ledger.Account(ctx, userID, currency)
		if err != nil {
			return nil, fmt.Errorf("load %s account: %w", currency, err)
		}
		out = append(out, Balance{
			Currency:       acct.Currency,
			Spendable:      acct.Spendable,
			Escrow:         acct.Escrow,
			LifetimeEarned: acct.LifetimeEarned,
		})
	}
	return out, nil
}

// Transactions lists the user's history newest first, optionally filtered
// by kind.
func (s *Service) Transactions(ctx context.Context, userID, kind string, limit, offset int) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.ledger.Transactions(ctx, userID, ledger.TxFilter{Kind: kind, Limit: limit, Offset: offset})
}

// Stats derives win/loss counts and totals from the transaction log.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	var stats Stats
	offset := 0
	for {
		txns, err := s.ledger.Transactions(ctx, userID, ledger.TxFilter{Limit: maxPageSize, Offset: offset})
		if err != nil {
			return Stats{}, err
		}
		for _, tx := range txns {
			switch tx.Kind {
			case ledger.KindWagerWon:
				stats.WagersWon++
				stats.TotalWon += tx.Amount
			case ledger.KindWagerLost:
				stats.WagersLost++
			case ledger.KindWagerStake:
				stats.TotalStaked += -tx.Amount
			}
		}
		if len(txns) < maxPageSize {
			break
		}
		offset += maxPageSize
	}

	acct, err := s.ledger.Account(ctx, userID, ledger.CurrencyPoints)
	if err != nil {
		return Stats{}, err
	}
	stats.LifetimeEarned = acct.LifetimeEarned
	return stats, nil
}
