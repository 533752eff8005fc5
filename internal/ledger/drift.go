package ledger

import (
	"context"
	"log/slog"
)

// DriftScanner compares every customer's stored outstanding balance
// with the value derived from their documents. Drift means a reconcile
// was missed or bypassed; the scan surfaces it without repairing, so
// an operator can decide whether to recompute.
type DriftScanner struct {
	repo   *Repository
	logger *slog.Logger
}

// NewDriftScanner builds DriftScanner instance.
func NewDriftScanner(repo *Repository, logger *slog.Logger) *DriftScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriftScanner{repo: repo, logger: logger}
}

// Scan walks all customers and logs each mismatch. Returns the number
// of drifted customers.
func (s *DriftScanner) Scan(ctx context.Context) (int, error) {
	ids, err := s.repo.CustomerIDs(ctx)
	if err != nil {
		return 0, err
	}

	drifted := 0
	for _, id := range ids {
		stored, err := s.repo.CustomerOutstanding(ctx, id)
		if err != nil {
			return drifted, err
		}
		agg, err := s.repo.DocumentAggregates(ctx, id)
		if err != nil {
			return drifted, err
		}
		derived := agg.Outstanding()
		if !stored.Equal(derived) {
			drifted++
			s.logger.Warn("outstanding balance drift",
				slog.Int64("customer_id", id),
				slog.String("stored", stored.String()),
				slog.String("derived", derived.String()))
		}
	}

	s.logger.Info("ledger drift scan complete",
		slog.Int("customers", len(ids)), slog.Int("drifted", drifted))
	return drifted, nil
}
