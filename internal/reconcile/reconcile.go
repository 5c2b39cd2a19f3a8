// Package reconcile checks that stored balances agree with the ledger.
//
// Every balance write goes through a ledger post, so for each user
// credits = SUM(amount) over their entries. The bank only receives settlement
// cuts and pays out SUPPORT grants, so its total is the negated sum of the
// LEARNING, TEACHING and SUPPORT entries.
package reconcile

import (
	"context"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds each aggregate query.
const DefaultTimeout = 30 * time.Second

// Open creates a pgx pool for the aggregate queries.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type UserMismatch struct {
	UserID      string         `db:"user_id" yaml:"user_id"`
	DisplayName string         `db:"display_name" yaml:"display_name"`
	Credits     domain.Credits `db:"credits" yaml:"credits"`
	LedgerSum   domain.Credits `db:"ledger_sum" yaml:"ledger_sum"`
}

type BankCheck struct {
	Actual   domain.Credits `db:"actual" yaml:"actual"`
	Expected domain.Credits `db:"expected" yaml:"expected"`
	OK       bool           `yaml:"ok"`
}

type Report struct {
	CheckedAt    time.Time      `yaml:"checked_at"`
	UsersChecked int64          `yaml:"users_checked"`
	Mismatches   []UserMismatch `yaml:"mismatches"`
	Bank         BankCheck      `yaml:"bank"`
}

// OK reports whether every balance matched.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0 && r.Bank.OK
}

// Problems counts mismatched users plus one for a bank mismatch.
func (r *Report) Problems() int {
	n := len(r.Mismatches)
	if !r.Bank.OK {
		n++
	}
	return n
}

const userMismatchQuery = `
SELECT u.id::text AS user_id, u.display_name, u.credits, COALESCE(l.total, 0)::bigint AS ledger_sum
FROM users u
LEFT JOIN (
	SELECT user_id, SUM(amount) AS total FROM credit_transactions GROUP BY user_id
) l ON l.user_id = u.id
WHERE u.credits <> COALESCE(l.total, 0)
ORDER BY u.display_name`

const bankQuery = `
SELECT b.total_credits AS actual,
	(-COALESCE((
		SELECT SUM(amount) FROM credit_transactions
		WHERE transaction_type IN ('LEARNING', 'TEACHING', 'SUPPORT')
	), 0))::bigint AS expected
FROM bank b
WHERE b.id = $1`

type Checker struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{pool: pool, now: time.Now}
}

// Check runs both aggregates and returns the report.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	report := &Report{CheckedAt: c.now().UTC(), Mismatches: []UserMismatch{}}

	if err := pgxscan.Get(ctx, c.pool, &report.UsersChecked, `SELECT count(*) FROM users`); err != nil {
		return nil, err
	}
	if err := pgxscan.Select(ctx, c.pool, &report.Mismatches, userMismatchQuery); err != nil {
		return nil, err
	}
	if err := pgxscan.Get(ctx, c.pool, &report.Bank, bankQuery, domain.BankID); err != nil {
		return nil, err
	}
	report.Bank.OK = report.Bank.Actual == report.Bank.Expected

	return report, nil
}

// Watch runs Check every interval until ctx is done. Mismatches are logged at
// error level and exported as a gauge.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) runOnce(ctx context.Context) {
	report, err := c.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("component", "reconcile").Msg("reconciliation query failed")
		}
		return
	}

	metrics.ReconciliationMismatches.Set(float64(report.Problems()))
	if report.OK() {
		log.Debug().Int64("users", report.UsersChecked).Msg("ledger reconciled")
		return
	}

	for _, m := range report.Mismatches {
		log.Error().
			Str("component", "reconcile").
			Str("user_id", m.UserID).
			Str("credits", m.Credits.String()).
			Str("ledger_sum", m.LedgerSum.String()).
			Msg("balance does not match ledger")
	}
	if !report.Bank.OK {
		log.Error().
			Str("component", "reconcile").
			Str("actual", report.Bank.Actual.String()).
			Str("expected", report.Bank.Expected.String()).
			Msg("bank total does not match settlement cuts")
	}
}
