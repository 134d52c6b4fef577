/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements enrollment.TimelineStore and account.Store using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

ATOMICITY:
  Apply writes one transaction's whole mutation set inside a single
  database transaction. A failed Apply rolls back; the stored timeline is
  never left partially mutated, which the engine's error taxonomy relies
  on.

KEY TABLES:
  accounts:          Subscriber households
  members:           Persons on an account (one household head)
  enrollment_spans:  Coverage periods; end-dated/canceled, never deleted
  premium_spans:     Financial sub-periods of a span

DATES AND AMOUNTS:
  Dates are stored as YYYY-MM-DD TEXT (nullable for effectuation and
  paid-through). Monetary amounts are stored as TEXT and parsed back into
  decimal.Decimal - never floats.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time.

SEE ALSO:
  - enrollment/store.go: Interface contracts
  - enrollment/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/zeus-health/account-processor/account"
	"github.com/zeus-health/account-processor/enrollment"
)

// Store implements enrollment.TimelineStore and account.Store.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) a SQLite store. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL,
		state_code TEXT,
		marketplace TEXT,
		business_unit TEXT
	);

	CREATE TABLE IF NOT EXISTS members (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		code TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		relationship TEXT,
		household_head INTEGER NOT NULL DEFAULT 0,
		exchange_member_id TEXT,
		PRIMARY KEY (account_id, code)
	);

	CREATE TABLE IF NOT EXISTS enrollment_spans (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		state_code TEXT,
		marketplace TEXT,
		business_unit TEXT,
		coverage_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		exchange_subscriber_id TEXT,
		effectuation_date TEXT,
		delinquent INTEGER NOT NULL DEFAULT 0,
		paid_through_date TEXT,
		plan_id TEXT NOT NULL,
		group_policy_id TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_spans_account
		ON enrollment_spans(account_id);
	-- Partition lookups (year/coverage-type overlap resolution) are the
	-- hot path.
	CREATE INDEX IF NOT EXISTS idx_spans_account_start
		ON enrollment_spans(account_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_spans_group_policy
		ON enrollment_spans(group_policy_id);

	CREATE TABLE IF NOT EXISTS premium_spans (
		id TEXT PRIMARY KEY,
		span_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		csr_variant TEXT,
		total_premium TEXT NOT NULL,
		total_responsible TEXT NOT NULL,
		aptc TEXT NOT NULL,
		other_pay TEXT NOT NULL,
		csr TEXT NOT NULL,
		changed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_premiums_span
		ON premium_spans(span_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// enrollment.TimelineStore
// =============================================================================

// Timeline loads the account's full timeline. An unknown account yields
// an empty timeline.
func (s *Store) Timeline(ctx context.Context, accountID enrollment.AccountID) (*enrollment.Timeline, error) {
	tl := enrollment.NewTimeline(accountID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, state_code, marketplace, business_unit, coverage_type,
		       start_date, end_date, exchange_subscriber_id, effectuation_date,
		       delinquent, paid_through_date, plan_id, group_policy_id, status
		FROM enrollment_spans WHERE account_id = ?`, string(accountID))
	if err != nil {
		return nil, fmt.Errorf("load enrollment spans: %w", err)
	}
	defer rows.Close()

	var spanIDs []string
	for rows.Next() {
		span, err := scanSpan(rows)
		if err != nil {
			return nil, err
		}
		tl.AddSpan(span)
		spanIDs = append(spanIDs, string(span.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, spanID := range spanIDs {
		if err := s.loadPremiums(ctx, tl, spanID); err != nil {
			return nil, err
		}
	}
	return tl, nil
}

func (s *Store) loadPremiums(ctx context.Context, tl *enrollment.Timeline, spanID string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, span_id, start_date, end_date, status, csr_variant,
		       total_premium, total_responsible, aptc, other_pay, csr, changed
		FROM premium_spans WHERE span_id = ?`, spanID)
	if err != nil {
		return fmt.Errorf("load premium spans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPremium(rows)
		if err != nil {
			return err
		}
		tl.AddPremium(p)
	}
	return rows.Err()
}

// Apply upserts one mutation set inside a single database transaction.
func (s *Store) Apply(ctx context.Context, accountID enrollment.AccountID, muts *enrollment.Mutations) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, span := range muts.NewSpans {
		if err := upsertSpan(ctx, tx, span); err != nil {
			return err
		}
	}
	for _, span := range muts.UpdatedSpans {
		if err := upsertSpan(ctx, tx, span); err != nil {
			return err
		}
	}
	for _, p := range muts.NewPremiums {
		if err := upsertPremium(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, p := range muts.UpdatedPremiums {
		if err := upsertPremium(ctx, tx, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func upsertSpan(ctx context.Context, tx *sql.Tx, span *enrollment.EnrollmentSpan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO enrollment_spans
			(id, account_id, state_code, marketplace, business_unit, coverage_type,
			 start_date, end_date, exchange_subscriber_id, effectuation_date,
			 delinquent, paid_through_date, plan_id, group_policy_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			exchange_subscriber_id = excluded.exchange_subscriber_id,
			effectuation_date = excluded.effectuation_date,
			delinquent = excluded.delinquent,
			paid_through_date = excluded.paid_through_date,
			plan_id = excluded.plan_id,
			group_policy_id = excluded.group_policy_id,
			status = excluded.status`,
		string(span.ID), string(span.AccountID), span.StateCode, span.Marketplace,
		span.BusinessUnit, string(span.CoverageType),
		span.StartDate.String(), span.EndDate.String(), span.ExchangeSubscriberID,
		dateOrNull(span.EffectuationDate), boolToInt(span.Delinquent),
		dateOrNull(span.PaidThroughDate), span.PlanID, span.GroupPolicyID,
		string(span.Status))
	if err != nil {
		return fmt.Errorf("upsert enrollment span %s: %w", span.ID, err)
	}
	return nil
}

func upsertPremium(ctx context.Context, tx *sql.Tx, p *enrollment.PremiumSpan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO premium_spans
			(id, span_id, start_date, end_date, status, csr_variant,
			 total_premium, total_responsible, aptc, other_pay, csr, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			csr_variant = excluded.csr_variant,
			total_premium = excluded.total_premium,
			total_responsible = excluded.total_responsible,
			aptc = excluded.aptc,
			other_pay = excluded.other_pay,
			csr = excluded.csr,
			changed = excluded.changed`,
		string(p.ID), string(p.SpanID), p.StartDate.String(), p.EndDate.String(),
		string(p.Status), p.CSRVariant,
		p.Rates.TotalPremium.String(), p.Rates.TotalResponsible.String(),
		p.Rates.APTC.String(), p.Rates.OtherPay.String(), p.Rates.CSR.String(),
		boolToInt(p.Changed))
	if err != nil {
		return fmt.Errorf("upsert premium span %s: %w", p.ID, err)
	}
	return nil
}

// =============================================================================
// account.Store
// =============================================================================

// Account loads an account and its members.
func (s *Store) Account(ctx context.Context, id enrollment.AccountID) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_number, state_code, marketplace, business_unit
		FROM accounts WHERE id = ?`, string(id))

	var a account.Account
	var acctID string
	err := row.Scan(&acctID, &a.AccountNumber, &a.StateCode, &a.Marketplace, &a.BusinessUnit)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, enrollment.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	a.ID = enrollment.AccountID(acctID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, first_name, last_name, relationship, household_head, exchange_member_id
		FROM members WHERE account_id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m account.Member
		var hoh int
		if err := rows.Scan(&m.Code, &m.FirstName, &m.LastName, &m.Relationship, &hoh, &m.ExchangeMemberID); err != nil {
			return nil, err
		}
		m.HouseholdHead = hoh != 0
		a.Members = append(a.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount upserts the account and replaces its member set.
func (s *Store) SaveAccount(ctx context.Context, a *account.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, account_number, state_code, marketplace, business_unit)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_number = excluded.account_number,
			state_code = excluded.state_code,
			marketplace = excluded.marketplace,
			business_unit = excluded.business_unit`,
		string(a.ID), a.AccountNumber, a.StateCode, a.Marketplace, a.BusinessUnit)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE account_id = ?`, string(a.ID)); err != nil {
		return fmt.Errorf("replace members: %w", err)
	}
	for _, m := range a.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (account_id, code, first_name, last_name, relationship, household_head, exchange_member_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(a.ID), m.Code, m.FirstName, m.LastName, m.Relationship,
			boolToInt(m.HouseholdHead), m.ExchangeMemberID)
		if err != nil {
			return fmt.Errorf("insert member %s: %w", m.Code, err)
		}
	}

	return tx.Commit()
}

// AccountIDs lists every known account.
func (s *Store) AccountIDs(ctx context.Context) ([]enrollment.AccountID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []enrollment.AccountID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, enrollment.AccountID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanSpan(rows *sql.Rows) (*enrollment.EnrollmentSpan, error) {
	var (
		span                       enrollment.EnrollmentSpan
		id, acctID, ct, start, end string
		effectuation, paidThrough  sql.NullString
		delinquent                 int
		status                     string
	)
	err := rows.Scan(&id, &acctID, &span.StateCode, &span.Marketplace, &span.BusinessUnit,
		&ct, &start, &end, &span.ExchangeSubscriberID, &effectuation,
		&delinquent, &paidThrough, &span.PlanID, &span.GroupPolicyID, &status)
	if err != nil {
		return nil, fmt.Errorf("scan enrollment span: %w", err)
	}

	span.ID = enrollment.SpanID(id)
	span.AccountID = enrollment.AccountID(acctID)
	span.CoverageType = enrollment.CoverageType(ct)
	span.Status = enrollment.SpanStatus(status)
	span.Delinquent = delinquent != 0

	if span.StartDate, err = enrollment.ParseDate(start); err != nil {
		return nil, fmt.Errorf("span %s start date: %w", id, err)
	}
	if span.EndDate, err = enrollment.ParseDate(end); err != nil {
		return nil, fmt.Errorf("span %s end date: %w", id, err)
	}
	if span.EffectuationDate, err = nullableDate(effectuation); err != nil {
		return nil, fmt.Errorf("span %s effectuation date: %w", id, err)
	}
	if span.PaidThroughDate, err = nullableDate(paidThrough); err != nil {
		return nil, fmt.Errorf("span %s paid-through date: %w", id, err)
	}
	return &span, nil
}

func scanPremium(rows *sql.Rows) (*enrollment.PremiumSpan, error) {
	var (
		p                                                 enrollment.PremiumSpan
		id, spanID, start, end, status                    string
		totalPremium, totalResponsible, aptc, otherPay, c string
		changed                                           int
	)
	err := rows.Scan(&id, &spanID, &start, &end, &status, &p.CSRVariant,
		&totalPremium, &totalResponsible, &aptc, &otherPay, &c, &changed)
	if err != nil {
		return nil, fmt.Errorf("scan premium span: %w", err)
	}

	p.ID = enrollment.PremiumSpanID(id)
	p.SpanID = enrollment.SpanID(spanID)
	p.Status = enrollment.PremiumStatus(status)
	p.Changed = changed != 0

	if p.StartDate, err = enrollment.ParseDate(start); err != nil {
		return nil, fmt.Errorf("premium %s start date: %w", id, err)
	}
	if p.EndDate, err = enrollment.ParseDate(end); err != nil {
		return nil, fmt.Errorf("premium %s end date: %w", id, err)
	}
	if p.Rates, err = parseRates(totalPremium, totalResponsible, aptc, otherPay, c); err != nil {
		return nil, fmt.Errorf("premium %s amounts: %w", id, err)
	}
	return &p, nil
}

func parseRates(totalPremium, totalResponsible, aptc, otherPay, csr string) (enrollment.Rates, error) {
	var r enrollment.Rates
	var err error
	if r.TotalPremium, err = decimal.NewFromString(totalPremium); err != nil {
		return r, err
	}
	if r.TotalResponsible, err = decimal.NewFromString(totalResponsible); err != nil {
		return r, err
	}
	if r.APTC, err = decimal.NewFromString(aptc); err != nil {
		return r, err
	}
	if r.OtherPay, err = decimal.NewFromString(otherPay); err != nil {
		return r, err
	}
	if r.CSR, err = decimal.NewFromString(csr); err != nil {
		return r, err
	}
	return r, nil
}

func nullableDate(v sql.NullString) (*enrollment.Date, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := enrollment.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func dateOrNull(d *enrollment.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
