// Package repository implements PostgreSQL persistence for budgets,
// budget items, pricing parameters and delivery logs.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrBudgetNotFound is returned when no budget matches the id or code.
	ErrBudgetNotFound = errors.New("budget not found")
	// ErrParameterNotFound is returned when no parameter matches the id.
	ErrParameterNotFound = errors.New("parameter not found")
)

// PostgresRepository provides access to the budget store in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates the repository and brings the schema up to
// date through the embedded migrations.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry re-runs fn on transient postgres failures (serialization
// failures, deadlocks, dropped connections).
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}
		if isConnectionError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// nullDecimal adapts *decimal.Decimal to scanning/serializing NUMERIC NULL.
func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	d := nd.Decimal
	return &d
}

// CreateBudget persists a new budget with its items, allocating the next
// sequence number for (series, year) inside the transaction. The mint
// callback derives the acceptance token once the code is known. A concurrent
// allocation of the same number trips the unique constraint and the whole
// transaction is retried with a fresh number.
func (r *PostgresRepository) CreateBudget(ctx context.Context, b *model.Budget, items []model.BudgetItem, mint func(code string, issue time.Time) string) error {
	backoff := retry.WithMaxRetries(5, retry.NewConstant(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.createBudgetOnce(ctx, b, items, mint)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *PostgresRepository) createBudgetOnce(ctx context.Context, b *model.Budget, items []model.BudgetItem, mint func(code string, issue time.Time) string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var number int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM budgets WHERE series = $1 AND year = $2`,
		b.Series, b.Year,
	).Scan(&number)
	if err != nil {
		return fmt.Errorf("allocate number: %w", err)
	}

	b.Number = number
	b.Code = fmt.Sprintf("%s-%d-%04d", b.Series, b.Year, b.Number)
	if mint != nil {
		b.AcceptanceToken = mint(b.Code, b.IssueDate)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO budgets (
			id, series, number, year, code, category, brand,
			client_name, client_tax_id, client_email, client_phone,
			issue_date, valid_days, expires_at,
			subtotal, tax_total, total, discount_type, discount_value,
			status, acceptance_token, manual_override
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		b.ID, b.Series, b.Number, b.Year, b.Code, string(b.Category), string(b.Brand),
		b.ClientName, b.ClientTaxID, b.ClientEmail, b.ClientPhone,
		b.IssueDate, b.ValidDays, b.ExpiresAt,
		b.Subtotal, b.TaxTotal, b.Total, discountTypeArg(b.DiscountType), nullDecimal(b.DiscountValue),
		string(b.Status), b.AcceptanceToken, b.ManualOverride,
	)
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}

	if err := insertItems(ctx, tx, b.ID, items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func discountTypeArg(t *model.DiscountType) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func insertItems(ctx context.Context, tx pgx.Tx, budgetID uuid.UUID, items []model.BudgetItem) error {
	for _, it := range items {
		id := it.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO budget_items (id, budget_id, concept, category, position, quantity, unit_price, tax_pct, subtotal, total)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			id, budgetID, it.Concept, it.Category, it.Position, it.Quantity, it.UnitPrice, it.TaxPct, it.Subtotal, it.Total,
		)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", it.Position, err)
		}
	}
	return nil
}

const budgetColumns = `id, series, number, year, code, category, brand,
	client_name, client_tax_id, client_email, client_phone,
	issue_date, valid_days, expires_at,
	subtotal, tax_total, total, discount_type, discount_value,
	status, acceptance_token, accepted_at, accepted_by_ip, accepted_by_agent,
	remind_sent_at, manual_override, created_at, updated_at`

func scanBudget(row pgx.Row) (*model.Budget, error) {
	var (
		b             model.Budget
		category      string
		brand         string
		status        string
		discountType  *string
		discountValue decimal.NullDecimal
	)
	err := row.Scan(
		&b.ID, &b.Series, &b.Number, &b.Year, &b.Code, &category, &brand,
		&b.ClientName, &b.ClientTaxID, &b.ClientEmail, &b.ClientPhone,
		&b.IssueDate, &b.ValidDays, &b.ExpiresAt,
		&b.Subtotal, &b.TaxTotal, &b.Total, &discountType, &discountValue,
		&status, &b.AcceptanceToken, &b.AcceptedAt, &b.AcceptedByIP, &b.AcceptedByAgent,
		&b.RemindSentAt, &b.ManualOverride, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBudgetNotFound
		}
		return nil, fmt.Errorf("scan budget: %w", err)
	}
	b.Category = model.BudgetCategory(category)
	b.Brand = model.CompanyBrand(brand)
	b.Status = model.BudgetStatus(status)
	if discountType != nil {
		t := model.DiscountType(*discountType)
		b.DiscountType = &t
	}
	b.DiscountValue = fromNullDecimal(discountValue)
	return &b, nil
}

// GetBudgetByID returns a budget and its items ordered by position.
func (r *PostgresRepository) GetBudgetByID(ctx context.Context, id uuid.UUID) (*model.Budget, []model.BudgetItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id)
	b, err := scanBudget(row)
	if err != nil {
		return nil, nil, err
	}
	items, err := r.listItems(ctx, b.ID)
	if err != nil {
		return nil, nil, err
	}
	return b, items, nil
}

// GetBudgetByCode returns a budget and its items by its human-readable code.
func (r *PostgresRepository) GetBudgetByCode(ctx context.Context, code string) (*model.Budget, []model.BudgetItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE code = $1`, code)
	b, err := scanBudget(row)
	if err != nil {
		return nil, nil, err
	}
	items, err := r.listItems(ctx, b.ID)
	if err != nil {
		return nil, nil, err
	}
	return b, items, nil
}

func (r *PostgresRepository) listItems(ctx context.Context, budgetID uuid.UUID) ([]model.BudgetItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, budget_id, concept, category, position, quantity, unit_price, tax_pct, subtotal, total
		 FROM budget_items WHERE budget_id = $1 ORDER BY position`,
		budgetID,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []model.BudgetItem
	for rows.Next() {
		var it model.BudgetItem
		if err := rows.Scan(&it.ID, &it.BudgetID, &it.Concept, &it.Category, &it.Position,
			&it.Quantity, &it.UnitPrice, &it.TaxPct, &it.Subtotal, &it.Total); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// BudgetFilters narrows ListBudgets.
type BudgetFilters struct {
	Status   model.BudgetStatus
	Category model.BudgetCategory
	Series   string
	Search   string
	From     *time.Time
	To       *time.Time
}

// ListBudgets returns budgets matching the filters, newest first.
func (r *PostgresRepository) ListBudgets(ctx context.Context, f BudgetFilters) ([]model.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets`
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Series != "" {
		add("series = $%d", f.Series)
	}
	if f.Search != "" {
		add("(code ILIKE $%[1]d OR client_name ILIKE $%[1]d OR client_tax_id ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.From != nil {
		add("issue_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("issue_date <= $%d", *f.To)
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select budgets: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return budgets, nil
}

// UpdateBudgetHeader updates the mutable header fields of a budget.
func (r *PostgresRepository) UpdateBudgetHeader(ctx context.Context, b *model.Budget) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE budgets SET
			client_name = $2, client_tax_id = $3, client_email = $4, client_phone = $5,
			valid_days = $6, expires_at = $7, brand = $8,
			discount_type = $9, discount_value = $10, updated_at = now()
		 WHERE id = $1`,
		b.ID, b.ClientName, b.ClientTaxID, b.ClientEmail, b.ClientPhone,
		b.ValidDays, b.ExpiresAt, string(b.Brand),
		discountTypeArg(b.DiscountType), nullDecimal(b.DiscountValue),
	)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

// SaveCalculation replaces the items of a budget wholesale
// (delete-all-then-recreate, never a partial patch) and updates the header
// totals in the same transaction.
func (r *PostgresRepository) SaveCalculation(ctx context.Context, budgetID uuid.UUID, subtotal, taxTotal, total decimal.Decimal, items []model.BudgetItem, manual bool) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx,
			`UPDATE budgets SET subtotal = $2, tax_total = $3, total = $4, manual_override = $5, updated_at = now()
			 WHERE id = $1`,
			budgetID, subtotal, taxTotal, total, manual,
		)
		if err != nil {
			return fmt.Errorf("update totals: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrBudgetNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM budget_items WHERE budget_id = $1`, budgetID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		if err := insertItems(ctx, tx, budgetID, items); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// MarkSent transitions a DRAFT or SENT budget to SENT.
func (r *PostgresRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE budgets SET status = $2, updated_at = now()
		 WHERE id = $1 AND status IN ($3, $4)`,
		id, string(model.BudgetStatusSent), string(model.BudgetStatusDraft), string(model.BudgetStatusSent),
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

// AcceptBudget records the acceptance in a single conditional update: the
// write succeeds only while the budget is unaccepted, non-terminal and not
// yet expired. The store is the arbiter of accept-exactly-once; the caller
// classifies a zero-row result by re-reading the budget.
func (r *PostgresRepository) AcceptBudget(ctx context.Context, id uuid.UUID, at time.Time, ip, agent string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE budgets SET status = $2, accepted_at = $3, accepted_by_ip = $4, accepted_by_agent = $5, updated_at = now()
		 WHERE id = $1 AND accepted_at IS NULL AND status IN ($6, $7) AND expires_at > $3`,
		id, string(model.BudgetStatusAccepted), at, ip, agent,
		string(model.BudgetStatusDraft), string(model.BudgetStatusSent),
	)
	if err != nil {
		return false, fmt.Errorf("accept budget: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireBudget archives one overdue budget. Terminal states are left
// untouched, making the call a no-op for system-invoked paths.
func (r *PostgresRepository) ExpireBudget(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE budgets SET status = $2, updated_at = now()
		 WHERE id = $1 AND status IN ($3, $4) AND expires_at < $5`,
		id, string(model.BudgetStatusArchived),
		string(model.BudgetStatusDraft), string(model.BudgetStatusSent), now,
	)
	if err != nil {
		return fmt.Errorf("expire budget: %w", err)
	}
	return nil
}

// ListExpired returns DRAFT/SENT budgets past their expiry.
func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Budget, error) {
	return r.listByExpiry(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE status IN ($1, $2) AND expires_at < $3 ORDER BY expires_at`,
		string(model.BudgetStatusDraft), string(model.BudgetStatusSent), now,
	)
}

// ListDueForReminder returns DRAFT/SENT budgets expiring within the window
// that have not been reminded yet.
func (r *PostgresRepository) ListDueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]model.Budget, error) {
	return r.listByExpiry(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE status IN ($1, $2) AND expires_at > $3 AND expires_at <= $4 AND remind_sent_at IS NULL
		 ORDER BY expires_at`,
		string(model.BudgetStatusDraft), string(model.BudgetStatusSent), now, now.Add(window),
	)
}

func (r *PostgresRepository) listByExpiry(ctx context.Context, query string, args ...any) ([]model.Budget, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select budgets by expiry: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return budgets, nil
}

// SetReminderSent marks the reminder as dispatched. Set regardless of
// delivery outcome so a persistently failing address is reminded at most
// once.
func (r *PostgresRepository) SetReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE budgets SET remind_sent_at = $2, updated_at = now() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("set reminder sent: %w", err)
	}
	return nil
}

// ListParameters returns the active parameters of a category in ladder order.
func (r *PostgresRepository) ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error) {
	query := `SELECT id, category, param_group, param_key, label, value, min_range, max_range, position, active
		 FROM budget_parameters WHERE active`
	args := []any{}
	if category != "" {
		args = append(args, string(category))
		query += ` AND category = $1`
	}
	query += ` ORDER BY category, param_group, position, min_range NULLS FIRST`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select parameters: %w", err)
	}
	defer rows.Close()

	var params []model.Parameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return params, nil
}

func scanParameter(row pgx.Row) (*model.Parameter, error) {
	var (
		p        model.Parameter
		category string
		minR     decimal.NullDecimal
		maxR     decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &category, &p.Group, &p.Key, &p.Label, &p.Value, &minR, &maxR, &p.Position, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParameterNotFound
		}
		return nil, fmt.Errorf("scan parameter: %w", err)
	}
	p.Category = model.BudgetCategory(category)
	p.MinRange = fromNullDecimal(minR)
	p.MaxRange = fromNullDecimal(maxR)
	return &p, nil
}

// GetParameter returns one parameter by id.
func (r *PostgresRepository) GetParameter(ctx context.Context, id uuid.UUID) (*model.Parameter, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, category, param_group, param_key, label, value, min_range, max_range, position, active
		 FROM budget_parameters WHERE id = $1`, id)
	return scanParameter(row)
}

// UpdateParameter sets the value (and optionally the label) of a parameter.
func (r *PostgresRepository) UpdateParameter(ctx context.Context, id uuid.UUID, value decimal.Decimal, label *string) (*model.Parameter, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE budget_parameters SET value = $2, label = COALESCE($3, label)
		 WHERE id = $1
		 RETURNING id, category, param_group, param_key, label, value, min_range, max_range, position, active`,
		id, value, label,
	)
	return scanParameter(row)
}

// ParameterUpdate is one entry of a bulk parameter write.
type ParameterUpdate struct {
	ID    uuid.UUID
	Value decimal.Decimal
}

// BulkUpdateParameters applies all value updates in one transaction.
func (r *PostgresRepository) BulkUpdateParameters(ctx context.Context, updates []ParameterUpdate) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := 0
	for _, u := range updates {
		tag, err := tx.Exec(ctx, `UPDATE budget_parameters SET value = $2 WHERE id = $1`, u.ID, u.Value)
		if err != nil {
			return 0, fmt.Errorf("update parameter %s: %w", u.ID, err)
		}
		updated += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// CreateDeliveryLog records one rendering/delivery attempt.
func (r *PostgresRepository) CreateDeliveryLog(ctx context.Context, log *model.DeliveryLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO budget_delivery_logs (id, budget_id, kind, recipient, subject, outcome, detail)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		log.ID, log.BudgetID, string(log.Kind), log.Recipient, log.Subject, string(log.Outcome), log.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// ListDeliveryLogs returns the delivery history of a budget, newest first.
func (r *PostgresRepository) ListDeliveryLogs(ctx context.Context, budgetID uuid.UUID) ([]model.DeliveryLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, budget_id, kind, recipient, subject, outcome, detail, created_at
		 FROM budget_delivery_logs WHERE budget_id = $1 ORDER BY created_at DESC`,
		budgetID,
	)
	if err != nil {
		return nil, fmt.Errorf("select delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DeliveryLog
	for rows.Next() {
		var (
			l       model.DeliveryLog
			kind    string
			outcome string
		)
		if err := rows.Scan(&l.ID, &l.BudgetID, &kind, &l.Recipient, &l.Subject, &outcome, &l.Detail, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		l.Kind = model.DeliveryKind(kind)
		l.Outcome = model.DeliveryOutcome(outcome)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return logs, nil
}
