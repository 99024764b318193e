package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"github.com/procktails/storefront/internal/domain"
)

const orderColumns = `id, platform_order_id, checkout_id, actor_key, status, total_amount, currency, lines, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	log.Println("Connected to postgres")
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "ledger_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}

	query := `INSERT INTO orders (id, platform_order_id, checkout_id, actor_key, status, total_amount, currency, lines, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		nullable(order.PlatformOrderID),
		nullable(order.CheckoutID),
		order.ActorKey,
		order.Status,
		order.TotalAmount,
		order.Currency,
		linesJSON)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "orders_platform_order_id_key" {
				return ErrDuplicateOrder
			}
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_id = $1`
	return r.queryOne(ctx, query, checkoutID)
}

func (r *Repository) GetByPlatformOrderID(ctx context.Context, platformOrderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE platform_order_id = $1`
	return r.queryOne(ctx, query, platformOrderID)
}

func (r *Repository) ListByActor(ctx context.Context, actorKey string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE actor_key = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, actorKey)
	if err != nil {
		return nil, fmt.Errorf("query orders by actor key: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) AttachPlatformOrder(ctx context.Context, checkoutID, platformOrderID string, totalAmount float64, currency string, lines []domain.OrderLine) error {
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}

	query := `UPDATE orders
	          SET platform_order_id = $2, total_amount = $3, currency = $4, lines = $5, updated_at = NOW()
	          WHERE checkout_id = $1 AND platform_order_id IS NULL`

	res, err := r.db.ExecContext(ctx, query, checkoutID, platformOrderID, totalAmount, currency, linesJSON)
	if err != nil {
		return fmt.Errorf("attach platform order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach platform order: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) Transition(ctx context.Context, platformOrderID string, to domain.OrderStatus, from ...domain.OrderStatus) (*domain.Order, error) {
	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	query := `UPDATE orders
	          SET status = $2, updated_at = NOW()
	          WHERE platform_order_id = $1 AND status = ANY($3)
	          RETURNING ` + orderColumns

	order, err := r.queryOne(ctx, query, platformOrderID, to, pq.Array(fromStatuses))
	if errors.Is(err, ErrOrderNotFound) {
		// absent row or a status already past from, either way a no-op
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var platformOrderID, checkoutID sql.NullString
	var linesJSON []byte

	err := row.Scan(
		&order.ID,
		&platformOrderID,
		&checkoutID,
		&order.ActorKey,
		&order.Status,
		&order.TotalAmount,
		&order.Currency,
		&linesJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	order.PlatformOrderID = platformOrderID.String
	order.CheckoutID = checkoutID.String
	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}

	return &order, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
