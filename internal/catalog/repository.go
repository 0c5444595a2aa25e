package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrProductNotFound = errors.New("product not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ProductFinder is the read-only view of the catalog the checkout core depends on.
type ProductFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
}

type Repository struct {
	db     *sqlx.DB
	driver string
}

func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer; migrations and reads share one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
	}

	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db.DB, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(r.db.DB, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := r.db.Rebind(`
		SELECT id, name, slug, price, sale_price, image
		FROM products
		WHERE id = ?
	`)

	var p domain.Product
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	return &p, nil
}

// Save inserts or replaces a product. The checkout core never calls it; it exists for
// seeding and tests.
func (r *Repository) Save(ctx context.Context, p *domain.Product) error {
	query := r.db.Rebind(`
		INSERT INTO products (id, name, slug, price, sale_price, image)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			slug = excluded.slug,
			price = excluded.price,
			sale_price = excluded.sale_price,
			image = excluded.image
	`)

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Slug, p.Price, p.SalePrice, p.Image)
	if err != nil {
		return fmt.Errorf("failed to save product %d: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
