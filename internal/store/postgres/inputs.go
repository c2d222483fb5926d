// Package postgres provides an InputSource backed by a Postgres database
// for deployments where the input tables are refreshed by an upstream
// system instead of dropped as flat files. Derived artifacts still live on
// disk; only inputs come from the database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// pgx stdlib driver registers itself as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/optilens/demand-engine/internal/domain"
)

type InputSource struct {
	db *sqlx.DB
}

// NewInputSource connects to the database at dsn and verifies the
// connection.
func NewInputSource(dsn string) (*InputSource, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &InputSource{db: db}, nil
}

func (s *InputSource) Close() error { return s.db.Close() }

type orderRow struct {
	Date       time.Time `db:"order_date"`
	LocationID string    `db:"location_id"`
	ProductID  string    `db:"product_id"`
	Region     string    `db:"region"`
	Segment    string    `db:"segment"`
	Quantity   float64   `db:"quantity"`
	Price      float64   `db:"price"`
}

func (s *InputSource) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT order_date, location_id, product_id, region, segment, quantity, price
		FROM orders
		ORDER BY order_date`)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, domain.Order{
			Date:       r.Date,
			LocationID: r.LocationID,
			ProductID:  r.ProductID,
			Region:     r.Region,
			Segment:    r.Segment,
			Quantity:   r.Quantity,
			Price:      r.Price,
		})
	}
	return orders, nil
}

func (s *InputSource) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT product_id, frame_type, lens_type, color, price_band, base_cost
		FROM products`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

func (s *InputSource) LoadLocations(ctx context.Context) ([]domain.Location, error) {
	var locations []domain.Location
	err := s.db.SelectContext(ctx, &locations, `
		SELECT location_id, region, tier, avg_footfall
		FROM locations`)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	return locations, nil
}

func (s *InputSource) LoadInventory(ctx context.Context) ([]domain.InventorySnapshot, error) {
	var snapshots []domain.InventorySnapshot
	err := s.db.SelectContext(ctx, &snapshots, `
		SELECT location_id, product_id, stock_level, lead_time_days
		FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	return snapshots, nil
}
