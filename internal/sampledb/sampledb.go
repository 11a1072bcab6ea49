// Package sampledb creates the small shop database used to try the agent
// without a real database at hand.
package sampledb

import (
	"context"
	"fmt"

	"github.com/bgunnarsson/sqlagent/internal/db"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    phone TEXT,
    address TEXT
)`,
	`CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT,
    price REAL NOT NULL,
    stock_quantity INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id INTEGER,
    order_date DATE,
    total_amount REAL,
    status TEXT,
    FOREIGN KEY (customer_id) REFERENCES customers(id)
)`,
	`CREATE TABLE IF NOT EXISTS order_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER,
    product_id INTEGER,
    quantity INTEGER NOT NULL,
    price_at_purchase REAL NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (product_id) REFERENCES products(id)
)`,
}

type customer struct {
	name, email, phone, address string
}

type product struct {
	name, description string
	price             float64
	stock             int
}

var customers = []customer{
	{"John Doe", "john@example.com", "555-0123", "123 Main St"},
	{"Jane Smith", "jane@example.com", "555-0124", "456 Oak Ave"},
	{"Bob Johnson", "bob@example.com", "555-0125", "789 Pine St"},
}

var products = []product{
	{"Laptop", "High-performance laptop", 999.99, 10},
	{"Smartphone", "Latest model smartphone", 699.99, 15},
	{"Tablet", "Portable tablet device", 499.99, 20},
	{"Headphones", "Wireless headphones", 199.99, 30},
}

// Result reports what Create did.
type Result struct {
	Seeded    bool
	Customers int
	Products  int
}

// Create creates the shop tables when missing and seeds them when the
// customers table is empty. It expects a SQLite database. Running it twice
// leaves the data unchanged.
func Create(ctx context.Context, d db.DB) (Result, error) {
	for _, stmt := range tables {
		if _, err := d.Exec(ctx, stmt); err != nil {
			return Result{}, fmt.Errorf("create tables: %w", err)
		}
	}

	n, err := count(ctx, d, "customers")
	if err != nil {
		return Result{}, err
	}
	if n > 0 {
		return Result{}, nil
	}

	if _, err := d.Exec(ctx, "BEGIN"); err != nil {
		return Result{}, fmt.Errorf("begin: %w", err)
	}
	if err := seed(ctx, d); err != nil {
		_, _ = d.Exec(ctx, "ROLLBACK")
		return Result{}, err
	}
	if _, err := d.Exec(ctx, "COMMIT"); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}

	return Result{Seeded: true, Customers: len(customers), Products: len(products)}, nil
}

func seed(ctx context.Context, d db.DB) error {
	for _, c := range customers {
		_, err := d.Exec(ctx,
			`INSERT INTO customers (name, email, phone, address) VALUES (?, ?, ?, ?)`,
			c.name, c.email, c.phone, c.address)
		if err != nil {
			return fmt.Errorf("insert customer %s: %w", c.email, err)
		}
	}
	for _, p := range products {
		_, err := d.Exec(ctx,
			`INSERT INTO products (name, description, price, stock_quantity) VALUES (?, ?, ?, ?)`,
			p.name, p.description, p.price, p.stock)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.name, err)
		}
	}
	return nil
}

func count(ctx context.Context, d db.DB, table string) (int64, error) {
	rows, err := d.Query(ctx, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if len(rows.Data) != 1 || len(rows.Data[0]) != 1 {
		return 0, fmt.Errorf("count %s: unexpected result shape", table)
	}
	switch v := rows.Data[0][0].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("count %s: unexpected value %T", table, v)
	}
}
