package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martpos/martpos/internal/shared"
)

const productColumns = `id, name, barcode, price, stock, gst_percent, is_weighed, price_per_kg, is_active, created_at, updated_at`

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	IsActive *bool
	LowStock bool
	Limit    int
	Offset   int
}

// Repository persists products and their batches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

// GetByBarcode loads one active product by barcode.
func (r *Repository) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode=$1 AND is_active`, barcode)
	return scanProduct(row)
}

// List returns products matching the filters plus the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR barcode ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}
	if filters.LowStock {
		where += ` AND stock <= ` + strconv.Itoa(LowStockThreshold)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name ASC`
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

// Create inserts a product and returns its id.
func (r *Repository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, barcode, price, stock, gst_percent, is_weighed, price_per_kg, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		p.Name, p.Barcode, p.Price, p.Stock, p.GSTPercent, p.IsWeighed, p.PricePerKg, p.IsActive).Scan(&id)
	if err != nil {
		return 0, shared.ClassifyPgError(err)
	}
	return id, nil
}

// Update overwrites the mutable product fields. Stock is owned by the
// ledger and is deliberately not touched here.
func (r *Repository) Update(ctx context.Context, id int64, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$2, barcode=$3, price=$4, gst_percent=$5, is_weighed=$6, price_per_kg=$7, is_active=$8, updated_at=NOW() WHERE id=$1`,
		id, p.Name, p.Barcode, p.Price, p.GSTPercent, p.IsWeighed, p.PricePerKg, p.IsActive)
	if err != nil {
		return shared.ClassifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListBatches returns a product's lots in FIFO consumption order.
func (r *Repository) ListBatches(ctx context.Context, productID int64) ([]ProductBatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, batch_number, expiry_date, quantity, cost_price, created_at
FROM product_batches WHERE product_id=$1
ORDER BY (expiry_date IS NULL), expiry_date ASC, id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []ProductBatch
	for rows.Next() {
		var b ProductBatch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.CostPrice, &b.CreatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// LockProducts locks the given product rows FOR UPDATE in ascending id
// order, the global convention that keeps overlapping transactions from
// deadlocking. Returns ErrProductNotFound naming the first missing id.
func LockProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*Product, error) {
	locked := make(map[int64]*Product, len(ids))
	for _, id := range shared.SortedIDs(ids) {
		row := tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
		p, err := scanProduct(row)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, errors.Join(ErrProductNotFound, errors.New("product id "+strconv.FormatInt(id, 10)))
			}
			return nil, err
		}
		locked[id] = p
	}
	return locked, nil
}

// LockExistingProducts is LockProducts for flows that tolerate deleted
// rows, such as restocking a return: missing ids are omitted from the
// result instead of failing the transaction.
func LockExistingProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]*Product, error) {
	locked := make(map[int64]*Product, len(ids))
	for _, id := range shared.SortedIDs(ids) {
		row := tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
		p, err := scanProduct(row)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = p
	}
	return locked, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Price, &p.Stock, &p.GSTPercent, &p.IsWeighed, &p.PricePerKg, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}
