package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/store"
	"ysksales/backend/internal/xid"
)

// Store persists the ledger collections in PostgreSQL. Every Apply* commit
// runs inside a serializable transaction with the touched stock rows locked,
// so a commit either lands whole or not at all.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- products ---

const productColumns = `id, name, category, unit, barcode, price_cents, cost_cents, stock, supplier_id, active, created_at, updated_at`

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var p domain.Product
	var barcode, supplierID sql.NullString
	err := scan(&p.ID, &p.Name, &p.Category, &p.Unit, &barcode, &p.PriceCents, &p.CostCents, &p.Stock, &supplierID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.Barcode = barcode.String
	p.SupplierID = supplierID.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.PriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInvoice
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, unit, barcode, price_cents, cost_cents, stock, supplier_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, product.ID, product.Name, product.Category, product.Unit, nullIfEmpty(product.Barcode),
		product.PriceCents, product.CostCents, product.Stock, nullIfEmpty(product.SupplierID),
		product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.PriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInvoice
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, unit = $4, barcode = $5, price_cents = $6,
			cost_cents = $7, stock = $8, supplier_id = $9, active = $10, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.Unit, nullIfEmpty(product.Barcode),
		product.PriceCents, product.CostCents, product.Stock, nullIfEmpty(product.SupplierID), product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) SetStockLevels(ctx context.Context, counts []domain.StockCount) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range counts {
		if c.Counted < 0 {
			return store.ErrInvalidInvoice
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = $2, updated_at = now()
			WHERE id = $1
		`, c.ProductID, c.Counted)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}

	return tx.Commit()
}

// --- invoices ---

const invoiceColumns = `id, date, subtotal_cents, discount_type, discount_value, discount_cents,
	tax_type, tax_value, tax_cents, total_cents, payment_method, paid_cents, due_cents,
	status, customer_id, coupon_code, booking_id, returned_cents, created_by`

func scanInvoice(scan func(dest ...any) error) (domain.Invoice, error) {
	var inv domain.Invoice
	var discountType, taxType, customerID, couponCode, bookingID, createdBy sql.NullString
	err := scan(&inv.ID, &inv.Date, &inv.SubtotalCents, &discountType, &inv.Discount.Value, &inv.DiscountCents,
		&taxType, &inv.Tax.Value, &inv.TaxCents, &inv.TotalCents, &inv.PaymentMethod, &inv.PaidCents, &inv.DueCents,
		&inv.Status, &customerID, &couponCode, &bookingID, &inv.ReturnedCents, &createdBy)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Date = inv.Date.UTC()
	inv.Discount.Type = domain.AmountType(discountType.String)
	inv.Tax.Type = domain.AmountType(taxType.String)
	inv.CustomerID = customerID.String
	inv.CouponCode = couponCode.String
	inv.BookingID = bookingID.String
	inv.CreatedBy = createdBy.String
	return inv, nil
}

func (s *Store) loadInvoiceItems(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, invoiceID string) ([]domain.InvoiceItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, name, unit_price_cents, quantity, returned_quantity
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InvoiceItem, 0, 8)
	for rows.Next() {
		var item domain.InvoiceItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPriceCents, &item.Quantity, &item.ReturnedQuantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, id)
	inv, err := scanInvoice(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadInvoiceItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE ($1::timestamptz IS NULL OR date >= $1)
			AND ($2::timestamptz IS NULL OR date <= $2)
		ORDER BY date DESC, id
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, invoices)
}

func (s *Store) ListInvoicesByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE customer_id = $1
		ORDER BY id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, invoices)
}

func collectInvoices(rows *sql.Rows) ([]domain.Invoice, error) {
	invoices := make([]domain.Invoice, 0, 32)
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *Store) attachItems(ctx context.Context, invoices []domain.Invoice) ([]domain.Invoice, error) {
	for i := range invoices {
		items, err := s.loadInvoiceItems(ctx, s.db, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Items = items
	}
	return invoices, nil
}

// --- ledger commits ---

func (s *Store) ApplySale(ctx context.Context, commit store.SaleCommit) (*domain.Invoice, error) {
	inv := commit.Invoice
	if inv.ID == "" || len(inv.Items) == 0 {
		return nil, store.ErrInvalidInvoice
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyStockDeltas(ctx, tx, commit.StockDeltas); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, inv.ID, inv.Date, inv.SubtotalCents, string(inv.Discount.Type), inv.Discount.Value, inv.DiscountCents,
		string(inv.Tax.Type), inv.Tax.Value, inv.TaxCents, inv.TotalCents, string(inv.PaymentMethod),
		inv.PaidCents, inv.DueCents, string(inv.Status), nullIfEmpty(inv.CustomerID),
		nullIfEmpty(inv.CouponCode), nullIfEmpty(inv.BookingID), inv.ReturnedCents, nullIfEmpty(inv.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	for pos, item := range inv.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, product_id, name, unit_price_cents, quantity, returned_quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, inv.ID, pos, item.ProductID, item.Name, item.UnitPriceCents, item.Quantity, item.ReturnedQuantity)
		if err != nil {
			return nil, err
		}
	}

	if commit.Customer != nil {
		if err := applyCustomerDelta(ctx, tx, *commit.Customer); err != nil {
			return nil, err
		}
	}

	if commit.CompleteBookingID != "" {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = $2
			WHERE id = $1 AND status = $3
		`, commit.CompleteBookingID, string(domain.BookingCompleted), string(domain.BookingConfirmed))
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrInvalidInvoice
		}
	}

	if commit.CouponCode != "" {
		_, err := tx.ExecContext(ctx, `
			UPDATE coupons
			SET usage_count = usage_count + 1
			WHERE code = $1
		`, commit.CouponCode)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := inv
	return &created, nil
}

func (s *Store) ApplyReturn(ctx context.Context, commit store.ReturnCommit) (*domain.Invoice, error) {
	inv := commit.Invoice
	if inv.ID == "" {
		return nil, store.ErrInvalidInvoice
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, returned_cents = $3
		WHERE id = $1
	`, inv.ID, string(inv.Status), inv.ReturnedCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	for _, item := range inv.Items {
		_, err := tx.ExecContext(ctx, `
			UPDATE invoice_items
			SET returned_quantity = $3
			WHERE invoice_id = $1 AND product_id = $2
		`, inv.ID, item.ProductID, item.ReturnedQuantity)
		if err != nil {
			return nil, err
		}
	}

	if err := applyStockDeltas(ctx, tx, commit.StockDeltas); err != nil {
		return nil, err
	}
	if commit.Customer != nil {
		if err := applyCustomerDelta(ctx, tx, *commit.Customer); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := inv
	return &updated, nil
}

func (s *Store) ApplyReversal(ctx context.Context, commit store.ReversalCommit) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, commit.InvoiceID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, commit.InvoiceID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if err := applyStockDeltas(ctx, tx, commit.StockDeltas); err != nil {
		return err
	}
	if commit.Customer != nil {
		if err := applyCustomerDelta(ctx, tx, *commit.Customer); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ApplyPurchase(ctx context.Context, commit store.PurchaseCommit) (*domain.PurchaseInvoice, error) {
	purchase := commit.Purchase
	if purchase.ID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInvoice
	}

	itemsJSON, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_invoices (id, supplier_id, date, items, total_cents, paid_cents, due_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, purchase.ID, purchase.SupplierID, purchase.Date, itemsJSON, purchase.TotalCents, purchase.PaidCents, purchase.DueCents)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	if err := applyStockDeltas(ctx, tx, commit.StockDeltas); err != nil {
		return nil, err
	}
	for productID, costCents := range commit.CostUpdates {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET cost_cents = $2, updated_at = now()
			WHERE id = $1
		`, productID, costCents)
		if err != nil {
			return nil, err
		}
	}

	if commit.Supplier != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE suppliers
			SET debt_cents = debt_cents + $2
			WHERE id = $1
		`, commit.Supplier.SupplierID, commit.Supplier.DebtDeltaCents)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
		if entry := commit.Supplier.Append; entry != nil {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO supplier_transactions (id, supplier_id, type, date, amount_cents, notes, related_purchase_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, entry.ID, commit.Supplier.SupplierID, string(entry.Type), entry.Date, entry.AmountCents,
				entry.Notes, nullIfEmpty(entry.RelatedPurchaseID))
			if err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := purchase
	return &created, nil
}

// applyStockDeltas locks each touched product row and enforces stock >= 0.
func applyStockDeltas(ctx context.Context, tx *sql.Tx, deltas []store.StockDelta) error {
	for _, delta := range deltas {
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT stock
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, delta.ProductID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if stock+delta.Delta < 0 {
			return store.ErrInsufficientStock
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $2, updated_at = now()
			WHERE id = $1
		`, delta.ProductID, delta.Delta)
		if err != nil {
			return err
		}
	}
	return nil
}

func applyCustomerDelta(ctx context.Context, tx *sql.Tx, delta store.CustomerDelta) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET debt_cents = debt_cents + $2
		WHERE id = $1
	`, delta.CustomerID, delta.DebtDeltaCents)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if delta.RemoveByInvoice != "" {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM customer_transactions
			WHERE customer_id = $1 AND type = 'invoice' AND related_invoice_id = $2
		`, delta.CustomerID, delta.RemoveByInvoice)
		if err != nil {
			return err
		}
	}
	if entry := delta.Append; entry != nil {
		var returnedJSON any
		if len(entry.ReturnedItems) > 0 {
			payload, err := json.Marshal(entry.ReturnedItems)
			if err != nil {
				return err
			}
			returnedJSON = payload
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customer_transactions (id, customer_id, type, date, amount_cents, notes, related_invoice_id, returned_items)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, entry.ID, delta.CustomerID, string(entry.Type), entry.Date, entry.AmountCents,
			entry.Notes, nullIfEmpty(entry.RelatedInvoiceID), returnedJSON)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, debt_cents, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range customers {
		txs, err := s.loadCustomerTransactions(ctx, customers[i].ID)
		if err != nil {
			return nil, err
		}
		customers[i].Transactions = txs
	}
	return customers, nil
}

func scanCustomer(scan func(dest ...any) error) (domain.Customer, error) {
	var c domain.Customer
	var phone, email sql.NullString
	if err := scan(&c.ID, &c.Name, &phone, &email, &c.DebtCents, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Store) loadCustomerTransactions(ctx context.Context, customerID string) ([]domain.LedgerTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, date, amount_cents, notes, related_invoice_id, returned_items
		FROM customer_transactions
		WHERE customer_id = $1
		ORDER BY date, id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.LedgerTransaction, 0, 8)
	for rows.Next() {
		var entry domain.LedgerTransaction
		var notes, relatedInvoiceID sql.NullString
		var returnedRaw []byte
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Date, &entry.AmountCents, &notes, &relatedInvoiceID, &returnedRaw); err != nil {
			return nil, err
		}
		entry.Date = entry.Date.UTC()
		entry.Notes = notes.String
		entry.RelatedInvoiceID = relatedInvoiceID.String
		if len(returnedRaw) > 0 {
			if err := json.Unmarshal(returnedRaw, &entry.ReturnedItems); err != nil {
				return nil, err
			}
		}
		txs = append(txs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, debt_cents, created_at
		FROM customers
		WHERE id = $1
	`, id)
	c, err := scanCustomer(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	txs, err := s.loadCustomerTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Transactions = txs
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInvoice
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	customer.DebtCents = 0
	customer.Transactions = []domain.LedgerTransaction{}
	customer.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, debt_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), customer.DebtCents, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInvoice
	}

	// Debt and history are owned by the commit paths.
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4
		WHERE id = $1
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomer(ctx, customer.ID)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var debt int64
	err = tx.QueryRowContext(ctx, `SELECT debt_cents FROM customers WHERE id = $1 FOR UPDATE`, id).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if debt > 0 {
		return store.ErrInvalidInvoice
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM customer_transactions WHERE customer_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AppendCustomerTransaction(ctx context.Context, customerID string, debtDeltaCents int64, entry domain.LedgerTransaction) (*domain.Customer, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	delta := store.CustomerDelta{CustomerID: customerID, DebtDeltaCents: debtDeltaCents, Append: &entry}
	if err := applyCustomerDelta(ctx, tx, delta); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetCustomer(ctx, customerID)
}

// --- suppliers ---

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, company, debt_cents, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		sup, err := scanSupplier(rows.Scan)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range suppliers {
		txs, err := s.loadSupplierTransactions(ctx, suppliers[i].ID)
		if err != nil {
			return nil, err
		}
		suppliers[i].Transactions = txs
	}
	return suppliers, nil
}

func scanSupplier(scan func(dest ...any) error) (domain.Supplier, error) {
	var sup domain.Supplier
	var phone, company sql.NullString
	if err := scan(&sup.ID, &sup.Name, &phone, &company, &sup.DebtCents, &sup.CreatedAt); err != nil {
		return domain.Supplier{}, err
	}
	sup.Phone = phone.String
	sup.Company = company.String
	sup.CreatedAt = sup.CreatedAt.UTC()
	return sup, nil
}

func (s *Store) loadSupplierTransactions(ctx context.Context, supplierID string) ([]domain.SupplierTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, date, amount_cents, notes, related_purchase_id
		FROM supplier_transactions
		WHERE supplier_id = $1
		ORDER BY date, id
	`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.SupplierTransaction, 0, 8)
	for rows.Next() {
		var entry domain.SupplierTransaction
		var notes, relatedPurchaseID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Date, &entry.AmountCents, &notes, &relatedPurchaseID); err != nil {
			return nil, err
		}
		entry.Date = entry.Date.UTC()
		entry.Notes = notes.String
		entry.RelatedPurchaseID = relatedPurchaseID.String
		txs = append(txs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, company, debt_cents, created_at
		FROM suppliers
		WHERE id = $1
	`, id)
	sup, err := scanSupplier(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	txs, err := s.loadSupplierTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	sup.Transactions = txs
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInvoice
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	supplier.DebtCents = 0
	supplier.Transactions = []domain.SupplierTransaction{}
	supplier.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, company, debt_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Company), supplier.DebtCents, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var debt int64
	err = tx.QueryRowContext(ctx, `SELECT debt_cents FROM suppliers WHERE id = $1 FOR UPDATE`, id).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if debt > 0 {
		return store.ErrInvalidInvoice
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_transactions WHERE supplier_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AppendSupplierTransaction(ctx context.Context, supplierID string, debtDeltaCents int64, entry domain.SupplierTransaction) (*domain.Supplier, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE suppliers
		SET debt_cents = debt_cents + $2
		WHERE id = $1
	`, supplierID, debtDeltaCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO supplier_transactions (id, supplier_id, type, date, amount_cents, notes, related_purchase_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, supplierID, string(entry.Type), entry.Date, entry.AmountCents, entry.Notes, nullIfEmpty(entry.RelatedPurchaseID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetSupplier(ctx, supplierID)
}

func (s *Store) ListPurchaseInvoices(ctx context.Context, supplierID string, limit int) ([]domain.PurchaseInvoice, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, date, items, total_cents, paid_cents, due_cents
		FROM purchase_invoices
		WHERE ($1 = '' OR supplier_id = $1)
		ORDER BY date DESC, id
		LIMIT $2
	`, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.PurchaseInvoice, 0, limit)
	for rows.Next() {
		var p domain.PurchaseInvoice
		var itemsRaw []byte
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Date, &itemsRaw, &p.TotalCents, &p.PaidCents, &p.DueCents); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &p.Items); err != nil {
				return nil, err
			}
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

// --- bookings ---

func (s *Store) ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, items, booking_date, status, deposit_cents, notes, created_at
		FROM bookings
		WHERE ($1 = '' OR status = $1)
		ORDER BY booking_date, id
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(scan func(dest ...any) error) (domain.Booking, error) {
	var b domain.Booking
	var notes sql.NullString
	var itemsRaw []byte
	err := scan(&b.ID, &b.CustomerID, &b.CustomerName, &itemsRaw, &b.BookingDate, &b.Status, &b.DepositCents, &notes, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.BookingDate = b.BookingDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.Notes = notes.String
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &b.Items); err != nil {
			return domain.Booking{}, err
		}
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, items, booking_date, status, deposit_cents, notes, created_at
		FROM bookings
		WHERE id = $1
	`, id)
	b, err := scanBooking(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	if booking.CustomerID == "" || len(booking.Items) == 0 {
		return nil, store.ErrInvalidInvoice
	}
	if booking.ID == "" {
		booking.ID = xid.New("bok")
	}
	if booking.Status == "" {
		booking.Status = domain.BookingConfirmed
	}
	booking.CreatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(booking.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, customer_id, customer_name, items, booking_date, status, deposit_cents, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, booking.ID, booking.CustomerID, booking.CustomerName, itemsJSON, booking.BookingDate,
		string(booking.Status), booking.DepositCents, nullIfEmpty(booking.Notes), booking.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	created := booking
	return &created, nil
}

func (s *Store) UpdateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	itemsJSON, err := json.Marshal(booking.Items)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET customer_id = $2, customer_name = $3, items = $4, booking_date = $5,
			status = $6, deposit_cents = $7, notes = $8
		WHERE id = $1
	`, booking.ID, booking.CustomerID, booking.CustomerName, itemsJSON, booking.BookingDate,
		string(booking.Status), booking.DepositCents, nullIfEmpty(booking.Notes))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetBooking(ctx, booking.ID)
}

func (s *Store) ReservedQuantities(ctx context.Context, productIDs []string, excludeBookingID string) (map[string]int, error) {
	reserved := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		reserved[id] = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT items
		FROM bookings
		WHERE status = $1 AND ($2 = '' OR id <> $2)
	`, string(domain.BookingConfirmed), excludeBookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	for rows.Next() {
		var itemsRaw []byte
		if err := rows.Scan(&itemsRaw); err != nil {
			return nil, err
		}
		var items []domain.BookingItem
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &items); err != nil {
				return nil, err
			}
		}
		for _, item := range items {
			if len(wanted) > 0 {
				if _, ok := wanted[item.ProductID]; !ok {
					continue
				}
			}
			reserved[item.ProductID] += item.Quantity
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reserved, nil
}

// --- coupons ---

func (s *Store) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, type, value, is_active, expiry_date, usage_count, created_at
		FROM coupons
		ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := make([]domain.Coupon, 0, 16)
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.Code, &c.Type, &c.Value, &c.IsActive, &c.ExpiryDate, &c.UsageCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ExpiryDate = c.ExpiryDate.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (s *Store) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := s.db.QueryRowContext(ctx, `
		SELECT code, type, value, is_active, expiry_date, usage_count, created_at
		FROM coupons
		WHERE code = $1
	`, code).Scan(&c.Code, &c.Type, &c.Value, &c.IsActive, &c.ExpiryDate, &c.UsageCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.ExpiryDate = c.ExpiryDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" || coupon.Value <= 0 {
		return nil, store.ErrInvalidInvoice
	}
	coupon.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (code, type, value, is_active, expiry_date, usage_count, created_at)
		VALUES ($1,$2,$3,$4,$5,0,$6)
	`, coupon.Code, string(coupon.Type), coupon.Value, coupon.IsActive, coupon.ExpiryDate, coupon.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInvoice
		}
		return nil, err
	}

	created := coupon
	return &created, nil
}

func (s *Store) UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))

	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET type = $2, value = $3, is_active = $4, expiry_date = $5
		WHERE code = $1
	`, coupon.Code, string(coupon.Type), coupon.Value, coupon.IsActive, coupon.ExpiryDate)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCoupon(ctx, coupon.Code)
}

// --- audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("adt")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.At)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, entity_type, entity_id, detail, at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR at >= $1)
			AND ($2::timestamptz IS NULL OR at <= $2)
		ORDER BY at DESC
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.At); err != nil {
			return nil, err
		}
		entry.At = entry.At.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInvoice
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInvoice
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
