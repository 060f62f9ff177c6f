package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/store"
)

func TestApplyReversalRestoresStockAndLedger(t *testing.T) {
	databaseURL := os.Getenv("YSKSALES_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set YSKSALES_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-rev-it-%d", stamp)
	customerID := fmt.Sprintf("cus-rev-it-%d", stamp)
	invoiceID := fmt.Sprintf("inv-rev-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customer_transactions WHERE customer_id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, unit, price_cents, cost_cents, stock, active, created_at, updated_at)
		VALUES ($1, 'Reversal IT Widget', 'test', 'pcs', 10000, 6000, 10, true, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, debt_cents, created_at)
		VALUES ($1, 'Reversal IT Customer', 0, now())
	`, customerID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	now := time.Now().UTC()
	invoice := domain.Invoice{
		ID:   invoiceID,
		Date: now,
		Items: []domain.InvoiceItem{
			{ProductID: productID, Name: "Reversal IT Widget", UnitPriceCents: 10000, Quantity: 2},
		},
		SubtotalCents: 20000,
		TotalCents:    20000,
		PaymentMethod: domain.PayCredit,
		PaidCents:     0,
		DueCents:      20000,
		Status:        domain.InvoiceDue,
		CustomerID:    customerID,
	}
	commit := store.SaleCommit{
		Invoice:     invoice,
		StockDeltas: []store.StockDelta{{ProductID: productID, Delta: -2}},
		Customer: &store.CustomerDelta{
			CustomerID:     customerID,
			DebtDeltaCents: 20000,
			Append: &domain.LedgerTransaction{
				ID:               fmt.Sprintf("ltx-rev-it-%d", stamp),
				Type:             domain.LedgerInvoice,
				Date:             now,
				AmountCents:      20000,
				Notes:            "Invoice " + invoiceID,
				RelatedInvoiceID: invoiceID,
			},
		},
	}
	if _, err := s.ApplySale(ctx, commit); err != nil {
		t.Fatalf("apply sale: %v", err)
	}

	err = s.ApplyReversal(ctx, store.ReversalCommit{
		InvoiceID:   invoiceID,
		StockDeltas: []store.StockDelta{{ProductID: productID, Delta: 2}},
		Customer: &store.CustomerDelta{
			CustomerID:      customerID,
			DebtDeltaCents:  -20000,
			RemoveByInvoice: invoiceID,
		},
	})
	if err != nil {
		t.Fatalf("apply reversal: %v", err)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 10 {
		t.Fatalf("expected stock 10 after reversal, got %d", stock)
	}

	var debt int64
	if err := s.db.QueryRowContext(ctx, `SELECT debt_cents FROM customers WHERE id = $1`, customerID).Scan(&debt); err != nil {
		t.Fatalf("query debt: %v", err)
	}
	if debt != 0 {
		t.Fatalf("expected debt 0 after reversal, got %d", debt)
	}

	var entries int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM customer_transactions WHERE related_invoice_id = $1
	`, invoiceID).Scan(&entries); err != nil {
		t.Fatalf("query ledger entries: %v", err)
	}
	if entries != 0 {
		t.Fatalf("expected no ledger entries for reversed invoice, got %d", entries)
	}

	if _, err := s.GetInvoice(ctx, invoiceID); err == nil {
		t.Fatalf("expected reversed invoice to be gone")
	}
}
