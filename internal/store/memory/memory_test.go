package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/store"
)

func saleCommit(invoiceID string, productID string, qty int, customerID string) store.SaleCommit {
	now := time.Now().UTC()
	commit := store.SaleCommit{
		Invoice: domain.Invoice{
			ID:   invoiceID,
			Date: now,
			Items: []domain.InvoiceItem{
				{ProductID: productID, Name: "Widget", UnitPriceCents: 1000, Quantity: qty},
			},
			SubtotalCents: int64(qty) * 1000,
			TotalCents:    int64(qty) * 1000,
			PaymentMethod: domain.PayCredit,
			DueCents:      int64(qty) * 1000,
			Status:        domain.InvoiceDue,
			CustomerID:    customerID,
		},
		StockDeltas: []store.StockDelta{{ProductID: productID, Delta: -qty}},
	}
	if customerID != "" {
		commit.Customer = &store.CustomerDelta{
			CustomerID:     customerID,
			DebtDeltaCents: commit.Invoice.DueCents,
			Append: &domain.LedgerTransaction{
				ID:               "ltx-" + invoiceID,
				Type:             domain.LedgerInvoice,
				Date:             now,
				AmountCents:      commit.Invoice.TotalCents,
				RelatedInvoiceID: invoiceID,
			},
		}
	}
	return commit
}

func TestApplySaleRejectsWithoutPartialState(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateProduct(ctx, domain.Product{ID: "prd-w", Name: "Widget", PriceCents: 1000, Stock: 3}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: "cus-1", Name: "Buyer"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	_, err := s.ApplySale(ctx, saleCommit("inv-over", "prd-w", 5, "cus-1"))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// Nothing may have moved.
	product, err := s.GetProduct(ctx, "prd-w")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 3 {
		t.Fatalf("stock = %d, want 3", product.Stock)
	}
	customer, err := s.GetCustomer(ctx, "cus-1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.DebtCents != 0 || len(customer.Transactions) != 0 {
		t.Fatalf("customer mutated by rejected sale: %+v", customer)
	}
	if _, err := s.GetInvoice(ctx, "inv-over"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no invoice after rejected sale, got %v", err)
	}
}

func TestApplyReversalRemovesOnlyLinkedEntry(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.CreateProduct(ctx, domain.Product{ID: "prd-w", Name: "Widget", PriceCents: 1000, Stock: 10}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: "cus-1", Name: "Buyer"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := s.ApplySale(ctx, saleCommit("inv-a", "prd-w", 2, "cus-1")); err != nil {
		t.Fatalf("apply sale a: %v", err)
	}
	if _, err := s.ApplySale(ctx, saleCommit("inv-b", "prd-w", 3, "cus-1")); err != nil {
		t.Fatalf("apply sale b: %v", err)
	}

	err := s.ApplyReversal(ctx, store.ReversalCommit{
		InvoiceID:   "inv-a",
		StockDeltas: []store.StockDelta{{ProductID: "prd-w", Delta: 2}},
		Customer: &store.CustomerDelta{
			CustomerID:      "cus-1",
			DebtDeltaCents:  -2000,
			RemoveByInvoice: "inv-a",
		},
	})
	if err != nil {
		t.Fatalf("apply reversal: %v", err)
	}

	customer, err := s.GetCustomer(ctx, "cus-1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.DebtCents != 3000 {
		t.Fatalf("debt = %d, want 3000", customer.DebtCents)
	}
	if len(customer.Transactions) != 1 || customer.Transactions[0].RelatedInvoiceID != "inv-b" {
		t.Fatalf("expected only inv-b entry to survive, got %+v", customer.Transactions)
	}
	product, err := s.GetProduct(ctx, "prd-w")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("stock = %d, want 7", product.Stock)
	}
}

func TestReservedQuantitiesCountsOnlyConfirmed(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	reserved, err := s.ReservedQuantities(ctx, []string{"prd-juice-1l"}, "")
	if err != nil {
		t.Fatalf("reserved quantities: %v", err)
	}
	if reserved["prd-juice-1l"] != 20 {
		t.Fatalf("reserved = %d, want 20", reserved["prd-juice-1l"])
	}

	booking, err := s.GetBooking(ctx, "bok-cafe-weekly")
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	booking.Status = domain.BookingCanceled
	if _, err := s.UpdateBooking(ctx, *booking); err != nil {
		t.Fatalf("update booking: %v", err)
	}

	reserved, err = s.ReservedQuantities(ctx, []string{"prd-juice-1l"}, "")
	if err != nil {
		t.Fatalf("reserved quantities: %v", err)
	}
	if reserved["prd-juice-1l"] != 0 {
		t.Fatalf("reserved after cancel = %d, want 0", reserved["prd-juice-1l"])
	}
}
