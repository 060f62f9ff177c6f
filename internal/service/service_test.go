package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ysksales/backend/internal/availability"
	"ysksales/backend/internal/cache"
	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/store"
	"ysksales/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	repo := memory.NewSeeded()
	resolver := availability.NewEngine(cache.NoopAvailabilityCache{}, 5*time.Second)
	svc := New(repo, resolver)
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	return svc, ctx
}

// addWidget creates the reference product: price 100.00, stock 10.
func addWidget(t *testing.T, svc *Service, ctx context.Context) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ctx, domain.Product{
		ID:         "prd-widget",
		Name:       "Widget",
		Category:   "misc",
		Unit:       "piece",
		PriceCents: 10000,
		CostCents:  6000,
		Stock:      10,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func referenceSale(customerID string, method domain.PaymentMethod, tendered int64) domain.CompleteSaleRequest {
	return domain.CompleteSaleRequest{
		Items:         []domain.CartLine{{ProductID: "prd-widget", Quantity: 2}},
		Discount:      &domain.AmountSpec{Type: domain.AmountFixed, Value: 1000},
		Tax:           &domain.AmountSpec{Type: domain.AmountPercentage, Value: 14},
		PaymentMethod: method,
		TenderedCents: tendered,
		CustomerID:    customerID,
	}
}

func TestCompleteSaleCash(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("", domain.PayCash, 22000))
	if err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}

	if invoice.SubtotalCents != 20000 || invoice.DiscountCents != 1000 || invoice.TaxCents != 2660 {
		t.Fatalf("pricing off: subtotal=%d discount=%d tax=%d", invoice.SubtotalCents, invoice.DiscountCents, invoice.TaxCents)
	}
	if invoice.TotalCents != 21660 {
		t.Fatalf("total = %d, want 21660", invoice.TotalCents)
	}
	if invoice.PaidCents != 21660 || invoice.DueCents != 0 {
		t.Fatalf("cash settlement: paid=%d due=%d, want 21660/0", invoice.PaidCents, invoice.DueCents)
	}
	if invoice.Status != domain.InvoicePaid {
		t.Fatalf("status = %q, want paid", invoice.Status)
	}

	product, err := svc.GetProduct(ctx, "prd-widget")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 8 {
		t.Fatalf("stock after sale = %d, want 8", product.Stock)
	}
}

func TestCompleteSaleCashRejectsShortTender(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	_, err := svc.CompleteSale(ctx, referenceSale("", domain.PayCash, 20000))
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("err = %v, want ErrInsufficientPayment", err)
	}

	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 10 {
		t.Fatalf("stock mutated on rejected sale: %d", product.Stock)
	}
}

func TestCompleteSaleCreditRequiresCustomer(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	_, err := svc.CompleteSale(ctx, referenceSale("", domain.PayCredit, 0))
	if !errors.Is(err, store.ErrMissingCustomer) {
		t.Fatalf("err = %v, want ErrMissingCustomer", err)
	}
}

func TestCompleteSaleCreditUpdatesLedger(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}
	if invoice.Status != domain.InvoiceDue || invoice.DueCents != 21660 {
		t.Fatalf("credit invoice: status=%q due=%d, want due/21660", invoice.Status, invoice.DueCents)
	}

	customer, err := svc.GetCustomer(ctx, "cus-corner-cafe")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.DebtCents != 21660 {
		t.Fatalf("debt = %d, want 21660", customer.DebtCents)
	}
	if len(customer.Transactions) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(customer.Transactions))
	}
	entry := customer.Transactions[0]
	if entry.Type != domain.LedgerInvoice || entry.AmountCents != 21660 {
		t.Fatalf("ledger entry = %+v", entry)
	}
	if entry.RelatedInvoiceID != invoice.ID {
		t.Fatalf("ledger entry not linked to invoice: %q != %q", entry.RelatedInvoiceID, invoice.ID)
	}
}

func TestCompleteSaleInsufficientStock(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	req := referenceSale("", domain.PayCash, 2000000)
	req.Items = []domain.CartLine{{ProductID: "prd-widget", Quantity: 11}}
	_, err := svc.CompleteSale(ctx, req)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestCompleteSaleRespectsBookingReservations(t *testing.T) {
	svc, ctx := newTestService(t)

	// Seeded: juice stock 70, confirmed booking reserves 20 -> 50 sellable.
	_, err := svc.CompleteSale(ctx, domain.CompleteSaleRequest{
		Items:         []domain.CartLine{{ProductID: "prd-juice-1l", Quantity: 55}},
		PaymentMethod: domain.PayCash,
		TenderedCents: 10000000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock against reservation", err)
	}

	if _, err := svc.CompleteSale(ctx, domain.CompleteSaleRequest{
		Items:         []domain.CartLine{{ProductID: "prd-juice-1l", Quantity: 50}},
		PaymentMethod: domain.PayCash,
		TenderedCents: 10000000,
	}); err != nil {
		t.Fatalf("sale within availability failed: %v", err)
	}
}

func TestAvailabilityResolver(t *testing.T) {
	svc, ctx := newTestService(t)

	resp, err := svc.Availability(ctx, domain.AvailabilityRequest{ProductIDs: []string{"prd-juice-1l"}})
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	item := resp.Items[0]
	if item.Stock != 70 || item.Reserved != 20 || item.Available != 50 {
		t.Fatalf("availability = %+v, want 70/20/50", item)
	}

	// Excluding the reserving booking frees its quantity.
	resp, err = svc.Availability(ctx, domain.AvailabilityRequest{
		ProductIDs:       []string{"prd-juice-1l"},
		ExcludeBookingID: "bok-cafe-weekly",
	})
	if err != nil {
		t.Fatalf("availability with exclusion: %v", err)
	}
	if resp.Items[0].Available != 70 {
		t.Fatalf("available with exclusion = %d, want 70", resp.Items[0].Available)
	}
}

func TestReversalRoundTrip(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	before, err := svc.GetCustomer(ctx, "cus-corner-cafe")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}
	if err := svc.ReverseInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}

	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 10 {
		t.Fatalf("stock after reversal = %d, want 10", product.Stock)
	}
	after, _ := svc.GetCustomer(ctx, "cus-corner-cafe")
	if after.DebtCents != before.DebtCents {
		t.Fatalf("debt after reversal = %d, want %d", after.DebtCents, before.DebtCents)
	}
	if len(after.Transactions) != len(before.Transactions) {
		t.Fatalf("ledger after reversal has %d entries, want %d", len(after.Transactions), len(before.Transactions))
	}
	if _, err := svc.GetInvoice(ctx, invoice.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("invoice still present after reversal: %v", err)
	}
}

func TestReversalIsReturnUnaware(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}
	// Return one unit first: stock 8 -> 9.
	if _, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities: map[string]int{"prd-widget": 1},
	}); err != nil {
		t.Fatalf("return failed: %v", err)
	}
	// Reversal restores the originally sold 2 regardless: 9 + 2 = 11.
	if err := svc.ReverseInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 11 {
		t.Fatalf("stock = %d, want 11 (deletion is an all-or-nothing undo)", product.Stock)
	}
}

func TestReturnCreditOriginReducesDebtEvenForCashRefund(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("credit sale failed: %v", err)
	}

	result, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities:   map[string]int{"prd-widget": 1},
		RefundMethod: domain.RefundCash,
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if result.ReturnValueCents != 10000 {
		t.Fatalf("return value = %d, want 10000", result.ReturnValueCents)
	}
	if !result.BalanceCredited {
		t.Fatal("credit-origin return must credit the balance even for a cash refund")
	}
	if result.Invoice.Status != domain.InvoicePartiallyReturned {
		t.Fatalf("status = %q, want partially_returned", result.Invoice.Status)
	}

	customer, _ := svc.GetCustomer(ctx, "cus-corner-cafe")
	if customer.DebtCents != 21660-10000 {
		t.Fatalf("debt = %d, want %d", customer.DebtCents, 21660-10000)
	}
	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 9 {
		t.Fatalf("stock = %d, want 9", product.Stock)
	}
}

func TestReturnCashOriginCashRefundSkipsLedgerBalance(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	req := referenceSale("cus-corner-cafe", domain.PayCash, 22000)
	invoice, err := svc.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}

	result, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities:   map[string]int{"prd-widget": 1},
		RefundMethod: domain.RefundCash,
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if result.BalanceCredited {
		t.Fatal("cash refund on a cash sale must not touch the balance")
	}

	customer, _ := svc.GetCustomer(ctx, "cus-corner-cafe")
	if customer.DebtCents != 0 {
		t.Fatalf("debt = %d, want 0", customer.DebtCents)
	}
	// The return is still recorded in the history.
	last := customer.Transactions[len(customer.Transactions)-1]
	if last.Type != domain.LedgerReturn || last.AmountCents != 10000 {
		t.Fatalf("return entry = %+v", last)
	}
	if len(last.ReturnedItems) != 1 || last.ReturnedItems[0].Quantity != 1 {
		t.Fatalf("returned items = %+v", last.ReturnedItems)
	}
}

func TestReturnBalanceRefundOnCashOriginCreditsBalance(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCash, 22000))
	if err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}

	result, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities:   map[string]int{"prd-widget": 1},
		RefundMethod: domain.RefundBalance,
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if !result.BalanceCredited {
		t.Fatal("balance refund must credit the balance")
	}
	customer, _ := svc.GetCustomer(ctx, "cus-corner-cafe")
	if customer.DebtCents != -10000 {
		t.Fatalf("debt = %d, want -10000 (store owes the customer)", customer.DebtCents)
	}
}

func TestReturnClampsAndRejectsExhaustedItems(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("", domain.PayCash, 22000))
	if err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}

	// Requesting 5 of a quantity-2 line clamps to 2 and fully returns it.
	result, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities: map[string]int{"prd-widget": 5},
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if result.ReturnValueCents != 20000 {
		t.Fatalf("clamped return value = %d, want 20000", result.ReturnValueCents)
	}
	if result.Invoice.Status != domain.InvoiceReturned {
		t.Fatalf("status = %q, want returned", result.Invoice.Status)
	}
	if result.Invoice.ReturnedCents != 20000 {
		t.Fatalf("returned cents = %d, want 20000", result.Invoice.ReturnedCents)
	}

	// Everything is returned; any further request clamps to zero.
	_, err = svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{
		Quantities: map[string]int{"prd-widget": 1},
	})
	if !errors.Is(err, store.ErrNothingToReturn) {
		t.Fatalf("err = %v, want ErrNothingToReturn", err)
	}
}

func TestReturnAccumulatesAcrossOperations(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("", domain.PayCash, 22000))
	if err != nil {
		t.Fatalf("cash sale failed: %v", err)
	}

	first, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{Quantities: map[string]int{"prd-widget": 1}})
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if first.Invoice.Status != domain.InvoicePartiallyReturned {
		t.Fatalf("status after first return = %q", first.Invoice.Status)
	}

	second, err := svc.ProcessReturn(ctx, invoice.ID, domain.ReturnRequest{Quantities: map[string]int{"prd-widget": 1}})
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if second.Invoice.Status != domain.InvoiceReturned {
		t.Fatalf("status after second return = %q", second.Invoice.Status)
	}
	if second.Invoice.ReturnedCents != 20000 {
		t.Fatalf("accumulated returned = %d, want 20000", second.Invoice.ReturnedCents)
	}
}

func TestLedgerConsistencyAcrossOperations(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	// Sale 1: credit, due 21660.
	inv1, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("sale 1: %v", err)
	}
	// Sale 2: partial with 5000 paid, due 16660.
	req2 := referenceSale("cus-corner-cafe", domain.PayPartial, 0)
	req2.PaidCents = 5000
	inv2, err := svc.CompleteSale(ctx, req2)
	if err != nil {
		t.Fatalf("sale 2: %v", err)
	}
	if inv2.Status != domain.InvoicePartial {
		t.Fatalf("sale 2 status = %q, want partial", inv2.Status)
	}
	// Payment of 10000.
	if _, err := svc.RecordCustomerPayment(ctx, "cus-corner-cafe", domain.PaymentRequest{AmountCents: 10000}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	// Balance-credited return of 10000 against sale 1.
	if _, err := svc.ProcessReturn(ctx, inv1.ID, domain.ReturnRequest{
		Quantities:   map[string]int{"prd-widget": 1},
		RefundMethod: domain.RefundBalance,
	}); err != nil {
		t.Fatalf("return: %v", err)
	}
	// Reverse sale 2 entirely.
	if err := svc.ReverseInvoice(ctx, inv2.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	// debt == due of live invoices − payments − balance-credited returns.
	want := int64(21660) - 10000 - 10000
	customer, _ := svc.GetCustomer(ctx, "cus-corner-cafe")
	if customer.DebtCents != want {
		t.Fatalf("debt = %d, want %d", customer.DebtCents, want)
	}
}

func TestCouponPricing(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	// WELCOME10 is a seeded active 10% coupon; it wins over the manual discount.
	resp, err := svc.PriceCart(ctx, domain.PriceCartRequest{
		Items:      []domain.CartLine{{ProductID: "prd-widget", Quantity: 2}},
		Discount:   &domain.AmountSpec{Type: domain.AmountFixed, Value: 5000},
		CouponCode: "WELCOME10",
	})
	if err != nil {
		t.Fatalf("price cart: %v", err)
	}
	if !resp.CouponApplied {
		t.Fatal("coupon not applied")
	}
	if resp.DiscountCents != 2000 {
		t.Fatalf("discount = %d, want 2000 (10%% of 20000)", resp.DiscountCents)
	}

	_, err = svc.PriceCart(ctx, domain.PriceCartRequest{
		Items:      []domain.CartLine{{ProductID: "prd-widget", Quantity: 1}},
		CouponCode: "EXPIRED5",
	})
	if !errors.Is(err, store.ErrCouponExpired) {
		t.Fatalf("err = %v, want ErrCouponExpired", err)
	}

	_, err = svc.PriceCart(ctx, domain.PriceCartRequest{
		Items:      []domain.CartLine{{ProductID: "prd-widget", Quantity: 1}},
		CouponCode: "NO-SUCH-CODE",
	})
	if !errors.Is(err, store.ErrCouponInvalid) {
		t.Fatalf("err = %v, want ErrCouponInvalid", err)
	}
}

func TestCouponUsageCountsOnSale(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	req := referenceSale("", domain.PayCash, 22000)
	req.Discount = nil
	req.CouponCode = "WELCOME10"
	invoice, err := svc.CompleteSale(ctx, req)
	if err != nil {
		t.Fatalf("sale with coupon: %v", err)
	}
	if invoice.CouponCode != "WELCOME10" {
		t.Fatalf("invoice coupon = %q", invoice.CouponCode)
	}

	coupons, _ := svc.ListCoupons(ctx)
	for _, c := range coupons {
		if c.Code == "WELCOME10" && c.UsageCount != 1 {
			t.Fatalf("usage count = %d, want 1", c.UsageCount)
		}
	}
}

func TestBookingConversion(t *testing.T) {
	svc, ctx := newTestService(t)

	// Seeded booking: 20 juice @ 4700 for cus-corner-cafe, deposit 20000.
	invoice, err := svc.CompleteSale(ctx, domain.CompleteSaleRequest{
		Items:         []domain.CartLine{{ProductID: "prd-juice-1l", Quantity: 20}},
		PaymentMethod: domain.PayPartial,
		BookingID:     "bok-cafe-weekly",
	})
	if err != nil {
		t.Fatalf("booking conversion failed: %v", err)
	}

	if invoice.CustomerID != "cus-corner-cafe" {
		t.Fatalf("customer not taken from booking: %q", invoice.CustomerID)
	}
	if invoice.TotalCents != 94000 {
		t.Fatalf("total = %d, want 94000", invoice.TotalCents)
	}
	if invoice.PaidCents != 20000 || invoice.DueCents != 74000 {
		t.Fatalf("deposit not applied: paid=%d due=%d", invoice.PaidCents, invoice.DueCents)
	}
	if invoice.Status != domain.InvoicePartial {
		t.Fatalf("status = %q, want partial", invoice.Status)
	}

	booking, _ := svc.GetBooking(ctx, "bok-cafe-weekly")
	if booking.Status != domain.BookingCompleted {
		t.Fatalf("booking status = %q, want completed", booking.Status)
	}

	// The completed booking no longer reserves stock.
	resp, _ := svc.Availability(ctx, domain.AvailabilityRequest{ProductIDs: []string{"prd-juice-1l"}})
	if resp.Items[0].Reserved != 0 {
		t.Fatalf("reserved after completion = %d, want 0", resp.Items[0].Reserved)
	}
}

func TestCancelBooking(t *testing.T) {
	svc, ctx := newTestService(t)

	booking, err := svc.CancelBooking(ctx, "bok-cafe-weekly")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if booking.Status != domain.BookingCanceled {
		t.Fatalf("status = %q, want canceled", booking.Status)
	}

	// Canceled bookings release their reservation.
	resp, _ := svc.Availability(ctx, domain.AvailabilityRequest{ProductIDs: []string{"prd-juice-1l"}})
	if resp.Items[0].Available != 70 {
		t.Fatalf("available = %d, want 70", resp.Items[0].Available)
	}

	if _, err := svc.CancelBooking(ctx, "bok-cafe-weekly"); !errors.Is(err, store.ErrInvalidInvoice) {
		t.Fatalf("second cancel err = %v, want ErrInvalidInvoice", err)
	}
}

func TestRecordPurchaseReceivesStockAndDebt(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	purchase, err := svc.RecordPurchase(ctx, "sup-delta-foods", domain.PurchaseRequest{
		Items: []domain.PurchaseItem{
			{ProductID: "prd-widget", UnitCostCents: 5500, Quantity: 30},
		},
		PaidCents: 100000,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if purchase.TotalCents != 165000 || purchase.DueCents != 65000 {
		t.Fatalf("purchase totals: total=%d due=%d", purchase.TotalCents, purchase.DueCents)
	}

	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 40 {
		t.Fatalf("stock = %d, want 40", product.Stock)
	}
	if product.CostCents != 5500 {
		t.Fatalf("cost = %d, want 5500 (follows purchase price)", product.CostCents)
	}

	supplier, _ := svc.GetSupplier(ctx, "sup-delta-foods")
	if supplier.DebtCents != 65000 {
		t.Fatalf("supplier debt = %d, want 65000", supplier.DebtCents)
	}
	if len(supplier.Transactions) != 1 || supplier.Transactions[0].Type != domain.SupplierPurchase {
		t.Fatalf("supplier ledger = %+v", supplier.Transactions)
	}
}

func TestSupplierPayment(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	if _, err := svc.RecordPurchase(ctx, "sup-delta-foods", domain.PurchaseRequest{
		Items: []domain.PurchaseItem{{ProductID: "prd-widget", UnitCostCents: 5000, Quantity: 10}},
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	supplier, err := svc.RecordSupplierPayment(ctx, "sup-delta-foods", domain.PaymentRequest{AmountCents: 20000})
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if supplier.DebtCents != 30000 {
		t.Fatalf("debt = %d, want 30000", supplier.DebtCents)
	}
}

func TestDeleteCustomerWithDebtRefused(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	if _, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0)); err != nil {
		t.Fatalf("credit sale: %v", err)
	}
	if err := svc.DeleteCustomer(ctx, "cus-corner-cafe"); !errors.Is(err, store.ErrInvalidInvoice) {
		t.Fatalf("err = %v, want refusal while debt > 0", err)
	}
}

func TestReconcileStock(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	if err := svc.ReconcileStock(ctx, []domain.StockCount{{ProductID: "prd-widget", Counted: 7}}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	product, _ := svc.GetProduct(ctx, "prd-widget")
	if product.Stock != 7 {
		t.Fatalf("stock = %d, want 7", product.Stock)
	}

	err := svc.ReconcileStock(ctx, []domain.StockCount{{ProductID: "prd-missing", Counted: 1}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAuditTrailWritten(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	invoice, err := svc.CompleteSale(ctx, referenceSale("cus-corner-cafe", domain.PayCredit, 0))
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if err := svc.ReverseInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	logs, err := svc.AuditLogs(ctx, time.Time{}, time.Time{}, 50)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	var sawCreate, sawDelete bool
	for _, entry := range logs {
		if entry.EntityType == "invoice" && entry.EntityID == invoice.ID {
			switch entry.Action {
			case "create":
				sawCreate = true
			case "delete":
				sawDelete = true
			}
		}
		if entry.Actor != "admin" {
			t.Fatalf("audit actor = %q, want admin", entry.Actor)
		}
	}
	if !sawCreate || !sawDelete {
		t.Fatalf("audit trail incomplete: create=%v delete=%v", sawCreate, sawDelete)
	}
}

func TestNormalizeLinesMergesDuplicates(t *testing.T) {
	svc, ctx := newTestService(t)
	addWidget(t, svc, ctx)

	req := domain.CompleteSaleRequest{
		Items: []domain.CartLine{
			{ProductID: "prd-widget", Quantity: 6},
			{ProductID: "prd-widget", Quantity: 5},
		},
		PaymentMethod: domain.PayCash,
		TenderedCents: 10000000,
	}
	// 6 + 5 = 11 exceeds stock 10; the merged quantity must be checked.
	if _, err := svc.CompleteSale(ctx, req); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock for merged lines", err)
	}
}
