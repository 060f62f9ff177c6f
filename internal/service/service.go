package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"ysksales/backend/internal/availability"
	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/pricing"
	"ysksales/backend/internal/store"
	"ysksales/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the only code path allowed to mutate the three ledger
// collections (products, invoices, customer/supplier accounts). Every
// multi-entity operation computes its full effect into a store commit before
// anything is persisted, so a rejected commit leaves no partial state.
type Service struct {
	repo     store.Repository
	resolver *availability.Engine
}

func New(repo store.Repository, resolver *availability.Engine) *Service {
	if resolver == nil {
		resolver = availability.NewEngine(nil, 0)
	}

	return &Service{
		repo:     repo,
		resolver: resolver,
	}
}

// --- pricing ---

// PriceCart is the preview path: it prices a cart without touching any
// collection. Coupon problems are surfaced as errors so the caller can drop
// the coupon explicitly; pricing never silently ignores one.
func (s *Service) PriceCart(ctx context.Context, req domain.PriceCartRequest) (domain.PriceCartResponse, error) {
	lines, err := s.cartLines(ctx, req.Items)
	if err != nil {
		return domain.PriceCartResponse{}, err
	}

	discount, couponApplied, err := s.resolveDiscount(ctx, req.CouponCode, req.Discount)
	if err != nil {
		return domain.PriceCartResponse{}, err
	}

	tax := domain.AmountSpec{}
	if req.Tax != nil {
		tax = *req.Tax
	}

	quote := pricing.Compute(lines, discount, tax, req.TenderedCents)
	return domain.PriceCartResponse{
		SubtotalCents: quote.SubtotalCents,
		Discount:      discount,
		DiscountCents: quote.DiscountCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		ChangeCents:   quote.ChangeCents,
		CouponApplied: couponApplied,
	}, nil
}

// --- availability ---

func (s *Service) Availability(ctx context.Context, req domain.AvailabilityRequest) (domain.AvailabilityResponse, error) {
	ids := req.ProductIDs
	if len(ids) == 0 {
		all, err := s.repo.ListProducts(ctx)
		if err != nil {
			return domain.AvailabilityResponse{}, err
		}
		ids = make([]string, 0, len(all))
		for _, p := range all {
			ids = append(ids, p.ID)
		}
		req.ProductIDs = ids
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.AvailabilityResponse{}, err
	}
	reserved, err := s.repo.ReservedQuantities(ctx, ids, req.ExcludeBookingID)
	if err != nil {
		return domain.AvailabilityResponse{}, err
	}

	return s.resolver.Resolve(ctx, req, products, reserved), nil
}

// --- sale completion ---

func (s *Service) CompleteSale(ctx context.Context, req domain.CompleteSaleRequest) (*domain.Invoice, error) {
	items := normalizeLines(req.Items)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty cart", store.ErrInvalidInvoice)
	}

	switch req.PaymentMethod {
	case domain.PayCash, domain.PayCredit, domain.PayPartial:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInvoice, req.PaymentMethod)
	}

	var booking *domain.Booking
	if req.BookingID != "" {
		b, err := s.repo.GetBooking(ctx, req.BookingID)
		if err != nil {
			return nil, fmt.Errorf("booking lookup: %w", err)
		}
		if b.Status != domain.BookingConfirmed {
			return nil, fmt.Errorf("%w: booking %s is %s", store.ErrInvalidInvoice, b.ID, b.Status)
		}
		booking = b
		if req.CustomerID == "" {
			req.CustomerID = b.CustomerID
		}
	}

	if req.PaymentMethod != domain.PayCash && req.CustomerID == "" {
		return nil, fmt.Errorf("%w for %s sale", store.ErrMissingCustomer, req.PaymentMethod)
	}
	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, req.CustomerID); err != nil {
			return nil, fmt.Errorf("customer lookup: %w", err)
		}
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repo.ReservedQuantities(ctx, ids, req.BookingID)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if !availability.Sellable(product, reserved[item.ProductID], item.Quantity) {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
		lines = append(lines, pricing.Line{
			ProductID:      item.ProductID,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
		})
	}

	discount, couponApplied, err := s.resolveDiscount(ctx, req.CouponCode, req.Discount)
	if err != nil {
		return nil, err
	}
	tax := domain.AmountSpec{}
	if req.Tax != nil {
		tax = *req.Tax
	}
	quote := pricing.Compute(lines, discount, tax, req.TenderedCents)

	var paid int64
	switch req.PaymentMethod {
	case domain.PayCash:
		if req.TenderedCents < quote.TotalCents {
			return nil, fmt.Errorf("%w: tendered %d below total %d", store.ErrInsufficientPayment, req.TenderedCents, quote.TotalCents)
		}
		// Cash sales settle in full; the overage is handed back as change.
		paid = quote.TotalCents
	case domain.PayCredit:
		paid = 0
	case domain.PayPartial:
		if req.PaidCents < 0 {
			return nil, fmt.Errorf("%w: negative paid amount", store.ErrInvalidInvoice)
		}
		paid = req.PaidCents
	}
	if booking != nil && req.PaymentMethod != domain.PayCash {
		paid += booking.DepositCents
	}
	if paid > quote.TotalCents {
		paid = quote.TotalCents
	}
	due := quote.TotalCents - paid

	now := time.Now().UTC()
	invoiceItems := make([]domain.InvoiceItem, 0, len(items))
	for _, item := range items {
		product := products[item.ProductID]
		invoiceItems = append(invoiceItems, domain.InvoiceItem{
			ProductID:      item.ProductID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
		})
	}

	actor, _ := ActorFromContext(ctx)
	invoice := domain.Invoice{
		ID:            xid.New("inv"),
		Date:          now,
		Items:         invoiceItems,
		SubtotalCents: quote.SubtotalCents,
		Discount:      discount,
		DiscountCents: quote.DiscountCents,
		Tax:           tax,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		PaymentMethod: req.PaymentMethod,
		PaidCents:     paid,
		DueCents:      due,
		Status:        domain.SettlementStatus(paid, due),
		CustomerID:    req.CustomerID,
		BookingID:     req.BookingID,
		CreatedBy:     actor.Username,
	}
	if couponApplied {
		invoice.CouponCode = strings.ToUpper(strings.TrimSpace(req.CouponCode))
	}

	commit := store.SaleCommit{
		Invoice:           invoice,
		StockDeltas:       make([]store.StockDelta, 0, len(items)),
		CompleteBookingID: req.BookingID,
		CouponCode:        invoice.CouponCode,
	}
	for _, item := range items {
		commit.StockDeltas = append(commit.StockDeltas, store.StockDelta{
			ProductID: item.ProductID,
			Delta:     -item.Quantity,
		})
	}
	if req.CustomerID != "" {
		notes := strings.TrimSpace(req.Notes)
		if notes == "" {
			notes = "Invoice " + invoice.ID
		}
		commit.Customer = &store.CustomerDelta{
			CustomerID:     req.CustomerID,
			DebtDeltaCents: due,
			Append: &domain.LedgerTransaction{
				ID:               xid.New("ltx"),
				Type:             domain.LedgerInvoice,
				Date:             now,
				AmountCents:      quote.TotalCents,
				Notes:            notes,
				RelatedInvoiceID: invoice.ID,
			},
		}
	}

	created, err := s.repo.ApplySale(ctx, commit)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "create", "invoice", created.ID, fmt.Sprintf("%s sale, total %d", req.PaymentMethod, created.TotalCents))
	if req.CustomerID != "" {
		s.logAudit(ctx, "update", "customer", req.CustomerID, fmt.Sprintf("ledger: invoice %s, debt +%d", created.ID, due))
	}
	if req.BookingID != "" {
		s.logAudit(ctx, "update", "booking", req.BookingID, "completed by sale "+created.ID)
	}
	return created, nil
}

// --- return processing ---

func (s *Service) ProcessReturn(ctx context.Context, invoiceID string, req domain.ReturnRequest) (*domain.ReturnResult, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	refund := req.RefundMethod
	if refund == "" {
		refund = domain.RefundCash
	}
	if refund != domain.RefundCash && refund != domain.RefundBalance {
		return nil, fmt.Errorf("%w: unknown refund method %q", store.ErrInvalidInvoice, req.RefundMethod)
	}

	var returnValue int64
	returnedLines := make([]domain.ReturnedLine, 0, len(req.Quantities))
	stockDeltas := make([]store.StockDelta, 0, len(req.Quantities))

	for i := range invoice.Items {
		item := &invoice.Items[i]
		requested := req.Quantities[item.ProductID]
		if requested < 1 {
			continue
		}
		// Over-return requests clamp silently to what is still returnable.
		maxReturnable := item.Quantity - item.ReturnedQuantity
		qty := requested
		if qty > maxReturnable {
			qty = maxReturnable
		}
		if qty < 1 {
			continue
		}

		item.ReturnedQuantity += qty
		returnValue += item.UnitPriceCents * int64(qty)
		returnedLines = append(returnedLines, domain.ReturnedLine{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       qty,
		})
		stockDeltas = append(stockDeltas, store.StockDelta{ProductID: item.ProductID, Delta: qty})
	}

	if returnValue <= 0 {
		return nil, store.ErrNothingToReturn
	}

	invoice.Status = domain.ReturnStatus(invoice.Status, invoice.Items)
	invoice.ReturnedCents += returnValue

	// A cash refund only bypasses the ledger when the original sale was
	// itself cash; a credit or partial original always reduces debt (it is
	// debt forgiveness, not a cash handout).
	balanceCredited := false
	commit := store.ReturnCommit{Invoice: *invoice, StockDeltas: stockDeltas}
	if invoice.CustomerID != "" {
		now := time.Now().UTC()
		var debtDelta int64
		if refund == domain.RefundBalance || invoice.PaymentMethod != domain.PayCash {
			debtDelta = -returnValue
			balanceCredited = true
		}
		notes := strings.TrimSpace(req.Reason)
		if notes == "" {
			notes = "Return against invoice " + invoice.ID
		}
		commit.Customer = &store.CustomerDelta{
			CustomerID:     invoice.CustomerID,
			DebtDeltaCents: debtDelta,
			Append: &domain.LedgerTransaction{
				ID:               xid.New("ltx"),
				Type:             domain.LedgerReturn,
				Date:             now,
				AmountCents:      returnValue,
				Notes:            notes,
				RelatedInvoiceID: invoice.ID,
				ReturnedItems:    returnedLines,
			},
		}
	}

	updated, err := s.repo.ApplyReturn(ctx, commit)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "update", "invoice", invoice.ID, fmt.Sprintf("return of %d, status %s", returnValue, updated.Status))
	if commit.Customer != nil {
		s.logAudit(ctx, "update", "customer", invoice.CustomerID, fmt.Sprintf("ledger: return %d against %s", returnValue, invoice.ID))
	}
	return &domain.ReturnResult{
		Invoice:          updated,
		ReturnValueCents: returnValue,
		ReturnedLines:    returnedLines,
		BalanceCredited:  balanceCredited,
	}, nil
}

// --- invoice reversal ---

// ReverseInvoice is the full undo of a completed sale: originally sold
// quantities go back to stock regardless of returns already processed, the
// customer's debt drops by the invoice due amount, the linked ledger entry is
// removed, and the invoice record itself is deleted. The audit log keeps the
// only trace of the reversed sale.
func (s *Service) ReverseInvoice(ctx context.Context, invoiceID string) error {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	commit := store.ReversalCommit{
		InvoiceID:   invoice.ID,
		StockDeltas: make([]store.StockDelta, 0, len(invoice.Items)),
	}
	for _, item := range invoice.Items {
		commit.StockDeltas = append(commit.StockDeltas, store.StockDelta{
			ProductID: item.ProductID,
			Delta:     item.Quantity,
		})
	}
	if invoice.CustomerID != "" {
		commit.Customer = &store.CustomerDelta{
			CustomerID:      invoice.CustomerID,
			DebtDeltaCents:  -invoice.DueCents,
			RemoveByInvoice: invoice.ID,
		}
	}

	if err := s.repo.ApplyReversal(ctx, commit); err != nil {
		return err
	}

	s.logAudit(ctx, "delete", "invoice", invoice.ID, fmt.Sprintf("reversed %s sale, total %d", invoice.PaymentMethod, invoice.TotalCents))
	if invoice.CustomerID != "" {
		s.logAudit(ctx, "update", "customer", invoice.CustomerID, fmt.Sprintf("ledger: removed invoice %s, debt -%d", invoice.ID, invoice.DueCents))
	}
	return nil
}

// --- invoices ---

func (s *Service) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, from, to, limit)
}

func (s *Service) ListInvoicesByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	return s.repo.ListInvoicesByCustomer(ctx, customerID)
}

func (s *Service) SalesReport(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesReportRow, error) {
	invoices, err := s.repo.ListInvoices(ctx, from, to, 10000)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.SalesReportRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, domain.SalesReportRow{
			InvoiceID:     inv.ID,
			Date:          inv.Date,
			CustomerID:    inv.CustomerID,
			PaymentMethod: string(inv.PaymentMethod),
			Status:        string(inv.Status),
			TotalCents:    inv.TotalCents,
			PaidCents:     inv.PaidCents,
			DueCents:      inv.DueCents,
			ReturnedCents: inv.ReturnedCents,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

// --- products ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "product", created.ID, created.Name)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "product", updated.ID, updated.Name)
	return updated, nil
}

// ReconcileStock sets counted on-hand quantities from a stock take. It uses
// the same repository path as every other stock mutation.
func (s *Service) ReconcileStock(ctx context.Context, counts []domain.StockCount) error {
	if len(counts) == 0 {
		return fmt.Errorf("%w: empty stock count", store.ErrInvalidInvoice)
	}
	if err := s.repo.SetStockLevels(ctx, counts); err != nil {
		return err
	}
	for _, c := range counts {
		s.logAudit(ctx, "update", "product", c.ProductID, fmt.Sprintf("stock take: counted %d", c.Counted))
	}
	return nil
}

// --- customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "customer", created.ID, created.Name)
	return created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	updated, err := s.repo.UpdateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "customer", updated.ID, updated.Name)
	return updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "customer", id, "")
	return nil
}

func (s *Service) RecordCustomerPayment(ctx context.Context, customerID string, req domain.PaymentRequest) (*domain.Customer, error) {
	if req.AmountCents < 1 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInvoice)
	}

	entry := domain.LedgerTransaction{
		ID:          xid.New("ltx"),
		Type:        domain.LedgerPayment,
		Date:        time.Now().UTC(),
		AmountCents: req.AmountCents,
		Notes:       strings.TrimSpace(req.Notes),
	}
	updated, err := s.repo.AppendCustomerTransaction(ctx, customerID, -req.AmountCents, entry)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "payment", "customer", customerID, fmt.Sprintf("received %d, debt now %d", req.AmountCents, updated.DebtCents))
	return updated, nil
}

// --- suppliers ---

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "supplier", created.ID, created.Name)
	return created, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "delete", "supplier", id, "")
	return nil
}

func (s *Service) RecordSupplierPayment(ctx context.Context, supplierID string, req domain.PaymentRequest) (*domain.Supplier, error) {
	if req.AmountCents < 1 {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInvoice)
	}

	entry := domain.SupplierTransaction{
		ID:          xid.New("stx"),
		Type:        domain.SupplierPayment,
		Date:        time.Now().UTC(),
		AmountCents: req.AmountCents,
		Notes:       strings.TrimSpace(req.Notes),
	}
	updated, err := s.repo.AppendSupplierTransaction(ctx, supplierID, -req.AmountCents, entry)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "payment", "supplier", supplierID, fmt.Sprintf("paid %d, debt now %d", req.AmountCents, updated.DebtCents))
	return updated, nil
}

// RecordPurchase books a purchase invoice from a supplier: stock is received,
// product costs follow the purchase price, and the supplier ledger carries
// the due amount.
func (s *Service) RecordPurchase(ctx context.Context, supplierID string, req domain.PurchaseRequest) (*domain.PurchaseInvoice, error) {
	if _, err := s.repo.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: empty purchase", store.ErrInvalidInvoice)
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 || item.UnitCostCents < 0 {
			return nil, fmt.Errorf("%w: bad purchase line for %s", store.ErrInvalidInvoice, item.ProductID)
		}
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var total int64
	stockDeltas := make([]store.StockDelta, 0, len(req.Items))
	costUpdates := make(map[string]int64, len(req.Items))
	purchaseItems := make([]domain.PurchaseItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		total += item.UnitCostCents * int64(item.Quantity)
		stockDeltas = append(stockDeltas, store.StockDelta{ProductID: item.ProductID, Delta: item.Quantity})
		costUpdates[item.ProductID] = item.UnitCostCents
		purchaseItems = append(purchaseItems, domain.PurchaseItem{
			ProductID:     item.ProductID,
			Name:          product.Name,
			UnitCostCents: item.UnitCostCents,
			Quantity:      item.Quantity,
		})
	}

	paid := req.PaidCents
	if paid < 0 {
		paid = 0
	}
	if paid > total {
		paid = total
	}
	due := total - paid

	purchase := domain.PurchaseInvoice{
		ID:         xid.New("pur"),
		SupplierID: supplierID,
		Date:       now,
		Items:      purchaseItems,
		TotalCents: total,
		PaidCents:  paid,
		DueCents:   due,
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = "Purchase " + purchase.ID
	}
	commit := store.PurchaseCommit{
		Purchase:    purchase,
		StockDeltas: stockDeltas,
		CostUpdates: costUpdates,
		Supplier: &store.SupplierDelta{
			SupplierID:     supplierID,
			DebtDeltaCents: due,
			Append: &domain.SupplierTransaction{
				ID:                xid.New("stx"),
				Type:              domain.SupplierPurchase,
				Date:              now,
				AmountCents:       total,
				Notes:             notes,
				RelatedPurchaseID: purchase.ID,
			},
		},
	}

	created, err := s.repo.ApplyPurchase(ctx, commit)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "create", "purchase", created.ID, fmt.Sprintf("supplier %s, total %d", supplierID, total))
	return created, nil
}

func (s *Service) ListPurchaseInvoices(ctx context.Context, supplierID string, limit int) ([]domain.PurchaseInvoice, error) {
	return s.repo.ListPurchaseInvoices(ctx, supplierID, limit)
}

// --- bookings ---

func (s *Service) ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	return s.repo.ListBookings(ctx, status, limit)
}

func (s *Service) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *Service) CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	customer, err := s.repo.GetCustomer(ctx, booking.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	booking.CustomerName = customer.Name
	if booking.DepositCents < 0 {
		return nil, fmt.Errorf("%w: negative deposit", store.ErrInvalidInvoice)
	}

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "booking", created.ID, "for "+created.CustomerName)
	return created, nil
}

func (s *Service) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingConfirmed {
		return nil, fmt.Errorf("%w: booking %s is %s", store.ErrInvalidInvoice, booking.ID, booking.Status)
	}

	booking.Status = domain.BookingCanceled
	updated, err := s.repo.UpdateBooking(ctx, *booking)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "booking", id, "canceled")
	return updated, nil
}

// --- coupons ---

func (s *Service) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

func (s *Service) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	if coupon.Type != domain.AmountFixed && coupon.Type != domain.AmountPercentage {
		return nil, fmt.Errorf("%w: unknown coupon type %q", store.ErrInvalidInvoice, coupon.Type)
	}
	created, err := s.repo.CreateCoupon(ctx, coupon)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "create", "coupon", created.Code, "")
	return created, nil
}

func (s *Service) UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	updated, err := s.repo.UpdateCoupon(ctx, coupon)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "update", "coupon", updated.Code, "")
	return updated, nil
}

// ValidateCoupon returns the coupon when it can be applied right now.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	coupon, err := s.repo.GetCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", store.ErrCouponInvalid, code)
		}
		return nil, err
	}
	if !coupon.IsActive {
		return nil, fmt.Errorf("%w: %s", store.ErrCouponInvalid, code)
	}
	if coupon.ExpiryDate.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: %s", store.ErrCouponExpired, code)
	}
	return coupon, nil
}

// --- audit ---

func (s *Service) AuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// --- helpers ---

// resolveDiscount picks the effective discount spec: a coupon, when present,
// always wins over a manually entered discount.
func (s *Service) resolveDiscount(ctx context.Context, couponCode string, manual *domain.AmountSpec) (domain.AmountSpec, bool, error) {
	if strings.TrimSpace(couponCode) != "" {
		coupon, err := s.ValidateCoupon(ctx, couponCode)
		if err != nil {
			return domain.AmountSpec{}, false, err
		}
		return pricing.FromCoupon(*coupon), true, nil
	}
	if manual != nil {
		return *manual, false, nil
	}
	return domain.AmountSpec{}, false, nil
}

func (s *Service) cartLines(ctx context.Context, items []domain.CartLine) ([]pricing.Line, error) {
	normalized := normalizeLines(items)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: empty cart", store.ErrInvalidInvoice)
	}

	ids := make([]string, 0, len(normalized))
	for _, item := range normalized {
		ids = append(ids, item.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, 0, len(normalized))
	for _, item := range normalized {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		lines = append(lines, pricing.Line{
			ProductID:      item.ProductID,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
		})
	}
	return lines, nil
}

// normalizeLines drops empty lines and merges duplicate product ids so the
// availability check sees the true requested quantity per product.
func normalizeLines(items []domain.CartLine) []domain.CartLine {
	aggregated := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Quantity < 1 {
			continue
		}
		if _, seen := aggregated[id]; !seen {
			order = append(order, id)
		}
		aggregated[id] += item.Quantity
	}

	result := make([]domain.CartLine, 0, len(aggregated))
	for _, id := range order {
		result = append(result, domain.CartLine{ProductID: id, Quantity: aggregated[id]})
	}
	return result
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:         xid.New("adt"),
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		At:         time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[service] WARN: audit log failed for %s %s: %v", action, entityID, err)
	}
}
