package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ysksales/backend/internal/domain"
	"ysksales/backend/internal/store"
	"ysksales/backend/internal/xid"
)

// Store keeps the three ledger collections (products, invoices, accounts)
// plus the supporting ones in process memory. Every Apply* commit runs under
// one write lock and validates before mutating, so a failed commit leaves no
// partial state behind.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	invoicesByID    map[string]domain.Invoice
	customersByID   map[string]domain.Customer
	suppliersByID   map[string]domain.Supplier
	purchasesByID   map[string]domain.PurchaseInvoice
	bookingsByID    map[string]domain.Booking
	couponsByCode   map[string]domain.Coupon
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		invoicesByID:    make(map[string]domain.Invoice),
		customersByID:   make(map[string]domain.Customer),
		suppliersByID:   make(map[string]domain.Supplier),
		purchasesByID:   make(map[string]domain.PurchaseInvoice),
		bookingsByID:    make(map[string]domain.Booking),
		couponsByCode:   make(map[string]domain.Coupon),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial user accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset. Production deployments use
// PostgreSQL (DATABASE_URL) and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prd-sugar-1kg", Name: "Sugar 1kg", Category: "grocery", Unit: "bag", Barcode: "6221001000011", PriceCents: 3200, CostCents: 2500, Stock: 80, Active: true},
		{ID: "prd-rice-5kg", Name: "Rice 5kg", Category: "grocery", Unit: "bag", Barcode: "6221001000028", PriceCents: 21500, CostCents: 17800, Stock: 40, Active: true},
		{ID: "prd-oil-1l", Name: "Sunflower Oil 1L", Category: "grocery", Unit: "bottle", Barcode: "6221001000035", PriceCents: 8900, CostCents: 7100, Stock: 60, Active: true},
		{ID: "prd-tea-250g", Name: "Black Tea 250g", Category: "beverage", Unit: "box", Barcode: "6221001000042", PriceCents: 5400, CostCents: 4000, Stock: 55, Active: true},
		{ID: "prd-soap-bar", Name: "Soap Bar", Category: "household", Unit: "piece", Barcode: "6221001000059", PriceCents: 1600, CostCents: 1050, Stock: 120, Active: true},
		{ID: "prd-detergent-2kg", Name: "Detergent 2kg", Category: "household", Unit: "bag", Barcode: "6221001000066", PriceCents: 11800, CostCents: 9400, Stock: 35, Active: true},
		{ID: "prd-juice-1l", Name: "Mango Juice 1L", Category: "beverage", Unit: "bottle", Barcode: "6221001000073", PriceCents: 4700, CostCents: 3500, Stock: 70, Active: true},
		{ID: "prd-biscuits", Name: "Biscuits Pack", Category: "snack", Unit: "pack", Barcode: "6221001000080", PriceCents: 2300, CostCents: 1600, Stock: 150, Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	customers := map[string]domain.Customer{
		"cus-walkin-regulars": {
			ID:           "cus-walkin-regulars",
			Name:         "Ahmed Samir",
			Phone:        "+201001234567",
			Transactions: []domain.LedgerTransaction{},
			CreatedAt:    now,
		},
		"cus-corner-cafe": {
			ID:           "cus-corner-cafe",
			Name:         "Corner Cafe",
			Phone:        "+201007654321",
			Transactions: []domain.LedgerTransaction{},
			CreatedAt:    now,
		},
	}

	suppliers := map[string]domain.Supplier{
		"sup-delta-foods": {
			ID:           "sup-delta-foods",
			Name:         "Delta Foods",
			Company:      "Delta Foods Trading",
			Phone:        "+20222334455",
			Transactions: []domain.SupplierTransaction{},
			CreatedAt:    now,
		},
	}

	coupons := map[string]domain.Coupon{
		"WELCOME10": {
			Code:       "WELCOME10",
			Type:       domain.AmountPercentage,
			Value:      10,
			IsActive:   true,
			ExpiryDate: now.AddDate(1, 0, 0),
			CreatedAt:  now,
		},
		"EXPIRED5": {
			Code:       "EXPIRED5",
			Type:       domain.AmountFixed,
			Value:      500,
			IsActive:   true,
			ExpiryDate: now.AddDate(0, 0, -7),
			CreatedAt:  now.AddDate(0, -2, 0),
		},
	}

	bookings := map[string]domain.Booking{
		"bok-cafe-weekly": {
			ID:           "bok-cafe-weekly",
			CustomerID:   "cus-corner-cafe",
			CustomerName: "Corner Cafe",
			Items: []domain.BookingItem{
				{ProductID: "prd-juice-1l", ProductName: "Mango Juice 1L", UnitPriceCents: 4700, Quantity: 20},
			},
			BookingDate:  now.AddDate(0, 0, 3),
			Status:       domain.BookingConfirmed,
			DepositCents: 20000,
			CreatedAt:    now,
		},
	}

	return &Store{
		products:        productMap,
		invoicesByID:    make(map[string]domain.Invoice),
		customersByID:   customers,
		suppliersByID:   suppliers,
		purchasesByID:   make(map[string]domain.PurchaseInvoice),
		bookingsByID:    bookings,
		couponsByCode:   coupons,
		usersByUsername: seedUsers(),
	}
}

// --- products ---

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmpString(a.Category, b.Category); c != 0 {
			return c
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := p
	return &clone, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInvoice
	}
	s.products[product.ID] = product
	clone := product
	return &clone, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.PriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	clone := product
	return &clone, nil
}

func (s *Store) SetStockLevels(ctx context.Context, counts []domain.StockCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range counts {
		if c.Counted < 0 {
			return store.ErrInvalidInvoice
		}
		if _, ok := s.products[c.ProductID]; !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, c.ProductID)
		}
	}
	now := time.Now().UTC()
	for _, c := range counts {
		p := s.products[c.ProductID]
		p.Stock = c.Counted
		p.UpdatedAt = now
		s.products[c.ProductID] = p
	}
	return nil
}

// --- invoices ---

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoicesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneInvoice(inv)
	return &clone, nil
}

func (s *Store) ListInvoices(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.Invoice, 0, len(s.invoicesByID))
	for _, inv := range s.invoicesByID {
		if !from.IsZero() && inv.Date.Before(from) {
			continue
		}
		if !to.IsZero() && inv.Date.After(to) {
			continue
		}
		invoices = append(invoices, cloneInvoice(inv))
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int {
		if a.Date.After(b.Date) {
			return -1
		}
		if a.Date.Before(b.Date) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	return invoices, nil
}

func (s *Store) ListInvoicesByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoices := make([]domain.Invoice, 0, 8)
	for _, inv := range s.invoicesByID {
		if inv.CustomerID == customerID {
			invoices = append(invoices, cloneInvoice(inv))
		}
	}
	slices.SortFunc(invoices, func(a, b domain.Invoice) int {
		return cmpString(a.ID, b.ID)
	})
	return invoices, nil
}

// --- ledger commits ---

func (s *Store) ApplySale(ctx context.Context, commit store.SaleCommit) (*domain.Invoice, error) {
	inv := commit.Invoice
	if inv.ID == "" || len(inv.Items) == 0 {
		return nil, store.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoicesByID[inv.ID]; exists {
		return nil, store.ErrInvalidInvoice
	}
	for _, delta := range commit.StockDeltas {
		p, ok := s.products[delta.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, delta.ProductID)
		}
		if p.Stock+delta.Delta < 0 {
			return nil, store.ErrInsufficientStock
		}
	}
	if commit.Customer != nil {
		if _, ok := s.customersByID[commit.Customer.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, commit.Customer.CustomerID)
		}
	}
	if commit.CompleteBookingID != "" {
		booking, ok := s.bookingsByID[commit.CompleteBookingID]
		if !ok {
			return nil, fmt.Errorf("%w: booking %s", store.ErrNotFound, commit.CompleteBookingID)
		}
		if booking.Status != domain.BookingConfirmed {
			return nil, store.ErrInvalidInvoice
		}
	}

	now := time.Now().UTC()
	s.invoicesByID[inv.ID] = cloneInvoice(inv)
	s.applyStockDeltas(commit.StockDeltas, now)
	if commit.Customer != nil {
		s.applyCustomerDelta(*commit.Customer)
	}
	if commit.CompleteBookingID != "" {
		booking := s.bookingsByID[commit.CompleteBookingID]
		booking.Status = domain.BookingCompleted
		s.bookingsByID[commit.CompleteBookingID] = booking
	}
	if commit.CouponCode != "" {
		if coupon, ok := s.couponsByCode[commit.CouponCode]; ok {
			coupon.UsageCount++
			s.couponsByCode[commit.CouponCode] = coupon
		}
	}

	created := cloneInvoice(inv)
	return &created, nil
}

func (s *Store) ApplyReturn(ctx context.Context, commit store.ReturnCommit) (*domain.Invoice, error) {
	inv := commit.Invoice
	if inv.ID == "" {
		return nil, store.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[inv.ID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, delta := range commit.StockDeltas {
		if _, ok := s.products[delta.ProductID]; !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, delta.ProductID)
		}
	}
	if commit.Customer != nil {
		if _, ok := s.customersByID[commit.Customer.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, commit.Customer.CustomerID)
		}
	}

	now := time.Now().UTC()
	s.invoicesByID[inv.ID] = cloneInvoice(inv)
	s.applyStockDeltas(commit.StockDeltas, now)
	if commit.Customer != nil {
		s.applyCustomerDelta(*commit.Customer)
	}

	updated := cloneInvoice(inv)
	return &updated, nil
}

func (s *Store) ApplyReversal(ctx context.Context, commit store.ReversalCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[commit.InvoiceID]; !ok {
		return store.ErrNotFound
	}
	for _, delta := range commit.StockDeltas {
		if _, ok := s.products[delta.ProductID]; !ok {
			return fmt.Errorf("%w: product %s", store.ErrNotFound, delta.ProductID)
		}
	}
	if commit.Customer != nil {
		if _, ok := s.customersByID[commit.Customer.CustomerID]; !ok {
			return fmt.Errorf("%w: customer %s", store.ErrNotFound, commit.Customer.CustomerID)
		}
	}

	now := time.Now().UTC()
	delete(s.invoicesByID, commit.InvoiceID)
	s.applyStockDeltas(commit.StockDeltas, now)
	if commit.Customer != nil {
		s.applyCustomerDelta(*commit.Customer)
	}
	return nil
}

func (s *Store) ApplyPurchase(ctx context.Context, commit store.PurchaseCommit) (*domain.PurchaseInvoice, error) {
	purchase := commit.Purchase
	if purchase.ID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if commit.Supplier != nil {
		if _, ok := s.suppliersByID[commit.Supplier.SupplierID]; !ok {
			return nil, fmt.Errorf("%w: supplier %s", store.ErrNotFound, commit.Supplier.SupplierID)
		}
	}
	for _, delta := range commit.StockDeltas {
		if _, ok := s.products[delta.ProductID]; !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, delta.ProductID)
		}
	}

	now := time.Now().UTC()
	s.purchasesByID[purchase.ID] = clonePurchase(purchase)
	s.applyStockDeltas(commit.StockDeltas, now)
	for productID, costCents := range commit.CostUpdates {
		if p, ok := s.products[productID]; ok {
			p.CostCents = costCents
			p.UpdatedAt = now
			s.products[productID] = p
		}
	}
	if commit.Supplier != nil {
		supplier := s.suppliersByID[commit.Supplier.SupplierID]
		supplier.DebtCents += commit.Supplier.DebtDeltaCents
		if commit.Supplier.Append != nil {
			supplier.Transactions = append(supplier.Transactions, *commit.Supplier.Append)
		}
		s.suppliersByID[commit.Supplier.SupplierID] = supplier
	}

	created := clonePurchase(purchase)
	return &created, nil
}

// applyStockDeltas assumes existence was validated by the caller while
// holding the write lock.
func (s *Store) applyStockDeltas(deltas []store.StockDelta, now time.Time) {
	for _, delta := range deltas {
		p := s.products[delta.ProductID]
		p.Stock += delta.Delta
		p.UpdatedAt = now
		s.products[delta.ProductID] = p
	}
}

func (s *Store) applyCustomerDelta(delta store.CustomerDelta) {
	customer := s.customersByID[delta.CustomerID]
	customer.DebtCents += delta.DebtDeltaCents
	if delta.RemoveByInvoice != "" {
		kept := customer.Transactions[:0]
		for _, tx := range customer.Transactions {
			if tx.Type == domain.LedgerInvoice && tx.RelatedInvoiceID == delta.RemoveByInvoice {
				continue
			}
			kept = append(kept, tx)
		}
		customer.Transactions = kept
	}
	if delta.Append != nil {
		customer.Transactions = append(customer.Transactions, *delta.Append)
	}
	s.customersByID[delta.CustomerID] = customer
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, cloneCustomer(c))
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneCustomer(c)
	return &clone, nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrInvalidInvoice
	}
	s.customersByID[customer.ID] = customer
	clone := cloneCustomer(customer)
	return &clone, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customersByID[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Ledger fields are owned by the commit paths; plain updates cannot touch
	// debt or history.
	existing.Name = customer.Name
	existing.Phone = customer.Phone
	existing.Email = customer.Email
	s.customersByID[customer.ID] = existing
	clone := cloneCustomer(existing)
	return &clone, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customersByID[id]
	if !ok {
		return store.ErrNotFound
	}
	if customer.DebtCents > 0 {
		return store.ErrInvalidInvoice
	}
	delete(s.customersByID, id)
	return nil
}

func (s *Store) AppendCustomerTransaction(ctx context.Context, customerID string, debtDeltaCents int64, entry domain.LedgerTransaction) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customersByID[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.DebtCents += debtDeltaCents
	customer.Transactions = append(customer.Transactions, entry)
	s.customersByID[customerID] = customer
	clone := cloneCustomer(customer)
	return &clone, nil
}

// --- suppliers ---

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, cloneSupplier(sup))
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneSupplier(sup)
	return &clone, nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.suppliersByID[supplier.ID]; exists {
		return nil, store.ErrInvalidInvoice
	}
	s.suppliersByID[supplier.ID] = supplier
	clone := cloneSupplier(supplier)
	return &clone, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier, ok := s.suppliersByID[id]
	if !ok {
		return store.ErrNotFound
	}
	if supplier.DebtCents > 0 {
		return store.ErrInvalidInvoice
	}
	delete(s.suppliersByID, id)
	return nil
}

func (s *Store) AppendSupplierTransaction(ctx context.Context, supplierID string, debtDeltaCents int64, entry domain.SupplierTransaction) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier, ok := s.suppliersByID[supplierID]
	if !ok {
		return nil, store.ErrNotFound
	}
	supplier.DebtCents += debtDeltaCents
	supplier.Transactions = append(supplier.Transactions, entry)
	s.suppliersByID[supplierID] = supplier
	clone := cloneSupplier(supplier)
	return &clone, nil
}

func (s *Store) ListPurchaseInvoices(ctx context.Context, supplierID string, limit int) ([]domain.PurchaseInvoice, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.PurchaseInvoice, 0, 8)
	for _, p := range s.purchasesByID {
		if supplierID != "" && p.SupplierID != supplierID {
			continue
		}
		purchases = append(purchases, clonePurchase(p))
	}
	slices.SortFunc(purchases, func(a, b domain.PurchaseInvoice) int {
		if a.Date.After(b.Date) {
			return -1
		}
		if a.Date.Before(b.Date) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	if len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

// --- bookings ---

func (s *Store) ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]domain.Booking, 0, len(s.bookingsByID))
	for _, b := range s.bookingsByID {
		if status != "" && b.Status != status {
			continue
		}
		bookings = append(bookings, cloneBooking(b))
	}
	slices.SortFunc(bookings, func(a, b domain.Booking) int {
		if a.BookingDate.Before(b.BookingDate) {
			return -1
		}
		if a.BookingDate.After(b.BookingDate) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	if len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookingsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneBooking(b)
	return &clone, nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookingsByID[booking.ID]; exists {
		return nil, store.ErrInvalidInvoice
	}
	s.bookingsByID[booking.ID] = cloneBooking(booking)
	clone := cloneBooking(booking)
	return &clone, nil
}

func (s *Store) UpdateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookingsByID[booking.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	booking.CreatedAt = existing.CreatedAt
	s.bookingsByID[booking.ID] = cloneBooking(booking)
	clone := cloneBooking(booking)
	return &clone, nil
}

func (s *Store) ReservedQuantities(ctx context.Context, productIDs []string, excludeBookingID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	reserved := make(map[string]int, len(productIDs))
	for _, booking := range s.bookingsByID {
		if booking.Status != domain.BookingConfirmed {
			continue
		}
		if excludeBookingID != "" && booking.ID == excludeBookingID {
			continue
		}
		for _, item := range booking.Items {
			if len(wanted) > 0 {
				if _, ok := wanted[item.ProductID]; !ok {
					continue
				}
			}
			reserved[item.ProductID] += item.Quantity
		}
	}
	for _, id := range productIDs {
		if _, ok := reserved[id]; !ok {
			reserved[id] = 0
		}
	}
	return reserved, nil
}

// --- coupons ---

func (s *Store) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coupons := make([]domain.Coupon, 0, len(s.couponsByCode))
	for _, c := range s.couponsByCode {
		coupons = append(coupons, c)
	}
	slices.SortFunc(coupons, func(a, b domain.Coupon) int {
		return cmpString(a.Code, b.Code)
	})
	return coupons, nil
}

func (s *Store) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.couponsByCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := c
	return &clone, nil
}

func (s *Store) CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.Code == "" || coupon.Value <= 0 {
		return nil, store.ErrInvalidInvoice
	}
	coupon.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.couponsByCode[coupon.Code]; exists {
		return nil, store.ErrInvalidInvoice
	}
	s.couponsByCode[coupon.Code] = coupon
	clone := coupon
	return &clone, nil
}

func (s *Store) UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error) {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.couponsByCode[coupon.Code]
	if !ok {
		return nil, store.ErrNotFound
	}
	coupon.CreatedAt = existing.CreatedAt
	coupon.UsageCount = existing.UsageCount
	s.couponsByCode[coupon.Code] = coupon
	clone := coupon
	return &clone, nil
}

// --- audit ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("adt")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if !from.IsZero() && entry.At.Before(from) {
			continue
		}
		if !to.IsZero() && entry.At.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInvoice
	}
	user.Username = username

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInvoice
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// --- clone helpers ---

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	clone := inv
	clone.Items = slices.Clone(inv.Items)
	return clone
}

func cloneCustomer(c domain.Customer) domain.Customer {
	clone := c
	clone.Transactions = make([]domain.LedgerTransaction, len(c.Transactions))
	for i, tx := range c.Transactions {
		txClone := tx
		txClone.ReturnedItems = slices.Clone(tx.ReturnedItems)
		clone.Transactions[i] = txClone
	}
	return clone
}

func cloneSupplier(sup domain.Supplier) domain.Supplier {
	clone := sup
	clone.Transactions = slices.Clone(sup.Transactions)
	return clone
}

func clonePurchase(p domain.PurchaseInvoice) domain.PurchaseInvoice {
	clone := p
	clone.Items = slices.Clone(p.Items)
	return clone
}

func cloneBooking(b domain.Booking) domain.Booking {
	clone := b
	clone.Items = slices.Clone(b.Items)
	return clone
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
