package store

import (
	"context"
	"errors"
	"time"

	"ysksales/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidInvoice      = errors.New("invalid invoice")
	ErrNothingToReturn     = errors.New("nothing to return")
	ErrMissingCustomer     = errors.New("customer required")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrCouponInvalid       = errors.New("coupon invalid")
	ErrCouponExpired       = errors.New("coupon expired")
)

// StockDelta adjusts one product's on-hand quantity. Positive for returns,
// reversals and receiving; negative for sales.
type StockDelta struct {
	ProductID string
	Delta     int
}

// CustomerDelta carries the ledger side of a commit: a debt adjustment plus
// an optional entry to append and an optional entry to remove (matched by
// RelatedInvoiceID, reversal only).
type CustomerDelta struct {
	CustomerID       string
	DebtDeltaCents   int64
	Append           *domain.LedgerTransaction
	RemoveByInvoice  string
}

// SaleCommit is the unit of work produced by sale completion. The repository
// applies every field or none of them; stock is re-checked inside the commit
// so a concurrent mutation cannot drive it negative.
type SaleCommit struct {
	Invoice           domain.Invoice
	StockDeltas       []StockDelta
	Customer          *CustomerDelta
	CompleteBookingID string
	CouponCode        string
}

// ReturnCommit is the unit of work produced by the return processor. Invoice
// carries the already-recomputed items, status and returned total.
type ReturnCommit struct {
	Invoice     domain.Invoice
	StockDeltas []StockDelta
	Customer    *CustomerDelta
}

// ReversalCommit removes an invoice and undoes its side effects.
type ReversalCommit struct {
	InvoiceID   string
	StockDeltas []StockDelta
	Customer    *CustomerDelta
}

// SupplierDelta mirrors CustomerDelta for the supplier ledger.
type SupplierDelta struct {
	SupplierID     string
	DebtDeltaCents int64
	Append         *domain.SupplierTransaction
}

// PurchaseCommit records a purchase invoice, receives its stock and updates
// per-product costs in one step.
type PurchaseCommit struct {
	Purchase    domain.PurchaseInvoice
	StockDeltas []StockDelta
	CostUpdates map[string]int64
	Supplier    *SupplierDelta
}

// Repository is the persistence collaborator. The three ledger collections
// (products, invoices, accounts) are only ever mutated through the Apply*
// commit methods, which are atomic per call.
type Repository interface {
	// Products.
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetStockLevels(ctx context.Context, counts []domain.StockCount) error

	// Invoices.
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Invoice, error)
	ListInvoicesByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error)

	// Ledger commits.
	ApplySale(ctx context.Context, commit SaleCommit) (*domain.Invoice, error)
	ApplyReturn(ctx context.Context, commit ReturnCommit) (*domain.Invoice, error)
	ApplyReversal(ctx context.Context, commit ReversalCommit) error
	ApplyPurchase(ctx context.Context, commit PurchaseCommit) (*domain.PurchaseInvoice, error)

	// Customers.
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	AppendCustomerTransaction(ctx context.Context, customerID string, debtDeltaCents int64, entry domain.LedgerTransaction) (*domain.Customer, error)

	// Suppliers.
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error
	AppendSupplierTransaction(ctx context.Context, supplierID string, debtDeltaCents int64, entry domain.SupplierTransaction) (*domain.Supplier, error)
	ListPurchaseInvoices(ctx context.Context, supplierID string, limit int) ([]domain.PurchaseInvoice, error)

	// Bookings.
	ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	CreateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, booking domain.Booking) (*domain.Booking, error)
	ReservedQuantities(ctx context.Context, productIDs []string, excludeBookingID string) (map[string]int, error)

	// Coupons.
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	CreateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, coupon domain.Coupon) (*domain.Coupon, error)

	// Audit.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	// Users.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
