package domain

import "time"

// Money values are int64 cents. Percentage rates are float64 percent values
// (14 means 14%), rounded to whole cents with math.Round at the point of
// calculation.

type AmountType string

const (
	AmountFixed      AmountType = "fixed"
	AmountPercentage AmountType = "percentage"
)

// AmountSpec is a discount or tax specification. For fixed amounts Value is
// cents; for percentages Value is a percent rate.
type AmountSpec struct {
	Type  AmountType `json:"type"`
	Value float64    `json:"value"`
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Unit       string    `json:"unit"`
	Barcode    string    `json:"barcode,omitempty"`
	PriceCents int64     `json:"price_cents"`
	CostCents  int64     `json:"cost_cents"`
	Stock      int       `json:"stock"`
	SupplierID string    `json:"supplier_id,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PaymentMethod string

const (
	PayCash    PaymentMethod = "cash"
	PayCredit  PaymentMethod = "credit"
	PayPartial PaymentMethod = "partial"
)

type RefundMethod string

const (
	RefundCash    RefundMethod = "cash"
	RefundBalance RefundMethod = "balance"
)

type InvoiceItem struct {
	ProductID        string `json:"product_id"`
	Name             string `json:"name"`
	UnitPriceCents   int64  `json:"unit_price_cents"`
	Quantity         int    `json:"quantity"`
	ReturnedQuantity int    `json:"returned_quantity"`
}

type Invoice struct {
	ID            string        `json:"id"`
	Date          time.Time     `json:"date"`
	Items         []InvoiceItem `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	Discount      AmountSpec    `json:"discount"`
	DiscountCents int64         `json:"discount_cents"`
	Tax           AmountSpec    `json:"tax"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaidCents     int64         `json:"paid_cents"`
	DueCents      int64         `json:"due_cents"`
	Status        InvoiceStatus `json:"status"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	BookingID     string        `json:"booking_id,omitempty"`
	ReturnedCents int64         `json:"returned_cents"`
	CreatedBy     string        `json:"created_by,omitempty"`
}

type LedgerEntryType string

const (
	LedgerInvoice LedgerEntryType = "invoice"
	LedgerPayment LedgerEntryType = "payment"
	LedgerReturn  LedgerEntryType = "return"
)

// ReturnedLine records one returned invoice line on a return ledger entry,
// kept for audit alongside the running balance.
type ReturnedLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// LedgerTransaction links to its invoice through RelatedInvoiceID, never by
// parsing note text.
type LedgerTransaction struct {
	ID               string          `json:"id"`
	Type             LedgerEntryType `json:"type"`
	Date             time.Time       `json:"date"`
	AmountCents      int64           `json:"amount_cents"`
	Notes            string          `json:"notes,omitempty"`
	RelatedInvoiceID string          `json:"related_invoice_id,omitempty"`
	ReturnedItems    []ReturnedLine  `json:"returned_items,omitempty"`
}

// Customer carries a cached running balance next to its append-only
// transaction history. DebtCents is positive when the customer owes the
// business.
type Customer struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Phone        string              `json:"phone,omitempty"`
	Email        string              `json:"email,omitempty"`
	DebtCents    int64               `json:"debt_cents"`
	Transactions []LedgerTransaction `json:"transactions"`
	CreatedAt    time.Time           `json:"created_at"`
}

type SupplierEntryType string

const (
	SupplierPurchase SupplierEntryType = "purchase"
	SupplierPayment  SupplierEntryType = "payment"
)

type SupplierTransaction struct {
	ID                string            `json:"id"`
	Type              SupplierEntryType `json:"type"`
	Date              time.Time         `json:"date"`
	AmountCents       int64             `json:"amount_cents"`
	Notes             string            `json:"notes,omitempty"`
	RelatedPurchaseID string            `json:"related_purchase_id,omitempty"`
}

type Supplier struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Phone        string                `json:"phone,omitempty"`
	Company      string                `json:"company,omitempty"`
	DebtCents    int64                 `json:"debt_cents"`
	Transactions []SupplierTransaction `json:"transactions"`
	CreatedAt    time.Time             `json:"created_at"`
}

type PurchaseItem struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	Quantity      int    `json:"quantity"`
}

type PurchaseInvoice struct {
	ID         string         `json:"id"`
	SupplierID string         `json:"supplier_id"`
	Date       time.Time      `json:"date"`
	Items      []PurchaseItem `json:"items"`
	TotalCents int64          `json:"total_cents"`
	PaidCents  int64          `json:"paid_cents"`
	DueCents   int64          `json:"due_cents"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCanceled  BookingStatus = "canceled"
)

type BookingItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Booking reserves future stock without decrementing it. Only confirmed
// bookings count toward reservation totals.
type Booking struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	Items        []BookingItem `json:"items"`
	BookingDate  time.Time     `json:"booking_date"`
	Status       BookingStatus `json:"status"`
	DepositCents int64         `json:"deposit_cents"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

type Coupon struct {
	Code       string     `json:"code"`
	Type       AmountType `json:"type"`
	Value      float64    `json:"value"`
	IsActive   bool       `json:"is_active"`
	ExpiryDate time.Time  `json:"expiry_date"`
	UsageCount int        `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	At         time.Time `json:"at"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// --- request/response shapes ---

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PriceCartRequest struct {
	Items         []CartLine  `json:"items"`
	Discount      *AmountSpec `json:"discount,omitempty"`
	CouponCode    string      `json:"coupon_code,omitempty"`
	Tax           *AmountSpec `json:"tax,omitempty"`
	TenderedCents int64       `json:"tendered_cents,omitempty"`
}

type PriceCartResponse struct {
	SubtotalCents int64      `json:"subtotal_cents"`
	Discount      AmountSpec `json:"discount"`
	DiscountCents int64      `json:"discount_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	ChangeCents   int64      `json:"change_cents"`
	CouponApplied bool       `json:"coupon_applied"`
}

type CompleteSaleRequest struct {
	Items         []CartLine    `json:"items"`
	Discount      *AmountSpec   `json:"discount,omitempty"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	Tax           *AmountSpec   `json:"tax,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TenderedCents int64         `json:"tendered_cents,omitempty"`
	PaidCents     int64         `json:"paid_cents,omitempty"`
	CustomerID    string        `json:"customer_id,omitempty"`
	BookingID     string        `json:"booking_id,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

type ReturnRequest struct {
	Quantities   map[string]int `json:"quantities"`
	RefundMethod RefundMethod   `json:"refund_method,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	ManagerPIN   string         `json:"manager_pin,omitempty"`
}

type ReversalRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type ReturnResult struct {
	Invoice          *Invoice       `json:"invoice"`
	ReturnValueCents int64          `json:"return_value_cents"`
	ReturnedLines    []ReturnedLine `json:"returned_lines"`
	BalanceCredited  bool           `json:"balance_credited"`
}

type AvailabilityRequest struct {
	ProductIDs       []string `json:"product_ids"`
	ExcludeBookingID string   `json:"exclude_booking_id,omitempty"`
}

type ProductAvailability struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type AvailabilityResponse struct {
	Items []ProductAvailability `json:"items"`
}

type PaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Notes       string `json:"notes,omitempty"`
}

type PurchaseRequest struct {
	Items     []PurchaseItem `json:"items"`
	PaidCents int64          `json:"paid_cents"`
	Notes     string         `json:"notes,omitempty"`
}

type StockCount struct {
	ProductID string `json:"product_id"`
	Counted   int    `json:"counted"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SalesReportRow struct {
	InvoiceID     string    `json:"invoice_id"`
	Date          time.Time `json:"date"`
	CustomerID    string    `json:"customer_id,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	TotalCents    int64     `json:"total_cents"`
	PaidCents     int64     `json:"paid_cents"`
	DueCents      int64     `json:"due_cents"`
	ReturnedCents int64     `json:"returned_cents"`
}
