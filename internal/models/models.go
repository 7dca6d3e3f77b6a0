package models

import "strings"

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Product is the closed set of product families a line item can belong to.
// Raw product strings are resolved to a Product once during ingestion; anything
// unrecognized maps to ProductOther.
type Product int

const (
	ProductOther Product = iota
	ProductDoor
	ProductBoard
	ProductHDMR
	ProductMDF
	ProductPly
	ProductPVCDoor
	ProductWPCBoard
	ProductLaminate
	ProductLiner
)

var productNames = map[Product]string{
	ProductOther:    "other",
	ProductDoor:     "door",
	ProductBoard:    "board",
	ProductHDMR:     "hdmr",
	ProductMDF:      "mdf",
	ProductPly:      "ply",
	ProductPVCDoor:  "pvc door",
	ProductWPCBoard: "wpc board",
	ProductLaminate: "laminate",
	ProductLiner:    "liner",
}

// ParseProduct resolves a raw product string to its family. Matching is
// case-insensitive and tolerant of surrounding whitespace; unknown strings
// resolve to ProductOther rather than erroring.
func ParseProduct(raw string) Product {
	s := strings.ToLower(strings.TrimSpace(raw))
	for p, name := range productNames {
		if s == name {
			return p
		}
	}
	// Common spelling variants seen in uploaded sheets.
	switch s {
	case "pvc-door", "pvcdoor":
		return ProductPVCDoor
	case "wpc-board", "wpcboard", "wpc":
		return ProductWPCBoard
	}
	return ProductOther
}

func (p Product) String() string {
	if s, ok := productNames[p]; ok {
		return s
	}
	return "other"
}

// IsLaminateLike reports whether the product is in the laminate/liner class,
// which drives category normalization and the brand-total rule.
func (p Product) IsLaminateLike() bool {
	return p == ProductLaminate || p == ProductLiner
}

// LineItem is one row of the uploaded price list. Raw* fields hold the cell
// text as uploaded; the derived fields are filled during ingestion and are
// immutable afterwards.
type LineItem struct {
	RawProduct  string
	Size        string
	RawCategory string
	Brand       string
	Quantity    float64

	Product            Product
	NormalizedCategory string
	SQFT               float64
	Weight             float64
}

// Order types recorded in the audit log.
const (
	OrderTypeNew        = "new"
	OrderTypeAdditional = "additional"
)

// SaleOrderRecord is one row of the sale_orders audit table.
type SaleOrderRecord struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DealerName  string `json:"dealer_name"`
	City        string `json:"city"`
	OrderID     string `json:"order_id"`
	ReportName  string `json:"report_name"`
	GeneratedAt string `json:"generated_at"`
	OrderType   string `json:"order_type"`
}

// IssuedOrderID is a manual order-id reservation made outside the normal
// generation flow.
type IssuedOrderID struct {
	ID          int    `json:"id"`
	OrderID     string `json:"order_id"`
	GivenToName string `json:"given_to_name"`
	DealerName  string `json:"dealer_name"`
	City        string `json:"city"`
	GivenByUser string `json:"given_by_user"`
	GivenAt     string `json:"given_at"`
}

// Session is one row of the active_sessions table. At most one session exists
// per username; a new login replaces it.
type Session struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	IssuedAt  string `json:"issued_at"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// User is an account row.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
}
