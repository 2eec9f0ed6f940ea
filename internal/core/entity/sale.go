package entity

import (
	"time"

	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// PaymentMethod of a sale transaction.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// SaleTransaction is the header of a committed sale.
type SaleTransaction struct {
	ID            id.ID            `db:"id" json:"id"`
	Number        string           `db:"number" json:"number"`
	BranchID      id.ID            `db:"branch_id" json:"branchId"`
	CashierID     id.ID            `db:"cashier_id" json:"cashierId"`
	CustomerID    *id.ID           `db:"customer_id" json:"customerId,omitempty"`
	PaymentMethod PaymentMethod    `db:"payment_method" json:"paymentMethod"`
	Subtotal      types.MinorUnits `db:"subtotal" json:"subtotal"`
	Discount      types.MinorUnits `db:"discount" json:"discount"`
	Total         types.MinorUnits `db:"total" json:"total"`
	Voided        bool             `db:"voided" json:"voided"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
}

// SaleLine is one product line of a sale.
type SaleLine struct {
	ID          id.ID            `db:"id" json:"id"`
	SaleID      id.ID            `db:"sale_id" json:"saleId"`
	ProductID   id.ID            `db:"product_id" json:"productId"`
	VariationID *id.ID           `db:"variation_id" json:"variationId,omitempty"`
	Quantity    types.Quantity   `db:"quantity" json:"quantity"`
	UnitPrice   types.MinorUnits `db:"unit_price" json:"unitPrice"`
	LineTotal   types.MinorUnits `db:"line_total" json:"lineTotal"`
}

// Triple returns the inventory triple the line draws stock from.
func (l SaleLine) Triple(branchID id.ID) Triple {
	return Triple{ProductID: l.ProductID, VariationID: l.VariationID, BranchID: branchID}
}
