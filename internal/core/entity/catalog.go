package entity

import (
	"time"

	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Product is a sellable catalog item.
type Product struct {
	ID        id.ID            `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	SKU       string           `db:"sku" json:"sku"`
	Price     types.MinorUnits `db:"price" json:"price"`
	Active    bool             `db:"active" json:"active"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// Variation is a concrete variant of a product (size, color). Products
// without variations are tracked with a nil variation id.
type Variation struct {
	ID        id.ID            `db:"id" json:"id"`
	ProductID id.ID            `db:"product_id" json:"productId"`
	Name      string           `db:"name" json:"name"`
	SKU       string           `db:"sku" json:"sku"`
	Price     types.MinorUnits `db:"price" json:"price"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
}

// Branch is a physical store location.
type Branch struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
