package dto

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/sales"
)

// SaleLineRequest is one line of a sale submission.
type SaleLineRequest struct {
	ProductID   string  `json:"productId" binding:"required"`
	VariationID *string `json:"variationId"`
	Quantity    int64   `json:"quantity" binding:"required,min=1"`
	UnitPrice   string  `json:"unitPrice" binding:"required"`
}

// CreateSaleRequest for committing a sale.
type CreateSaleRequest struct {
	BranchID      string            `json:"branchId" binding:"required"`
	CustomerID    *string           `json:"customerId"`
	PaymentMethod string            `json:"paymentMethod" binding:"required"`
	Lines         []SaleLineRequest `json:"lines" binding:"required,min=1"`
	Discount      string            `json:"discount"`
}

// ToRequest converts the DTO into a processor request.
func (r CreateSaleRequest) ToRequest() (sales.SellRequest, error) {
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return sales.SellRequest{}, apperror.NewValidation("invalid branchId format")
	}

	req := sales.SellRequest{
		BranchID:      branchID,
		PaymentMethod: entity.PaymentMethod(r.PaymentMethod),
	}

	if r.CustomerID != nil && *r.CustomerID != "" {
		customerID, err := id.Parse(*r.CustomerID)
		if err != nil {
			return sales.SellRequest{}, apperror.NewValidation("invalid customerId format")
		}
		req.CustomerID = &customerID
	}

	if r.Discount != "" {
		discount, err := types.ParseMoney(r.Discount)
		if err != nil {
			return sales.SellRequest{}, apperror.NewValidation("invalid discount amount").
				WithDetail("discount", r.Discount)
		}
		req.Discount = discount
	}

	req.Lines = make([]sales.SellLine, 0, len(r.Lines))
	for i, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return sales.SellRequest{}, apperror.NewValidation("invalid productId format").
				WithDetail("line", i)
		}
		price, err := types.ParseMoney(line.UnitPrice)
		if err != nil {
			return sales.SellRequest{}, apperror.NewValidation("invalid unitPrice amount").
				WithDetail("line", i)
		}
		sl := sales.SellLine{
			ProductID: productID,
			Quantity:  types.Quantity(line.Quantity),
			UnitPrice: price,
		}
		if line.VariationID != nil && *line.VariationID != "" {
			variationID, err := id.Parse(*line.VariationID)
			if err != nil {
				return sales.SellRequest{}, apperror.NewValidation("invalid variationId format").
					WithDetail("line", i)
			}
			sl.VariationID = &variationID
		}
		req.Lines = append(req.Lines, sl)
	}

	return req, nil
}

// SaleLineResponse is one persisted sale line.
type SaleLineResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	VariationID *string `json:"variationId,omitempty"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   string  `json:"unitPrice"`
	LineTotal   string  `json:"lineTotal"`
}

// SaleResponse contains a committed sale transaction.
type SaleResponse struct {
	ID            string             `json:"id"`
	Number        string             `json:"number"`
	BranchID      string             `json:"branchId"`
	CashierID     string             `json:"cashierId"`
	CustomerID    *string            `json:"customerId,omitempty"`
	PaymentMethod string             `json:"paymentMethod"`
	Subtotal      string             `json:"subtotal"`
	Discount      string             `json:"discount"`
	Total         string             `json:"total"`
	Voided        bool               `json:"voided"`
	Lines         []SaleLineResponse `json:"lines,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// FromSale creates SaleResponse from the entity.
func FromSale(s *entity.SaleTransaction, lines []entity.SaleLine) SaleResponse {
	resp := SaleResponse{
		ID:            s.ID.String(),
		Number:        s.Number,
		BranchID:      s.BranchID.String(),
		CashierID:     s.CashierID.String(),
		PaymentMethod: string(s.PaymentMethod),
		Subtotal:      types.FormatMoney(s.Subtotal),
		Discount:      types.FormatMoney(s.Discount),
		Total:         types.FormatMoney(s.Total),
		Voided:        s.Voided,
		CreatedAt:     s.CreatedAt,
	}
	if s.CustomerID != nil {
		customerID := s.CustomerID.String()
		resp.CustomerID = &customerID
	}
	for _, line := range lines {
		lr := SaleLineResponse{
			ID:        line.ID.String(),
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.Int64(),
			UnitPrice: types.FormatMoney(line.UnitPrice),
			LineTotal: types.FormatMoney(line.LineTotal),
		}
		if line.VariationID != nil {
			variationID := line.VariationID.String()
			lr.VariationID = &variationID
		}
		resp.Lines = append(resp.Lines, lr)
	}
	return resp
}
