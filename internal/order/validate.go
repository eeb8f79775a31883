package order

import (
	"crossarb/internal/model"
	"crossarb/pkg/exception"

	"github.com/yanun0323/errors"
)

// ValidateRequest checks the fields every venue needs.
func ValidateRequest(req model.OrderRequest) error {
	if !req.Side.IsAvailable() {
		return exception.ErrOrderUnsupportedSide
	}
	if !req.Quantity.IsPositive() {
		return errors.Wrapf(exception.ErrOrderInvalidRequest, "quantity must be > 0, got %s", req.Quantity)
	}
	if !req.Price.IsPositive() {
		return errors.Wrapf(exception.ErrOrderInvalidRequest, "price must be > 0, got %s", req.Price)
	}
	return nil
}
