package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/order"
	"github.com/petrealm/pet-realm/internal/token"
	"github.com/petrealm/pet-realm/internal/util"
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func pageParams(c echo.Context) (page, offset, limit int) {
	page = parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit = util.Calculate(page, size)
	return page, offset, limit
}

func pagedResponse(items interface{}, page, limit int, total int64) map[string]interface{} {
	return map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	}
}

func actorFromContext(c echo.Context) (order.Actor, error) {
	id, err := token.UserID(c)
	if err != nil {
		return order.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return order.Actor{ID: id, Role: token.Role(c)}, nil
}

// orderError maps the order core's sentinel errors onto the HTTP taxonomy.
// Anything unrecognized is a generic 500 so store internals never leak.
func orderError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, order.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNoReceiptUploaded):
		return echo.NewHTTPError(http.StatusBadRequest, "no receipt uploaded")
	case errors.Is(err, order.ErrAlreadyVerified):
		return echo.NewHTTPError(http.StatusBadRequest, "payment already verified")
	case errors.Is(err, order.ErrInvalidReceipt):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrStorageUnavailable):
		return echo.NewHTTPError(http.StatusInternalServerError, "storage not configured")
	case errors.Is(err, order.ErrOutOfStock),
		errors.Is(err, order.ErrProductUnavailable),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// orderResponse is the wire shape of an order: the stored receipt key is
// never exposed, only a resolved (signed or legacy) URL.
type orderResponse struct {
	models.Order
	ReceiptURL *string `json:"receipt_url"`
}

func newOrderResponse(o *models.Order, receiptURL *string) orderResponse {
	return orderResponse{Order: *o, ReceiptURL: receiptURL}
}
