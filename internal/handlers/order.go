package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/petrealm/pet-realm/internal/logging"
	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/order"
)

type OrderHandler struct {
	Svc *order.Service
}

func orderID(c echo.Context) (uint, *echo.HTTPError) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return uint(id), nil
}

// Checkout turns the cart into one order per shop.
func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	orders, err := h.Svc.CreateFromCart(ctx, actor.ID, req.Note)
	if err != nil {
		he := orderError(err)
		l.Warn("checkout_error", "status", he.Code, "error", err)
		return he
	}

	l.Info("checkout_success", "orders", len(orders))
	return c.JSON(http.StatusCreated, orders)
}

func (h *OrderHandler) ListMyOrders(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	page, offset, limit := pageParams(c)

	orders, total, err := h.Svc.ListForCustomer(c.Request().Context(), actor.ID, limit, offset)
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, pagedResponse(orders, page, limit, total))
}

// GetOrder is the dual-scope read: owning customer or owning seller.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, he := orderID(c)
	if he != nil {
		return he
	}

	o, err := h.Svc.Get(ctx, id, actor)
	if err != nil {
		he := orderError(err)
		l.Warn("get_order_error", "status", he.Code, "order_id", id, "error", err)
		return he
	}

	return c.JSON(http.StatusOK, newOrderResponse(o, h.Svc.ResolveReceiptURL(ctx, o)))
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, he := orderID(c)
	if he != nil {
		return he
	}

	if err := h.Svc.SoftDelete(c.Request().Context(), id, actor); err != nil {
		return orderError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadReceipt accepts the payment proof as multipart field "receipt".
func (h *OrderHandler) UploadReceipt(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.upload_receipt")

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, he := orderID(c)
	if he != nil {
		return he
	}

	fh, err := c.FormFile("receipt")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, `multipart field "receipt" required`)
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()

	o, err := h.Svc.UploadReceipt(ctx, id, actor, order.Receipt{
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        src,
	})
	if err != nil {
		he := orderError(err)
		l.Warn("upload_receipt_error", "status", he.Code, "order_id", id, "error", err)
		return he
	}

	l.Info("upload_receipt_success", "order_id", id)
	return c.JSON(http.StatusOK, newOrderResponse(o, h.Svc.ResolveReceiptURL(ctx, o)))
}

// ListShopOrders lists the authenticated seller's shop orders.
func (h *OrderHandler) ListShopOrders(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	page, offset, limit := pageParams(c)

	var shop models.Shop
	if err := h.Svc.Repo.DB.WithContext(ctx).
		Where("owner_id = ? AND deleted_at IS NULL", actor.ID).First(&shop).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "shop not found")
	}

	orders, total, err := h.Svc.ListForShop(ctx, shop.ID, actor, limit, offset)
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, pagedResponse(orders, page, limit, total))
}

// TransitionOrder moves an order along the status graph (seller only).
func (h *OrderHandler) TransitionOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.transition")

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, he := orderID(c)
	if he != nil {
		return he
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status required")
	}

	next, ok := order.ParseStatus(req.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status "+req.Status)
	}

	o, err := h.Svc.Transition(ctx, id, next, actor)
	if err != nil {
		he := orderError(err)
		l.Warn("transition_error", "status", he.Code, "order_id", id, "error", err)
		return he
	}

	l.Info("transition_success", "order_id", id, "to", string(next))
	return c.JSON(http.StatusOK, newOrderResponse(o, h.Svc.ResolveReceiptURL(ctx, o)))
}

// VerifyPayment marks the uploaded receipt as verified (seller only).
func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.verify_payment")

	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, he := orderID(c)
	if he != nil {
		return he
	}

	o, err := h.Svc.VerifyPayment(ctx, id, actor)
	if err != nil {
		he := orderError(err)
		l.Warn("verify_payment_error", "status", he.Code, "order_id", id, "error", err)
		return he
	}

	l.Info("verify_payment_success", "order_id", id)
	return c.JSON(http.StatusOK, newOrderResponse(o, h.Svc.ResolveReceiptURL(ctx, o)))
}
