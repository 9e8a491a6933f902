package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// FulfillmentHandler exposes fulfill_order to admins.
type FulfillmentHandler struct {
	fulfillment *service.FulfillmentService
}

// NewFulfillmentHandler constructs a FulfillmentHandler.
func NewFulfillmentHandler(fulfillment *service.FulfillmentService) *FulfillmentHandler {
	return &FulfillmentHandler{fulfillment: fulfillment}
}

// Fulfill handles POST /v1/admin/orders/:id/fulfill
func (h *FulfillmentHandler) Fulfill(c *gin.Context) {
	res, err := h.fulfillment.FulfillOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeFulfillResult(c, res)
}

// writeFulfillResult maps a fulfillment outcome to the response: 200 for a
// fresh or repeated delivery, 404 for a missing order and 409 otherwise.
// The body always carries {delivered, payload?, reason?}.
func writeFulfillResult(c *gin.Context, res *service.FulfillResult) {
	switch res.Reason {
	case "":
		utils.Success(c, http.StatusOK, "Order delivered", res)
	case service.ReasonAlreadyDelivered:
		utils.Success(c, http.StatusOK, "Order was already delivered", res)
	case service.ReasonOrderNotFound:
		utils.ErrorWithData(c, http.StatusNotFound, res.Reason, "Order not found", res)
	case service.ReasonOutOfStock:
		utils.ErrorWithData(c, http.StatusConflict, res.Reason, "No unassigned credential left for this product", res)
	default:
		utils.ErrorWithData(c, http.StatusConflict, res.Reason, "Order cannot be fulfilled in its current status", res)
	}
}
