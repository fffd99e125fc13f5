package salesorders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/api/middleware"
	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalsalesorders "github.com/angelmondragon/stockflow-backend/internal/salesorders"
	"github.com/angelmondragon/stockflow-backend/internal/shipments"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

type createResponse struct {
	Order       internalsalesorders.OrderDTO           `json:"order"`
	Reservation internalsalesorders.ReservationOutcome `json:"reservation"`
}

type shipResponse struct {
	Order    internalsalesorders.OrderDTO `json:"order"`
	Shipment shipments.ShipmentDTO        `json:"shipment"`
}

type listResponse struct {
	Orders     []internalsalesorders.OrderDTO `json:"orders"`
	NextCursor string                         `json:"next_cursor,omitempty"`
}

// Create places a sales order and attempts the automatic reservation.
func Create(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales order service unavailable"))
			return
		}

		var input internalsalesorders.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), actorFromRequest(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createResponse{
			Order:       internalsalesorders.ToDTO(result.Order),
			Reservation: result.Reservation,
		})
	}
}

// Reserve moves a CREATED order to RESERVED.
func Reserve(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
		return svc.ReserveStock(ctx, actor, id)
	})
}

// Deliver completes a SHIPPED order.
func Deliver(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
		return svc.DeliverOrder(ctx, actor, id)
	})
}

// Cancel cancels a CREATED or RESERVED order and releases its stock.
func Cancel(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
		return svc.CancelOrder(ctx, actor, id)
	})
}

// Detail returns one order; client callers only see their own.
func Detail(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc, logg, func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error) {
		return svc.Get(ctx, actor, id)
	})
}

// Ship consumes reserved stock and returns the order with its planned shipment.
func Ship(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales order service unavailable"))
			return
		}

		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ShipOrder(r.Context(), actorFromRequest(r), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := shipResponse{Order: internalsalesorders.ToDTO(result.Order)}
		if result.Shipment != nil {
			resp.Shipment = shipments.ToDTO(result.Shipment)
		}
		responses.WriteSuccess(w, resp)
	}
}

// List pages through orders newest first, filtered by status and client.
func List(svc internalsalesorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales order service unavailable"))
			return
		}

		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalsalesorders.ListParams{Params: page}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseSalesOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			params.Status = &status
		}

		clientID, err := validators.ParseQueryUUID(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.ClientID = clientID

		result, err := svc.List(r.Context(), actorFromRequest(r), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listResponse{
			Orders:     internalsalesorders.ToDTOs(result.Orders),
			NextCursor: result.NextCursor,
		})
	}
}

type orderFunc func(ctx context.Context, actor internalsalesorders.Actor, id uuid.UUID) (*models.SalesOrder, error)

func orderAction(svc internalsalesorders.Service, logg *logger.Logger, fn orderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales order service unavailable"))
			return
		}

		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := fn(r.Context(), actorFromRequest(r), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalsalesorders.ToDTO(order))
	}
}

func actorFromRequest(r *http.Request) internalsalesorders.Actor {
	identity, _ := middleware.IdentityFromContext(r.Context())
	return internalsalesorders.Actor{
		UserID:   identity.UserID,
		Role:     identity.Role,
		ClientID: identity.ClientID,
	}
}
