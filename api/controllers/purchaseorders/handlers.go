package purchaseorders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalpurchaseorders "github.com/angelmondragon/stockflow-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase order service unavailable"))
}

func Create(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var input internalpurchaseorders.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalpurchaseorders.ToDTO(order))
	}
}

type listResponse struct {
	Orders     []internalpurchaseorders.OrderDTO `json:"orders"`
	NextCursor string                            `json:"next_cursor,omitempty"`
}

func List(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalpurchaseorders.ListParams{Params: page}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, parseErr := enums.ParsePurchaseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status"))
				return
			}
			params.Status = &parsed
		}
		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{
			Orders:     internalpurchaseorders.ToDTOs(result.Orders),
			NextCursor: result.NextCursor,
		})
	}
}

func Detail(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return poAction(svc, logg, func(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
		return svc.Get(ctx, id)
	})
}

func Approve(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return poAction(svc, logg, func(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
		return svc.Approve(ctx, id)
	})
}

func Cancel(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return poAction(svc, logg, func(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
		return svc.Cancel(ctx, id)
	})
}

// UpdateLines replaces the lines of an order that has not been received.
func UpdateLines(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		poID, err := validators.ParseURLUUID(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateLinesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateLines(r.Context(), poID, req.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalpurchaseorders.ToDTO(order))
	}
}

// Receive credits every line into the given warehouse.
func Receive(svc internalpurchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		poID, err := validators.ParseURLUUID(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req receiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Receive(r.Context(), poID, req.WarehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalpurchaseorders.ToDTO(order))
	}
}

func poAction(svc internalpurchaseorders.Service, logg *logger.Logger, fn func(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		poID, err := validators.ParseURLUUID(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := fn(r.Context(), poID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalpurchaseorders.ToDTO(order))
	}
}
