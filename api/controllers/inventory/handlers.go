package inventory

import (
	"net/http"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalinventory "github.com/angelmondragon/stockflow-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/pagination"
)

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
}

// Create opens the ledger row for a warehouse and product.
func Create(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createInventoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Create(r.Context(), internalinventory.CreateInput{
			WarehouseID: req.WarehouseID,
			ProductID:   req.ProductID,
			QtyOnHand:   req.QtyOnHand,
			QtyReserved: req.QtyReserved,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalinventory.ToDTO(row))
	}
}

func Detail(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		inventoryID, err := validators.ParseURLUUID(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), inventoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalinventory.ToDTO(row))
	}
}

// Lookup returns one row when product_id is given, otherwise every row in the warehouse.
func Lookup(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		warehouseID, err := validators.ParseQueryUUID(r, "warehouse_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if warehouseID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id is required"))
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if productID != nil {
			row, findErr := svc.Find(r.Context(), *warehouseID, *productID)
			if findErr != nil {
				responses.WriteError(r.Context(), logg, w, findErr)
				return
			}
			responses.WriteSuccess(w, internalinventory.ToDTO(row))
			return
		}

		rows, err := svc.ListByWarehouse(r.Context(), *warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]internalinventory.InventoryDTO, 0, len(rows))
		for i := range rows {
			out = append(out, internalinventory.ToDTO(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Adjust records a physical count correction.
func Adjust(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		inventoryID, err := validators.ParseURLUUID(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.QtyOnHand == nil && req.QtyReserved == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "qty_on_hand or qty_reserved is required"))
			return
		}
		row, err := svc.Adjust(r.Context(), internalinventory.AdjustInput{
			InventoryID: inventoryID,
			QtyOnHand:   req.QtyOnHand,
			QtyReserved: req.QtyReserved,
			Reason:      validators.SanitizeString(req.Reason, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalinventory.ToDTO(row))
	}
}

func Movements(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		inventoryID, err := validators.ParseURLUUID(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListMovements(r.Context(), inventoryID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalinventory.ToMovementDTOs(rows))
	}
}
