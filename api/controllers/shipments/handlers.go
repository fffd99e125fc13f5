package shipments

import (
	"net/http"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalshipments "github.com/angelmondragon/stockflow-backend/internal/shipments"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipment service unavailable"))
}

func Detail(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		shipmentID, err := validators.ParseURLUUID(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.Get(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTO(shipment))
	}
}

// ForOrder returns the shipment created when the order shipped.
func ForOrder(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTO(shipment))
	}
}

// AssignCarrier binds a shipment to a carrier, consuming one slot of its daily capacity.
func AssignCarrier(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		shipmentID, err := validators.ParseURLUUID(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input internalshipments.AssignCarrierInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipment, err := svc.AssignCarrier(r.Context(), shipmentID, input.CarrierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTO(shipment))
	}
}

// AssignBatch binds several shipments to one carrier; all or none are assigned.
func AssignBatch(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		carrierID, err := validators.ParseURLUUID(r, "carrierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input internalshipments.AssignBatchInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assigned, err := svc.AssignMultipleShipments(r.Context(), carrierID, input.ShipmentIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTOs(assigned))
	}
}

func MarkInTransit(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		shipmentID, err := validators.ParseURLUUID(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.MarkAsInTransit(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTO(shipment))
	}
}

func MarkDelivered(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		shipmentID, err := validators.ParseURLUUID(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shipment, err := svc.MarkAsDelivered(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalshipments.ToDTO(shipment))
	}
}

// Delete removes a shipment and frees the carrier slot it held.
func Delete(svc internalshipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		shipmentID, err := validators.ParseURLUUID(r, "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteShipment(r.Context(), shipmentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
