package carriers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalcarriers "github.com/angelmondragon/stockflow-backend/internal/carriers"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "carrier service unavailable"))
}

func Create(svc internalcarriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createCarrierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		carrier, err := svc.Create(r.Context(), internalcarriers.CreateInput{
			Code:             req.Code,
			Name:             validators.SanitizeString(req.Name, 255),
			MaxDailyCapacity: req.MaxDailyCapacity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcarriers.ToDTO(carrier))
	}
}

func List(svc internalcarriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcarriers.ToDTOs(rows))
	}
}

func Detail(svc internalcarriers.Service, logg *logger.Logger) http.HandlerFunc {
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
		carrier, err := svc.Get(r.Context(), carrierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcarriers.ToDTO(carrier))
	}
}

// SetStatus suspends or reactivates a carrier.
func SetStatus(svc internalcarriers.Service, logg *logger.Logger) http.HandlerFunc {
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
		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseCarrierStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		carrier, err := svc.SetStatus(r.Context(), carrierID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcarriers.ToDTO(carrier))
	}
}

type capacityResetter interface {
	ResetAll(ctx context.Context) (int64, error)
}

// ResetCapacity zeroes every carrier's daily counter outside the scheduled job.
func ResetCapacity(svc capacityResetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		count, err := svc.ResetAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"carriers_reset": count})
	}
}
