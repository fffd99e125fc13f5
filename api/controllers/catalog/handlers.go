package catalog

import (
	"net/http"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/api/validators"
	internalcatalog "github.com/angelmondragon/stockflow-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

const maxNameLength = 255

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
}

func CreateProduct(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), internalcatalog.CreateProductInput{
			SKU:       req.SKU,
			Name:      validators.SanitizeString(req.Name, maxNameLength),
			Category:  req.Category,
			UnitPrice: req.UnitPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcatalog.ProductToDTO(product))
	}
}

func GetProduct(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := validators.ParseURLUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcatalog.ProductToDTO(product))
	}
}

func CreateWarehouse(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createWarehouseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouse, err := svc.CreateWarehouse(r.Context(), internalcatalog.CreateWarehouseInput{
			Code:      req.Code,
			Name:      validators.SanitizeString(req.Name, maxNameLength),
			Capacity:  req.Capacity,
			ManagerID: req.ManagerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcatalog.WarehouseToDTO(warehouse))
	}
}

func GetWarehouse(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := validators.ParseURLUUID(r, "warehouseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouse, err := svc.GetWarehouse(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcatalog.WarehouseToDTO(warehouse))
	}
}

func CreateClient(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createPartyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		client, err := svc.CreateClient(r.Context(), partyInput(req))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcatalog.ClientToDTO(client))
	}
}

func GetClient(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := validators.ParseURLUUID(r, "clientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		client, err := svc.GetClient(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcatalog.ClientToDTO(client))
	}
}

func CreateSupplier(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		var req createPartyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.CreateSupplier(r.Context(), partyInput(req))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcatalog.SupplierToDTO(supplier))
	}
}

func GetSupplier(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		id, err := validators.ParseURLUUID(r, "supplierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.GetSupplier(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcatalog.SupplierToDTO(supplier))
	}
}

func partyInput(req createPartyRequest) internalcatalog.CreatePartyInput {
	return internalcatalog.CreatePartyInput{
		Name:  validators.SanitizeString(req.Name, maxNameLength),
		Email: req.Email,
	}
}
