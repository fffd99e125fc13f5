package middleware

import (
	"net/http"

	"github.com/angelmondragon/stockflow-backend/api/responses"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockflow-backend/pkg/errors"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// Permission names one guarded action on the fulfillment API.
type Permission string

const (
	PermCatalogRead          Permission = "catalog:read"
	PermCatalogWrite         Permission = "catalog:write"
	PermInventoryRead        Permission = "inventory:read"
	PermInventoryWrite       Permission = "inventory:write"
	PermSalesOrderCreate     Permission = "sales_order:create"
	PermSalesOrderRead       Permission = "sales_order:read"
	PermSalesOrderFulfill    Permission = "sales_order:fulfill"
	PermSalesOrderCancel     Permission = "sales_order:cancel"
	PermShipmentRead         Permission = "shipment:read"
	PermShipmentManage       Permission = "shipment:manage"
	PermCarrierRead          Permission = "carrier:read"
	PermCarrierManage        Permission = "carrier:manage"
	PermPurchaseOrderRead    Permission = "purchase_order:read"
	PermPurchaseOrderManage  Permission = "purchase_order:manage"
	PermPurchaseOrderReceive Permission = "purchase_order:receive"
)

var (
	staffRoles = []enums.Role{enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleLogistics, enums.RolePurchasing}

	policy = map[Permission][]enums.Role{
		PermCatalogRead:          append([]enums.Role{enums.RoleClient}, staffRoles...),
		PermCatalogWrite:         {enums.RoleAdmin},
		PermInventoryRead:        staffRoles,
		PermInventoryWrite:       {enums.RoleAdmin, enums.RoleWarehouseManager},
		PermSalesOrderCreate:     {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleClient},
		PermSalesOrderRead:       append([]enums.Role{enums.RoleClient}, staffRoles...),
		PermSalesOrderFulfill:    {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleLogistics},
		PermSalesOrderCancel:     {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleClient},
		PermShipmentRead:         {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleLogistics},
		PermShipmentManage:       {enums.RoleAdmin, enums.RoleLogistics},
		PermCarrierRead:          {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RoleLogistics},
		PermCarrierManage:        {enums.RoleAdmin, enums.RoleLogistics},
		PermPurchaseOrderRead:    {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RolePurchasing},
		PermPurchaseOrderManage:  {enums.RoleAdmin, enums.RolePurchasing},
		PermPurchaseOrderReceive: {enums.RoleAdmin, enums.RoleWarehouseManager, enums.RolePurchasing},
	}
)

// Allowed reports whether role holds permission. Unknown permissions deny.
func Allowed(role enums.Role, permission Permission) bool {
	for _, candidate := range policy[permission] {
		if candidate == role {
			return true
		}
	}
	return false
}

// Authorize rejects callers whose role does not hold permission.
func Authorize(permission Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if !Allowed(identity.Role, permission) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"permission": string(permission)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
