package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockflow-backend/api/controllers"
	carriercontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/carriers"
	catalogcontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/catalog"
	inventorycontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/inventory"
	pocontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/purchaseorders"
	ordercontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/salesorders"
	shipmentcontrollers "github.com/angelmondragon/stockflow-backend/api/controllers/shipments"
	"github.com/angelmondragon/stockflow-backend/api/middleware"
	"github.com/angelmondragon/stockflow-backend/internal/carriers"
	"github.com/angelmondragon/stockflow-backend/internal/catalog"
	"github.com/angelmondragon/stockflow-backend/internal/inventory"
	"github.com/angelmondragon/stockflow-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockflow-backend/internal/salesorders"
	"github.com/angelmondragon/stockflow-backend/internal/shipments"
	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/redis"
)

// Store is the Redis surface the API needs for idempotency replays and write limits.
type Store interface {
	redis.Pinger
	redis.IdempotencyStore
	middleware.RateLimitStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	tokens middleware.TokenVerifier,
	dbP db.Pinger,
	store Store,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTPMetrics,
	catalogService catalog.Service,
	inventoryService inventory.Service,
	carrierService carriers.Service,
	shipmentService shipments.Service,
	salesOrderService salesorders.Service,
	purchaseOrderService purchaseorders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.Recoverer(logg, httpMetrics),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.Dependencies(dbP, store)))
	})

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	var idempotencyStore redis.IdempotencyStore
	var rateStore middleware.RateLimitStore
	if cfg.FeatureFlags.Idempotency && store != nil {
		idempotencyStore = store
	}
	if store != nil {
		rateStore = store
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(tokens, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Use(middleware.WriteRateLimit(cfg.RateLimit, rateStore, logg))

		allow := func(perm middleware.Permission) func(http.Handler) http.Handler {
			return middleware.Authorize(perm, logg)
		}

		r.Route("/products", func(r chi.Router) {
			r.With(allow(middleware.PermCatalogWrite)).Post("/", catalogcontrollers.CreateProduct(catalogService, logg))
			r.With(allow(middleware.PermCatalogRead)).Get("/{productId}", catalogcontrollers.GetProduct(catalogService, logg))
		})
		r.Route("/warehouses", func(r chi.Router) {
			r.With(allow(middleware.PermCatalogWrite)).Post("/", catalogcontrollers.CreateWarehouse(catalogService, logg))
			r.With(allow(middleware.PermCatalogRead)).Get("/{warehouseId}", catalogcontrollers.GetWarehouse(catalogService, logg))
		})
		r.Route("/clients", func(r chi.Router) {
			r.With(allow(middleware.PermCatalogWrite)).Post("/", catalogcontrollers.CreateClient(catalogService, logg))
			r.With(allow(middleware.PermCatalogRead)).Get("/{clientId}", catalogcontrollers.GetClient(catalogService, logg))
		})
		r.Route("/suppliers", func(r chi.Router) {
			r.With(allow(middleware.PermCatalogWrite)).Post("/", catalogcontrollers.CreateSupplier(catalogService, logg))
			r.With(allow(middleware.PermPurchaseOrderRead)).Get("/{supplierId}", catalogcontrollers.GetSupplier(catalogService, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.With(allow(middleware.PermInventoryRead)).Get("/", inventorycontrollers.Lookup(inventoryService, logg))
			r.With(allow(middleware.PermInventoryWrite)).Post("/", inventorycontrollers.Create(inventoryService, logg))
			r.With(allow(middleware.PermInventoryRead)).Get("/{inventoryId}", inventorycontrollers.Detail(inventoryService, logg))
			r.With(allow(middleware.PermInventoryRead)).Get("/{inventoryId}/movements", inventorycontrollers.Movements(inventoryService, logg))
			r.With(allow(middleware.PermInventoryWrite)).Post("/{inventoryId}/adjust", inventorycontrollers.Adjust(inventoryService, logg))
		})

		r.Route("/sales-orders", func(r chi.Router) {
			r.With(allow(middleware.PermSalesOrderRead)).Get("/", ordercontrollers.List(salesOrderService, logg))
			r.With(allow(middleware.PermSalesOrderCreate)).Post("/", ordercontrollers.Create(salesOrderService, logg))
			r.With(allow(middleware.PermSalesOrderRead)).Get("/{orderId}", ordercontrollers.Detail(salesOrderService, logg))
			r.With(allow(middleware.PermShipmentRead)).Get("/{orderId}/shipment", shipmentcontrollers.ForOrder(shipmentService, logg))
			r.With(allow(middleware.PermSalesOrderFulfill)).Post("/{orderId}/reserve", ordercontrollers.Reserve(salesOrderService, logg))
			r.With(allow(middleware.PermSalesOrderFulfill)).Post("/{orderId}/ship", ordercontrollers.Ship(salesOrderService, logg))
			r.With(allow(middleware.PermSalesOrderFulfill)).Post("/{orderId}/deliver", ordercontrollers.Deliver(salesOrderService, logg))
			r.With(allow(middleware.PermSalesOrderCancel)).Post("/{orderId}/cancel", ordercontrollers.Cancel(salesOrderService, logg))
		})

		r.Route("/shipments", func(r chi.Router) {
			r.With(allow(middleware.PermShipmentRead)).Get("/{shipmentId}", shipmentcontrollers.Detail(shipmentService, logg))
			r.With(allow(middleware.PermShipmentManage)).Post("/{shipmentId}/carrier", shipmentcontrollers.AssignCarrier(shipmentService, logg))
			r.With(allow(middleware.PermShipmentManage)).Post("/{shipmentId}/in-transit", shipmentcontrollers.MarkInTransit(shipmentService, logg))
			r.With(allow(middleware.PermShipmentManage)).Post("/{shipmentId}/delivered", shipmentcontrollers.MarkDelivered(shipmentService, logg))
			r.With(allow(middleware.PermShipmentManage)).Delete("/{shipmentId}", shipmentcontrollers.Delete(shipmentService, logg))
		})

		r.Route("/carriers", func(r chi.Router) {
			r.With(allow(middleware.PermCarrierRead)).Get("/", carriercontrollers.List(carrierService, logg))
			r.With(allow(middleware.PermCarrierManage)).Post("/", carriercontrollers.Create(carrierService, logg))
			r.With(allow(middleware.PermCarrierManage)).Post("/reset-capacity", carriercontrollers.ResetCapacity(carrierService, logg))
			r.With(allow(middleware.PermCarrierRead)).Get("/{carrierId}", carriercontrollers.Detail(carrierService, logg))
			r.With(allow(middleware.PermCarrierManage)).Put("/{carrierId}/status", carriercontrollers.SetStatus(carrierService, logg))
			r.With(allow(middleware.PermShipmentManage)).Post("/{carrierId}/shipments", shipmentcontrollers.AssignBatch(shipmentService, logg))
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.With(allow(middleware.PermPurchaseOrderRead)).Get("/", pocontrollers.List(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderManage)).Post("/", pocontrollers.Create(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderRead)).Get("/{poId}", pocontrollers.Detail(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderManage)).Put("/{poId}/lines", pocontrollers.UpdateLines(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderManage)).Post("/{poId}/approve", pocontrollers.Approve(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderManage)).Post("/{poId}/cancel", pocontrollers.Cancel(purchaseOrderService, logg))
			r.With(allow(middleware.PermPurchaseOrderReceive)).Post("/{poId}/receive", pocontrollers.Receive(purchaseOrderService, logg))
		})
	})

	return r
}
