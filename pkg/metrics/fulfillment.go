package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reservation outcomes.
const (
	ReservationReserved     = "reserved"
	ReservationInsufficient = "insufficient"
)

// FulfillmentMetrics counts ledger and dispatch outcomes.
type FulfillmentMetrics struct {
	reservations     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	shipmentsCreated prometheus.Counter
	capacityRejected *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment counters on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reservations_total",
		Help:      "Sales order reservation attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order status transitions by kind and target status.",
	}, []string{"kind", "status"})
	shipmentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "shipments_created_total",
		Help:      "Shipments created for shipped sales orders.",
	})
	capacityRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "capacity_rejections_total",
		Help:      "Carrier assignments rejected for lack of daily capacity.",
	}, []string{"mode"})
	reg.MustRegister(reservations, transitions, shipmentsCreated, capacityRejected)
	return &FulfillmentMetrics{
		reservations:     reservations,
		transitions:      transitions,
		shipmentsCreated: shipmentsCreated,
		capacityRejected: capacityRejected,
	}
}

// IncReservation records a reservation attempt outcome.
func (f *FulfillmentMetrics) IncReservation(outcome string) {
	if f == nil || f.reservations == nil {
		return
	}
	f.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTransition records a status change for a sales or purchase order.
func (f *FulfillmentMetrics) IncTransition(kind, status string) {
	if f == nil || f.transitions == nil {
		return
	}
	f.transitions.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
}

func (f *FulfillmentMetrics) IncShipmentCreated() {
	if f == nil || f.shipmentsCreated == nil {
		return
	}
	f.shipmentsCreated.Inc()
}

// IncCapacityRejected records a rejected assignment; mode is "single" or "batch".
func (f *FulfillmentMetrics) IncCapacityRejected(mode string) {
	if f == nil || f.capacityRejected == nil {
		return
	}
	f.capacityRejected.WithLabelValues(normalizeLabel(mode)).Inc()
}
