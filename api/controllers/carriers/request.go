package carriers

type createCarrierRequest struct {
	Code             string `json:"code" validate:"required,max=32"`
	Name             string `json:"name" validate:"required,notblank,max=255"`
	MaxDailyCapacity int    `json:"max_daily_capacity" validate:"gte=0"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}
