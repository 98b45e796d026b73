package domain

import "time"

// Order is a ride booked by a driver, as read from the orders table.
type Order struct {
	ID       string
	DriverID string
	BookedAt time.Time
	Price    *float64 // nil when the provider did not report a price
}

// Revenue returns the order price, counting a missing price as zero.
func (o Order) Revenue() float64 {
	if o.Price == nil {
		return 0
	}
	return *o.Price
}
