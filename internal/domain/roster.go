package domain

import "time"

// RosterCar is a car assigned to a driver.
type RosterCar struct {
	CarOriginID string `json:"car_origin_id"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Color       string `json:"color"`
	Year        int    `json:"year"`
	Number      string `json:"number"`
	Callsign    string `json:"callsign"`
}

// WeeklyOrders counts a driver's orders in each of the last four weeks,
// S1 being the week ending now.
type WeeklyOrders struct {
	S1 int `json:"s1"`
	S2 int `json:"s2"`
	S3 int `json:"s3"`
	S4 int `json:"s4"`
}

// RosterEntry is one row of the workspace driver directory.
type RosterEntry struct {
	DriverOriginID string       `json:"driver_origin_id"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	CurrentStatus  string       `json:"current_status"`
	Phones         []string     `json:"phones"`
	Cars           []RosterCar  `json:"cars"`
	WeeksOrders    WeeklyOrders `json:"weeksOrders"`
	LastOrderAt    *time.Time   `json:"last_order_at"`
	TotalRevenue   float64      `json:"totalRevenue"`
}
