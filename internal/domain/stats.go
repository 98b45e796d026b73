package domain

// DailyStat aggregates one calendar day of orders.
type DailyStat struct {
	Date            string  `json:"date"`
	TotalOrders     int     `json:"totalOrders"`
	TotalRevenue    float64 `json:"totalRevenue"`
	CoreDrivers     int     `json:"coreDrivers"`
	CoreChange      int     `json:"coreChange"`
	Electrons       int     `json:"electrons"`
	ElectronsChange int     `json:"electronsChange"`
	AverageRevenue  float64 `json:"averageRevenue"`
	AverageOrders   float64 `json:"averageOrders"`
}

// Summary aggregates a whole period of orders.
type Summary struct {
	TotalOrders  int     `json:"totalOrders"`
	TotalRevenue float64 `json:"totalRevenue"`
	CoreDrivers  int     `json:"coreDrivers"`
	Electrons    int     `json:"electrons"`
}

// StatusSlice is one segment of the driver status distribution.
type StatusSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}
