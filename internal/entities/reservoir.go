package entities

// Reservoir is one dam row of the water availability bulletin
type Reservoir struct {
	DamName        string  `json:"dam_name"`
	MaxCapacity    float64 `json:"max_capacity"`
	CurrentVolume  float64 `json:"current_volume"`
	FillPercentage float64 `json:"fill_percentage"`
	RainfallMM     float64 `json:"rainfall_mm"`
	Date           string  `json:"date"`
}
