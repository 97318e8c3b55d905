package entities

// AvalancheReading is one snow/weather observation of the reference station
type AvalancheReading struct {
	ObservedAt    string  `json:"data_osservazione"`
	SnowDepthCM   float64 `json:"neve_suolo_cm"`
	FreshSnowCM   float64 `json:"neve_fresca_cm"`
	AirTemp       string  `json:"temp_aria"`
	WindSpeed     string  `json:"vento_velocita"`
	WindDirection string  `json:"vento_direzione"`
}

// AvalancheBulletin is the Meteomont bulletin for one sector
type AvalancheBulletin struct {
	Sector           string             `json:"settore"`
	BulletinNumber   string             `json:"numero_bollettino"`
	Date             string             `json:"data"`
	DangerLevel      int                `json:"grado_pericolo"`
	DangerText       string             `json:"grado_testo"`
	Trend            string             `json:"tendenza"`
	Problem          string             `json:"problema"`
	Altitude         string             `json:"quota"`
	Situation        string             `json:"situazione"`
	ReferenceStation string             `json:"stazione_riferimento"`
	Readings         []AvalancheReading `json:"letture"`
	LastUpdate       string             `json:"last_update"`
}
