package entities

// Sensor status values
const (
	StatusNormal = "normal"
	StatusAlert  = "alert"
)

// SensorCategory describes one family of real-time sensors
type SensorCategory struct {
	Key       string  `json:"-"`
	Code      string  `json:"code"`
	Label     string  `json:"label"`
	Unit      string  `json:"unit"`
	Icon      string  `json:"icon"`
	Threshold float64 `json:"threshold"`
}

// SensorCategories is the fixed list of categories published by the
// functional centre, in the order they are scraped.
var SensorCategories = []SensorCategory{
	{Key: "idrometria", Code: "ID", Label: "Idrometri", Unit: "m", Icon: "fa-water", Threshold: 2.5},
	{Key: "pluviometria", Code: "PL", Label: "Pluviometri", Unit: "mm", Icon: "fa-cloud-rain", Threshold: 40.0},
	{Key: "anemometria", Code: "VV", Label: "Anemometri", Unit: "m/s", Icon: "fa-wind", Threshold: 20.0},
	{Key: "termometria", Code: "TE", Label: "Termometri", Unit: "°C", Icon: "fa-thermometer-half", Threshold: 35.0},
	{Key: "nivometria", Code: "NI", Label: "Nivometri", Unit: "cm", Icon: "fa-snowflake", Threshold: 1.0},
}

// FindSensorCategory looks a category up by key or code
func FindSensorCategory(name string) (SensorCategory, bool) {
	for _, c := range SensorCategories {
		if c.Key == name || c.Code == name {
			return c, true
		}
	}
	return SensorCategory{}, false
}

// SensorReading is a single station reading
type SensorReading struct {
	ID     string   `json:"id"`
	Name   string   `json:"nome"`
	Time   string   `json:"data"`
	Value  float64  `json:"valore"`
	Status string   `json:"status"`
	Lat    *float64 `json:"lat,omitempty"`
	Lon    *float64 `json:"lon,omitempty"`
}

// StatusFor classifies value against the category threshold
func (c SensorCategory) StatusFor(value float64) string {
	if value >= c.Threshold {
		return StatusAlert
	}
	return StatusNormal
}

// SensorGroup is the per-category block of dati_sensori.json
type SensorGroup struct {
	Meta     SensorCategory  `json:"meta"`
	Readings []SensorReading `json:"dati"`
}

// SensorSnapshot is the whole dati_sensori.json file
type SensorSnapshot struct {
	LastUpdate string                 `json:"ultimo_aggiornamento"`
	Sensors    map[string]SensorGroup `json:"sensori"`
}

// StationCoordinates is one entry of the station gazetteer
type StationCoordinates struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station identifies a station discovered on a listing page
type Station struct {
	ID   string
	Name string
}

// RainfallWindows holds accumulated rainfall over trailing windows
type RainfallWindows struct {
	H1  float64 `json:"1h"`
	H3  float64 `json:"3h"`
	H6  float64 `json:"6h"`
	H12 float64 `json:"12h"`
	H24 float64 `json:"24h"`
}

// StationHistory is the accumulated rainfall of one station
type StationHistory struct {
	Name    string          `json:"nome"`
	ID      string          `json:"id"`
	Windows RainfallWindows `json:"dati_multipli"`
}

// HistorySnapshot is the whole dati_storici.json file
type HistorySnapshot struct {
	LastUpdate string           `json:"ultimo_aggiornamento"`
	Stations   []StationHistory `json:"stazioni_storico"`
}
