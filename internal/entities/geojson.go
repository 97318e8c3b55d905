package entities

import "encoding/json"

// Feature is a GeoJSON feature with free-form properties
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// StringProperty returns the first non-empty string property among keys
func (f Feature) StringProperty(keys ...string) string {
	for _, k := range keys {
		if v, ok := f.Properties[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
