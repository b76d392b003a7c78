package gps

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time      string  `json:"time"`        // e.g. "12:34:56"
	Date      string  `json:"date"`        // e.g. "06/12/25"
	Latitude  float64 `json:"lat"`         // decimal degrees
	Longitude float64 `json:"lon"`         // decimal degrees
	Altitude  float64 `json:"alt_m"`       // meters above MSL, from GGA
	Validity  string  `json:"validity"`    // "A" (valid) / "V" (void)
	FixQual   string  `json:"fix_quality"` // GGA fix quality
}

// Valid reports whether the receiver marked the position as usable.
func (f Fix) Valid() bool {
	return f.Validity == "A"
}
