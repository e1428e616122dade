package ctdf

// Stop is a static anchor point that vehicles arrive at
type Stop struct {
	PrimaryIdentifier string            `json:"primary_identifier"`
	OtherIdentifiers  map[string]string `json:"other_identifiers,omitempty"`

	PrimaryName string `json:"primary_name"`
	Type        string `json:"type,omitempty"`

	Location *Location `json:"location"`
}

func (s *Stop) Latitude() float64 {
	return s.Location.Latitude()
}

func (s *Stop) Longitude() float64 {
	return s.Location.Longitude()
}
