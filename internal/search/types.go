package search

// Result is one enriched search hit.
type Result struct {
	ID           int64    `json:"id"`
	SourceRef    string   `json:"source_ref"`
	TakenAt      *string  `json:"taken_at,omitempty"`
	LocationName *string  `json:"location_name,omitempty"`
	GPSLat       *float64 `json:"gps_lat,omitempty"`
	GPSLon       *float64 `json:"gps_lon,omitempty"`
	Similarity   float64  `json:"similarity"`
	Metadata     string   `json:"metadata,omitempty"`
}
