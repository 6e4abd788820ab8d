package entity

import "image"

// RegionBox is one labelled area found on a blood-pressure meter display.
type RegionBox struct {
	Label      VitalField      `json:"label"`
	Confidence float64         `json:"conf"`
	Box        image.Rectangle `json:"-"`
}

// MeterDetectionResult is the payload returned by the meter detection service.
type MeterDetectionResult struct {
	Message    string               `json:"message"`
	Error      string               `json:"error,omitempty"`
	Detections []MeterDetectionItem `json:"detections"`
}

type MeterDetectionItem struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"conf"`
	BBox       []float64 `json:"bbox"`
}
