package entity

import (
	"fmt"
	"time"
)

type Period string

const (
	PeriodMorning Period = "morning"
	PeriodEvening Period = "evening"
)

func (p Period) IsValid() bool {
	return p == PeriodMorning || p == PeriodEvening
}

type RecognitionSource string

const (
	SourcePrimary  RecognitionSource = "primary"
	SourceFallback RecognitionSource = "fallback"
)

type VitalField string

const (
	FieldSystolic  VitalField = "systolic"
	FieldDiastolic VitalField = "diastolic"
	FieldPulse     VitalField = "pulse"
)

// VitalFields is the fixed reading order used everywhere a triple is listed.
var VitalFields = []VitalField{FieldSystolic, FieldDiastolic, FieldPulse}

type Band struct {
	Min int
	Max int
}

func (b Band) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

var PlausibleBands = map[VitalField]Band{
	FieldSystolic:  {Min: 70, Max: 250},
	FieldDiastolic: {Min: 40, Max: 150},
	FieldPulse:     {Min: 30, Max: 200},
}

type Measurement struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse"`
}

func (m Measurement) Partial() PartialMeasurement {
	return PartialMeasurement{
		FieldSystolic:  m.Systolic,
		FieldDiastolic: m.Diastolic,
		FieldPulse:     m.Pulse,
	}
}

// PartialMeasurement holds whatever a recognizer managed to read. A missing key means
// the value was not found.
type PartialMeasurement map[VitalField]int

type Verdict struct {
	Valid       bool
	Measurement Measurement
	Reason      string
}

// ValidateMeasurement accepts a reading only when all three values are present and each
// lies inside its plausible band.
func ValidateMeasurement(p PartialMeasurement) Verdict {
	for _, field := range VitalFields {
		value, ok := p[field]
		if !ok {
			return Verdict{Reason: fmt.Sprintf("missing %s", field)}
		}

		band := PlausibleBands[field]
		if !band.Contains(value) {
			return Verdict{Reason: fmt.Sprintf("%s %d outside [%d,%d]", field, value, band.Min, band.Max)}
		}
	}

	return Verdict{
		Valid: true,
		Measurement: Measurement{
			Systolic:  p[FieldSystolic],
			Diastolic: p[FieldDiastolic],
			Pulse:     p[FieldPulse],
		},
	}
}

type VitalReading struct {
	ID                string            `json:"id"`
	SubjectID         string            `json:"subject_id"`
	LocalDate         string            `json:"local_date"`
	Period            Period            `json:"period"`
	Systolic          int               `json:"systolic"`
	Diastolic         int               `json:"diastolic"`
	Pulse             int               `json:"pulse"`
	CapturedAtUTC     time.Time         `json:"captured_at_utc"`
	DeviceTimezone    string            `json:"device_timezone,omitempty"`
	SourceEpochMillis *int64            `json:"source_epoch_ms,omitempty"`
	Source            RecognitionSource `json:"source"`
	Revision          int               `json:"revision"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (r VitalReading) Measurement() Measurement {
	return Measurement{Systolic: r.Systolic, Diastolic: r.Diastolic, Pulse: r.Pulse}
}
