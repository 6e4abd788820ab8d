package vital

import (
	"time"

	"eldercare-vitals/internal/entity"
)

// CaptureRequest is the JSON form of a capture upload.
type CaptureRequest struct {
	ImageBase64 string `json:"image_base64"`
	Timestamp   string `json:"timestamp" validate:"max=64"`
	Timezone    string `json:"tz" validate:"max=64"`
	EpochMillis *int64 `json:"epoch_ms"`
}

type CaptureInput struct {
	SubjectID   string
	ImageBytes  []byte
	ImageBase64 string
	Timestamp   string
	Timezone    string
	EpochMillis *int64
}

type CaptureResult struct {
	Reading     entity.VitalReading
	Measurement entity.Measurement
	Source      entity.RecognitionSource
	Created     bool
}

type CaptureResponse struct {
	OK            bool                     `json:"ok"`
	Parsed        entity.Measurement       `json:"parsed"`
	Period        entity.Period            `json:"period"`
	LocalDate     string                   `json:"localDate"`
	CapturedAtUTC string                   `json:"capturedAtUtc"`
	Created       bool                     `json:"created"`
	Duplicate     bool                     `json:"duplicate"`
	Source        entity.RecognitionSource `json:"source"`
	Message       string                   `json:"message"`
}

func NewCaptureResponse(result CaptureResult) CaptureResponse {
	message := "Reading saved"
	if !result.Created {
		message = "Reading updated for this period"
	}

	return CaptureResponse{
		OK:            true,
		Parsed:        result.Measurement,
		Period:        result.Reading.Period,
		LocalDate:     result.Reading.LocalDate,
		CapturedAtUTC: result.Reading.CapturedAtUTC.UTC().Format(time.RFC3339),
		Created:       result.Created,
		Duplicate:     !result.Created,
		Source:        result.Source,
		Message:       message,
	}
}

type DayViewQuery struct {
	Date   string `query:"date" validate:"required"`
	UserID string `query:"user_id"`
}

type PeriodReading struct {
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      int       `json:"pulse"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
}

type DayView struct {
	SubjectID string         `json:"subject_id"`
	Date      string         `json:"date"`
	Morning   *PeriodReading `json:"morning"`
	Evening   *PeriodReading `json:"evening"`
}

func NewDayView(subjectID, date string, readings []entity.VitalReading) DayView {
	view := DayView{SubjectID: subjectID, Date: date}
	for _, r := range readings {
		pr := &PeriodReading{
			Systolic:   r.Systolic,
			Diastolic:  r.Diastolic,
			Pulse:      r.Pulse,
			CapturedAt: r.CapturedAtUTC.UTC(),
			Source:     string(r.Source),
		}
		switch r.Period {
		case entity.PeriodMorning:
			view.Morning = pr
		case entity.PeriodEvening:
			view.Evening = pr
		}
	}
	return view
}
