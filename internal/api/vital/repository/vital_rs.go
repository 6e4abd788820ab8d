package vitalRepository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"eldercare-vitals/internal/entity"
	contextPkg "eldercare-vitals/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type VitalReadingDB struct {
	ID             sql.NullString `db:"id"`
	SubjectID      sql.NullString `db:"subject_id"`
	LocalDate      dbDate         `db:"local_date"`
	Period         sql.NullString `db:"period"`
	Systolic       sql.NullInt64  `db:"systolic"`
	Diastolic      sql.NullInt64  `db:"diastolic"`
	Pulse          sql.NullInt64  `db:"pulse"`
	CapturedAt     dbTime         `db:"captured_at"`
	DeviceTimezone sql.NullString `db:"device_timezone"`
	SourceEpochMs  sql.NullInt64  `db:"source_epoch_ms"`
	Source         sql.NullString `db:"source"`
	Revision       sql.NullInt64  `db:"revision"`
	CreatedAt      dbTime         `db:"created_at"`
	UpdatedAt      dbTime         `db:"updated_at"`
}

func (d VitalReadingDB) toEntity() entity.VitalReading {
	reading := entity.VitalReading{
		ID:             d.ID.String,
		SubjectID:      d.SubjectID.String,
		LocalDate:      string(d.LocalDate),
		Period:         entity.Period(d.Period.String),
		Systolic:       int(d.Systolic.Int64),
		Diastolic:      int(d.Diastolic.Int64),
		Pulse:          int(d.Pulse.Int64),
		CapturedAtUTC:  time.Time(d.CapturedAt).UTC(),
		DeviceTimezone: d.DeviceTimezone.String,
		Source:         entity.RecognitionSource(d.Source.String),
		Revision:       int(d.Revision.Int64),
		CreatedAt:      time.Time(d.CreatedAt).UTC(),
		UpdatedAt:      time.Time(d.UpdatedAt).UTC(),
	}
	if d.SourceEpochMs.Valid {
		ms := d.SourceEpochMs.Int64
		reading.SourceEpochMillis = &ms
	}
	return reading
}

// UpsertReading writes the reading for its (subject, local date, period) key. The bool is
// true when the row did not exist before.
func (r *vitalRepository) UpsertReading(ctx context.Context, reading entity.VitalReading) (entity.VitalReading, bool, error) {
	requestID := contextPkg.GetRequestID(ctx)
	now := time.Now().UTC()

	var epochMs interface{}
	if reading.SourceEpochMillis != nil {
		epochMs = *reading.SourceEpochMillis
	}
	var deviceTZ interface{}
	if reading.DeviceTimezone != "" {
		deviceTZ = reading.DeviceTimezone
	}

	argsKV := map[string]interface{}{
		"id":              reading.ID,
		"subject_id":      reading.SubjectID,
		"local_date":      reading.LocalDate,
		"period":          string(reading.Period),
		"systolic":        reading.Systolic,
		"diastolic":       reading.Diastolic,
		"pulse":           reading.Pulse,
		"captured_at":     formatTime(reading.CapturedAtUTC),
		"device_timezone": deviceTZ,
		"source_epoch_ms": epochMs,
		"source":          string(reading.Source),
		"created_at":      formatTime(now),
		"updated_at":      formatTime(now),
	}

	query, args, err := sqlx.Named(queryUpsertReading, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for UpsertReading")
		return entity.VitalReading{}, false, err
	}
	query = r.q.Rebind(query)

	var row VitalReadingDB
	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": reading.SubjectID,
			"local_date": reading.LocalDate,
			"period":     reading.Period,
			"error":      err.Error(),
		}).Error("Database error when upserting vital reading")
		return entity.VitalReading{}, false, fmt.Errorf("upsert vital reading: %w", err)
	}

	stored := row.toEntity()
	return stored, stored.Revision == 1, nil
}

func (r *vitalRepository) GetReadingsByDate(ctx context.Context, subjectID string, localDate string) ([]entity.VitalReading, error) {
	requestID := contextPkg.GetRequestID(ctx)

	argsKV := map[string]interface{}{
		"subject_id": subjectID,
		"local_date": localDate,
	}

	query, args, err := sqlx.Named(queryGetReadingsByDate, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetReadingsByDate named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []VitalReadingDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Error("Database error when reading vital readings")
		return nil, fmt.Errorf("get vital readings: %w", err)
	}

	readings := make([]entity.VitalReading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, row.toEntity())
	}
	return readings, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
