package vitalRepository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"eldercare-vitals/database/migrations"
	"eldercare-vitals/database/sqlite"
	"eldercare-vitals/internal/entity"
	logPkg "eldercare-vitals/pkg/log"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readingColumns = []string{
	"id", "subject_id", "local_date", "period", "systolic", "diastolic", "pulse",
	"captured_at", "device_timezone", "source_epoch_ms", "source", "revision",
	"created_at", "updated_at",
}

func setupMockVitalDB(t *testing.T) (sqlmock.Sqlmock, Repository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return mock, New(sqlx.NewDb(db, "postgres"), logPkg.NewTestLogger())
}

func setupSQLiteRepo(t *testing.T) Repository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "vitals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Apply(context.Background(), db, sqlite.DriverName))
	return New(db, logPkg.NewTestLogger())
}

func morningReading(id string, m entity.Measurement) entity.VitalReading {
	return entity.VitalReading{
		ID:            id,
		SubjectID:     "42",
		LocalDate:     "2025-09-20",
		Period:        entity.PeriodMorning,
		Systolic:      m.Systolic,
		Diastolic:     m.Diastolic,
		Pulse:         m.Pulse,
		CapturedAtUTC: time.Date(2025, 9, 20, 1, 0, 0, 0, time.UTC),
		Source:        entity.SourcePrimary,
	}
}

func TestUpsertReading_PostgresShape(t *testing.T) {
	mock, repo := setupMockVitalDB(t)
	ctx := context.Background()

	epoch := int64(1758330000000)
	reading := morningReading("01J8Z0000000000000000000AA", entity.Measurement{Systolic: 120, Diastolic: 80, Pulse: 72})
	reading.DeviceTimezone = "Asia/Taipei"
	reading.SourceEpochMillis = &epoch

	captured := time.Date(2025, 9, 20, 1, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(readingColumns).AddRow(
		reading.ID, "42", time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC), "morning", 120, 80, 72,
		captured, "Asia/Taipei", epoch, "primary", 1,
		captured, captured,
	)

	mock.ExpectQuery(`INSERT INTO vital_readings .* VALUES \( \$1, \$2, .* ON CONFLICT \(subject_id, local_date, period\) DO UPDATE SET .* revision = vital_readings.revision \+ 1`).
		WithArgs(
			reading.ID, "42", "2025-09-20", "morning", 120, 80, 72,
			"2025-09-20T01:00:00Z", "Asia/Taipei", epoch, "primary",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(rows)

	client, err := repo.NewClient(false)
	require.NoError(t, err)

	stored, created, err := client.Vital.UpsertReading(ctx, reading)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2025-09-20", stored.LocalDate)
	assert.Equal(t, captured, stored.CapturedAtUTC)
	require.NotNil(t, stored.SourceEpochMillis)
	assert.Equal(t, epoch, *stored.SourceEpochMillis)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReading_OptionalFieldsBindNull(t *testing.T) {
	mock, repo := setupMockVitalDB(t)

	reading := morningReading("01J8Z0000000000000000000AB", entity.Measurement{Systolic: 118, Diastolic: 79, Pulse: 70})
	captured := reading.CapturedAtUTC

	rows := sqlmock.NewRows(readingColumns).AddRow(
		reading.ID, "42", "2025-09-20", "morning", 118, 79, 70,
		captured, nil, nil, "primary", 2,
		captured, captured,
	)
	mock.ExpectQuery(`INSERT INTO vital_readings`).
		WithArgs(
			reading.ID, "42", "2025-09-20", "morning", 118, 79, 70,
			"2025-09-20T01:00:00Z", nil, nil, "primary",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(rows)

	client, err := repo.NewClient(false)
	require.NoError(t, err)

	stored, created, err := client.Vital.UpsertReading(context.Background(), reading)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, stored.Revision)
	assert.Nil(t, stored.SourceEpochMillis)
	assert.Empty(t, stored.DeviceTimezone)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertReading_DatabaseError(t *testing.T) {
	mock, repo := setupMockVitalDB(t)

	mock.ExpectQuery(`INSERT INTO vital_readings`).WillReturnError(assert.AnError)

	client, err := repo.NewClient(false)
	require.NoError(t, err)

	_, _, err = client.Vital.UpsertReading(context.Background(),
		morningReading("01J8Z0000000000000000000AC", entity.Measurement{Systolic: 120, Diastolic: 80, Pulse: 72}))
	require.ErrorIs(t, err, assert.AnError)
}

func TestGetReadingsByDate_Postgres(t *testing.T) {
	mock, repo := setupMockVitalDB(t)
	captured := time.Date(2025, 9, 20, 1, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(readingColumns).
		AddRow("a", "42", "2025-09-20", "morning", 120, 80, 72, captured, nil, nil, "primary", 1, captured, captured).
		AddRow("b", "42", "2025-09-20", "evening", 130, 85, 75, captured.Add(10*time.Hour), nil, nil, "fallback", 1, captured, captured)

	mock.ExpectQuery(`SELECT .* FROM vital_readings WHERE subject_id = \$1 AND local_date = \$2`).
		WithArgs("42", "2025-09-20").
		WillReturnRows(rows)

	client, err := repo.NewClient(false)
	require.NoError(t, err)

	readings, err := client.Vital.GetReadingsByDate(context.Background(), "42", "2025-09-20")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, entity.PeriodEvening, readings[1].Period)
	assert.Equal(t, entity.SourceFallback, readings[1].Source)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_CreateThenOverwrite(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	client, err := repo.NewClient(false)
	require.NoError(t, err)

	first, created, err := client.Vital.UpsertReading(ctx,
		morningReading("01J8Z0000000000000000000B1", entity.Measurement{Systolic: 120, Diastolic: 80, Pulse: 72}))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Revision)

	second := morningReading("01J8Z0000000000000000000B2", entity.Measurement{Systolic: 118, Diastolic: 79, Pulse: 70})
	second.CapturedAtUTC = second.CapturedAtUTC.Add(30 * time.Minute)
	stored, created, err := client.Vital.UpsertReading(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, entity.Measurement{Systolic: 118, Diastolic: 79, Pulse: 70}, stored.Measurement())
	assert.Equal(t, second.CapturedAtUTC, stored.CapturedAtUTC)
	assert.Equal(t, first.CreatedAt, stored.CreatedAt)

	readings, err := client.Vital.GetReadingsByDate(ctx, "42", "2025-09-20")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 2, readings[0].Revision)
}

func TestSQLite_KeysAreIndependent(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()
	client, err := repo.NewClient(false)
	require.NoError(t, err)

	m := entity.Measurement{Systolic: 120, Diastolic: 80, Pulse: 72}

	evening := morningReading("e", m)
	evening.Period = entity.PeriodEvening
	otherDay := morningReading("d", m)
	otherDay.LocalDate = "2025-09-21"
	otherSubject := morningReading("s", m)
	otherSubject.SubjectID = "43"

	for _, r := range []entity.VitalReading{morningReading("m", m), evening, otherDay, otherSubject} {
		_, created, err := client.Vital.UpsertReading(ctx, r)
		require.NoError(t, err)
		assert.True(t, created)
	}

	readings, err := client.Vital.GetReadingsByDate(ctx, "42", "2025-09-20")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, entity.PeriodMorning, readings[0].Period)
	assert.Equal(t, entity.PeriodEvening, readings[1].Period)
}

func TestSQLite_ConcurrentUpsertsKeepOneRow(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := repo.NewClient(false)
			if !assert.NoError(t, err) {
				return
			}
			r := morningReading("01J8Z00000000000000000C"+string(rune('A'+i)),
				entity.Measurement{Systolic: 100 + i, Diastolic: 70, Pulse: 60})
			_, created, err := client.Vital.UpsertReading(ctx, r)
			if assert.NoError(t, err) && created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)

	client, err := repo.NewClient(false)
	require.NoError(t, err)
	readings, err := client.Vital.GetReadingsByDate(ctx, "42", "2025-09-20")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, writers, readings[0].Revision)
}

func TestSQLite_TransactionRollback(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	tx, err := repo.NewClient(true)
	require.NoError(t, err)
	_, _, err = tx.Vital.UpsertReading(ctx,
		morningReading("r", entity.Measurement{Systolic: 120, Diastolic: 80, Pulse: 72}))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	client, err := repo.NewClient(false)
	require.NoError(t, err)
	readings, err := client.Vital.GetReadingsByDate(ctx, "42", "2025-09-20")
	require.NoError(t, err)
	assert.Empty(t, readings)
}
