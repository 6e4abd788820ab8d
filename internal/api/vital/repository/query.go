package vitalRepository

const (
	// Single statement so concurrent captures for one key resolve inside the database.
	queryUpsertReading = `
		INSERT INTO vital_readings (
			id,
			subject_id,
			local_date,
			period,
			systolic,
			diastolic,
			pulse,
			captured_at,
			device_timezone,
			source_epoch_ms,
			source,
			revision,
			created_at,
			updated_at
		) VALUES (
			:id,
			:subject_id,
			:local_date,
			:period,
			:systolic,
			:diastolic,
			:pulse,
			:captured_at,
			:device_timezone,
			:source_epoch_ms,
			:source,
			1,
			:created_at,
			:updated_at
		)
		ON CONFLICT (subject_id, local_date, period) DO UPDATE SET
			systolic = excluded.systolic,
			diastolic = excluded.diastolic,
			pulse = excluded.pulse,
			captured_at = excluded.captured_at,
			device_timezone = excluded.device_timezone,
			source_epoch_ms = excluded.source_epoch_ms,
			source = excluded.source,
			revision = vital_readings.revision + 1,
			updated_at = excluded.updated_at
		RETURNING
			id,
			subject_id,
			local_date,
			period,
			systolic,
			diastolic,
			pulse,
			captured_at,
			device_timezone,
			source_epoch_ms,
			source,
			revision,
			created_at,
			updated_at
	`

	queryGetReadingsByDate = `
		SELECT
			id,
			subject_id,
			local_date,
			period,
			systolic,
			diastolic,
			pulse,
			captured_at,
			device_timezone,
			source_epoch_ms,
			source,
			revision,
			created_at,
			updated_at
		FROM vital_readings
		WHERE subject_id = :subject_id AND local_date = :local_date
		ORDER BY period DESC
	`
)
