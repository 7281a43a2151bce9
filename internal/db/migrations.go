package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS measurements (
		measure_uuid UUID PRIMARY KEY,
		customer_code VARCHAR(64) NOT NULL,
		measure_datetime TIMESTAMPTZ NOT NULL,
		measure_type VARCHAR(16) NOT NULL CHECK (measure_type IN ('WATER', 'GAS')),
		measure_value NUMERIC(12,2),
		confirmed_value NUMERIC(12,2),
		image_url TEXT NOT NULL DEFAULT '',
		has_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		month_bucket INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'measurements' AND column_name = 'confirmed_value') THEN
			ALTER TABLE measurements ADD COLUMN confirmed_value NUMERIC(12,2);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'measurements' AND column_name = 'month_bucket') THEN
			ALTER TABLE measurements ADD COLUMN month_bucket INTEGER NOT NULL DEFAULT 0;
			UPDATE measurements
			SET month_bucket = EXTRACT(YEAR FROM measure_datetime AT TIME ZONE 'UTC')::INTEGER * 100
				+ EXTRACT(MONTH FROM measure_datetime AT TIME ZONE 'UTC')::INTEGER;
		END IF;
	END
	$$;`,
	// One reading per customer, type and calendar month, enforced at write
	// time so concurrent uploads cannot slip past the pre-insert check.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_measurements_customer_type_month ON measurements (customer_code, measure_type, month_bucket);`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_customer_code ON measurements (customer_code);`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_datetime ON measurements (measure_datetime);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
