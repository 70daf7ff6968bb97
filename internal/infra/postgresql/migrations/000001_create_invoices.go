package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoicesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_invoices",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS invoices (
					id BIGSERIAL PRIMARY KEY,
					buyer_email VARCHAR(255) NOT NULL,
					buyer_name VARCHAR(255) NOT NULL,
					amount_nok NUMERIC(12,2) NOT NULL CHECK (amount_nok > 0),
					due_date DATE,
					status VARCHAR(32) NOT NULL DEFAULT 'pending',
					created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_invoices_status_created ON invoices (status, created_at)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS invoices`).Error
		},
	}
}
