package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addInvoicePaymentReferenceColumns() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_invoice_payment_reference",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`ALTER TABLE invoices ADD COLUMN IF NOT EXISTS kid VARCHAR(25)`,
				`ALTER TABLE invoices ADD COLUMN IF NOT EXISTS account_number VARCHAR(20)`,
				`ALTER TABLE invoices ADD COLUMN IF NOT EXISTS invoice_requested_at TIMESTAMPTZ`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_kid ON invoices (kid) WHERE kid IS NOT NULL`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_invoices_kid`,
				`ALTER TABLE invoices DROP COLUMN IF EXISTS invoice_requested_at`,
				`ALTER TABLE invoices DROP COLUMN IF EXISTS account_number`,
				`ALTER TABLE invoices DROP COLUMN IF EXISTS kid`,
			})
		},
	}
}
