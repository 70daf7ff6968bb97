package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createInvoiceLineItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_invoice_line_items",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS invoice_line_items (
					id BIGSERIAL PRIMARY KEY,
					invoice_id BIGINT NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
					position INT NOT NULL,
					description TEXT NOT NULL,
					amount NUMERIC(12,2) NOT NULL,
					quantity INT NOT NULL DEFAULT 1 CHECK (quantity >= 0),
					created_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_invoice_position ON invoice_line_items (invoice_id, position)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP TABLE IF EXISTS invoice_line_items`).Error
		},
	}
}
