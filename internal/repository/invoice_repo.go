package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kartarkiv/invoice-service/internal/domain"
)

type InvoiceRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	MarkInvoiceRequested(ctx context.Context, id int64, kid string, accountNumber string, requestedAt time.Time) error
}

type GormInvoiceRepo struct {
	db *gorm.DB
}

func NewGormInvoiceRepo(db *gorm.DB) *GormInvoiceRepo {
	return &GormInvoiceRepo{db: db}
}

func (r *GormInvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	var model InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return invoiceModelToDomain(&model), nil
}

// MarkInvoiceRequested records that the invoice email was delivered.
func (r *GormInvoiceRepo) MarkInvoiceRequested(
	ctx context.Context,
	id int64,
	kid string,
	accountNumber string,
	requestedAt time.Time,
) error {
	result := r.db.WithContext(ctx).
		Model(&InvoiceModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":               domain.StatusInvoiceRequested,
			"invoice_requested_at": requestedAt,
			"kid":                  kid,
			"account_number":       accountNumber,
			"updated_at":           requestedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark invoice %d as requested: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
