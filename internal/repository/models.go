package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kartarkiv/invoice-service/internal/domain"
)

// InvoiceModel is the persistence model for the invoices table.
type InvoiceModel struct {
	ID                 int64                  `gorm:"primaryKey;autoIncrement"`
	BuyerEmail         string                 `gorm:"type:varchar(255);not null"`
	BuyerName          string                 `gorm:"type:varchar(255);not null"`
	AmountNOK          decimal.Decimal        `gorm:"column:amount_nok;type:numeric(12,2);not null"`
	DueDate            *time.Time             `gorm:"type:date"`
	AccountNumber      *string                `gorm:"type:varchar(20)"`
	KID                *string                `gorm:"column:kid;type:varchar(25)"`
	Status             domain.Status          `gorm:"type:varchar(32);not null;default:pending"`
	InvoiceRequestedAt *time.Time             `gorm:"type:timestamptz"`
	LineItems          []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceLineItemModel is the persistence model for invoice_line_items.
// Position keeps the order the items were entered in.
type InvoiceLineItemModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceID   int64           `gorm:"not null;index"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:text;not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Quantity    int             `gorm:"not null;default:1"`
	CreatedAt   time.Time
}

func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

func invoiceModelToDomain(m *InvoiceModel) *domain.Invoice {
	if m == nil {
		return nil
	}

	inv := &domain.Invoice{
		ID:                 m.ID,
		BuyerEmail:         m.BuyerEmail,
		BuyerName:          m.BuyerName,
		AmountNOK:          m.AmountNOK,
		DueDate:            m.DueDate,
		AccountNumber:      m.AccountNumber,
		KID:                m.KID,
		Status:             m.Status,
		InvoiceRequestedAt: m.InvoiceRequestedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if len(m.LineItems) > 0 {
		inv.LineItems = make([]domain.LineItem, 0, len(m.LineItems))
		for _, item := range m.LineItems {
			inv.LineItems = append(inv.LineItems, domain.LineItem{
				Description: item.Description,
				Amount:      item.Amount,
				Quantity:    item.Quantity,
			})
		}
	}
	return inv
}
