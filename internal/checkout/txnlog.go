package checkout

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/example/parkpass/internal/models"
)

// ErrTransactionNotFound is returned when no audit record matches the
// requested order reference.
var ErrTransactionNotFound = errors.New("payment transaction not found")

// TransactionLog records payment initiation attempts and their
// settlement. The success page polls it by order reference.
type TransactionLog interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	Update(ctx context.Context, txn *models.PaymentTransaction) error
	FindByOrderRef(ctx context.Context, orderRef string) (*models.PaymentTransaction, error)
	List(ctx context.Context, limit, offset int) ([]models.PaymentTransaction, int64, error)
}

// GormTransactionLog is the Postgres-backed TransactionLog.
type GormTransactionLog struct {
	db *gorm.DB
}

// NewGormTransactionLog constructs a GormTransactionLog.
func NewGormTransactionLog(db *gorm.DB) *GormTransactionLog {
	return &GormTransactionLog{db: db}
}

func (l *GormTransactionLog) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return l.db.WithContext(ctx).Create(txn).Error
}

func (l *GormTransactionLog) Update(ctx context.Context, txn *models.PaymentTransaction) error {
	return l.db.WithContext(ctx).Save(txn).Error
}

func (l *GormTransactionLog) FindByOrderRef(ctx context.Context, orderRef string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := l.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (l *GormTransactionLog) List(ctx context.Context, limit, offset int) ([]models.PaymentTransaction, int64, error) {
	var txns []models.PaymentTransaction
	var total int64

	if err := l.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := l.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
