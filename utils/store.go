package utils

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tahseel/models"
)

// GormStore is the production Store backed by Postgres.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) SequenceByID(ctx context.Context, id uint) (*models.ReminderSequence, error) {
	var sequence models.ReminderSequence
	err := s.DB.WithContext(ctx).Preload("Steps").First(&sequence, id).Error
	if err != nil {
		return nil, err
	}
	return &sequence, nil
}

// OpenExecution returns the non-terminal execution for the pair, if any.
// ERROR counts as open: it is resumable and still owns the pair.
func (s *GormStore) OpenExecution(ctx context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error) {
	var execution models.SequenceExecution
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ? AND invoice_id = ? AND status IN ?",
			sequenceID, invoiceID,
			[]string{models.ExecutionPending, models.ExecutionActive, models.ExecutionError}).
		First(&execution).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (s *GormStore) LatestExecution(ctx context.Context, sequenceID, invoiceID uint) (*models.SequenceExecution, error) {
	var execution models.SequenceExecution
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ? AND invoice_id = ?", sequenceID, invoiceID).
		Order("id DESC").
		First(&execution).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (s *GormStore) ExecutionByID(ctx context.Context, id uint) (*models.SequenceExecution, error) {
	var execution models.SequenceExecution
	if err := s.DB.WithContext(ctx).First(&execution, id).Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

func (s *GormStore) CreateExecution(ctx context.Context, exec *models.SequenceExecution) error {
	return s.DB.WithContext(ctx).Create(exec).Error
}

func (s *GormStore) SaveExecution(ctx context.Context, exec *models.SequenceExecution) error {
	return s.DB.WithContext(ctx).Save(exec).Error
}

func (s *GormStore) ExecutionsForSequence(ctx context.Context, sequenceID uint) ([]models.SequenceExecution, error) {
	var executions []models.SequenceExecution
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ?", sequenceID).
		Order("id ASC").
		Find(&executions).Error
	return executions, err
}

func (s *GormStore) DispatchContext(ctx context.Context, invoiceID uint) (*models.Invoice, *models.Customer, *models.Company, error) {
	var invoice models.Invoice
	if err := s.DB.WithContext(ctx).First(&invoice, invoiceID).Error; err != nil {
		return nil, nil, nil, err
	}
	var customer models.Customer
	if err := s.DB.WithContext(ctx).First(&customer, invoice.CustomerID).Error; err != nil {
		return nil, nil, nil, err
	}
	var company models.Company
	if err := s.DB.WithContext(ctx).First(&company, invoice.CompanyID).Error; err != nil {
		return nil, nil, nil, err
	}
	return &invoice, &customer, &company, nil
}

func (s *GormStore) InvoiceSettled(ctx context.Context, invoiceID uint) (bool, error) {
	var invoice models.Invoice
	if err := s.DB.WithContext(ctx).First(&invoice, invoiceID).Error; err != nil {
		return false, err
	}
	return invoice.IsSettled(), nil
}

func (s *GormStore) CustomerRepliedSince(ctx context.Context, customerID uint, since time.Time) (bool, error) {
	var customer models.Customer
	if err := s.DB.WithContext(ctx).First(&customer, customerID).Error; err != nil {
		return false, err
	}
	return customer.LastRepliedAt != nil && customer.LastRepliedAt.After(since), nil
}

func (s *GormStore) IncrementStepSent(ctx context.Context, stepID uint) error {
	return s.DB.WithContext(ctx).Model(&models.SequenceStep{}).
		Where("id = ?", stepID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
}
