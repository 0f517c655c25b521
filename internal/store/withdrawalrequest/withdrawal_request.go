package withdrawalrequest

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/store/errs"
)

const defaultListLimit = 50

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, req *model.WithdrawalRequest) (*model.WithdrawalRequest, error) {
	if err := tx.Create(req).Error; err != nil {
		if errs.IsUniqueViolation(err) {
			return nil, errs.ErrPendingRequestExists
		}
		return nil, err
	}
	return req, nil
}

func (s *store) GetByID(tx *gorm.DB, id string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *store) HasPending(tx *gorm.DB, userID string) (bool, error) {
	var count int64
	err := tx.Model(&model.WithdrawalRequest{}).
		Where("user_id = ? AND state = ?", userID, model.WithdrawalStatePending).
		Count(&count).Error
	return count > 0, err
}

func (s *store) List(tx *gorm.DB, filter model.WithdrawalFilter) ([]*model.WithdrawalRequest, int64, error) {
	var (
		reqs  []*model.WithdrawalRequest
		total int64
	)

	if err := applyFilter(tx.Model(&model.WithdrawalRequest{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	err := applyFilter(tx.Model(&model.WithdrawalRequest{}), filter).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func applyFilter(query *gorm.DB, filter model.WithdrawalFilter) *gorm.DB {
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	return query
}

func (s *store) Transition(tx *gorm.DB, id string, from, to model.WithdrawalState, fields TransitionFields) (*model.WithdrawalRequest, error) {
	if !from.CanTransitionTo(to) {
		return nil, errors.Wrapf(errs.ErrInvalidTransition, "withdrawal request %s -> %s", from, to)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"state":           to,
		"pending_user_id": nil,
		"resolved_by":     fields.ResolvedBy,
		"resolved_at":     now,
		"updated_at":      now,
	}
	if fields.PayoutTxHash != "" {
		updates["payout_tx_hash"] = fields.PayoutTxHash
	}

	result := tx.Model(&model.WithdrawalRequest{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	req, err := s.GetByID(tx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return req, errors.Wrapf(errs.ErrStaleState, "withdrawal request %s is %s", id, req.State)
	}
	return req, nil
}

func (s *store) DeletePending(tx *gorm.DB, id string) error {
	result := tx.Where("id = ? AND state = ? AND ledger_debited_at IS NULL", id, model.WithdrawalStatePending).
		Delete(&model.WithdrawalRequest{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(errs.ErrStaleState, "withdrawal request %s cannot be deleted", id)
	}
	return nil
}

func (s *store) MarkDebited(tx *gorm.DB, id string) error {
	return s.stamp(tx, id, "ledger_debited_at", "ledger_debited_at IS NULL")
}

func (s *store) MarkRefunded(tx *gorm.DB, id string) error {
	return s.stamp(tx, id, "refunded_at", "state = 'rejected' AND refunded_at IS NULL")
}

func (s *store) MarkDebitAbsent(tx *gorm.DB, id string) error {
	return s.stamp(tx, id, "debit_absent_at", "state = 'rejected' AND ledger_debited_at IS NULL AND refunded_at IS NULL AND debit_absent_at IS NULL")
}

func (s *store) stamp(tx *gorm.DB, id, column, condition string) error {
	now := time.Now()
	result := tx.Model(&model.WithdrawalRequest{}).
		Where("id = ?", id).
		Where(condition).
		Updates(map[string]interface{}{
			column:       now,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(errs.ErrStaleState, "withdrawal request %s: %s already set", id, column)
	}
	return nil
}

func (s *store) ListUnrefunded(tx *gorm.DB, olderThan time.Time) ([]*model.WithdrawalRequest, error) {
	var reqs []*model.WithdrawalRequest
	err := tx.Where("state = ? AND refunded_at IS NULL AND debit_absent_at IS NULL AND resolved_at < ?",
		model.WithdrawalStateRejected, olderThan).
		Order("resolved_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (s *store) ListUnconfirmedDebits(tx *gorm.DB, olderThan time.Time) ([]*model.WithdrawalRequest, error) {
	var reqs []*model.WithdrawalRequest
	err := tx.Where("state = ? AND ledger_debited_at IS NULL AND created_at < ?",
		model.WithdrawalStatePending, olderThan).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (s *store) SumByState(tx *gorm.DB, state model.WithdrawalState) (decimal.Decimal, decimal.Decimal, error) {
	var amount, fees decimal.NullDecimal
	err := tx.Model(&model.WithdrawalRequest{}).
		Select("SUM(amount), SUM(fee)").
		Where("state = ?", state).
		Row().
		Scan(&amount, &fees)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return orZero(amount), orZero(fees), nil
}

func (s *store) CountByState(tx *gorm.DB, state model.WithdrawalState) (int64, error) {
	var count int64
	err := tx.Model(&model.WithdrawalRequest{}).Where("state = ?", state).Count(&count).Error
	return count, err
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
