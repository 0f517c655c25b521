package depositclaim

import (
	"strings"
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

func (s *store) Create(tx *gorm.DB, claim *model.DepositClaim) (*model.DepositClaim, error) {
	return claim, tx.Create(claim).Error
}

func (s *store) GetByID(tx *gorm.DB, id string) (*model.DepositClaim, error) {
	var claim model.DepositClaim
	if err := tx.Where("id = ?", id).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (s *store) List(tx *gorm.DB, filter model.DepositClaimFilter) ([]*model.DepositClaim, int64, error) {
	var (
		claims []*model.DepositClaim
		total  int64
	)

	query := applyFilter(tx.Model(&model.DepositClaim{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	err := applyFilter(tx.Model(&model.DepositClaim{}), filter).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&claims).Error
	if err != nil {
		return nil, 0, err
	}

	return claims, total, nil
}

func applyFilter(query *gorm.DB, filter model.DepositClaimFilter) *gorm.DB {
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Network != "" {
		query = query.Where("network = ?", filter.Network)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.TxHash != "" {
		query = query.Where("tx_hash = ?", strings.TrimSpace(filter.TxHash))
	}
	return query
}

func (s *store) ListCreditedByTxHash(tx *gorm.DB, network model.Network, txHash, excludeID string) ([]*model.DepositClaim, error) {
	var claims []*model.DepositClaim
	err := tx.Where("network = ? AND tx_hash = ? AND state = ? AND id <> ?", network, txHash, model.DepositStateCredited, excludeID).
		Order("resolved_at ASC").
		Find(&claims).Error
	return claims, err
}

func (s *store) Transition(tx *gorm.DB, id string, from, to model.DepositState, resolvedBy string) (*model.DepositClaim, error) {
	if !from.CanTransitionTo(to) {
		return nil, errors.Wrapf(errs.ErrInvalidTransition, "deposit claim %s -> %s", from, to)
	}

	now := time.Now()
	result := tx.Model(&model.DepositClaim{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]interface{}{
			"state":       to,
			"resolved_by": resolvedBy,
			"resolved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	claim, err := s.GetByID(tx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return claim, errors.Wrapf(errs.ErrStaleState, "deposit claim %s is %s", id, claim.State)
	}
	return claim, nil
}

func (s *store) MarkLedgerApplied(tx *gorm.DB, id, ledgerReference string) error {
	now := time.Now()
	result := tx.Model(&model.DepositClaim{}).
		Where("id = ? AND state = ? AND ledger_applied_at IS NULL", id, model.DepositStateCredited).
		Updates(map[string]interface{}{
			"ledger_applied_at": now,
			"ledger_reference":  ledgerReference,
			"updated_at":        now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(errs.ErrStaleState, "deposit claim %s is not an unapplied credit", id)
	}
	return nil
}

func (s *store) ListUnappliedCredits(tx *gorm.DB, olderThan time.Time) ([]*model.DepositClaim, error) {
	var claims []*model.DepositClaim
	err := tx.Where("state = ? AND ledger_applied_at IS NULL AND resolved_at < ?", model.DepositStateCredited, olderThan).
		Order("resolved_at ASC").
		Find(&claims).Error
	return claims, err
}

func (s *store) SumByState(tx *gorm.DB, state model.DepositState) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&model.DepositClaim{}).
		Select("SUM(claimed_amount)").
		Where("state = ?", state).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *store) CountByState(tx *gorm.DB, state model.DepositState) (int64, error) {
	var count int64
	err := tx.Model(&model.DepositClaim{}).Where("state = ?", state).Count(&count).Error
	return count, err
}
