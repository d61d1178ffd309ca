package helpdesk

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// EmploymentRepo answers business membership questions. Only active links count.
type EmploymentRepo interface {
	Upsert(dbc dbctx.Context, businessID, employeeID uint64, active bool) error
	IsActive(dbc dbctx.Context, businessID, employeeID uint64) (bool, error)
	ListActiveEmployeeIDs(dbc dbctx.Context, businessID uint64) ([]uint64, error)
	ListActiveBusinessIDs(dbc dbctx.Context, employeeID uint64) ([]uint64, error)
	SharesActiveBusiness(dbc dbctx.Context, a, b uint64) (bool, error)
}

type employmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmploymentRepo(db *gorm.DB, log *logger.Logger) EmploymentRepo {
	return &employmentRepo{db: db, log: log.With("repo", "EmploymentRepo")}
}

func (r *employmentRepo) Upsert(dbc dbctx.Context, businessID, employeeID uint64, active bool) error {
	if businessID == 0 || employeeID == 0 {
		return fmt.Errorf("missing business or employee id")
	}
	now := time.Now().UTC()
	row := &types.BusinessEmployee{
		BusinessID: businessID,
		EmployeeID: employeeID,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := dbc.Conn(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "employee_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(row).Error
	return repoerr.Map(err)
}

func (r *employmentRepo) IsActive(dbc dbctx.Context, businessID, employeeID uint64) (bool, error) {
	if businessID == 0 || employeeID == 0 {
		return false, nil
	}
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.BusinessEmployee{}).
		Where("business_id = ? AND employee_id = ? AND is_active = ?", businessID, employeeID, true).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *employmentRepo) ListActiveEmployeeIDs(dbc dbctx.Context, businessID uint64) ([]uint64, error) {
	var ids []uint64
	err := dbc.Conn(r.db).
		Model(&types.BusinessEmployee{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("employee_id ASC").
		Pluck("employee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *employmentRepo) ListActiveBusinessIDs(dbc dbctx.Context, employeeID uint64) ([]uint64, error) {
	var ids []uint64
	err := dbc.Conn(r.db).
		Model(&types.BusinessEmployee{}).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Order("business_id ASC").
		Pluck("business_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *employmentRepo) SharesActiveBusiness(dbc dbctx.Context, a, b uint64) (bool, error) {
	if a == 0 || b == 0 || a == b {
		return false, nil
	}
	var n int64
	err := dbc.Conn(r.db).
		Table("business_employee AS x").
		Joins("JOIN business_employee AS y ON y.business_id = x.business_id").
		Where("x.employee_id = ? AND y.employee_id = ?", a, b).
		Where("x.is_active = ? AND y.is_active = ?", true, true).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
