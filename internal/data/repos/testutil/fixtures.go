package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
)

func SeedTicket(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID, businessID uint64) *types.Ticket {
	tb.Helper()
	now := time.Now().UTC()
	t := &types.Ticket{
		CustomerID: customerID,
		BusinessID: businessID,
		Status:     types.TicketOpen,
		Subject:    "help",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed ticket: %v", err)
	}
	return t
}

func SeedClaimedTicket(tb testing.TB, ctx context.Context, tx *gorm.DB, customerID, businessID, claimantID uint64) *types.Ticket {
	tb.Helper()
	t := SeedTicket(tb, ctx, tx, customerID, businessID)
	err := tx.WithContext(ctx).
		Model(&types.Ticket{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{"claimed_by_id": claimantID, "status": types.TicketInProgress}).Error
	if err != nil {
		tb.Fatalf("seed claim: %v", err)
	}
	t.ClaimedByID = &claimantID
	t.Status = types.TicketInProgress
	return t
}

func SeedEmployee(tb testing.TB, ctx context.Context, tx *gorm.DB, businessID, employeeID uint64, active bool) *types.BusinessEmployee {
	tb.Helper()
	now := time.Now().UTC()
	be := &types.BusinessEmployee{
		BusinessID: businessID,
		EmployeeID: employeeID,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(be).Error; err != nil {
		tb.Fatalf("seed employee: %v", err)
	}
	return be
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, msg *types.Message) *types.Message {
	tb.Helper()
	now := time.Now().UTC()
	if msg.Status == "" {
		msg.Status = types.StatusSent
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return msg
}
