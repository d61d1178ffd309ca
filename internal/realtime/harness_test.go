package realtime

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	chatrepo "github.com/yungbote/helpdesk-backend/internal/data/repos/chat"
	helpdeskrepo "github.com/yungbote/helpdesk-backend/internal/data/repos/helpdesk"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

const (
	bizID      uint64 = 10
	customerID uint64 = 7
	empA       uint64 = 3
	empB       uint64 = 4
	empGone    uint64 = 5
	outsider   uint64 = 6
)

type harness struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	messages   chatrepo.MessageRepo
	unread     chatrepo.UnreadRepo
	tickets    helpdeskrepo.TicketRepo
	employment helpdeskrepo.EmploymentRepo
	registry   *Registry
	router     *Router
	delivery   *Delivery
	gateway    *Gateway
}

// newHarness seeds business 10 with active employees 3 and 4, inactive
// employee 5, and employee 6 working for another business.
func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		t:          t,
		ctx:        ctx,
		db:         db,
		messages:   chatrepo.NewMessageRepo(db, log),
		unread:     chatrepo.NewUnreadRepo(db, log),
		tickets:    helpdeskrepo.NewTicketRepo(db, log),
		employment: helpdeskrepo.NewEmploymentRepo(db, log),
	}
	h.registry = NewRegistry(log, time.Hour)
	h.router = NewRouter(h.tickets, h.employment, log)
	h.delivery = NewDelivery(DeliveryDeps{
		Registry:   h.registry,
		Router:     h.router,
		Messages:   h.messages,
		Unread:     h.unread,
		Employment: h.employment,
	}, log)
	h.gateway = NewGateway(h.registry, h.delivery, GatewayOptions{}, log)

	done := make(chan struct{})
	go func() {
		_ = h.registry.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	testutil.SeedEmployee(t, ctx, db, bizID, empA, true)
	testutil.SeedEmployee(t, ctx, db, bizID, empB, true)
	testutil.SeedEmployee(t, ctx, db, bizID, empGone, false)
	testutil.SeedEmployee(t, ctx, db, 20, outsider, true)
	return h
}

func (h *harness) ticket(id uint64, claimedBy uint64) *types.Ticket {
	h.t.Helper()
	now := time.Now().UTC()
	t := &types.Ticket{
		ID:         id,
		CustomerID: customerID,
		BusinessID: bizID,
		Status:     types.TicketOpen,
		Subject:    "printer on fire",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if claimedBy != 0 {
		t.ClaimedByID = &claimedBy
		t.Status = types.TicketInProgress
	}
	if err := h.db.Create(t).Error; err != nil {
		h.t.Fatalf("seed ticket: %v", err)
	}
	return t
}

// connect opens a session and consumes its connection frame.
func (h *harness) connect(role auth.Role, id uint64) *fakeSocket {
	h.t.Helper()
	sock := newFakeSocket()
	ident := auth.NewIdentity(role, id)
	go h.gateway.Serve(h.ctx, ident, sock)
	f := expectFrame(h.t, sock, wire.TypeConnection)
	if f.UserID != id || f.Role != role || f.Status != wire.StatusConnected {
		h.t.Fatalf("connection frame: %+v", f)
	}
	return sock
}

func (h *harness) message(id uint64) *types.Message {
	h.t.Helper()
	m, err := h.messages.GetByID(dbctx.Of(h.ctx), id)
	if err != nil {
		h.t.Fatalf("GetByID(%d): %v", id, err)
	}
	return m
}

func (h *harness) countMessages() int64 {
	h.t.Helper()
	var n int64
	if err := h.db.Model(&types.Message{}).Count(&n).Error; err != nil {
		h.t.Fatalf("count messages: %v", err)
	}
	return n
}

func ticketFrame(sender, ticketID uint64, content string) wire.Frame {
	tid := ticketID
	return wire.Frame{
		Type:      wire.TypeMessage,
		SenderID:  sender,
		Content:   content,
		TicketID:  &tid,
		Timestamp: wire.Millis(time.Now()),
	}
}

func directFrame(sender, receiver uint64, content string) wire.Frame {
	peer := receiver
	return wire.Frame{
		Type:                wire.TypeMessage,
		SenderID:            sender,
		ReceiverID:          receiver,
		Content:             content,
		DirectMessageUserID: &peer,
		Timestamp:           wire.Millis(time.Now()),
	}
}
