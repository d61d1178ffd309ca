package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

func (h *harness) waitStatus(id uint64, want types.MessageStatus) {
	h.t.Helper()
	waitFor(h.t, fmt.Sprintf("message %d %s", id, want), func() bool {
		return h.message(id).Status == want
	})
}

func TestSweepPrecedesLiveDispatch(t *testing.T) {
	h := newHarness(t)
	h.ticket(42, empA)
	customer := auth.NewIdentity(auth.RoleCustomer, customerID)

	first, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, "first"))
	if err != nil {
		t.Fatalf("Dispatch(first): %v", err)
	}

	sock := newFakeSocket()
	c := NewConn(auth.NewIdentity(auth.RoleEmployee, empA), sock, ConnOptions{}, testLogger(t))
	if !h.registry.Register(c) {
		t.Fatalf("Register: want=true")
	}
	go c.WritePump()
	t.Cleanup(c.Close)

	// Registered but not yet swept: the live push waits for the backlog.
	second, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, "second"))
	if err != nil {
		t.Fatalf("Dispatch(second): %v", err)
	}
	expectSilence(t, sock, quiet)
	if c.Live() {
		t.Fatalf("conn should not take live pushes before its sweep")
	}
	if got := h.message(second.ID).Status; got != types.StatusSent {
		t.Fatalf("held message: want=sent got=%s", got)
	}

	n, err := h.delivery.SweepPending(h.ctx, c)
	if err != nil || n != 2 {
		t.Fatalf("SweepPending: n=%d err=%v", n, err)
	}
	for _, want := range []*types.Message{first, second} {
		f := expectFrame(t, sock, wire.TypeMessage)
		if f.MessageID != want.ID || f.Content != want.Content {
			t.Fatalf("sweep order: want=%d(%s) got=%d(%s)", want.ID, want.Content, f.MessageID, f.Content)
		}
	}
	h.waitStatus(first.ID, types.StatusDelivered)
	h.waitStatus(second.ID, types.StatusDelivered)

	third, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, "third"))
	if err != nil {
		t.Fatalf("Dispatch(third): %v", err)
	}
	if f := expectFrame(t, sock, wire.TypeMessage); f.MessageID != third.ID {
		t.Fatalf("live push after sweep: want=%d got=%d", third.ID, f.MessageID)
	}
	h.waitStatus(third.ID, types.StatusDelivered)
}

func TestQueuedFrameDroppedBySupersessionStaysPending(t *testing.T) {
	h := newHarness(t)
	h.ticket(42, empA)
	customer := auth.NewIdentity(auth.RoleCustomer, customerID)

	// No write pump: frames sit in the queue.
	stale := NewConn(auth.NewIdentity(auth.RoleEmployee, empA), newFakeSocket(), ConnOptions{}, testLogger(t))
	if !h.registry.Register(stale) {
		t.Fatalf("Register: want=true")
	}
	if n, err := h.delivery.SweepPending(h.ctx, stale); err != nil || n != 0 {
		t.Fatalf("empty sweep: n=%d err=%v", n, err)
	}
	if !stale.Live() {
		t.Fatalf("empty sweep should open the conn")
	}

	msg, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, "stuck in queue"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := h.message(msg.ID).Status; got != types.StatusSent {
		t.Fatalf("queued only: want=sent got=%s", got)
	}

	fresh := h.connect(auth.RoleEmployee, empA)
	waitFor(t, "stale close", stale.Closed)
	f := expectFrame(t, fresh, wire.TypeMessage)
	if f.MessageID != msg.ID {
		t.Fatalf("redelivered: want=%d got=%d", msg.ID, f.MessageID)
	}
	h.waitStatus(msg.ID, types.StatusDelivered)
}

func TestQueuedFrameDroppedByCloseStaysPending(t *testing.T) {
	h := newHarness(t)
	h.ticket(42, empA)
	customer := auth.NewIdentity(auth.RoleCustomer, customerID)

	sock := newFakeSocket()
	c := NewConn(auth.NewIdentity(auth.RoleEmployee, empA), sock, ConnOptions{}, testLogger(t))
	h.registry.Register(c)
	if _, err := h.delivery.SweepPending(h.ctx, c); err != nil {
		t.Fatalf("SweepPending: %v", err)
	}
	msg, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, "never written"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	c.Close()
	h.registry.Unregister(c)
	go c.WritePump()

	expectSilence(t, sock, quiet)
	if got := h.message(msg.ID).Status; got != types.StatusSent {
		t.Fatalf("dropped frame: want=sent got=%s", got)
	}
}

func TestMailboxStaysOpenUntilClaimed(t *testing.T) {
	h := newHarness(t)
	h.ticket(42, 0)
	owner := h.connect(auth.RoleBusiness, bizID)
	customer := h.connect(auth.RoleCustomer, customerID)

	customer.send(t, ticketFrame(customerID, 42, "Hello"))
	echo := expectFrame(t, customer, wire.TypeMessage)
	if f := expectFrame(t, owner, wire.TypeMessage); f.MessageID != echo.MessageID {
		t.Fatalf("owner frame: want=%d got=%d", echo.MessageID, f.MessageID)
	}
	if u := expectFrame(t, customer, wire.TypeStatusUpdate); u.Status != string(types.StatusDelivered) {
		t.Fatalf("status: want=delivered got=%s", u.Status)
	}

	// Delivered to the owner, still unclaimed: employees coming online get it.
	a := h.connect(auth.RoleEmployee, empA)
	if f := expectFrame(t, a, wire.TypeMessage); f.MessageID != echo.MessageID {
		t.Fatalf("employee sweep: want=%d got=%d", echo.MessageID, f.MessageID)
	}
	expectSilence(t, customer, quiet)

	if _, err := h.tickets.Claim(dbctx.Of(h.ctx), 42, empB); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	again := h.connect(auth.RoleEmployee, empA)
	expectSilence(t, again, quiet)
}

func TestConcurrentDispatchKeepsTicketOrder(t *testing.T) {
	h := newHarness(t)
	h.ticket(42, empA)
	a := h.connect(auth.RoleEmployee, empA)
	customer := auth.NewIdentity(auth.RoleCustomer, customerID)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := h.delivery.Dispatch(h.ctx, customer, ticketFrame(customerID, 42, fmt.Sprintf("m%d", i))); err != nil {
				t.Errorf("Dispatch(m%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var last uint64
	for i := 0; i < n; i++ {
		f := expectFrame(t, a, wire.TypeMessage)
		if f.MessageID <= last {
			t.Fatalf("frame %d: id %d after %d", i, f.MessageID, last)
		}
		last = f.MessageID
	}
}

func TestDirectReadResetsDirectInbox(t *testing.T) {
	h := newHarness(t)
	a := h.connect(auth.RoleEmployee, empA)
	b := h.connect(auth.RoleEmployee, empB)

	a.send(t, directFrame(empA, empB, "standup?"))
	echo := expectFrame(t, a, wire.TypeMessage)
	expectFrame(t, b, wire.TypeMessage)
	expectFrame(t, a, wire.TypeStatusUpdate)

	rows, err := h.unread.ListForUser(dbctx.Of(h.ctx), empB)
	if err != nil || len(rows) != 1 || rows[0].TicketID != types.DirectInbox {
		t.Fatalf("direct unread: err=%v rows=%v", err, rows)
	}

	b.send(t, wire.StatusUpdate(echo.MessageID, types.StatusRead, time.Now()))
	if f := expectFrame(t, a, wire.TypeStatusUpdate); f.Status != string(types.StatusRead) {
		t.Fatalf("status: want=read got=%s", f.Status)
	}
	waitFor(t, "direct unread reset", func() bool {
		rows, err := h.unread.ListForUser(dbctx.Of(h.ctx), empB)
		return err == nil && len(rows) == 0
	})
}
