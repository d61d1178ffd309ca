package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

const pendingBatch = 500

// Delivery persists messages and moves them through sent, delivered and
// read. Status events go to the sender's current connection and are dropped
// when the sender is offline.
type Delivery struct {
	registry   *Registry
	router     *Router
	messages   MessageStore
	unread     UnreadStore
	employment EmploymentStore
	locks      *keyedLocks
	log        *logger.Logger
	now        func() time.Time
}

type DeliveryDeps struct {
	Registry   *Registry
	Router     *Router
	Messages   MessageStore
	Unread     UnreadStore
	Employment EmploymentStore
}

func NewDelivery(deps DeliveryDeps, log *logger.Logger) *Delivery {
	return &Delivery{
		registry:   deps.Registry,
		router:     deps.Router,
		messages:   deps.Messages,
		unread:     deps.Unread,
		employment: deps.Employment,
		locks:      newKeyedLocks(),
		log:        log.With("component", "DeliveryStateMachine"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch routes, persists and pushes one message frame from sender. The
// returned message is nil when nothing was written.
func (d *Delivery) Dispatch(ctx context.Context, sender auth.Identity, f wire.Frame) (*types.Message, error) {
	start := time.Now()
	route, err := d.router.Resolve(ctx, sender, f)
	if err != nil {
		return nil, err
	}
	class := "ticket"
	if route.TicketID == nil {
		class = "direct"
	}

	ctx, span := observability.Tracer().Start(ctx, "realtime.dispatch")
	span.SetAttributes(attribute.String("class", class), attribute.String("order_key", route.OrderKey))
	defer span.End()

	unlock := d.locks.Lock(route.OrderKey)
	defer unlock()

	dbc := dbctx.Of(ctx)
	msg, err := d.persist(dbc, route, f)
	if err != nil {
		observability.Current().ObserveDispatch(class, "persist_failed", time.Since(start))
		d.log.Error("persist message failed", "error", err, "sender", sender.Key(), "order_key", route.OrderKey)
		return nil, errs.Wrap(errs.KindPersistence, "delivery.Dispatch", err)
	}

	if err := d.unread.Increment(dbc, route.Target.MemberIDs(), route.UnreadKey()); err != nil {
		d.log.Warn("unread increment failed", "error", err, "message_id", msg.ID)
	}

	if c, ok := d.registry.Lookup(sender); ok {
		_ = c.Push(wire.Message(msg, sender.ID))
	}

	pushed := d.fanOut(ctx, msg, route.Target.Members)
	span.SetAttributes(attribute.Int("pushed", pushed), attribute.Int("members", len(route.Target.Members)))
	observability.Current().ObserveDispatch(class, "ok", time.Since(start))
	d.log.Debug("message dispatched",
		"message_id", msg.ID,
		"target", route.Target.String(),
		"pushed", pushed,
	)
	return msg, nil
}

func (d *Delivery) persist(dbc dbctx.Context, route *Route, f wire.Frame) (*types.Message, error) {
	var (
		initiated bool
		err       error
	)
	if route.TicketID != nil {
		initiated, err = d.messages.HasTicketMessages(dbc, *route.TicketID)
	} else {
		initiated, err = d.messages.HasDirectMessages(dbc, route.Sender.ID, route.Target.Receiver.ID)
	}
	if err != nil {
		return nil, err
	}
	now := d.now()
	msg := &types.Message{
		Content:       f.Content,
		SenderID:      route.Sender.ID,
		SenderRole:    route.Sender.Role,
		ReceiverID:    route.Target.Receiver.ID,
		ReceiverRole:  route.Target.Receiver.Role,
		TicketID:      route.TicketID,
		Status:        types.StatusSent,
		ChatInitiator: !initiated,
		SentAt:        now,
		CreatedAt:     now,
	}
	return d.messages.Create(dbc, msg)
}

// fanOut queues msg to every live member and returns how many frames were
// queued. Offline members and conns still sweeping are skipped; the row stays
// at sent for their sweep. The first frame written moves the row to delivered.
func (d *Delivery) fanOut(ctx context.Context, msg *types.Message, members []auth.Identity) int {
	conns := d.registry.LookupMany(members)
	written := d.markDelivered(ctx, msg)
	var pushed atomic.Int64
	var g errgroup.Group
	for _, m := range members {
		c, ok := conns[m.Key()]
		if !ok {
			observability.Current().ObservePush("offline")
			continue
		}
		viewer := m.ID
		g.Go(func() error {
			queued, err := c.PushMessage(wire.Message(msg, viewer), written)
			switch {
			case err != nil:
				observability.Current().ObservePush("failed")
				d.log.Debug("push failed", "error", err, "message_id", msg.ID, "member", c.Identity.Key())
			case !queued:
				observability.Current().ObservePush("deferred")
			default:
				observability.Current().ObservePush("pushed")
				pushed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(pushed.Load())
}

// markDelivered returns the write callback for msg. It runs on a write pump
// after the request that produced msg may be gone, so it drops cancellation.
func (d *Delivery) markDelivered(ctx context.Context, msg *types.Message) func() {
	dbc := dbctx.Of(context.WithoutCancel(ctx))
	return func() {
		unlock := d.locks.Lock(orderKey(msg))
		defer unlock()
		d.advance(dbc, msg, types.StatusDelivered)
	}
}

// advance applies one forward transition and tells the sender when it took
// effect. Repeated or backward transitions are silent no-ops.
func (d *Delivery) advance(dbc dbctx.Context, msg *types.Message, status types.MessageStatus) bool {
	at := d.now()
	ok, err := d.messages.Advance(dbc, msg.ID, status, at)
	if err != nil {
		d.log.Error("advance status failed", "error", err, "message_id", msg.ID, "status", status)
		return false
	}
	if !ok {
		return false
	}
	observability.Current().IncStatus(string(status))
	if c, online := d.registry.Lookup(msg.Sender()); online {
		_ = c.Push(wire.StatusUpdate(msg.ID, status, at))
	}
	return true
}

// Acknowledge applies a client status_update for a message reader received.
func (d *Delivery) Acknowledge(ctx context.Context, reader auth.Identity, f wire.Frame) error {
	const op = "delivery.Acknowledge"
	if f.Type != wire.TypeStatusUpdate {
		return errs.Protocol(op, "not a status_update frame")
	}
	status := types.MessageStatus(f.Status)
	dbc := dbctx.Of(ctx)

	msg, err := d.messages.GetByID(dbc, f.MessageID)
	if err != nil {
		if errors.Is(err, repoerr.ErrNotFound) {
			return errs.NotFound(op, fmt.Sprintf("message %d not found", f.MessageID))
		}
		return errs.Wrap(errs.KindInternal, op, err)
	}
	allowed, err := d.mayAcknowledge(dbc, reader, msg)
	if err != nil {
		return errs.Wrap(errs.KindInternal, op, err)
	}
	if !allowed {
		return errs.Authorization(op, "message was not addressed to you")
	}

	unlock := d.locks.Lock(orderKey(msg))
	d.advance(dbc, msg, status)
	unlock()

	if status == types.StatusRead {
		key := types.DirectInbox
		if msg.TicketID != nil {
			key = *msg.TicketID
		}
		if err := d.unread.Reset(dbc, reader.ID, key); err != nil {
			d.log.Warn("unread reset failed", "error", err, "user_id", reader.ID, "ticket_id", key)
		}
	}
	return nil
}

// mayAcknowledge: the stored receiver, or an active employee of the business
// whose mailbox holds a ticket message.
func (d *Delivery) mayAcknowledge(dbc dbctx.Context, reader auth.Identity, msg *types.Message) (bool, error) {
	if msg.Receiver() == reader {
		return true, nil
	}
	if msg.TicketID == nil || msg.ReceiverRole != types.RoleBusiness || reader.Role != types.RoleEmployee {
		return false, nil
	}
	return d.employment.IsActive(dbc, msg.ReceiverID, reader.ID)
}

// SweepPending pushes c's backlog oldest first: every row still at sent for
// its identity and, for staff, the mailbox of every unclaimed ticket of their
// businesses whatever its status. Live message pushes to c are held until the
// backlog is empty. It returns how many frames were queued.
func (d *Delivery) SweepPending(ctx context.Context, c *Conn) (int, error) {
	const op = "delivery.SweepPending"
	dbc := dbctx.Of(ctx)
	var (
		after  uint64
		queued int
	)
	for !c.Closed() {
		var (
			rows []*types.Message
			err  error
		)
		c.drain(func() bool {
			rows, err = d.backlog(dbc, c.Identity, after)
			return err != nil || len(rows) == 0
		})
		if err != nil {
			return queued, errs.Wrap(errs.KindInternal, op, err)
		}
		if len(rows) == 0 {
			break
		}
		for _, msg := range rows {
			ok, err := d.redeliver(ctx, c, msg)
			if err != nil {
				return queued, nil
			}
			if ok {
				queued++
			}
			after = msg.ID
		}
	}
	if queued > 0 {
		d.log.Info("reconnect sweep queued pending messages", "identity", c.Identity.Key(), "queued", queued)
	}
	return queued, nil
}

// backlog returns the next id-ordered batch above after. When a source fills
// its batch the merge stops at the smallest full batch's last id, so nothing
// below the next cursor is skipped.
func (d *Delivery) backlog(dbc dbctx.Context, id auth.Identity, after uint64) ([]*types.Message, error) {
	rows, err := d.messages.ListPending(dbc, id, after, pendingBatch)
	if err != nil {
		return nil, err
	}
	var businesses []uint64
	switch id.Role {
	case types.RoleEmployee:
		if businesses, err = d.employment.ListActiveBusinessIDs(dbc, id.ID); err != nil {
			return nil, err
		}
	case types.RoleBusiness:
		businesses = []uint64{id.ID}
	}
	if len(businesses) == 0 {
		return rows, nil
	}
	mailbox, err := d.messages.ListMailbox(dbc, businesses, after, pendingBatch)
	if err != nil {
		return nil, err
	}
	var limit uint64
	for _, batch := range [][]*types.Message{rows, mailbox} {
		if len(batch) < pendingBatch {
			continue
		}
		if last := batch[len(batch)-1].ID; limit == 0 || last < limit {
			limit = last
		}
	}
	merged := mergeByID(rows, mailbox)
	if limit == 0 {
		return merged, nil
	}
	n := 0
	for n < len(merged) && merged[n].ID <= limit {
		n++
	}
	return merged[:n], nil
}

// redeliver queues one backlog row under its conversation lock. Rows past
// sent are only queued while they sit in an unclaimed ticket's mailbox.
func (d *Delivery) redeliver(ctx context.Context, c *Conn, msg *types.Message) (bool, error) {
	unlock := d.locks.Lock(orderKey(msg))
	defer unlock()
	dbc := dbctx.Of(ctx)
	cur, err := d.messages.GetByID(dbc, msg.ID)
	if err != nil {
		return false, nil
	}
	if cur.Status != types.StatusSent && !d.inOpenMailbox(dbc, cur) {
		return false, nil
	}
	if err := c.enqueue(wire.Message(cur, c.Identity.ID), d.markDelivered(ctx, cur)); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Delivery) inOpenMailbox(dbc dbctx.Context, msg *types.Message) bool {
	if msg.TicketID == nil || msg.ReceiverRole != types.RoleBusiness {
		return false
	}
	t, err := d.router.tickets.GetByID(dbc, *msg.TicketID)
	if err != nil {
		return false
	}
	return !t.Claimed() && t.Status != types.TicketResolved
}

// NotifyResolved pushes ticket_resolved to every live member of the ticket.
func (d *Delivery) NotifyResolved(t *types.Ticket, resolvedBy uint64) int {
	at := d.now()
	if t.ResolvedAt != nil {
		at = *t.ResolvedAt
	}
	frame := wire.TicketResolved(t.ID, resolvedBy, at)
	sent := 0
	for _, c := range d.registry.LookupMany(ResolvedAudience(t)) {
		if c.Push(frame) == nil {
			sent++
		}
	}
	return sent
}

// mergeByID merges two id-ascending slices, dropping duplicates.
func mergeByID(a, b []*types.Message) []*types.Message {
	out := make([]*types.Message, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].ID < b[j].ID):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j].ID < a[i].ID:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
