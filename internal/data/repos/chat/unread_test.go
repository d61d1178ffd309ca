package chat

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/data/repos/testutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
)

func TestUnreadRepoIncrementAndReset(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Of(context.Background())
	repo := NewUnreadRepo(db, testutil.Logger(t))

	if err := repo.Increment(dbc, []uint64{3, 4, 3}, 42); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := repo.Increment(dbc, []uint64{3}, 42); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	rows, err := repo.ListForUser(dbc, 3)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 2 {
		t.Fatalf("user 3 count: want=2 got=%v", rows)
	}

	if err := repo.Reset(dbc, 3, 42); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	rows, _ = repo.ListForUser(dbc, 3)
	if len(rows) != 0 {
		t.Fatalf("after reset: want=0 rows got=%d", len(rows))
	}
	rows, _ = repo.ListForUser(dbc, 4)
	if len(rows) != 1 || rows[0].Count != 1 {
		t.Fatalf("user 4 count: want=1 got=%v", rows)
	}
}

func TestParseUnreadHash(t *testing.T) {
	got := parseUnreadHash(9, map[string]string{"12": "3", "0": "1", "bad": "2", "4": "0"}, time.Now())
	if len(got) != 2 {
		t.Fatalf("want=2 rows got=%d", len(got))
	}
	if got[0].TicketID != 0 || got[1].TicketID != 12 || got[1].Count != 3 {
		t.Fatalf("unexpected rows: %+v %+v", got[0], got[1])
	}
}
