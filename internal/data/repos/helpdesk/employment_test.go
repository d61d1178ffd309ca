package helpdesk

import (
	"context"
	"reflect"
	"testing"

	"github.com/yungbote/helpdesk-backend/internal/data/repos/testutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
)

func TestEmploymentRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewEmploymentRepo(db, testutil.Logger(t))

	testutil.SeedEmployee(t, ctx, db, 10, 3, true)
	testutil.SeedEmployee(t, ctx, db, 10, 4, true)
	testutil.SeedEmployee(t, ctx, db, 10, 5, false)
	testutil.SeedEmployee(t, ctx, db, 11, 5, true)

	ids, err := repo.ListActiveEmployeeIDs(dbc, 10)
	if err != nil {
		t.Fatalf("ListActiveEmployeeIDs: %v", err)
	}
	if want := []uint64{3, 4}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ListActiveEmployeeIDs: want=%v got=%v", want, ids)
	}

	cases := []struct {
		a, b uint64
		want bool
	}{
		{3, 4, true},
		{3, 5, false},
		{5, 5, false},
	}
	for _, tc := range cases {
		got, err := repo.SharesActiveBusiness(dbc, tc.a, tc.b)
		if err != nil {
			t.Fatalf("SharesActiveBusiness(%d,%d): %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("SharesActiveBusiness(%d,%d): want=%v got=%v", tc.a, tc.b, tc.want, got)
		}
	}

	if err := repo.Upsert(dbc, 10, 5, true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	active, err := repo.IsActive(dbc, 10, 5)
	if err != nil || !active {
		t.Fatalf("IsActive after upsert: active=%v err=%v", active, err)
	}
	if err := repo.Upsert(dbc, 10, 3, false); err != nil {
		t.Fatalf("Upsert(deactivate): %v", err)
	}
	biz, _ := repo.ListActiveBusinessIDs(dbc, 3)
	if len(biz) != 0 {
		t.Fatalf("ListActiveBusinessIDs after deactivate: want=[] got=%v", biz)
	}
}
