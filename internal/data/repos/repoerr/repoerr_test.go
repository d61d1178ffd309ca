package repoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{name: "record_not_found", in: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "wrapped_not_found", in: fmt.Errorf("get: %w", gorm.ErrRecordNotFound), want: ErrNotFound},
		{name: "pg_unique", in: &pgconn.PgError{Code: "23505"}, want: ErrConflict},
		{name: "gorm_duplicate", in: gorm.ErrDuplicatedKey, want: ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Map(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Map(%v): want %v in chain, got %v", tc.in, tc.want, got)
			}
			if !errors.Is(got, tc.in) {
				t.Fatalf("original error should remain in chain")
			}
		})
	}
	other := errors.New("boom")
	if Map(other) != other {
		t.Fatalf("unrelated errors pass through unchanged")
	}
	if Map(nil) != nil {
		t.Fatalf("nil stays nil")
	}
}
