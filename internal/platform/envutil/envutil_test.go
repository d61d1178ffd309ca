package envutil

import (
	"reflect"
	"testing"
	"time"
)

func TestBool(t *testing.T) {
	cases := []struct {
		raw  string
		def  bool
		want bool
	}{
		{raw: "", def: true, want: true},
		{raw: "on", def: false, want: true},
		{raw: "NO", def: true, want: false},
		{raw: "maybe", def: true, want: true},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_TEST_BOOL", tc.raw)
		if got := Bool("ENVUTIL_TEST_BOOL", tc.def); got != tc.want {
			t.Fatalf("Bool(%q, %v): want=%v got=%v", tc.raw, tc.def, tc.want, got)
		}
	}
}

func TestSecondsFallsBackOnNonPositive(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_SECONDS", "-4")
	if got := Seconds("ENVUTIL_TEST_SECONDS", 30*time.Second); got != 30*time.Second {
		t.Fatalf("want=30s got=%s", got)
	}
	t.Setenv("ENVUTIL_TEST_SECONDS", "5")
	if got := Seconds("ENVUTIL_TEST_SECONDS", 30*time.Second); got != 5*time.Second {
		t.Fatalf("want=5s got=%s", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_LIST", " a, ,b ,c")
	got := List("ENVUTIL_TEST_LIST", nil)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}
