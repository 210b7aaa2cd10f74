package ptr_test

import (
	"testing"
	"time"

	"github.com/myrjola/fitcoach/internal/ptr"
)

func TestRef(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := ptr.Ref(day)
	if p == nil {
		t.Fatal("Expected pointer to be non-nil")
	}
	if !p.Equal(day) {
		t.Errorf("Expected %v, got %v", day, *p)
	}

	day = day.AddDate(0, 0, 1)
	if p.Equal(day) {
		t.Errorf("Pointer value should not change when original value is modified")
	}
}

func TestDeref(t *testing.T) {
	if got := ptr.Deref[int](nil, 7); got != 7 {
		t.Errorf("Deref(nil, 7) = %d, want 7", got)
	}
	if got := ptr.Deref(ptr.Ref(3), 7); got != 3 {
		t.Errorf("Deref(&3, 7) = %d, want 3", got)
	}
}
