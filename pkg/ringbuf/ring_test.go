package ringbuf

import (
	"reflect"
	"testing"
)

func TestRing_PushAndEvict(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Fatalf("ringbuf:ring_test - Len/Cap = %d/%d, want 3/3", r.Len(), r.Cap())
	}
	if got := r.Items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("ringbuf:ring_test - Items() = %v, want [3 4 5]", got)
	}
}

func TestRing_Last(t *testing.T) {
	r := New[int](10)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}
	tests := []struct {
		name string
		n    int
		keep func(int) bool
		want []int
	}{
		{name: "last two", n: 2, want: []int{6, 7}},
		{name: "more than stored", n: 20, want: []int{1, 2, 3, 4, 5, 6, 7}},
		{name: "even only", n: 2, keep: func(v int) bool { return v%2 == 0 }, want: []int{4, 6}},
		{name: "zero", n: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Last(tt.n, tt.keep); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ringbuf:ring_test - Last(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestRing_MinCapacityAndReset(t *testing.T) {
	r := New[string](0)
	r.Push("a")
	r.Push("b")
	if r.Len() != 1 || r.At(0) != "b" {
		t.Errorf("ringbuf:ring_test - capacity-1 ring holds %v", r.Items())
	}
	r.Reset()
	if r.Len() != 0 || len(r.Items()) != 0 {
		t.Error("ringbuf:ring_test - Reset should empty the ring")
	}
}
