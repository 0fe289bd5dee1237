package typeahead

import (
	"errors"
	"testing"

	"github.com/fieldexit/go5250/internal/keyboard"
)

func key(r rune) keyboard.Key {
	return keyboard.Key{Mnemonic: keyboard.Char, Ch: r}
}

func TestQueueOrder(t *testing.T) {
	q := New(8)
	if err := q.Push(key('a'), key('b'), keyboard.Key{Mnemonic: keyboard.Enter}); err != nil {
		t.Fatal(err)
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	if k, ok := q.Peek(); !ok || k.Ch != 'a' {
		t.Fatalf("Peek = %v, %v", k, ok)
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Peek changed Len to %d", got)
	}
	want := []keyboard.Key{key('a'), key('b'), {Mnemonic: keyboard.Enter}}
	for i, w := range want {
		k, ok := q.Pop()
		if !ok || k != w {
			t.Fatalf("Pop %d = %v, %v; want %v", i, k, ok, w)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue reported a keystroke")
	}
}

func TestQueueRejectsOverflowAtomically(t *testing.T) {
	q := New(4)
	if err := q.Push(key('1'), key('2'), key('3')); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(key('4'), key('5')); !errors.Is(err, ErrFull) {
		t.Fatalf("overflow push = %v, want ErrFull", err)
	}
	// Nothing from the failed batch may be queued.
	if got := q.Len(); got != 3 {
		t.Fatalf("Len = %d after rejected push, want 3", got)
	}
	if err := q.Push(key('4')); err != nil {
		t.Fatalf("fitting push after rejection: %v", err)
	}
}

func TestQueueWrapsAround(t *testing.T) {
	q := New(3)
	q.Push(key('a'), key('b'))
	q.Pop()
	q.Pop()
	// Head has advanced; the next pushes must wrap through the ring.
	if err := q.Push(key('c'), key('d'), key('e')); err != nil {
		t.Fatal(err)
	}
	for _, want := range "cde" {
		k, ok := q.Pop()
		if !ok || k.Ch != want {
			t.Fatalf("Pop = %v, %v; want %q", k, ok, want)
		}
	}
}

func TestQueueClear(t *testing.T) {
	q := New(4)
	q.Push(key('x'), key('y'))
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len = %d after Clear", q.Len())
	}
	if _, ok := q.Peek(); ok {
		t.Error("Peek found a keystroke after Clear")
	}
	if err := q.Push(key('z')); err != nil {
		t.Errorf("Push after Clear: %v", err)
	}
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := New(0)
	for i := 0; i < DefaultCapacity; i++ {
		if err := q.Push(key('k')); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := q.Push(key('k')); !errors.Is(err, ErrFull) {
		t.Errorf("push past default capacity = %v, want ErrFull", err)
	}
}
