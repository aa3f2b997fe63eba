package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyGate_DisjointKeysDoNotBlock(t *testing.T) {
	g := newKeyGate()
	g.acquire([]string{"a", "b"})

	done := make(chan struct{})
	go func() {
		g.acquire([]string{"c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disjoint acquire blocked")
	}
}

func TestKeyGate_OverlappingKeysWait(t *testing.T) {
	g := newKeyGate()
	g.acquire([]string{"a", "b"})

	done := make(chan struct{})
	go func() {
		g.acquire([]string{"b", "c"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("overlapping acquire did not block")
	case <-time.After(50 * time.Millisecond):
	}

	g.release([]string{"a", "b"})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire not admitted after release")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Len(t, g.held, 2)
}
