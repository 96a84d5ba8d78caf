package coordinator

import "testing"

func TestGateExclusion(t *testing.T) {
	var g Gate

	if !g.TryAcquire() {
		t.Fatal("a free gate must be acquirable")
	}
	if g.TryAcquire() {
		t.Fatal("a held gate must not be acquirable")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("a released gate must be acquirable again")
	}
	g.Release()
}

func TestGateAcquireBlocksUntilReleased(t *testing.T) {
	var g Gate
	g.Acquire()

	acquired := make(chan struct{})
	go func() {
		g.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned while the gate was held")
	default:
	}

	g.Release()
	<-acquired
	g.Release()
}
