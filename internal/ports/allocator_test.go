package ports

import (
	"fmt"
	"net"
	"testing"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func TestAllocateReturnsPreferredWhenFree(t *testing.T) {
	preferred := freePort(t)

	got := Allocate(preferred)
	if got != preferred {
		t.Fatalf("expected preferred port %d, got %d", preferred, got)
	}
}

func TestAllocateSkipsBusyPreferred(t *testing.T) {
	preferred := freePort(t)
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferred))
	if err != nil {
		t.Fatalf("occupy preferred port: %v", err)
	}
	defer l.Close()

	got := Allocate(preferred)
	if got == preferred {
		t.Fatalf("expected allocator to skip busy port %d", preferred)
	}
	if got < preferred || got > preferred+searchSpan {
		t.Fatalf("port %d outside scan range [%d, %d]", got, preferred, preferred+searchSpan)
	}
}
