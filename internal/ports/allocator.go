// Package ports finds free host ports for published containers.
package ports

import (
	"fmt"
	"net"
)

// searchSpan bounds how far past the preferred port the scan walks.
const searchSpan = 50

// Allocate returns the first bindable TCP port in [preferred, preferred+50].
// The probe listener is released immediately, so the port is not reserved;
// a concurrent process can still win the race and the subsequent container
// start surfaces that failure. When the whole range is busy the preferred
// port itself is returned rather than an error, deferring the failure to
// the run stage.
func Allocate(preferred int) int {
	for port := preferred; port <= preferred+searchSpan; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port
	}
	return preferred
}
