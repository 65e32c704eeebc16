// Package clock provides the time source for the library.
package clock

import "time"

// Now returns the current wall-clock time.
func Now() time.Time {
	return time.Now()
}
