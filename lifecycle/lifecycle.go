// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package lifecycle

// The status type
type Status int

const (
	New Status = iota
	Started
	Stopped
)

func (s Status) String() string {
	switch s {
	case New:
		return "New"
	case Started:
		return "Started"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
