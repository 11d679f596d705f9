package platform

import "time"

// Urgency ranks a notification for hosts that support it.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// AppName identifies the sender to the notification service.
const AppName = "captionkit"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	Urgency Urgency
	// Timeout is how long the notification stays visible. Zero lets the
	// host decide.
	Timeout time.Duration
}

func (o Options) timeoutMillis() int32 {
	if o.Timeout <= 0 {
		return -1
	}
	return int32(o.Timeout / time.Millisecond)
}
