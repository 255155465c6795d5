package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the log. It backs the memory chat
// backend, where nobody subscribes to Redis channels.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, member, event string, payload any) error {
	log.WithFields(log.Fields{"member": member, "event": event}).Debugf("Notification: %+v", payload)
	return nil
}
