package model

// Push event names for the progress channel.
const (
	EventReleaseUpdate = "doc.release.update"
	EventTestRunUpdate = "test_run.update"
)

// Event is one push-channel message. Payload always carries the full current
// public view of the release or test run, so a late-joining listener can
// render state from a single message.
type Event struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

// NotificationRequest is the payload of the notifications.send topic,
// consumed by the out-of-process notification sender.
type NotificationRequest struct {
	UserIDs     []string `json:"user_ids"`
	MessageText string   `json:"message_text"`
}
