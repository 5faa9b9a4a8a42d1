package realtime

// Inbound and outbound event names for the chat and notification
// namespaces.
const (
	EventMessageSend    = "message:send"
	EventMessageRead    = "message:read"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"
	EventMessageReceive = "message:receive"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventNotification   = "notification"
)

// Envelope is one event on a realtime stream.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PresencePayload announces an online/offline transition.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// TypingPayload routes a typing indicator to its recipient.
type TypingPayload struct {
	SenderID string `json:"senderId"`
}

// ReadPayload is a read receipt forwarded to the message's author.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	ReaderID  string `json:"readerId"`
}

// SendMessagePayload is the inbound shape for message:send. Realtime
// payloads bypass the HTTP validation pipeline, so the gateway checks
// these fields itself.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// PayloadError reports a malformed realtime payload. It travels back to
// the client as an application-level error object; the connection stays
// open.
type PayloadError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *PayloadError) Error() string {
	return "realtime: invalid payload: " + e.Field + " " + e.Reason
}
