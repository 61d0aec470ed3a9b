package contract

type CreateChatRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Message   string `json:"message"`
	Image     string `json:"image"`
}

type CreateChatResponse struct {
	ChatID string `json:"chat_id"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type SendMessageRequest struct {
	ChatID   string    `json:"chat_id"`
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Image    string    `json:"image"`
	Location *Location `json:"location"`
}

type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Time      string `json:"time"`
	// Stale is set when the message was sent but the chat preview was not updated.
	Stale bool `json:"stale,omitempty"`
}

// ChatsEvent is one server-sent chat list snapshot.
type ChatsEvent struct {
	Chats []ChatView `json:"chats"`
}

type ChatView struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Message   string `json:"message"`
	Time      string `json:"time"`
	Unread    int    `json:"unread"`
	Online    bool   `json:"online"`
	Image     string `json:"image,omitempty"`
}

// MessagesEvent is one server-sent message history snapshot.
type MessagesEvent struct {
	Messages []MessageView `json:"messages"`
}

type MessageView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SenderID  string    `json:"senderId"`
	Mine      bool      `json:"mine"`
	Timestamp int64     `json:"timestamp"`
	Time      string    `json:"time"`
	Text      string    `json:"text,omitempty"`
	HTML      string    `json:"html,omitempty"`
	Image     string    `json:"image,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

type CallRequest struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Image       string `json:"image"`
	CallType    string `json:"call_type"`
}

type CallResponse struct {
	CallID    string         `json:"call_id"`
	CallType  string         `json:"call_type"`
	Notified  bool           `json:"notified"`
	Screen    string         `json:"screen"`
	Params    map[string]any `json:"params"`
	StartedAt string         `json:"started_at"`
}

type DeviceRequest struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type ResolveLoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type ResolveLoginResponse struct {
	Email string `json:"email"`
}
