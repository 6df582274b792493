package types

// RequestCreateSession starts a new session.
type RequestCreateSession struct {
	SessionID string `json:"session_id"`
}

// RequestSendMessage sends one text message.
type RequestSendMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// RequestSendBulk sends one message to many recipients.
type RequestSendBulk struct {
	Phones  []string `json:"phones"`
	Message string   `json:"message"`
}

// RequestSendGroup sends a message to a stored group.
type RequestSendGroup struct {
	Message string `json:"message"`
}

// RequestReact reacts to a previously sent message.
type RequestReact struct {
	Phone     string `json:"phone"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// RequestContact creates or updates an address-book entry.
type RequestContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// RequestCreateGroup creates a stored broadcast group.
type RequestCreateGroup struct {
	Name       string   `json:"name"`
	NetworkJID string   `json:"network_jid"`
	Members    []string `json:"members"`
}

// RequestGroupMembers replaces a stored group's member list.
type RequestGroupMembers struct {
	Members []string `json:"members"`
}

// RequestNetworkGroup creates a real group on the chat network.
type RequestNetworkGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// RequestPanelToken issues a panel JWT for a named operator.
type RequestPanelToken struct {
	Operator string `json:"operator"`
}
