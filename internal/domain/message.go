package domain

import "time"

// Message type values
const (
	TypeText = "text"
	TypeFile = "file"
)

// Message represents a persisted one-to-one message (messages table).
// The file_* columns are set together for type=file and are all empty
// for type=text.
type Message struct {
	ID        uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Sender    string     `gorm:"column:sender;size:64;index:idx_conversation" json:"sender"`
	Receiver  string     `gorm:"column:receiver;size:64;index:idx_conversation" json:"receiver"`
	Type      string     `gorm:"column:type;size:10;default:text" json:"type"`
	Content   string     `gorm:"column:content;type:text" json:"message,omitempty"`
	FileURL   string     `gorm:"column:file_url;size:255" json:"file_url,omitempty"`
	FileName  string     `gorm:"column:file_name;size:255" json:"file_name,omitempty"`
	MimeType  string     `gorm:"column:mime_type;size:100" json:"mime_type,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;index" json:"created_at"`
	Delivered bool       `gorm:"column:delivered;default:false" json:"delivered"`
	Seen      bool       `gorm:"column:seen;default:false" json:"seen"`
	SeenAt    *time.Time `gorm:"column:seen_at" json:"seen_at,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// HasFile reports whether the message carries a stored file reference.
func (m *Message) HasFile() bool {
	return m.Type == TypeFile && m.FileName != ""
}

// DeletionMarker hides a message from one user only (deleted_messages
// table). Inserted once, never mutated; the counterpart's view and the
// message row itself are unaffected.
type DeletionMarker struct {
	User      string `gorm:"column:user;size:64;primaryKey" json:"user"`
	MessageID uint   `gorm:"column:message_id;primaryKey" json:"message_id"`
}

func (DeletionMarker) TableName() string {
	return "deleted_messages"
}

// DeleteOutcome is the result of a soft delete. Repeat calls are
// success-shaped, not errors.
type DeleteOutcome string

const (
	OutcomeDeleted        DeleteOutcome = "deleted"
	OutcomeAlreadyDeleted DeleteOutcome = "already_deleted"
)

// InboundMessage is a chat-session text frame as sent by a client.
type InboundMessage struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Type     string `json:"type"`
	Content  string `json:"message,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// IsFile reports whether the frame announces a file transfer, meaning a
// binary payload frame must follow on the same connection.
func (m *InboundMessage) IsFile() bool {
	return m.Type == TypeFile
}

// Envelope is the finalized message sent to the receiver (when live) and
// echoed back to the sender. The echo is the sender's only confirmation.
type Envelope struct {
	MessageID uint   `json:"message_id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Type      string `json:"type"`
	Content   string `json:"message,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
	Delivered bool   `json:"delivered"`
	Seen      bool   `json:"seen"`
}

// NewEnvelope builds the outbound envelope for a persisted message.
func NewEnvelope(msg *Message) *Envelope {
	return &Envelope{
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Receiver:  msg.Receiver,
		Type:      msg.Type,
		Content:   msg.Content,
		FileURL:   msg.FileURL,
		FileName:  msg.FileName,
		MimeType:  msg.MimeType,
		Timestamp: msg.CreatedAt.Unix(),
		Status:    "sent",
		Delivered: msg.Delivered,
		Seen:      msg.Seen,
	}
}

// SeenEvent is a seen-channel frame. The raw payload is relayed verbatim
// to every live seen-channel connection after the store update.
type SeenEvent struct {
	MessageID uint `json:"message_id"`
	Seen      bool `json:"seen"`
}

// MessageResponse is the HTTP representation of a message.
type MessageResponse struct {
	ID        uint   `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Type      string `json:"type"`
	Content   string `json:"message,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Delivered bool   `json:"delivered"`
	Seen      bool   `json:"seen"`
	SeenAt    int64  `json:"seen_at,omitempty"`
}

// ToResponse converts a Message to its HTTP representation.
func (m *Message) ToResponse() *MessageResponse {
	resp := &MessageResponse{
		ID:        m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Type:      m.Type,
		Content:   m.Content,
		FileURL:   m.FileURL,
		FileName:  m.FileName,
		MimeType:  m.MimeType,
		Timestamp: m.CreatedAt.Unix(),
		Delivered: m.Delivered,
		Seen:      m.Seen,
	}
	if m.SeenAt != nil {
		resp.SeenAt = m.SeenAt.Unix()
	}
	return resp
}
