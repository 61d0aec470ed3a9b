package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/klipach/courier/errs"
)

// TimeLayout is the display format of Chat.Time and Message.Time.
const TimeLayout = "15:04"

var errMalformedMessage = errors.New("malformed message")

// ImageRef points at a contact picture: a URI or a bundled asset.
type ImageRef string

// UnmarshalJSON accepts a string, a {"uri": ...} object or a numeric asset id,
// the shapes mobile clients write.
func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ImageRef(s)
		return nil
	}
	var obj struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		*r = ImageRef(obj.URI)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*r = ImageRef("asset:" + n.String())
		return nil
	}
	*r = ""
	return nil
}

// Chat is the list entry for a conversation with one counterpart, with cached preview fields.
type Chat struct {
	ID        string   `json:"-"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Message   string   `json:"message"`
	Time      string   `json:"time"`
	Unread    int      `json:"unread"`
	Online    bool     `json:"online"`
	Image     ImageRef `json:"image,omitempty"`
}

func (c *Chat) UnmarshalJSON(b []byte) error {
	type plain Chat
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Unread < 0 {
		p.Unread = 0
	}
	*c = Chat(p)
	return nil
}

// FullName is "firstName lastName".
func (c Chat) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Contact returns the counterpart of the chat.
func (c Chat) Contact() Contact {
	return Contact{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Image: c.Image}
}

// NewChat is the input of ListSync.CreateChat.
type NewChat struct {
	FirstName string
	LastName  string
	Message   string
	Image     ImageRef
}

// Contact identifies the counterpart of a chat. It travels as the chatUser navigation parameter.
type Contact struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Image     ImageRef `json:"image,omitempty"`
}

// Params renders the contact as a navigation parameter value.
func (c Contact) Params() map[string]any {
	p := map[string]any{
		"id":        c.ID,
		"firstName": c.FirstName,
		"lastName":  c.LastName,
	}
	if c.Image != "" {
		p["image"] = string(c.Image)
	}
	return p
}

// Kind tags the payload of a message.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindLocation Kind = "location"
)

// Payload is the content of a message: exactly one of Text, Image or Location.
type Payload interface {
	Kind() Kind
	validate() error
}

type Text struct {
	Body string
}

func (Text) Kind() Kind { return KindText }

func (t Text) validate() error {
	if strings.TrimSpace(t.Body) == "" {
		return errs.Invalid("text", "message is empty")
	}
	return nil
}

type Image struct {
	URI string `json:"uri"`
}

func (Image) Kind() Kind { return KindImage }

func (i Image) validate() error {
	if strings.TrimSpace(i.URI) == "" {
		return errs.Invalid("image", "uri is required")
	}
	return nil
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (Location) Kind() Kind { return KindLocation }

func (l Location) validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return errs.Invalid("location", "latitude out of range")
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return errs.Invalid("location", "longitude out of range")
	}
	return nil
}

// Message is one immutable entry of a chat history.
type Message struct {
	ID        string
	SenderID  string
	Timestamp int64 // unix milliseconds
	Time      string
	Payload   Payload
}

// Kind returns the payload kind.
func (m Message) Kind() Kind {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Kind()
}

// Text returns the body of a text message and "" for other kinds.
func (m Message) Text() string {
	if t, ok := m.Payload.(Text); ok {
		return t.Body
	}
	return ""
}

// wireMessage is the stored shape: {type, text|image|location, senderId, timestamp, time}.
type wireMessage struct {
	Type      Kind      `json:"type,omitempty"`
	Text      *string   `json:"text,omitempty"`
	Image     *Image    `json:"image,omitempty"`
	Location  *Location `json:"location,omitempty"`
	SenderID  string    `json:"senderId"`
	Timestamp int64     `json:"timestamp"`
	Time      string    `json:"time"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Type:      m.Kind(),
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp,
		Time:      m.Time,
	}
	switch p := m.Payload.(type) {
	case Text:
		w.Text = &p.Body
	case Image:
		w.Image = &p
	case Location:
		w.Location = &p
	default:
		return nil, fmt.Errorf("%w: unknown payload %T", errMalformedMessage, m.Payload)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes by the type tag. Records without a tag are text messages.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	populated := 0
	for _, set := range []bool{w.Text != nil, w.Image != nil, w.Location != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("%w: %d payload fields", errMalformedMessage, populated)
	}

	kind := w.Type
	if kind == "" {
		kind = KindText
	}
	var p Payload
	switch {
	case kind == KindText && w.Text != nil:
		p = Text{Body: *w.Text}
	case kind == KindImage && w.Image != nil:
		p = *w.Image
	case kind == KindLocation && w.Location != nil:
		p = *w.Location
	default:
		return fmt.Errorf("%w: type %q does not match payload", errMalformedMessage, w.Type)
	}
	*m = Message{
		ID:        m.ID,
		SenderID:  w.SenderID,
		Timestamp: w.Timestamp,
		Time:      w.Time,
		Payload:   p,
	}
	return nil
}
