// Package chat defines the messages exchanged between clients and the
// operator, and the wire frames that carry them.
//
// Identities and the receiver field must not contain the field separator "|".
// Bodies may contain it: chat frames are split on the first two separators only.
package chat

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/supportdesk/host/internal/errors"
)

// Separator divides the fields of auth and chat frames.
const Separator = "|"

// MaxIdentityLen bounds identity and receiver names.
const MaxIdentityLen = 256

// Kind classifies a message body.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindFile  Kind = "file"
)

// mediaPrefixes maps body prefixes to media kinds. Order is irrelevant since
// no prefix is a prefix of another.
var mediaPrefixes = map[string]Kind{
	"IMAGE:": KindImage,
	"AUDIO:": KindAudio,
	"VIDEO:": KindVideo,
	"FILE:":  KindFile,
}

// KindOf returns the kind implied by a body's prefix, or KindText.
func KindOf(body string) Kind {
	for prefix, kind := range mediaPrefixes {
		if strings.HasPrefix(body, prefix) {
			return kind
		}
	}
	return KindText
}

// IsMedia reports whether k refers to an opaque media reference.
func (k Kind) IsMedia() bool {
	return k != KindText && k != ""
}

// Message is a single chat message. Messages are not modified after the
// Message Log assigns their ID and timestamp.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender" validate:"required,max=256,excludes=0x7C"`
	Receiver  string    `json:"receiver" validate:"required,max=256,excludes=0x7C"`
	Body      string    `json:"body" validate:"required,max=524288"`
	Kind      Kind      `json:"kind" validate:"required,oneof=text image audio video file"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message with its kind derived from the body.
func NewMessage(sender, receiver, body string) Message {
	return Message{
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
		Kind:     KindOf(body),
	}
}

// Display renders the message the way conversations show it: "sender: body".
func (m Message) Display() string {
	return fmt.Sprintf("%s: %s", m.Sender, m.Body)
}

// MediaRef returns the location reference of a media message, or "" for text.
func (m Message) MediaRef() string {
	if !m.Kind.IsMedia() {
		return ""
	}
	for prefix, kind := range mediaPrefixes {
		if kind == m.Kind && strings.HasPrefix(m.Body, prefix) {
			return strings.TrimSpace(m.Body[len(prefix):])
		}
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that sender, receiver and body are present and well formed.
// The returned error carries the frame.invalid_field code naming the first
// offending field.
func (m Message) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.InvalidField(verrs[0].Field(), err)
	}
	return apperrors.InvalidField("message", err)
}
