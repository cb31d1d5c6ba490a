package chat

import (
	"strings"

	apperrors "github.com/supportdesk/host/internal/errors"
)

// Control frames sent by the server during the handshake.
const (
	AuthSuccess = "AUTH_SUCCESS"
	AuthFailed  = "AUTH_FAILED"
)

// ReplyPrefix is prepended to operator replies written to a client.
const ReplyPrefix = "Server: "

// FrameType tags the variant held by a Frame.
type FrameType int

const (
	FrameAuth FrameType = iota + 1
	FrameChat
	FrameMedia
)

func (t FrameType) String() string {
	switch t {
	case FrameAuth:
		return "auth"
	case FrameChat:
		return "chat"
	case FrameMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Phase is the connection state a frame is read in.
type Phase int

const (
	// PhaseAuth expects exactly one "identity|token" frame.
	PhaseAuth Phase = iota
	// PhaseMessage expects "sender|receiver|body" frames or bare media bodies.
	PhaseMessage
)

// Peer describes the authenticated side of a connection in PhaseMessage.
type Peer struct {
	Identity string // authenticated identity; chat frames must name it as sender
	Operator string // receiver assigned to bare media frames
}

// Frame is a decoded inbound frame. Identity and Token are set for
// FrameAuth; Message is set for FrameChat and FrameMedia.
type Frame struct {
	Type     FrameType
	Identity string
	Token    string
	Message  Message
}

// ParseFrame decodes one raw inbound frame for the given phase.
//
// In PhaseAuth the frame is split once on the separator; a missing separator
// or an empty field yields an auth.malformed error. In PhaseMessage the frame
// is split into at most three fields so the body may contain the separator.
// A frame with no separator whose body starts with a media prefix is accepted
// as media from peer.Identity to peer.Operator. Any other shape yields a
// frame.* error and the caller is expected to discard the frame.
func ParseFrame(phase Phase, raw string, peer Peer) (Frame, error) {
	if phase == PhaseAuth {
		return parseAuth(raw)
	}
	return parseMessage(raw, peer)
}

func parseAuth(raw string) (Frame, error) {
	identity, token, found := strings.Cut(raw, Separator)
	if !found {
		return Frame{}, apperrors.AuthMalformed("missing separator")
	}
	if identity == "" || token == "" {
		return Frame{}, apperrors.AuthMalformed("empty identity or token")
	}
	return Frame{Type: FrameAuth, Identity: identity, Token: token}, nil
}

func parseMessage(raw string, peer Peer) (Frame, error) {
	parts := strings.SplitN(raw, Separator, 3)

	var msg Message
	switch {
	case len(parts) == 3:
		msg = NewMessage(parts[0], parts[1], parts[2])
	case len(parts) == 1 && KindOf(raw).IsMedia():
		msg = NewMessage(peer.Identity, peer.Operator, raw)
	default:
		return Frame{}, apperrors.ParseFailed("expected sender|receiver|body")
	}

	if err := msg.Validate(); err != nil {
		return Frame{}, err
	}
	if peer.Identity != "" && msg.Sender != peer.Identity {
		return Frame{}, apperrors.InvalidField("sender", nil)
	}

	frameType := FrameChat
	if msg.Kind.IsMedia() {
		frameType = FrameMedia
	}
	return Frame{Type: frameType, Message: msg}, nil
}
