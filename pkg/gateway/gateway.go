// Package gateway defines the contract between the engine and an external
// messaging platform: opening a bot session, receiving updates and sending media.
package gateway

import (
	"context"
	"io"
)

// Platform opens bot sessions on a messaging platform.
type Platform interface {
	// Connect authenticates the credential and fetches the bot identity. It must
	// honour ctx so callers can bound the identity fetch.
	Connect(ctx context.Context, token string) (Session, error)
}

// Session is one live, authenticated bot account.
type Session interface {
	Identity() Identity
	// Receive blocks delivering updates to handler until ctx is done or the
	// session is closed. Handler calls are sequential per session.
	Receive(ctx context.Context, handler func(context.Context, Update)) error
	Send(ctx context.Context, msg Outgoing) (Sent, error)
	// FileURL resolves a platform file reference to a downloadable URL.
	// An empty string with nil error means the reference is unknown.
	FileURL(ctx context.Context, fileID string) (string, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SetReaction(ctx context.Context, chatID, messageID int64, emoji string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	Close() error
}

// Identity is the platform's view of the bot account.
type Identity struct {
	ExternalID  int64
	Username    string
	DisplayName string
}

// UpdateKind classifies an inbound update.
type UpdateKind string

const (
	UpdateText      UpdateKind = "text"
	UpdateCommand   UpdateKind = "command"
	UpdateCallback  UpdateKind = "callback"
	UpdatePhoto     UpdateKind = "photo"
	UpdateVideo     UpdateKind = "video"
	UpdateVoice     UpdateKind = "voice"
	UpdateDocument  UpdateKind = "document"
	UpdateAudio     UpdateKind = "audio"
	UpdateSticker   UpdateKind = "sticker"
	UpdateVideoNote UpdateKind = "video_note"
	UpdateAnimation UpdateKind = "animation"
)

// Chat describes the remote chat an update belongs to.
type Chat struct {
	ID    int64
	Type  string
	Title string
}

// User describes the remote sender.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	IsBot        bool
}

// Update is a platform-neutral inbound event.
type Update struct {
	ID           int64
	Kind         UpdateKind
	Chat         Chat
	From         User
	MessageID    int64
	Text         string
	Caption      string
	FileID       string
	CallbackID   string
	CallbackData string
}

// MediaKind is the kind of outbound message.
type MediaKind string

const (
	MediaText      MediaKind = "text"
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaVoice     MediaKind = "voice"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaAnimation MediaKind = "animation"
)

// Valid reports whether k is a known kind.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaText, MediaPhoto, MediaVideo, MediaVoice, MediaDocument, MediaAudio, MediaAnimation:
		return true
	default:
		return false
	}
}

// Media is exactly one of a local stream, a remote URL or a platform file id.
type Media struct {
	Name   string
	Reader io.Reader
	URL    string
	FileID string
}

// Empty reports whether no source is set.
func (m *Media) Empty() bool {
	return m == nil || (m.Reader == nil && m.URL == "" && m.FileID == "")
}

// Button is one inline keyboard button. Exactly one of CallbackData and URL is set.
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// Outgoing is a platform-neutral outbound message.
type Outgoing struct {
	ChatID    int64
	Kind      MediaKind
	Text      string
	Media     *Media
	ParseMode string
	Buttons   [][]Button
}

// Sent identifies a delivered message.
type Sent struct {
	MessageID int64
	FileID    string
}
