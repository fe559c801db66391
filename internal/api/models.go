// internal/api/models.go
// Wire types for the CafeMeetUps REST backend

package api

import (
	"time"

	"github.com/nikkjaat/cafemeetups-client/internal/common/identity"
)

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	identity.Ref
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	Age          int      `json:"age,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	InterestedIn string   `json:"interestedIn,omitempty"`
	Location     string   `json:"location,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Avatar       string   `json:"avatar,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Images       []string `json:"images,omitempty"`
}

// Profile is a discovery candidate. Immutable snapshot while it sits in the
// feed.
type Profile struct {
	identity.Ref
	Name               string     `json:"name"`
	Age                int        `json:"age"`
	Gender             string     `json:"gender,omitempty"`
	InterestedIn       string     `json:"interestedIn,omitempty"`
	Location           string     `json:"location,omitempty"`
	Bio                string     `json:"bio,omitempty"`
	Avatar             string     `json:"avatar,omitempty"`
	Interests          []string   `json:"interests,omitempty"`
	Images             []string   `json:"images,omitempty"`
	CompatibilityScore *int       `json:"compatibilityScore,omitempty"`
	Distance           *float64   `json:"distance,omitempty"`
	LastActive         *time.Time `json:"lastActive,omitempty"`
	CommonInterests    []string   `json:"commonInterests,omitempty"`
}

// Match is a confirmed mutual like as the backend reports it. Depending on
// endpoint version the counterpart arrives either as "user" or inside a
// "users" pair that still includes the viewer.
type Match struct {
	identity.Ref
	User      *Profile   `json:"user,omitempty"`
	Users     []Profile  `json:"users,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	MatchedAt *time.Time `json:"matchedAt,omitempty"`
	Messages  []Message  `json:"messages,omitempty"`
}

// Message is a chat message on the wire. Sender is either the literal roles
// "user"/"match" (history endpoint) or empty with SenderID carrying the
// author's user id (real-time events).
type Message struct {
	identity.Ref
	MatchRef  string    `json:"matchId,omitempty"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	SenderID  string    `json:"senderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Name         string   `json:"name" validate:"required,min=2"`
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	Age          int      `json:"age" validate:"required,gte=18"`
	Gender       string   `json:"gender" validate:"required"`
	InterestedIn string   `json:"interestedIn" validate:"required"`
	Location     string   `json:"location,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// ProfileUpdate carries partial profile edits. Nil fields are left untouched
// by the backend.
type ProfileUpdate struct {
	Name      *string  `json:"name,omitempty"`
	Location  *string  `json:"location,omitempty"`
	Bio       *string  `json:"bio,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// LikeResult is the backend's verdict on a right swipe.
type LikeResult struct {
	IsMatch bool
	Match   *Match
}

// envelope is the common response wrapper
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type authResponse struct {
	envelope
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type userResponse struct {
	envelope
	User *User `json:"user"`
}

type usersResponse struct {
	envelope
	Users []Profile `json:"users"`
}

type likeResponse struct {
	envelope
	IsMatch bool   `json:"isMatch"`
	Match   *Match `json:"match,omitempty"`
}

type matchesResponse struct {
	envelope
	Matches []Match `json:"matches"`
}

type messagesResponse struct {
	envelope
	Messages []Message `json:"messages"`
}

// messageResponse cannot embed envelope: the send endpoint reuses the
// "message" key for the created Message object.
type messageResponse struct {
	Success     bool     `json:"success"`
	MessageBody *Message `json:"message"`
	Error       string   `json:"error,omitempty"`
}

func (r *messageResponse) ok() bool { return r.Success }

func (r *messageResponse) errText() string {
	if r.Error != "" {
		return r.Error
	}
	return "request failed"
}

func (e *envelope) ok() bool { return e.Success }

func (e *envelope) errText() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return "request failed"
	}
}

// result lets the request helper reject success=false envelopes uniformly.
type result interface {
	ok() bool
	errText() string
}
