// Package protocol defines the chat wire contract: the client and server event
// unions and the oneof-shaped JSON envelopes every transport speaks.
package protocol

import "errors"

var (
	// ErrMalformedMessage is returned when an envelope sets zero or several events.
	ErrMalformedMessage = errors.New("protocol: envelope must carry exactly one event")
	// ErrUnknownEvent is returned when an event value is not part of the union.
	ErrUnknownEvent = errors.New("protocol: unknown event type")
)

// ClientEvent is one of JoinRequest, ChatMessage or LeaveRequest.
type ClientEvent interface {
	isClientEvent()
}

// ServerEvent is one of JoinResponse, BroadcastMessage, UserJoinedNotification
// or UserLeftNotification.
type ServerEvent interface {
	isServerEvent()
}

// JoinRequest must be the first event on a chat stream.
type JoinRequest struct {
	UserName string `json:"user_name"`
	RoomID   string `json:"room_id"`
}

// ChatMessage carries text typed by the user.
type ChatMessage struct {
	Text string `json:"text"`
}

// LeaveRequest ends the session voluntarily.
type LeaveRequest struct {
	UserName string `json:"user_name"`
	RoomID   string `json:"room_id"`
}

func (JoinRequest) isClientEvent()  {}
func (ChatMessage) isClientEvent()  {}
func (LeaveRequest) isClientEvent() {}

// JoinResponse is sent only to the joining user.
type JoinResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BroadcastMessage is a chat message relayed to every member of a room.
// Timestamp is assigned by the server in seconds since the epoch.
type BroadcastMessage struct {
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// UserJoinedNotification tells existing members that someone arrived.
type UserJoinedNotification struct {
	UserName     string `json:"user_name"`
	CurrentCount int    `json:"current_count"`
}

// UserLeftNotification tells remaining members that someone departed.
type UserLeftNotification struct {
	UserName     string `json:"user_name"`
	CurrentCount int    `json:"current_count"`
}

func (JoinResponse) isServerEvent()           {}
func (BroadcastMessage) isServerEvent()       {}
func (UserJoinedNotification) isServerEvent() {}
func (UserLeftNotification) isServerEvent()   {}

// CheckUsernameRequest asks whether a name is free and reserves it if so.
type CheckUsernameRequest struct {
	UserName string `json:"user_name"`
}

// CheckUsernameResponse answers a CheckUsernameRequest.
type CheckUsernameResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// ListRoomsRequest has no fields.
type ListRoomsRequest struct{}

// RoomInfo is a point-in-time view of a room's occupancy.
type RoomInfo struct {
	RoomID           string `json:"room_id"`
	ParticipantCount int    `json:"participant_count"`
}

// ListRoomsResponse lists every room in catalog order.
type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}
