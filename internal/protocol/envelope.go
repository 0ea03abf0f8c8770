package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientMessage is the JSON envelope for client events. Exactly one field is set.
type ClientMessage struct {
	JoinRequest  *JoinRequest  `json:"join_request,omitempty"`
	ChatMessage  *ChatMessage  `json:"chat_message,omitempty"`
	LeaveRequest *LeaveRequest `json:"leave_request,omitempty"`
}

// ServerMessage is the JSON envelope for server events. Exactly one field is set.
type ServerMessage struct {
	JoinResponse *JoinResponse           `json:"join_response,omitempty"`
	Broadcast    *BroadcastMessage       `json:"broadcast,omitempty"`
	UserJoined   *UserJoinedNotification `json:"user_joined,omitempty"`
	UserLeft     *UserLeftNotification   `json:"user_left,omitempty"`
}

// Event unwraps the envelope.
func (m ClientMessage) Event() (ClientEvent, error) {
	var (
		event ClientEvent
		set   int
	)
	if m.JoinRequest != nil {
		event, set = *m.JoinRequest, set+1
	}
	if m.ChatMessage != nil {
		event, set = *m.ChatMessage, set+1
	}
	if m.LeaveRequest != nil {
		event, set = *m.LeaveRequest, set+1
	}
	if set != 1 {
		return nil, ErrMalformedMessage
	}
	return event, nil
}

// WrapClient builds the envelope for a client event.
func WrapClient(event ClientEvent) (ClientMessage, error) {
	switch e := event.(type) {
	case JoinRequest:
		return ClientMessage{JoinRequest: &e}, nil
	case ChatMessage:
		return ClientMessage{ChatMessage: &e}, nil
	case LeaveRequest:
		return ClientMessage{LeaveRequest: &e}, nil
	default:
		return ClientMessage{}, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

// Event unwraps the envelope.
func (m ServerMessage) Event() (ServerEvent, error) {
	var (
		event ServerEvent
		set   int
	)
	if m.JoinResponse != nil {
		event, set = *m.JoinResponse, set+1
	}
	if m.Broadcast != nil {
		event, set = *m.Broadcast, set+1
	}
	if m.UserJoined != nil {
		event, set = *m.UserJoined, set+1
	}
	if m.UserLeft != nil {
		event, set = *m.UserLeft, set+1
	}
	if set != 1 {
		return nil, ErrMalformedMessage
	}
	return event, nil
}

// WrapServer builds the envelope for a server event.
func WrapServer(event ServerEvent) (ServerMessage, error) {
	switch e := event.(type) {
	case JoinResponse:
		return ServerMessage{JoinResponse: &e}, nil
	case BroadcastMessage:
		return ServerMessage{Broadcast: &e}, nil
	case UserJoinedNotification:
		return ServerMessage{UserJoined: &e}, nil
	case UserLeftNotification:
		return ServerMessage{UserLeft: &e}, nil
	default:
		return ServerMessage{}, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

// DecodeClient parses one JSON client envelope.
func DecodeClient(data []byte) (ClientEvent, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: decode client message: %w", err)
	}
	return msg.Event()
}

// EncodeClient renders a client event as a JSON envelope.
func EncodeClient(event ClientEvent) ([]byte, error) {
	msg, err := WrapClient(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// DecodeServer parses one JSON server envelope.
func DecodeServer(data []byte) (ServerEvent, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: decode server message: %w", err)
	}
	return msg.Event()
}

// EncodeServer renders a server event as a JSON envelope.
func EncodeServer(event ServerEvent) ([]byte, error) {
	msg, err := WrapServer(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
