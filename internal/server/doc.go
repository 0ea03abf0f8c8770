// Package server exposes the chat service to browsers and other clients.
//
// The WebSocket endpoint carries one JSON envelope per text frame in each
// direction. Alongside it sit a small JSON API for checking usernames and
// listing rooms, health and Prometheus endpoints, and a built-in test page.
// Server ties the HTTP listener together with the gRPC and SSH transports so
// that all of them share one room registry.
package server
