// Package demo declares the sample message types the CLI dispatches.
// They stand in for the host application's own messages so the kinds
// and demo commands have something real to work with.
package demo

import (
	"sync"

	"github.com/dwhitmore/beacon/message"
)

// Tick is an untargeted heartbeat message.
type Tick struct {
	message.UntargetedBase
	Count int `json:"count"`
}

// RoomMessage is delivered to a single room address.
type RoomMessage struct {
	message.TargetedBase
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// RoomJoined is broadcast from a room address to anyone listening.
type RoomJoined struct {
	message.BroadcastBase
	User string `json:"user"`
}

var registerOnce sync.Once

// RegisterKinds adds the demo message kinds to the default registry.
// Safe to call more than once.
func RegisterKinds() {
	registerOnce.Do(func() {
		message.RegisterKind[Tick]("demo.tick", "Periodic heartbeat emitted by the demo session")
		message.RegisterKind[RoomMessage]("demo.room.message", "Chat line delivered to one room")
		message.RegisterKind[RoomJoined]("demo.room.joined", "Announcement that a user entered a room")
	})
}
