package broker

import (
	"sync"
)

// Registry tracks which connections are subscribed to which rooms. It is the
// only holder of this state; all access goes through its lock, never through
// shared globals.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn     // room name -> conn id -> conn
	conns map[string]map[string]struct{} // conn id -> set of room names
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Conn),
		conns: make(map[string]map[string]struct{}),
	}
}

// Subscribe adds conn to the room's subscriber set and the room to the
// connection's joined set. Idempotent; subscribing twice is safe.
func (r *Registry) Subscribe(conn Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.rooms[room]
	if !ok {
		subs = make(map[string]Conn)
		r.rooms[room] = subs
	}
	subs[conn.ID()] = conn

	joined, ok := r.conns[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[conn.ID()] = joined
	}
	joined[room] = struct{}{}
}

// Unsubscribe removes conn from a single room. Never errors when absent.
func (r *Registry) Unsubscribe(conn Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(conn.ID(), room)
}

// UnsubscribeAll removes conn from every room it joined; called on
// disconnect so no dangling subscriptions outlive the connection.
func (r *Registry) UnsubscribeAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.conns[conn.ID()] {
		r.dropLocked(conn.ID(), room)
	}
	delete(r.conns, conn.ID())
}

func (r *Registry) dropLocked(connID, room string) {
	if subs, ok := r.rooms[room]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.conns[connID]; ok {
		delete(joined, room)
	}
}

// SubscribersOf returns a snapshot of the room's current subscribers. Fanout
// targets the snapshot; connections dropping mid-fanout are simply skipped.
func (r *Registry) SubscribersOf(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.rooms[room]
	out := make([]Conn, 0, len(subs))
	for _, c := range subs {
		out = append(out, c)
	}
	return out
}

// Rooms returns the rooms a connection has joined.
func (r *Registry) Rooms(conn Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	joined := r.conns[conn.ID()]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}
