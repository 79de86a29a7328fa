// Package roomactor is the one-goroutine-per-room concurrency core:
// every mutation to a Room's EditLog and membership is serialized through
// a single mailbox channel, the Go rendering of original_source's
// libs/room.rs task()/UserMessage actor (SPEC_FULL.md §4.1, §5). A Room
// Registry (internal/registry) owns spawning and routing to these actors;
// this package knows nothing about other rooms.
package roomactor

import (
	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/mailbox"
	"github.com/boardsync/server/internal/protocol"
)

// message is the mailbox's sum type, dispatched by a type switch in run().
// Every variant that can fail or must answer the caller carries its own
// reply channel, sized 1 so the actor never blocks handing back a reply.
type message interface{ isRoomMessage() }

// Join registers a new member's outbox. The connection handler must send
// Join before anything else and Leave exactly once on teardown.
type Join struct {
	UserID string
	Outbox *mailbox.Unbounded[protocol.ServerMessage]
	Reply  chan struct{}
}

// Leave removes a member — the explicit-removal substitute for the
// original's weak-reference member table (no Go equivalent of
// WeakKeyHashMap<Weak<_>, _>; see SPEC_FULL.md §15).
type Leave struct {
	UserID string
}

// Pull answers the §4.3 diff law against the caller's claimed id sets.
// Pull and Auth are the only two messages a not-yet-authenticated
// connection may send.
type Pull struct {
	UserID               string
	CurrentIDs, UndoneIDs []string
	Reply                chan protocol.ServerMessage
}

// Auth compares a bearer token directly against the room's private id or
// co-editor private id — no JWT involved at this layer, matching the
// original's room-secret comparison, distinct from the HTTP-level JWT
// issued by internal/auth.
type Auth struct {
	UserID string
	Token  string
	Reply  chan AuthResult
}

// AuthResult reports whether Token matched and, if so, which role it
// granted.
type AuthResult struct {
	OK         bool
	IsCoEditor bool
}

// Push appends a validated Edit to current and broadcasts it to every
// other joined member, authenticated or not, unless Silent.
type Push struct {
	UserID string
	Edit   board.Edit
	Silent bool
	Reply  chan error
}

// UndoRedo moves an edit between current and undone by id.
type UndoRedo struct {
	UserID string
	Kind   board.UndoRedoKind
	ID     string
	Reply  chan error
}

// Empty clears current or undone entirely.
type Empty struct {
	UserID string
	Which  board.Which
	Reply  chan error
}

// SetSize changes the room's canvas size. Per SPEC_FULL.md §5 the reply
// to the caller (and the broadcast to other members) must not precede the
// corresponding row landing in storage, so the actor awaits a DB Queue
// submission before replying.
type SetSize struct {
	UserID string
	Size   board.Size
	Reply  chan error
}

// SetTitle changes the room's title, with the same await-before-reply
// ordering as SetSize.
type SetTitle struct {
	UserID string
	Title  string
	Reply  chan error
}

// GetCoEditorToken returns the room's current co-editor secret. Owner-only.
type GetCoEditorToken struct {
	UserID string
	Reply  chan TokenResult
}

// GetUpdatedCoEditorToken rotates the co-editor secret, invalidating every
// outstanding co-editor session, and returns the new one. Owner-only.
type GetUpdatedCoEditorToken struct {
	UserID string
	Reply  chan TokenResult
}

// TokenResult is the reply shape shared by the two co-editor-token ops.
type TokenResult struct {
	Token string
	Err   error
}

// VerifyCoEditorToken reports whether token currently matches the room's
// co-editor secret, used by the HTTP surface before an upgrade handshake.
type VerifyCoEditorToken struct {
	Token string
	Reply chan bool
}

// DeleteRoom deletes the board row (and its edits, by cascade), quits
// every member, and terminates the actor. Owner-only.
type DeleteRoom struct {
	UserID string
	Reply  chan error
}

// HasUsers reports whether any member is currently joined, used by the
// idle reaper to decide whether a room may be evicted.
type HasUsers struct {
	Reply chan bool
}

// Expire flushes any pending ops, tells every member to quit, and
// terminates the actor — issued by the reaper or on shutdown.
type Expire struct {
	Done chan struct{}
}

func (Join) isRoomMessage()                    {}
func (Leave) isRoomMessage()                   {}
func (Pull) isRoomMessage()                    {}
func (Auth) isRoomMessage()                    {}
func (Push) isRoomMessage()                    {}
func (UndoRedo) isRoomMessage()                {}
func (Empty) isRoomMessage()                   {}
func (SetSize) isRoomMessage()                 {}
func (SetTitle) isRoomMessage()                {}
func (GetCoEditorToken) isRoomMessage()        {}
func (GetUpdatedCoEditorToken) isRoomMessage() {}
func (VerifyCoEditorToken) isRoomMessage()     {}
func (DeleteRoom) isRoomMessage()              {}
func (HasUsers) isRoomMessage()                {}
func (Expire) isRoomMessage()                  {}
