// Package protocol defines the wire message contracts and the Codec
// boundary the connection handler uses to cross them. Per SPEC_FULL.md
// §12, the wire codec is treated as an external black box; this package
// is the seam, not a commitment to a particular wire format.
package protocol

import "github.com/boardsync/server/internal/board"

// ClientMessageKind tags the seven message kinds a client may send.
type ClientMessageKind string

const (
	MsgAuth     ClientMessageKind = "Auth"
	MsgPull     ClientMessageKind = "Pull"
	MsgPush     ClientMessageKind = "Push"
	MsgUndoRedo ClientMessageKind = "UndoRedo"
	MsgEmpty    ClientMessageKind = "Empty"
	MsgSetSize  ClientMessageKind = "SetSize"
	MsgSetTitle ClientMessageKind = "SetTitle"
)

// ClientMessage is the decoded form of a single incoming frame.
type ClientMessage struct {
	Kind ClientMessageKind `json:"kind"`

	Token string `json:"token,omitempty"` // Auth

	CurrentIDs []string `json:"currentIds,omitempty"` // Pull
	UndoneIDs  []string `json:"undoneIds,omitempty"`  // Pull

	Edits  []board.Edit `json:"edits,omitempty"`  // Push
	Silent bool         `json:"silent,omitempty"` // Push

	ActionType board.UndoRedoKind `json:"actionType,omitempty"` // UndoRedo
	ActionID   string             `json:"actionId,omitempty"`   // UndoRedo

	Which board.Which `json:"which,omitempty"` // Empty

	Size *board.Size `json:"size,omitempty"` // SetSize

	Title string `json:"title,omitempty"` // SetTitle
}

// ServerMessageKind tags the ten message kinds the server may emit.
type ServerMessageKind string

const (
	MsgAuthed             ServerMessageKind = "Authed"
	MsgPullData           ServerMessageKind = "PullData"
	MsgPushData           ServerMessageKind = "PushData"
	MsgUndoRedoData       ServerMessageKind = "UndoRedoData"
	MsgEmptyData          ServerMessageKind = "EmptyData"
	MsgSizeData           ServerMessageKind = "SizeData"
	MsgTitleData          ServerMessageKind = "TitleData"
	MsgUpdateCoEditorData ServerMessageKind = "UpdateCoEditorData"
	MsgQuitData           ServerMessageKind = "QuitData"
	MsgInfo               ServerMessageKind = "Info"
)

// EditData is the {should_be_created, should_be_deleted} pair used by
// PullData for both the current and undone halves of the diff.
type EditData struct {
	ShouldBeCreated []board.Edit `json:"shouldBeCreated"`
	ShouldBeDeleted []string     `json:"shouldBeDeleted"`
}

// ServerMessage is the encoded form of a single outgoing frame.
type ServerMessage struct {
	Kind ServerMessageKind `json:"kind"`

	Current *EditData `json:"current,omitempty"` // PullData
	Undone  *EditData `json:"undone,omitempty"`   // PullData

	Edits []board.Edit `json:"edits,omitempty"` // PushData

	ActionType board.UndoRedoKind `json:"actionType,omitempty"` // UndoRedoData
	ActionID   string             `json:"actionId,omitempty"`   // UndoRedoData

	Which board.Which `json:"which,omitempty"` // EmptyData

	Size *board.Size `json:"size,omitempty"` // SizeData

	Title string `json:"title,omitempty"` // TitleData

	Status  string `json:"status,omitempty"`  // Info
	Action  string `json:"action,omitempty"`  // Info
	Payload string `json:"payload,omitempty"` // Info
}

// Info builds the standard Info{status, action, payload} reply frame.
func Info(status, action, payload string) ServerMessage {
	return ServerMessage{Kind: MsgInfo, Status: status, Action: action, Payload: payload}
}
