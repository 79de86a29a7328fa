package roomactor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/dbqueue"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/mailbox"
	"github.com/boardsync/server/internal/metrics"
	"github.com/boardsync/server/internal/protocol"
	"github.com/boardsync/server/internal/storage"
)

const (
	mailboxBuffer     = 256
	flushPendingAt    = 512
	idleFlushInterval = 10 * time.Second
)

type member struct {
	outbox     *mailbox.Unbounded[protocol.ServerMessage]
	authed     bool
	isCoEditor bool
}

// Actor owns one Room's authoritative state. Every field below is touched
// only from run(); nothing here needs a mutex.
type Actor struct {
	boardID string
	room    *board.Room
	members map[string]*member

	queue *dbqueue.Queue
	store storage.Store
	codec dbqueue.Codec

	mailboxCh chan message
}

// New constructs an Actor for an already-hydrated or brand-new Room.
// Callers (the Room Registry) are responsible for calling Run in its own
// goroutine.
func New(boardID string, room *board.Room, queue *dbqueue.Queue, store storage.Store) *Actor {
	return &Actor{
		boardID:   boardID,
		room:      room,
		members:   make(map[string]*member),
		queue:     queue,
		store:     store,
		codec:     protocol.JSONCodec{},
		mailboxCh: make(chan message, mailboxBuffer),
	}
}

// Ref is the handle other goroutines use to talk to an Actor; it exposes
// no direct access to room state, only message sends.
type Ref struct {
	ch chan message
}

func (a *Actor) Ref() Ref { return Ref{ch: a.mailboxCh} }

func (r Ref) send(ctx context.Context, m message) bool {
	select {
	case r.ch <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r Ref) Join(ctx context.Context, userID string, outbox *mailbox.Unbounded[protocol.ServerMessage]) {
	reply := make(chan struct{}, 1)
	if !r.send(ctx, Join{UserID: userID, Outbox: outbox, Reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-ctx.Done():
	}
}

func (r Ref) Leave(userID string) {
	// Best-effort, fire-and-forget: a connection tearing down must not
	// block on the room actor to report its own departure.
	select {
	case r.ch <- Leave{UserID: userID}:
	default:
		go func() { r.ch <- Leave{UserID: userID} }()
	}
}

func (r Ref) Pull(ctx context.Context, userID string, currentIDs, undoneIDs []string) (protocol.ServerMessage, error) {
	reply := make(chan protocol.ServerMessage, 1)
	if !r.send(ctx, Pull{UserID: userID, CurrentIDs: currentIDs, UndoneIDs: undoneIDs, Reply: reply}) {
		return protocol.ServerMessage{}, ctx.Err()
	}
	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		return protocol.ServerMessage{}, ctx.Err()
	}
}

func (r Ref) Auth(ctx context.Context, userID, token string) (AuthResult, error) {
	reply := make(chan AuthResult, 1)
	if !r.send(ctx, Auth{UserID: userID, Token: token, Reply: reply}) {
		return AuthResult{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return AuthResult{}, ctx.Err()
	}
}

func (r Ref) Push(ctx context.Context, userID string, edit board.Edit, silent bool) error {
	return r.doErr(ctx, func(reply chan error) message {
		return Push{UserID: userID, Edit: edit, Silent: silent, Reply: reply}
	})
}

func (r Ref) UndoRedo(ctx context.Context, userID string, kind board.UndoRedoKind, id string) error {
	return r.doErr(ctx, func(reply chan error) message {
		return UndoRedo{UserID: userID, Kind: kind, ID: id, Reply: reply}
	})
}

func (r Ref) Empty(ctx context.Context, userID string, which board.Which) error {
	return r.doErr(ctx, func(reply chan error) message {
		return Empty{UserID: userID, Which: which, Reply: reply}
	})
}

func (r Ref) SetSize(ctx context.Context, userID string, size board.Size) error {
	return r.doErr(ctx, func(reply chan error) message {
		return SetSize{UserID: userID, Size: size, Reply: reply}
	})
}

func (r Ref) SetTitle(ctx context.Context, userID, title string) error {
	return r.doErr(ctx, func(reply chan error) message {
		return SetTitle{UserID: userID, Title: title, Reply: reply}
	})
}

func (r Ref) doErr(ctx context.Context, build func(chan error) message) error {
	reply := make(chan error, 1)
	if !r.send(ctx, build(reply)) {
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r Ref) GetCoEditorToken(ctx context.Context, userID string) TokenResult {
	reply := make(chan TokenResult, 1)
	if !r.send(ctx, GetCoEditorToken{UserID: userID, Reply: reply}) {
		return TokenResult{Err: ctx.Err()}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return TokenResult{Err: ctx.Err()}
	}
}

func (r Ref) GetUpdatedCoEditorToken(ctx context.Context, userID string) TokenResult {
	reply := make(chan TokenResult, 1)
	if !r.send(ctx, GetUpdatedCoEditorToken{UserID: userID, Reply: reply}) {
		return TokenResult{Err: ctx.Err()}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return TokenResult{Err: ctx.Err()}
	}
}

func (r Ref) VerifyCoEditorToken(ctx context.Context, token string) bool {
	reply := make(chan bool, 1)
	if !r.send(ctx, VerifyCoEditorToken{Token: token, Reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (r Ref) DeleteRoom(ctx context.Context, userID string) error {
	return r.doErr(ctx, func(reply chan error) message {
		return DeleteRoom{UserID: userID, Reply: reply}
	})
}

func (r Ref) HasUsers(ctx context.Context) bool {
	reply := make(chan bool, 1)
	if !r.send(ctx, HasUsers{Reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Expire tells the actor to flush, quit every member, and stop. It blocks
// until the actor has actually exited.
func (r Ref) Expire(ctx context.Context) {
	done := make(chan struct{})
	select {
	case r.ch <- Expire{Done: done}:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Run is the actor's single goroutine. It returns once an Expire or
// DeleteRoom message has fully drained, or after a final flush once ctx
// is cancelled.
func (a *Actor) Run(ctx context.Context) {
	metrics.ActiveRooms.Inc()
	defer metrics.ActiveRooms.Dec()

	ticker := time.NewTicker(idleFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case m := <-a.mailboxCh:
			if a.handle(ctx, m) {
				return
			}
		case <-ticker.C:
			if a.room.Log.PendingLen() > 0 {
				a.flush(ctx)
			}
		case <-ctx.Done():
			a.flush(ctx)
			return
		}
	}
}

// handle dispatches one message and returns true if the actor should stop.
func (a *Actor) handle(ctx context.Context, m message) bool {
	start := time.Now()
	kind := "unknown"
	defer func() {
		metrics.RoomMessageDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	switch msg := m.(type) {
	case Join:
		kind = "join"
		a.members[msg.UserID] = &member{outbox: msg.Outbox}
		metrics.RoomMembers.WithLabelValues(a.room.PublicID).Set(float64(len(a.members)))
		close(msg.Reply)

	case Leave:
		kind = "leave"
		delete(a.members, msg.UserID)
		metrics.RoomMembers.WithLabelValues(a.room.PublicID).Set(float64(len(a.members)))

	case Pull:
		kind = "pull"
		diff := a.room.Log.PullDiff(msg.CurrentIDs, msg.UndoneIDs)
		msg.Reply <- protocol.ServerMessage{
			Kind:    protocol.MsgPullData,
			Current: &protocol.EditData{ShouldBeCreated: diff.CurrentCreate, ShouldBeDeleted: diff.CurrentDelete},
			Undone:  &protocol.EditData{ShouldBeCreated: diff.UndoneCreate, ShouldBeDeleted: diff.UndoneDelete},
		}

	case Auth:
		kind = "auth"
		msg.Reply <- a.handleAuth(msg)

	case Push:
		kind = "push"
		msg.Reply <- a.handlePush(ctx, msg)

	case UndoRedo:
		kind = "undo_redo"
		msg.Reply <- a.handleUndoRedo(ctx, msg)

	case Empty:
		kind = "empty"
		msg.Reply <- a.handleEmpty(ctx, msg)

	case SetSize:
		kind = "set_size"
		msg.Reply <- a.handleSetSize(ctx, msg)

	case SetTitle:
		kind = "set_title"
		msg.Reply <- a.handleSetTitle(ctx, msg)

	case GetCoEditorToken:
		kind = "get_co_editor_token"
		msg.Reply <- a.handleGetCoEditorToken(msg)

	case GetUpdatedCoEditorToken:
		kind = "rotate_co_editor_token"
		msg.Reply <- a.handleRotateCoEditorToken(ctx, msg)

	case VerifyCoEditorToken:
		kind = "verify_co_editor_token"
		msg.Reply <- msg.Token != "" && msg.Token == a.room.CoEditorPrivateID

	case DeleteRoom:
		kind = "delete_room"
		err := a.handleDeleteRoom(ctx, msg)
		msg.Reply <- err
		if err == nil {
			a.quitAll(protocol.Info("deleted", "delete_room", ""))
			return true
		}

	case HasUsers:
		kind = "has_users"
		msg.Reply <- len(a.members) > 0

	case Expire:
		kind = "expire"
		a.flush(ctx)
		a.quitAll(protocol.Info("expired", "expire", ""))
		close(msg.Done)
		return true
	}

	metrics.RoomMessages.WithLabelValues(kind, "ok").Inc()
	if a.room.Log.PendingLen() >= flushPendingAt {
		a.flush(ctx)
	}
	return false
}

func (a *Actor) handleAuth(msg Auth) AuthResult {
	m, ok := a.members[msg.UserID]
	if !ok {
		return AuthResult{}
	}
	switch {
	case msg.Token != "" && msg.Token == a.room.PrivateID:
		m.authed = true
		m.isCoEditor = false
		return AuthResult{OK: true}
	case msg.Token != "" && msg.Token == a.room.CoEditorPrivateID:
		m.authed = true
		m.isCoEditor = true
		return AuthResult{OK: true, IsCoEditor: true}
	default:
		return AuthResult{}
	}
}

func (a *Actor) requireAuthed(userID string) error {
	m, ok := a.members[userID]
	if !ok || !m.authed {
		return apperr.ErrUnauthedMutation
	}
	return nil
}

func (a *Actor) requireOwner(userID string) error {
	m, ok := a.members[userID]
	if !ok || !m.authed || m.isCoEditor {
		return apperr.ErrUnauthedMutation
	}
	return nil
}

func (a *Actor) handlePush(ctx context.Context, msg Push) error {
	if err := a.requireAuthed(msg.UserID); err != nil {
		return err
	}
	if err := a.room.Log.Push(msg.Edit, time.Now()); err != nil {
		return err
	}
	if !msg.Silent {
		a.broadcastExcept(msg.UserID, protocol.ServerMessage{Kind: protocol.MsgPushData, Edits: []board.Edit{msg.Edit}})
	}
	return nil
}

func (a *Actor) handleUndoRedo(ctx context.Context, msg UndoRedo) error {
	if err := a.requireAuthed(msg.UserID); err != nil {
		return err
	}
	if err := a.room.Log.ExecCommand(msg.Kind, msg.ID, time.Now()); err != nil {
		return err
	}
	a.broadcastExcept(msg.UserID, protocol.ServerMessage{Kind: protocol.MsgUndoRedoData, ActionType: msg.Kind, ActionID: msg.ID})
	return nil
}

func (a *Actor) handleEmpty(ctx context.Context, msg Empty) error {
	if err := a.requireAuthed(msg.UserID); err != nil {
		return err
	}
	a.room.Log.Empty(msg.Which, time.Now())
	a.broadcastExcept(msg.UserID, protocol.ServerMessage{Kind: protocol.MsgEmptyData, Which: msg.Which})
	return nil
}

func (a *Actor) handleSetSize(ctx context.Context, msg SetSize) error {
	if err := a.requireAuthed(msg.UserID); err != nil {
		return err
	}
	if err := a.room.SetSize(msg.Size); err != nil {
		return err
	}
	// Await-before-broadcast: the new size must be durable before any
	// member, including the caller, is told it changed (SPEC_FULL.md §5).
	if err := a.queue.SubmitUpdateBoard(ctx, a.boardID, nil, &msg.Size, nil); err != nil {
		logging.Error(logging.WithRoomID(ctx, a.room.PublicID), "set_size flush failed", zap.Error(err))
	}
	a.broadcastAll(protocol.ServerMessage{Kind: protocol.MsgSizeData, Size: &msg.Size})
	return nil
}

func (a *Actor) handleSetTitle(ctx context.Context, msg SetTitle) error {
	if err := a.requireAuthed(msg.UserID); err != nil {
		return err
	}
	if err := a.room.SetTitle(msg.Title); err != nil {
		return err
	}
	if err := a.queue.SubmitUpdateBoard(ctx, a.boardID, &msg.Title, nil, nil); err != nil {
		logging.Error(logging.WithRoomID(ctx, a.room.PublicID), "set_title flush failed", zap.Error(err))
	}
	a.broadcastAll(protocol.ServerMessage{Kind: protocol.MsgTitleData, Title: msg.Title})
	return nil
}

func (a *Actor) handleGetCoEditorToken(msg GetCoEditorToken) TokenResult {
	if err := a.requireOwner(msg.UserID); err != nil {
		return TokenResult{Err: err}
	}
	return TokenResult{Token: a.room.CoEditorPrivateID}
}

func (a *Actor) handleRotateCoEditorToken(ctx context.Context, msg GetUpdatedCoEditorToken) TokenResult {
	if err := a.requireOwner(msg.UserID); err != nil {
		return TokenResult{Err: err}
	}
	token, err := a.room.RotateCoEditorToken()
	if err != nil {
		return TokenResult{Err: err}
	}
	if err := a.queue.SubmitUpdateBoard(ctx, a.boardID, nil, nil, &token); err != nil {
		logging.Error(logging.WithRoomID(ctx, a.room.PublicID), "co-editor token rotation flush failed", zap.Error(err))
	}
	// Every existing co-editor session authenticated against the old
	// secret; force them to re-Auth before accepting further mutations.
	for _, m := range a.members {
		if m.isCoEditor {
			m.authed = false
			m.outbox.Send(protocol.Info("invalidated", "co_editor_token_rotated", ""))
		}
	}
	return TokenResult{Token: token}
}

func (a *Actor) handleDeleteRoom(ctx context.Context, msg DeleteRoom) error {
	if err := a.requireOwner(msg.UserID); err != nil {
		return err
	}
	return a.store.DeleteBoard(ctx, a.boardID)
}

func (a *Actor) broadcastAll(msg protocol.ServerMessage) {
	for _, m := range a.members {
		m.outbox.Send(msg)
	}
}

func (a *Actor) broadcastExcept(exclude string, msg protocol.ServerMessage) {
	for id, m := range a.members {
		if id == exclude {
			continue
		}
		m.outbox.Send(msg)
	}
}

func (a *Actor) quitAll(msg protocol.ServerMessage) {
	for _, m := range a.members {
		m.outbox.Send(msg)
	}
}

// flush compacts and submits every queued PendingOp, logging (never
// panicking) on failure — a room that can't reach storage keeps serving
// live traffic out of memory. Ops drained for a failed flush are not
// re-queued.
func (a *Actor) flush(ctx context.Context) {
	ops := a.room.Log.DrainPending()
	if len(ops) == 0 {
		return
	}
	sync := board.Compact(ops)
	if err := a.queue.FlushRoom(ctx, a.codec, a.boardID, sync); err != nil {
		logging.Error(logging.WithRoomID(ctx, a.room.PublicID), "room flush failed", zap.Error(err))
	}
}
