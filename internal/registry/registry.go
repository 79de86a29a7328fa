// Package registry is the Room Registry: a process-wide map from a
// board's public id to its live actor, lazily hydrating from storage on
// a miss and guarding against duplicate actor spawns when two
// connections race to join the same not-yet-hydrated room
// (SPEC_FULL.md §4.5/§14).
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/boardsync/server/internal/board"
	"github.com/boardsync/server/internal/dbqueue"
	"github.com/boardsync/server/internal/logging"
	"github.com/boardsync/server/internal/protocol"
	"github.com/boardsync/server/internal/roomactor"
	"github.com/boardsync/server/internal/storage"
)

type entry struct {
	ref    roomactor.Ref
	cancel context.CancelFunc
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry

	store storage.Store
	queue *dbqueue.Queue
	codec protocol.Codec
}

func New(store storage.Store, queue *dbqueue.Queue) *Registry {
	return &Registry{
		rooms: make(map[string]*entry),
		store: store,
		queue: queue,
		codec: protocol.JSONCodec{},
	}
}

// Get returns the live actor for publicID, hydrating it from storage on
// a miss. Two concurrent Get calls for the same not-yet-loaded room race
// safely: only one hydrates and spawns; the other observes the result of
// the first's work via the double-checked lock below.
func (r *Registry) Get(ctx context.Context, publicID string) (roomactor.Ref, error) {
	r.mu.RLock()
	e, ok := r.rooms[publicID]
	r.mu.RUnlock()
	if ok {
		return e.ref, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.rooms[publicID]; ok {
		return e.ref, nil
	}

	row, err := r.store.GetBoardByPublicID(ctx, publicID)
	if err != nil {
		return roomactor.Ref{}, err
	}
	current, undone, err := r.store.GetEdits(ctx, row.ID)
	if err != nil {
		return roomactor.Ref{}, err
	}
	currentEdits, err := decodeRows(r.codec, current)
	if err != nil {
		return roomactor.Ref{}, err
	}
	undoneEdits, err := decodeRows(r.codec, undone)
	if err != nil {
		return roomactor.Ref{}, err
	}

	room := board.Hydrate(row.PublicID, row.PrivateID, row.CoEditorPrivateID, row.Title,
		board.Size{Height: row.Height, Width: row.Width}, row.OwnerID,
		board.NewEditLog(currentEdits, undoneEdits))

	return r.spawn(row.ID, room), nil
}

// Create builds a brand-new room, persists its board row, and spawns its
// actor immediately (no hydration round-trip needed since nothing has
// been written yet).
func (r *Registry) Create(ctx context.Context, title string, size board.Size, ownerID *int64) (roomactor.Ref, *board.Room, error) {
	publicID := uuid.NewString()
	room, err := board.NewRoom(publicID, title, size, ownerID)
	if err != nil {
		return roomactor.Ref{}, nil, err
	}
	dbID := uuid.NewString()

	if err := r.queue.SubmitCreateBoard(ctx, storage.BoardRow{
		ID: dbID, PublicID: room.PublicID, PrivateID: room.PrivateID, CoEditorPrivateID: room.CoEditorPrivateID,
		OwnerID: ownerID, Title: room.Title, Height: room.Size.Height, Width: room.Size.Width,
	}); err != nil {
		return roomactor.Ref{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spawn(dbID, room), room, nil
}

// spawn must be called with r.mu held.
func (r *Registry) spawn(dbID string, room *board.Room) roomactor.Ref {
	actor := roomactor.New(dbID, room, r.queue, r.store)
	ctx, cancel := context.WithCancel(context.Background())
	ref := actor.Ref()
	r.rooms[room.PublicID] = &entry{ref: ref, cancel: cancel}
	go actor.Run(ctx)
	return ref
}

// Evict flushes, expires, and removes publicID's actor. Called by the
// idle reaper once HasUsers reports false for long enough, or when a
// room is deleted outright.
func (r *Registry) Evict(ctx context.Context, publicID string) {
	r.mu.Lock()
	e, ok := r.rooms[publicID]
	if ok {
		delete(r.rooms, publicID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	e.ref.Expire(ctx)
	e.cancel()
}

// Active returns the public ids of every currently-loaded room, used by
// the reaper to sweep for idle rooms without needing its own separate
// bookkeeping.
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns the already-loaded actor for publicID without
// triggering hydration, used by the reaper (which only cares about rooms
// already resident in memory).
func (r *Registry) Lookup(publicID string) (roomactor.Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[publicID]
	if !ok {
		return roomactor.Ref{}, false
	}
	return e.ref, true
}

func decodeRows(codec protocol.Codec, rows []storage.EditRow) ([]board.Edit, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	edits := make([]board.Edit, 0, len(rows))
	for _, row := range rows {
		e, err := codec.DecodeEditData(row.Data)
		if err != nil {
			logging.Error(context.Background(), "failed to decode persisted edit row, skipping")
			continue
		}
		edits = append(edits, e)
	}
	return edits, nil
}
