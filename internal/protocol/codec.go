package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/boardsync/server/internal/apperr"
	"github.com/boardsync/server/internal/board"
)

// Codec is the boundary between raw socket frames and typed messages.
// The core never depends on a concrete Codec; SPEC_FULL.md §12 explains
// why JSONCodec, not a generated schema codec, is the shipped default.
type Codec interface {
	DecodeClientMessage(frame []byte) (ClientMessage, error)
	EncodeServerMessage(ServerMessage) ([]byte, error)
	EncodeEditData(board.Edit) ([]byte, error)
	DecodeEditData([]byte) (board.Edit, error)
}

// JSONCodec is the default Codec implementation.
type JSONCodec struct{}

func (JSONCodec) DecodeClientMessage(frame []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return ClientMessage{}, apperr.Wrap(apperr.Protocol, fmt.Sprintf("malformed frame: %v", err), apperr.ErrMalformedFrame)
	}
	return msg, nil
}

func (JSONCodec) EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, apperr.Wrap(apperr.Protocol, "failed to encode server message", err)
	}
	return b, nil
}

// EncodeEditData serializes a single Edit for storage in the edits table's
// data column — the same JSON form used on the wire, so a row read back
// out of storage round-trips directly into a PullData reply.
func (JSONCodec) EncodeEditData(e board.Edit) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "failed to encode edit", err)
	}
	return b, nil
}

// DecodeEditData is EncodeEditData's inverse, used by the Room Registry
// to turn a hydrated edits-table row back into a board.Edit.
func (JSONCodec) DecodeEditData(data []byte) (board.Edit, error) {
	var e board.Edit
	if err := json.Unmarshal(data, &e); err != nil {
		return board.Edit{}, apperr.Wrap(apperr.Storage, "failed to decode edit row", err)
	}
	return e, nil
}
