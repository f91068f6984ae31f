// Package indexer tails the program's signature history, decodes the events
// each transaction emitted and persists them. A single cursor row marks the
// newest fully-processed signature; ranges can be replayed safely because
// event inserts are idempotent.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"fundrooms/internal/ledger"
	"fundrooms/internal/program"
	"fundrooms/internal/store"
)

// EventStore is the persistence surface the indexer needs.
type EventStore interface {
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, signature string) error
	InsertRoomEvent(ctx context.Context, e store.RoomEvent) error
}

// Indexer polls one program's transaction history.
type Indexer struct {
	client    ledger.Client
	store     EventStore
	programID solana.PublicKey
	batch     int
	log       zerolog.Logger
}

func New(client ledger.Client, st EventStore, programID solana.PublicKey, batchLimit int, log zerolog.Logger) *Indexer {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Indexer{client: client, store: st, programID: programID, batch: batchLimit, log: log}
}

// RunOnce processes one batch of signatures newer than the cursor and
// returns how many events it stored.
func (ix *Indexer) RunOnce(ctx context.Context) (int, error) {
	var until solana.Signature
	cursor, err := ix.store.Cursor(ctx)
	switch {
	case err == nil:
		until, err = solana.SignatureFromBase58(cursor)
		if err != nil {
			return 0, err
		}
	case errors.Is(err, store.ErrNotFound):
		// First run, start from the most recent history window.
	default:
		return 0, err
	}

	sigs, err := ix.client.SignaturesForAddress(ctx, ix.programID, until, ix.batch)
	if err != nil {
		return 0, err
	}
	if len(sigs) == 0 {
		return 0, nil
	}

	// History arrives newest first; walk oldest first so the cursor never
	// skips an unprocessed signature.
	stored := 0
	for i := len(sigs) - 1; i >= 0; i-- {
		si := sigs[i]
		if si.Err == nil {
			n, err := ix.indexTransaction(ctx, si)
			if err != nil {
				return stored, err
			}
			stored += n
		}
		if err := ix.store.SetCursor(ctx, si.Signature.String()); err != nil {
			return stored, err
		}
	}
	ix.log.Debug().Int("signatures", len(sigs)).Int("events", stored).Msg("indexed batch")
	return stored, nil
}

func (ix *Indexer) indexTransaction(ctx context.Context, si ledger.SignatureInfo) (int, error) {
	detail, err := ix.client.TransactionDetail(ctx, si.Signature)
	if err != nil {
		return 0, err
	}
	events := program.DecodeEvents(detail.Logs)
	for idx, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return idx, err
		}
		rec := store.RoomEvent{
			Signature: si.Signature.String(),
			LogIndex:  idx,
			Slot:      detail.Slot,
			BlockTime: time.Unix(detail.BlockTime, 0).UTC(),
			EventType: ev.EventName(),
			Room:      eventRoom(ev),
			Payload:   payload,
		}
		if err := ix.store.InsertRoomEvent(ctx, rec); err != nil {
			return idx, err
		}
	}
	return len(events), nil
}

// eventRoom extracts the room address an event is about; registry events
// have no room and index under an empty key.
func eventRoom(ev program.Event) string {
	switch e := ev.(type) {
	case *program.RoomCreatedEvent:
		return e.Room.String()
	case *program.AssetRoomCreatedEvent:
		return e.Room.String()
	case *program.PlayerJoinedEvent:
		return e.Room.String()
	case *program.WinnersDeclaredEvent:
		return e.Room.String()
	case *program.RoomEndedEvent:
		return e.Room.String()
	case *program.PrizeAssetDepositedEvent:
		return e.Room.String()
	case *program.PrizeAssetWithdrawnEvent:
		return e.Room.String()
	case *program.JoiningClosedEvent:
		return e.Room.String()
	case *program.RoomCleanedEvent:
		return e.Room.String()
	case *program.RoomRecoveredEvent:
		return e.Room.String()
	default:
		return ""
	}
}
