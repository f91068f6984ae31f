package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"fundrooms/internal/logging"
	"fundrooms/internal/rooms"
	"fundrooms/internal/store"
)

func newRouter(svc *rooms.Service, st *store.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler(st))

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Get("/rooms/{address}", roomHandler(svc))
		r.Get("/rooms/{address}/events", roomEventsHandler(st))
	})
	return r
}

func apiLogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("route", route),
				}
			},
		},
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st != nil {
			if err := st.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "db unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type roomResponse struct {
	Address        string   `json:"address"`
	Vault          string   `json:"vault"`
	RoomID         string   `json:"room_id"`
	Host           string   `json:"host"`
	CharityWallet  string   `json:"charity_wallet"`
	FeeTokenMint   string   `json:"fee_token_mint"`
	EntryFee       uint64   `json:"entry_fee"`
	MaxPlayers     uint32   `json:"max_players"`
	PlayerCount    uint32   `json:"player_count"`
	TotalCollected uint64   `json:"total_collected"`
	HostFeeBps     uint16   `json:"host_fee_bps"`
	PrizePoolBps   uint16   `json:"prize_pool_bps"`
	CharityBps     uint16   `json:"charity_bps"`
	PrizeMode      string   `json:"prize_mode"`
	Status         string   `json:"status"`
	JoiningClosed  bool     `json:"joining_closed"`
	Ended          bool     `json:"ended"`
	Winners        []string `json:"winners,omitempty"`
	ExpirationSlot uint64   `json:"expiration_slot"`
	CharityMemo    string   `json:"charity_memo,omitempty"`
}

func roomHandler(svc *rooms.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		info, err := svc.GetRoomInfo(r.Context(), addr)
		if err != nil {
			writeError(w, http.StatusBadGateway, "ledger unreachable")
			return
		}
		if info == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		room := info.Room
		resp := roomResponse{
			Address:        info.Address.String(),
			Vault:          info.Vault.String(),
			RoomID:         room.RoomID,
			Host:           room.Host.String(),
			CharityWallet:  room.CharityWallet.String(),
			FeeTokenMint:   room.FeeTokenMint.String(),
			EntryFee:       room.EntryFee,
			MaxPlayers:     room.MaxPlayers,
			PlayerCount:    room.PlayerCount,
			TotalCollected: room.TotalCollected,
			HostFeeBps:     room.HostFeeBps,
			PrizePoolBps:   room.PrizePoolBps,
			CharityBps:     room.CharityBps,
			PrizeMode:      room.PrizeMode.String(),
			Status:         room.Status.String(),
			JoiningClosed:  room.JoiningClosed,
			Ended:          room.Ended,
			ExpirationSlot: room.ExpirationSlot,
			CharityMemo:    room.CharityMemo,
		}
		for _, winner := range room.Winners {
			resp.Winners = append(resp.Winners, winner.String())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type eventResponse struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime string          `json:"block_time"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func roomEventsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusNotImplemented, "event store not configured")
			return
		}
		room := chi.URLParam(r, "address")
		if _, err := solana.PublicKeyFromBase58(room); err != nil {
			writeError(w, http.StatusBadRequest, "invalid address")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err := st.ListRoomEvents(r.Context(), room, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		out := make([]eventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, eventResponse{
				Signature: e.Signature,
				Slot:      e.Slot,
				BlockTime: e.BlockTime.UTC().Format(time.RFC3339),
				EventType: e.EventType,
				Payload:   json.RawMessage(e.Payload),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": out})
	}
}
