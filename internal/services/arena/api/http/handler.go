// Package httpapi exposes the arena service over JSON HTTP and a websocket
// spectator feed.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
	"github.com/louisbranch/monarena/internal/services/arena/app"
	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
	"github.com/louisbranch/monarena/internal/services/arena/domain/engine"
	"github.com/louisbranch/monarena/internal/services/arena/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Handler serves the arena HTTP API.
type Handler struct {
	svc      *app.Service
	verifier *Verifier
	router   *mux.Router
}

// NewHandler builds the router for svc.
func NewHandler(svc *app.Service, verifier *Verifier) *Handler {
	h := &Handler{svc: svc, verifier: verifier, router: mux.NewRouter()}
	r := h.router
	r.Use(recoverPanics)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/battles", h.auth(h.startBattle)).Methods(http.MethodPost)
	r.Handle("/battles/{id}/commit", h.auth(h.commit)).Methods(http.MethodPost)
	r.Handle("/battles/{id}/reveal", h.auth(h.reveal)).Methods(http.MethodPost)
	r.Handle("/battles/{id}/actions", h.authority(h.submitAction)).Methods(http.MethodPost)
	r.Handle("/battles/{id}/advance", h.authority(h.advance)).Methods(http.MethodPost)
	r.Handle("/battles/{id}/timeout", h.auth(h.timeout)).Methods(http.MethodPost)

	r.HandleFunc("/battles/{id}", h.getBattle).Methods(http.MethodGet)
	r.HandleFunc("/battles/{id}/mons/{player:[01]}/{mon:[0-9]+}", h.getMon).Methods(http.MethodGet)
	r.HandleFunc("/battles/{id}/effects", h.getEffects).Methods(http.MethodGet)
	r.HandleFunc("/battles/{id}/turns", h.listTurns).Methods(http.MethodGet)
	r.HandleFunc("/battles/{id}/result", h.getResult).Methods(http.MethodGet)
	r.HandleFunc("/battles/{id}/feed", h.feed).Methods(http.MethodGet)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type principalHandler func(w http.ResponseWriter, r *http.Request, p Principal)

// auth requires a valid bearer token.
func (h *Handler) auth(next principalHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.verifier.Verify(bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(WithPrincipal(r.Context(), p)), p)
	})
}

// authority requires a bearer token carrying the authority role.
func (h *Handler) authority(next principalHandler) http.Handler {
	return h.auth(func(w http.ResponseWriter, r *http.Request, p Principal) {
		if !p.IsAuthority() {
			writeError(w, apperrors.WithMetadata(apperrors.CodePermissionDenied,
				"route requires the authority role", map[string]string{"Caller": p.Subject}))
			return
		}
		next(w, r, p)
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Printf(
					"panic recovered method=%s path=%s panic=%v stack=%s",
					r.Method,
					r.URL.Path,
					recovered,
					strings.TrimSpace(string(debug.Stack())),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "live_battles": len(h.svc.Engine().LiveBattles())})
}

type startRequest struct {
	Players     [2]string `json:"players"`
	RosterIndex [2]int    `json:"roster_index"`
	Mode        string    `json:"mode"`
}

type battleResponse struct {
	ID          string    `json:"id"`
	Players     [2]string `json:"players"`
	RosterIndex [2]int    `json:"roster_index"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
}

func (h *Handler) startBattle(w http.ResponseWriter, r *http.Request, p Principal) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.svc.StartBattle(r.Context(), app.StartRequest{
		Initiator:   p.Subject,
		Players:     req.Players,
		RosterIndex: req.RosterIndex,
		Mode:        mode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, battleResponse{
		ID:          b.ID,
		Players:     b.Players,
		RosterIndex: b.RosterIndex,
		Mode:        b.Mode.String(),
		StartedAt:   b.StartedAt,
	})
}

type commitRequest struct {
	Hash string `json:"hash"`
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request, p Principal) {
	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	hash, err := decodeHash(req.Hash)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.Commit(r.Context(), mux.Vars(r)["id"], p.Subject, hash)
	writeResult(w, res, err)
}

// decisionJSON is the wire form of one decision. Salt is hex.
type decisionJSON struct {
	MoveIndex uint8  `json:"move_index"`
	Extra     uint16 `json:"extra"`
	Salt      string `json:"salt"`
}

func (d decisionJSON) decision() (battle.Decision, error) {
	out := battle.Decision{MoveIndex: d.MoveIndex, Extra: d.Extra}
	if d.Salt == "" {
		return out, nil
	}
	salt, err := decodeHash(d.Salt)
	if err != nil {
		return battle.Decision{}, err
	}
	out.Salt = salt
	return out, nil
}

type revealRequest struct {
	Decisions []decisionJSON `json:"decisions"`
}

func (h *Handler) reveal(w http.ResponseWriter, r *http.Request, p Principal) {
	var req revealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	decisions := make([]battle.Decision, 0, len(req.Decisions))
	for _, dj := range req.Decisions {
		d, err := dj.decision()
		if err != nil {
			writeError(w, err)
			return
		}
		decisions = append(decisions, d)
	}
	res, err := h.svc.Reveal(r.Context(), mux.Vars(r)["id"], p.Subject, decisions)
	writeResult(w, res, err)
}

type actionRequest struct {
	Player   int          `json:"player"`
	Slot     int          `json:"slot"`
	Decision decisionJSON `json:"decision"`
}

func (h *Handler) submitAction(w http.ResponseWriter, r *http.Request, p Principal) {
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := req.Decision.decision()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.svc.SubmitAction(r.Context(), mux.Vars(r)["id"], p.Subject, req.Player, req.Slot, d)
	writeResult(w, res, err)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, p Principal) {
	res, err := h.svc.AdvanceTurn(r.Context(), mux.Vars(r)["id"], p.Subject)
	writeResult(w, res, err)
}

func (h *Handler) timeout(w http.ResponseWriter, r *http.Request, _ Principal) {
	res, err := h.svc.SweepTimeout(r.Context(), mux.Vars(r)["id"])
	writeResult(w, res, err)
}

func (h *Handler) getBattle(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Battle(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) getMon(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	player, _ := strconv.Atoi(vars["player"])
	mon, err := strconv.Atoi(vars["mon"])
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeIllegalAction, "mon index is invalid"))
		return
	}
	v, err := h.svc.Mon(vars["id"], player, mon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// getEffects lists global effects, or one mon's effects when player and mon
// are given as query parameters.
func (h *Handler) getEffects(w http.ResponseWriter, r *http.Request) {
	target := battle.GlobalTarget()
	q := r.URL.Query()
	if q.Has("player") || q.Has("mon") {
		player, perr := strconv.Atoi(q.Get("player"))
		mon, merr := strconv.Atoi(q.Get("mon"))
		if perr != nil || merr != nil || player < 0 || player > 1 || mon < 0 {
			writeError(w, apperrors.New(apperrors.CodeIllegalAction, "player and mon must be valid indices"))
			return
		}
		target = battle.MonTarget(player, mon)
	}
	effects, err := h.svc.Effects(mux.Vars(r)["id"], target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"effects": effects})
}

type turnJSON struct {
	Seq       int64           `json:"seq"`
	Action    string          `json:"action"`
	Player    int             `json:"player"`
	Turn      uint64          `json:"turn"`
	Flag      string          `json:"flag"`
	Winner    string          `json:"winner"`
	Events    json.RawMessage `json:"events"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *Handler) listTurns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperrors.New(apperrors.CodeIllegalAction, "page_size must be a non-negative integer"))
			return
		}
		pageSize = n
	}
	page, err := h.svc.Turns(r.Context(), mux.Vars(r)["id"], pageSize, q.Get("page_token"))
	if err != nil {
		writeError(w, err)
		return
	}
	turns := make([]turnJSON, 0, len(page.Turns))
	for _, t := range page.Turns {
		turns = append(turns, turnJSON{
			Seq:       t.Seq,
			Action:    t.Action,
			Player:    t.Player,
			Turn:      t.Turn,
			Flag:      t.Flag,
			Winner:    t.Winner,
			Events:    json.RawMessage(t.Events),
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns, "next_page_token": page.NextPageToken})
}

func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Result(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"battle_id": res.BattleID,
		"winner":    res.Winner,
		"turns":     res.Turns,
		"reason":    res.Reason,
		"ended_at":  res.EndedAt,
	})
}

// resultJSON is the response to every state-changing call.
type resultJSON struct {
	BattleID string         `json:"battle_id"`
	Turn     uint64         `json:"turn"`
	Winner   string         `json:"winner"`
	Flag     string         `json:"flag"`
	Ready    bool           `json:"ready"`
	Events   []engine.Event `json:"events"`
}

func writeResult(w http.ResponseWriter, res engine.TurnResult, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	events := res.Events
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, resultJSON{
		BattleID: res.BattleID,
		Turn:     res.Turn,
		Winner:   res.Winner.String(),
		Flag:     res.Flag.String(),
		Ready:    res.Ready,
		Events:   events,
	})
}

func parseMode(raw string) (battle.GameMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "singles":
		return battle.ModeSingles, nil
	case "doubles":
		return battle.ModeDoubles, nil
	default:
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidConfig,
			fmt.Sprintf("unknown game mode %q", raw), map[string]string{"Field": "mode"})
	}
}

func decodeHash(raw string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(b) != len(out) {
		return out, apperrors.New(apperrors.CodeIllegalAction, "expected 32 hex-encoded bytes")
	}
	copy(out[:], b)
	return out, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeIllegalAction, "invalid request body", err)
	}
	return nil
}

type errorJSON struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError maps err to a status code and JSON body. Storage misses read as
// not found.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorJSON{Code: string(apperrors.CodeNotFound), Message: err.Error()})
		return
	}
	var de *apperrors.Error
	if !errors.As(err, &de) {
		log.Printf("arena http: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Code: string(apperrors.CodeUnknown), Message: "internal error"})
		return
	}
	writeJSON(w, de.Code.HTTPStatus(), errorJSON{Code: string(de.Code), Message: de.Error(), Metadata: de.Metadata})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
