package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/auth"
	"coringa/voicebot/internal/config"
	"coringa/voicebot/internal/health"
	"coringa/voicebot/internal/logging"
	"coringa/voicebot/internal/orchestrator"
	"coringa/voicebot/internal/sessions"
)

type Handlers struct {
	cfg config.Config
	svc *orchestrator.Service
	log *zap.Logger
	now func() time.Time
}

func NewHandlers(cfg config.Config, svc *orchestrator.Service, logger *zap.Logger) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, log: logging.OrNop(logger).Named("api"), now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// decode reads an optional JSON body into v. An empty body is not an error.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	st := health.CheckAll(ctx, h.cfg)
	status := http.StatusOK
	if !st.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

func (h *Handlers) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.svc.Rooms()
	if rooms == nil {
		rooms = []sessions.ChannelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (h *Handlers) HandleGetRoom(w http.ResponseWriter, r *http.Request, room string) {
	info, listening, ok := h.svc.Room(room)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if listening == nil {
		listening = []sessions.ListeningInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": info, "listening": listening})
}

type connectRequest struct {
	ChannelID string `json:"channel_id"`
	User      string `json:"user"`
	Persona   string `json:"persona"`
}

func (h *Handlers) HandleConnect(w http.ResponseWriter, r *http.Request, room string) {
	var req connectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	info, err := h.svc.Connect(r.Context(), orchestrator.ConnectRequest{
		Room:      room,
		ChannelID: req.ChannelID,
		User:      req.User,
		Persona:   req.Persona,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "room": info})
	case errors.Is(err, orchestrator.ErrUnknownPersona):
		h.writePersonaError(w, err)
	case errors.Is(err, sessions.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Warn("connect failed", zap.String("room", room), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request, room string) {
	closed := h.svc.Disconnect(room)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "closed": closed})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, room string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"room":   room,
		"events": h.svc.Events().List(room),
	})
}

func (h *Handlers) HandleMintStreamToken(w http.ResponseWriter, r *http.Request, room string) {
	exp := auth.Expiry(h.now(), h.cfg.Auth.StreamTokenTTL)
	tok, err := auth.GenerateStreamToken(h.cfg.Auth.StreamTokenSecret, room, exp)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok, "expires_at": exp})
}

// HandleStream upgrades to a websocket carrying the room's events. The token
// comes from the Authorization header or, for browsers, the token query
// parameter.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request, room string) {
	tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		tok = r.URL.Query().Get("token")
	}
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "missing stream token")
		return
	}
	if _, _, err := auth.ValidateStreamToken(h.cfg.Auth.StreamTokenSecret, tok, room, h.now(), h.cfg.Auth.TokenSkewSecs); err != nil {
		h.log.Debug("stream token rejected", zap.String("room", room), zap.Error(err))
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	h.svc.Events().ServeStream(r.Context(), w, r, room, h.log)
}

type personaRequest struct {
	Persona string `json:"persona"`
}

func (h *Handlers) HandleGetPersona(w http.ResponseWriter, r *http.Request, user string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"persona":  h.svc.Conversation().Persona(user),
		"personas": h.svc.Conversation().Catalog().Tags(),
	})
}

func (h *Handlers) HandleSetPersona(w http.ResponseWriter, r *http.Request, user string) {
	var req personaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.SetPersona(user, strings.TrimSpace(req.Persona)); err != nil {
		h.writePersonaError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user, "persona": h.svc.Conversation().Persona(user)})
}

func (h *Handlers) HandleClearHistory(w http.ResponseWriter, r *http.Request, user string) {
	h.svc.ClearHistory(user)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": user})
}

type replyRequest struct {
	Text string `json:"text"`
}

// HandleReply answers text as if user had said it, without any voice channel.
func (h *Handlers) HandleReply(w http.ResponseWriter, r *http.Request, user string) {
	var req replyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	reply := h.svc.Reply(r.Context(), user, text)
	if reply == "" {
		writeError(w, http.StatusRequestTimeout, "request cancelled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"persona": h.svc.Conversation().Persona(user),
		"reply":   reply,
	})
}

func (h *Handlers) writePersonaError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":    err.Error(),
		"personas": h.svc.Conversation().Catalog().Tags(),
	})
}
