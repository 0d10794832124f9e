package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// split returns the path segments after prefix, ignoring a trailing slash.
func split(path, prefix string) []string {
	rest := strings.TrimPrefix(strings.TrimSuffix(path, "/"), prefix)
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", h.HandleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.HandleListRooms(w, r)
	})

	// /rooms/{room} | /connect | /disconnect | /events | /stream-token | /ws
	mux.HandleFunc("/rooms/", func(w http.ResponseWriter, r *http.Request) {
		parts := split(r.URL.Path, "/rooms/")
		if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
			http.NotFound(w, r)
			return
		}
		room := parts[0]
		tail := ""
		if len(parts) > 1 {
			tail = parts[1]
		}

		switch tail {
		case "":
			switch r.Method {
			case http.MethodGet:
				h.HandleGetRoom(w, r, room)
			case http.MethodDelete:
				h.HandleDisconnect(w, r, room)
			default:
				methodNotAllowed(w)
			}
		case "connect":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleConnect(w, r, room)
		case "disconnect":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleDisconnect(w, r, room)
		case "events":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleListEvents(w, r, room)
		case "stream-token":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleMintStreamToken(w, r, room)
		case "ws":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleStream(w, r, room)
		default:
			http.NotFound(w, r)
		}
	})

	// /users/{user}/persona | /history | /reply
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		parts := split(r.URL.Path, "/users/")
		if len(parts) != 2 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		user := parts[0]

		switch parts[1] {
		case "persona":
			switch r.Method {
			case http.MethodGet:
				h.HandleGetPersona(w, r, user)
			case http.MethodPut:
				h.HandleSetPersona(w, r, user)
			default:
				methodNotAllowed(w)
			}
		case "history":
			if r.Method != http.MethodDelete {
				methodNotAllowed(w)
				return
			}
			h.HandleClearHistory(w, r, user)
		case "reply":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleReply(w, r, user)
		default:
			http.NotFound(w, r)
		}
	})

	return logMiddleware(h.log, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack is needed by the websocket upgrade.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestsTotal.WithLabelValues(r.Method, statusClass(rec.status)).Inc()
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
