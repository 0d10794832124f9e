package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	ws "nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// ServeStream upgrades the request and streams the room's backlog followed by
// live events until the client goes away or ctx ends. Authorization is the
// caller's job.
func (s *Store) ServeStream(ctx context.Context, w http.ResponseWriter, r *http.Request, room string, log *zap.Logger) {
	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Warn("ws accept", zap.Error(err))
		return
	}
	defer c.Close(ws.StatusInternalError, "stream ended")

	live, cancel := s.Subscribe(room)
	defer cancel()

	// CloseRead handles pings and closes from the client; we never read data.
	ctx = c.CloseRead(ctx)

	for _, e := range s.List(room) {
		if err := writeJSON(ctx, c, e); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			c.Close(ws.StatusNormalClosure, "done")
			return
		case e, ok := <-live:
			if !ok {
				return
			}
			if err := writeJSON(ctx, c, e); err != nil {
				log.Debug("ws write", zap.String("room", room), zap.Error(err))
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, c *ws.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(wctx, ws.MessageText, b)
}
