package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/sessions"
)

// watch feeds the connection's speaking signals to the floor and closes the
// room if the connection stays lost past the reconnect grace.
func (s *Service) watch(cs *sessions.ChannelSession, conn gateway.Connection) {
	defer s.wg.Done()
	room := cs.Room
	var (
		grace   *time.Timer
		graceCh <-chan time.Time
	)
	stopGrace := func() {
		if grace != nil {
			grace.Stop()
			grace, graceCh = nil, nil
		}
	}
	defer stopGrace()

	evs := conn.Events()
	for {
		select {
		case <-cs.Done():
			return
		case <-graceCh:
			s.log.Warn("connection not recovered, closing room", zap.String("room", room), zap.Duration("grace", s.opts.ReconnectGrace))
			s.events.Append(room, "connection_abandoned", nil)
			s.Disconnect(room)
			return
		case e, ok := <-evs:
			if !ok {
				s.log.Warn("gateway event stream ended", zap.String("room", room))
				s.Disconnect(room)
				return
			}
			switch e.Type {
			case gateway.SpeechStart:
				s.floor.OnSpeechStart(room, e.User, e.At)
			case gateway.SpeechEnd:
				s.floor.OnSpeechEnd(room, e.User, e.At)
			case gateway.Disconnected:
				if grace == nil {
					s.log.Warn("connection lost, waiting for recovery", zap.String("room", room))
					s.events.Append(room, "connection_lost", nil)
					grace = time.NewTimer(s.opts.ReconnectGrace)
					graceCh = grace.C
				}
			case gateway.Ready:
				if grace != nil {
					s.log.Info("connection recovered", zap.String("room", room))
					s.events.Append(room, "connection_ready", nil)
					stopGrace()
				}
			}
		}
	}
}
