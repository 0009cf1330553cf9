// Package session manages one connected lobby server's lifetime: the
// outgoing frame queue, the read/write pump goroutines, opcode dispatch
// (spec.md §4.6), and the periodic coverage-feedback timer (spec.md §4.8).
//
// The pump shape is lifted directly from the teacher's ClientConnection in
// cmd/gameserver/main.go: a buffered sendChan drained by a writePump
// goroutine, a readPump goroutine decoding frames and dispatching them, and
// a done channel both pumps select on to unwind together.
package session

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/EaseCation/rank-matcher/internal/ids"
	"github.com/EaseCation/rank-matcher/internal/matchmaking"
	"github.com/EaseCation/rank-matcher/internal/registry"
	"github.com/EaseCation/rank-matcher/internal/wire"
)

const sendBuffer = 256

// ErrClosed is returned by Enqueue once the session has begun shutting down.
var ErrClosed = errors.New("session: connection closed")

// Conn is the subset of *websocket.Conn a Session needs; narrowed so tests
// can substitute a fake without dragging in a real socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Session is one connected lobby server.
type Session struct {
	id       ids.SessionID
	ws       Conn
	reg      *registry.Registry
	log      zerolog.Logger
	sendChan chan []byte
	done     chan struct{}

	// periodChange carries the next feedback period, capacity-1, per
	// spec.md §9 design note. nil means "paused" (spec.md §3: feedback
	// is paused until a period is set; §4.6: period == 0 re-pauses it).
	periodChange chan *time.Duration
}

// New wraps an accepted connection in a Session and registers it as a peer.
func New(ws Conn, reg *registry.Registry, log zerolog.Logger) *Session {
	s := &Session{
		id:           ids.NewSessionID(),
		ws:           ws,
		reg:          reg,
		sendChan:     make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		periodChange: make(chan *time.Duration, 1),
	}
	s.log = log.With().Str("session", s.id.String()).Logger()
	reg.AddPeer(s.id, s)
	return s
}

// ID returns this session's handle.
func (s *Session) ID() ids.SessionID { return s.id }

// Enqueue implements registry.Outgoing: non-blocking send, dropping the
// frame if the buffer is full rather than stalling the producer — mirrors
// ClientConnection.Send's "drop on full buffer" comment in the teacher.
func (s *Session) Enqueue(frame []byte) error {
	select {
	case s.sendChan <- frame:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		s.log.Warn().Msg("outgoing queue full, dropping frame")
		return nil
	}
}

// Close unwinds both pumps and the feedback timer. Safe to call more than
// once.
func (s *Session) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.ws.Close()
}

// Run drives the session to completion: starts the write pump and feedback
// timer, then runs the read pump on the calling goroutine until the
// connection closes or a fatal decode error occurs. Cleanup (peers/senders
// index removal) happens before Run returns.
func (s *Session) Run() {
	go s.writePump()
	go s.feedbackTimer()
	s.readPump()
	s.cleanup()
}

func (s *Session) writePump() {
	const pingPeriod = 30 * time.Second
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.sendChan:
			s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) readPump() {
	s.ws.SetReadLimit(1 << 16)
	s.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Info().Err(err).Msg("read error")
			}
			return
		}

		if !s.handle(data) {
			return
		}
	}
}

// handle decodes and dispatches one frame. It returns false when the
// session must close (a truncated frame per spec.md §4.6, which cannot be
// resynchronized); any other decode failure gets a FormatError reply and
// the session stays open.
func (s *Session) handle(data []byte) bool {
	msg, err := wire.Decode(data)
	if err != nil {
		if errors.Is(err, wire.ErrTruncated) {
			s.log.Warn().Msg("truncated frame, closing session")
			return false
		}
		s.Enqueue(wire.EncodeFormatError(err.Error()))
		return true
	}

	switch m := msg.(type) {
	case wire.AddArena:
		s.onAddArena(m)
	case wire.RemoveArena:
		s.onRemoveArena(m)
	case wire.AddPlayer:
		s.onAddPlayer(m)
	case wire.RemovePlayer:
		s.onRemovePlayer(m)
	case wire.GetOrSubscribeState:
		s.onGetOrSubscribeState(m)
	default:
		s.Enqueue(wire.EncodeFormatError("unsupported packet"))
	}
	return true
}

// onAddArena: a 0-seat registration is a semantic error, per spec.md §7
// logged and otherwise silent — no reply packet, unlike a codec-level
// FormatError.
func (s *Session) onAddArena(m wire.AddArena) {
	if _, err := s.reg.CreateArena(m.Arena, int64(m.NumPlayers)); err != nil {
		s.log.Info().Str("arena", m.Arena).Err(err).Msg("rejected arena registration")
	}
}

func (s *Session) onRemoveArena(m wire.RemoveArena) {
	if a, ok := s.reg.Arena(m.Arena); ok {
		for pid := range a.PlayerStates() {
			s.reg.RemoveSender(pid)
		}
	}
	s.reg.RemoveArena(m.Arena)
}

// onAddPlayer: an unknown arena is a semantic error, per spec.md §7 logged
// and otherwise silent — no reply packet.
func (s *Session) onAddPlayer(m wire.AddPlayer) {
	a, ok := s.reg.Arena(m.Arena)
	if !ok {
		s.log.Info().Str("arena", m.Arena).Str("player", m.Player).Msg("rejected player for unknown arena")
		return
	}
	a.Upsert(m.Player, matchmaking.PlayerEntry{
		RankMin: saturatingSub(m.Rank, m.InitRankDiff),
		RankMax: saturatingAdd(m.Rank, m.InitRankDiff),
		Length:  m.Length,
		Speed:   m.Speed,
		Owner:   s.id,
	})
	s.reg.SetSender(m.Player, s.id)
}

func (s *Session) onRemovePlayer(m wire.RemovePlayer) {
	if a, ok := s.reg.Arena(m.Arena); ok {
		a.Remove(m.Player)
	}
	s.reg.RemoveSender(m.Player)
}

// onGetOrSubscribeState: period_seconds == 0 pauses feedback (spec.md §4.6,
// §3's "None ⇒ feedback paused"); any positive value (re)subscribes at that
// period. Either way the caller gets one immediate coverage report if it
// owns at least one player; otherwise nothing is sent.
func (s *Session) onGetOrSubscribeState(m wire.GetOrSubscribeState) {
	var period *time.Duration
	if m.PeriodSeconds > 0 {
		d := time.Duration(m.PeriodSeconds) * time.Second
		period = &d
	}
	select {
	case s.periodChange <- period:
	default:
		// a change is already pending; the timer will pick up the latest
		// value the next time it drains the channel.
		select {
		case <-s.periodChange:
		default:
		}
		s.periodChange <- period
	}
	s.sendCoverage()
}

// feedbackTimer implements spec.md §4.8: on each tick, report every arena
// this session has players in. Feedback starts paused (spec.md §3's
// documented default) and stays paused until onGetOrSubscribeState sets a
// period; it races the ticker against period changes so a
// GetOrSubscribeState call takes effect without waiting out the old period,
// per the design note in spec.md §9.
func (s *Session) feedbackTimer() {
	var period *time.Duration
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case p := <-s.periodChange:
			period = p
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			if period != nil {
				timer.Reset(*period)
			}
		case <-timer.C:
			s.sendCoverage()
			if period != nil {
				timer.Reset(*period)
			}
		}
	}
}

func (s *Session) sendCoverage() {
	playerIDs := s.reg.SendersOwnedBy(s.id)
	if len(playerIDs) == 0 {
		return
	}
	owned := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		owned[id] = true
	}

	var report []wire.PlayerCoverage
	for _, arena := range s.reg.Arenas() {
		states := arena.PlayerStates()
		for pid, coverage := range states {
			if owned[pid] {
				report = append(report, wire.PlayerCoverage{
					Player:   pid,
					Arena:    arena.Name(),
					Coverage: coverage,
				})
			}
		}
	}
	s.Enqueue(wire.EncodeConnectionState(wire.ConnectionState{Players: report}))
}

// saturatingSub and saturatingAdd mirror matchmaking's unexported helpers
// of the same name (spec.md §4.3's saturating-arithmetic rule also governs
// the initial rank_min/rank_max an incoming AddPlayer derives from
// rank ± init_rank_diff).
func saturatingSub(x, d int64) int64 {
	if d >= x {
		return 0
	}
	return x - d
}

func saturatingAdd(x, d int64) int64 {
	const maxInt64 = 1<<63 - 1
	if d > maxInt64-x {
		return maxInt64
	}
	return x + d
}

func (s *Session) cleanup() {
	s.reg.RemovePeer(s.id)
	for _, pid := range s.reg.SendersOwnedBy(s.id) {
		for _, arena := range s.reg.Arenas() {
			arena.Remove(pid)
		}
		s.reg.RemoveSender(pid)
	}
	s.Close()
}
