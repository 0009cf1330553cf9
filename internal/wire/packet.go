// Package wire implements the v1 framed packet protocol lobby servers speak
// over the WebSocket transport (spec §6). Frames are comma-delimited ASCII
// with length-prefixed strings: "<byte-count>,<literal>". Number decoding
// is lenient — it skips non-digit bytes until the first digit, then
// consumes a run of decimal digits — which is what makes the comma
// delimiters optional noise rather than a strict grammar.
//
// This mirrors the teacher's internal/network/protocol.go shape (one
// Encode*/Decode* function per message type, struct-per-opcode) but speaks
// the ASCII framing this protocol actually uses instead of vector-racer's
// fixed-width binary layout.
package wire

import (
	"errors"
	"strconv"
	"strings"
)

// Opcode identifies a packet's payload shape.
type Opcode uint8

const (
	OpAddArena             Opcode = 1
	OpRemoveArena          Opcode = 2
	OpAddPlayer            Opcode = 3
	OpRemovePlayer         Opcode = 4
	OpGetOrSubscribeState  Opcode = 5
	OpConnectionState      Opcode = 6
	OpMatchSuccess         Opcode = 7
	OpMatchFailure         Opcode = 8
	OpFormatError          Opcode = 9
)

// ErrTruncated is returned when a length-prefixed string claims more bytes
// than remain in the frame. Per spec §4.6 this is the one decode failure
// that cannot be resynchronized, so callers should treat it as fatal for
// the session rather than replying with a FormatError and continuing.
var ErrTruncated = errors.New("wire: truncated frame, cannot resynchronize")

// ErrUnknownPacket covers any other decode failure: unsupported version,
// unknown opcode, or a field that doesn't parse. Recoverable — the caller
// should reply with a FormatError packet and keep the session open.
var ErrUnknownPacket = errors.New("wire: unrecognized or malformed packet")

// --- incoming (client -> server) payloads ---

type AddArena struct {
	Arena      string
	NumPlayers uint64
}

type RemoveArena struct {
	Arena string
}

type AddPlayer struct {
	Arena         string
	Player        string
	Rank          int64
	Length        int64
	InitRankDiff  int64
	Speed         int64
}

type RemovePlayer struct {
	Arena  string
	Player string
}

type GetOrSubscribeState struct {
	PeriodSeconds uint64
}

// --- outgoing (server -> client) payloads ---

// PlayerCoverage is one entry of an opcode-6 ConnectionState report.
type PlayerCoverage struct {
	Player   string
	Arena    string
	Coverage int64
}

type ConnectionState struct {
	Players []PlayerCoverage
}

// MatchMember is one entry of the player list carried by MatchSuccess/MatchFailure.
type MatchMember struct {
	Player string
	Length int64
}

type MatchSuccess struct {
	Arena          string
	StageRequestID int64
	Players        []MatchMember
}

type MatchFailure struct {
	Arena    string
	ErrorID  int64
	ErrorMsg string
	Players  []MatchMember
}

type FormatError struct {
	Error string
}

// reader walks a single frame's bytes left to right. It never backtracks —
// matching the one-shot CharReader the original implementation used.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

// readNumber skips non-digit bytes until the first digit, then consumes a
// run of decimal digits, returning 0 if no digits were found before the
// buffer ran out (lenient per spec §6).
func (r *reader) readNumber() uint64 {
	for r.pos < len(r.buf) && (r.buf[r.pos] < '0' || r.buf[r.pos] > '9') {
		r.pos++
	}
	var n uint64
	for r.pos < len(r.buf) && r.buf[r.pos] >= '0' && r.buf[r.pos] <= '9' {
		n = n*10 + uint64(r.buf[r.pos]-'0')
		r.pos++
	}
	return n
}

// readString reads a length-prefixed string: a number, one delimiter comma,
// then exactly that many literal bytes (which may themselves contain
// commas — the count is authoritative, not the delimiter). Returns
// ErrTruncated if fewer bytes remain than claimed.
func (r *reader) readString() (string, error) {
	n := r.readNumber()
	if r.pos < len(r.buf) && r.buf[r.pos] == ',' {
		r.pos++
	}
	if uint64(r.remaining()) < n {
		return "", ErrTruncated
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// readMembers reads the "number M, then M × (string player, number length)"
// shape shared by MatchSuccess and MatchFailure (§6 opcodes 7 and 8).
func (r *reader) readMembers() ([]MatchMember, error) {
	n := r.readNumber()
	members := make([]MatchMember, 0, n)
	for i := uint64(0); i < n; i++ {
		player, err := r.readString()
		if err != nil {
			return nil, err
		}
		members = append(members, MatchMember{Player: player, Length: int64(r.readNumber())})
	}
	return members, nil
}

// Decode parses a single frame into one of the payload types above
// (covering every opcode, not just the five a server expects to receive --
// useful for tests and for any client-side implementation of this
// protocol), or returns ErrTruncated / ErrUnknownPacket.
func Decode(data []byte) (interface{}, error) {
	r := &reader{buf: data}
	if r.readNumber() != 1 {
		return nil, ErrUnknownPacket
	}
	op := Opcode(r.readNumber())
	switch op {
	case OpAddArena:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		return AddArena{Arena: arena, NumPlayers: r.readNumber()}, nil

	case OpRemoveArena:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		return RemoveArena{Arena: arena}, nil

	case OpAddPlayer:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		player, err := r.readString()
		if err != nil {
			return nil, err
		}
		rank := int64(r.readNumber())
		length := int64(r.readNumber())
		diff := int64(r.readNumber())
		speed := int64(r.readNumber())
		return AddPlayer{
			Arena: arena, Player: player,
			Rank: rank, Length: length, InitRankDiff: diff, Speed: speed,
		}, nil

	case OpRemovePlayer:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		player, err := r.readString()
		if err != nil {
			return nil, err
		}
		return RemovePlayer{Arena: arena, Player: player}, nil

	case OpGetOrSubscribeState:
		return GetOrSubscribeState{PeriodSeconds: r.readNumber()}, nil

	case OpConnectionState:
		n := r.readNumber()
		players := make([]PlayerCoverage, 0, n)
		for i := uint64(0); i < n; i++ {
			player, err := r.readString()
			if err != nil {
				return nil, err
			}
			arena, err := r.readString()
			if err != nil {
				return nil, err
			}
			players = append(players, PlayerCoverage{
				Player: player, Arena: arena, Coverage: int64(r.readNumber()),
			})
		}
		return ConnectionState{Players: players}, nil

	case OpMatchSuccess:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		requestID := int64(r.readNumber())
		members, err := r.readMembers()
		if err != nil {
			return nil, err
		}
		return MatchSuccess{Arena: arena, StageRequestID: requestID, Players: members}, nil

	case OpMatchFailure:
		arena, err := r.readString()
		if err != nil {
			return nil, err
		}
		errorID := int64(r.readNumber())
		errorMsg, err := r.readString()
		if err != nil {
			return nil, err
		}
		members, err := r.readMembers()
		if err != nil {
			return nil, err
		}
		return MatchFailure{Arena: arena, ErrorID: errorID, ErrorMsg: errorMsg, Players: members}, nil

	case OpFormatError:
		msg, err := r.readString()
		if err != nil {
			return nil, err
		}
		return FormatError{Error: msg}, nil

	default:
		return nil, ErrUnknownPacket
	}
}

type frameWriter struct {
	b strings.Builder
}

func (w *frameWriter) writeNumber(n uint64) {
	w.b.WriteString(strconv.FormatUint(n, 10))
	w.b.WriteByte(',')
}

func (w *frameWriter) writeSignedAsCount(n int64) {
	// Counts in this protocol (N, M) are never negative in practice, but
	// callers pass int for slice lengths; normalize defensively.
	if n < 0 {
		n = 0
	}
	w.writeNumber(uint64(n))
}

func (w *frameWriter) writeString(s string) {
	w.writeNumber(uint64(len(s)))
	w.b.WriteString(s)
}

func (w *frameWriter) header(op Opcode) {
	w.writeNumber(1)
	w.writeNumber(uint64(op))
}

func (w *frameWriter) bytes() []byte {
	return []byte(w.b.String())
}

// EncodeConnectionState encodes an opcode-6 frame.
func EncodeConnectionState(cs ConnectionState) []byte {
	w := &frameWriter{}
	w.header(OpConnectionState)
	w.writeSignedAsCount(int64(len(cs.Players)))
	for _, p := range cs.Players {
		w.writeString(p.Player)
		w.writeString(p.Arena)
		w.writeNumber(uint64(p.Coverage))
	}
	return w.bytes()
}

// EncodeMatchSuccess encodes an opcode-7 frame.
func EncodeMatchSuccess(m MatchSuccess) []byte {
	w := &frameWriter{}
	w.header(OpMatchSuccess)
	w.writeString(m.Arena)
	w.writeNumber(uint64(m.StageRequestID))
	w.writeSignedAsCount(int64(len(m.Players)))
	for _, p := range m.Players {
		w.writeString(p.Player)
		w.writeNumber(uint64(p.Length))
	}
	return w.bytes()
}

// EncodeMatchFailure encodes an opcode-8 frame.
func EncodeMatchFailure(m MatchFailure) []byte {
	w := &frameWriter{}
	w.header(OpMatchFailure)
	w.writeString(m.Arena)
	w.writeNumber(uint64(m.ErrorID))
	w.writeString(m.ErrorMsg)
	w.writeSignedAsCount(int64(len(m.Players)))
	for _, p := range m.Players {
		w.writeString(p.Player)
		w.writeNumber(uint64(p.Length))
	}
	return w.bytes()
}

// EncodeFormatError encodes an opcode-9 frame.
func EncodeFormatError(msg string) []byte {
	w := &frameWriter{}
	w.header(OpFormatError)
	w.writeString(msg)
	return w.bytes()
}
