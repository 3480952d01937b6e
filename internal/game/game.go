// Package game implements the Tic-Tac-Toe invite/move/result state
// machine (spec.md §4.11), grounded directly on
// original_source/src/game/tictactoe.py's _check_ttt_winner: the eight
// standard lines checked in the same order (three rows, three columns,
// two diagonals), board cells as a single byte/rune per spec ' '/'X'/'O'.
package game

import (
	"sync"
)

// Result is the outcome reported in a TICTACTOE_RESULT frame.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
	ResultDraw Result = "DRAW"
)

// winLines are the eight standard Tic-Tac-Toe winning lines, in the same
// order as the original's _check_ttt_winner: rows, then columns, then
// diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Session is one game's authoritative-each-side state.
type Session struct {
	GameID     string
	Board      [9]byte // ' ', 'X', or 'O'
	MySymbol   byte
	Opponent   string
	Turn       int
	Active     bool
}

// NewSession creates a fresh game with an empty board.
func NewSession(gameID, opponent string, mySymbol byte) *Session {
	s := &Session{GameID: gameID, Opponent: opponent, MySymbol: mySymbol, Active: true}
	for i := range s.Board {
		s.Board[i] = ' '
	}
	return s
}

// OpponentSymbol returns the symbol automatically assigned to the other
// side (spec.md §4.11: "recipient is automatically assigned the other").
func OpponentSymbol(mine byte) byte {
	if mine == 'X' {
		return 'O'
	}
	return 'X'
}

// ApplyMove places symbol at position. It does not check turn order
// beyond board occupancy — the wire TURN field is informational, the
// cell being already occupied is the actual guard.
func (s *Session) ApplyMove(position int, symbol byte) bool {
	if position < 0 || position > 8 || s.Board[position] != ' ' {
		return false
	}
	s.Board[position] = symbol
	s.Turn++
	return true
}

// CheckWinner inspects the board for a completed line or a draw. It
// returns (winnerSymbol, line, true) on a line win, (0, nil, true) for a
// draw (board full with no line), or (0, nil, false) if the game
// continues.
func (s *Session) CheckWinner() (winner byte, line []int, done bool) {
	for _, l := range winLines {
		a, b, c := l[0], l[1], l[2]
		if s.Board[a] != ' ' && s.Board[a] == s.Board[b] && s.Board[b] == s.Board[c] {
			return s.Board[a], []int{a, b, c}, true
		}
	}
	if s.IsFull() {
		return 0, nil, true
	}
	return 0, nil, false
}

// IsFull reports whether every cell is occupied.
func (s *Session) IsFull() bool {
	for _, c := range s.Board {
		if c == ' ' {
			return false
		}
	}
	return true
}

// ResultFor computes the RESULT value this side reports for a detected
// winner symbol (winner==0 means a draw), from the mover's perspective.
func (s *Session) ResultFor(winner byte) Result {
	if winner == 0 {
		return ResultDraw
	}
	if winner == s.MySymbol {
		return ResultWin
	}
	return ResultLoss
}

// Mirror returns the RESULT the opponent should see for our own
// self-reported result (spec.md scenario 5: "B sees RESULT=LOSS
// (mirrored semantics)").
func Mirror(r Result) Result {
	switch r {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return ResultDraw
	}
}

// Table holds every in-memory game session, guarded by its own mutex.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an empty game table.
func New() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Put installs a session.
func (t *Table) Put(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.GameID] = s
}

// Get returns a session by id.
func (t *Table) Get(gameID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[gameID]
	return s, ok
}

// All returns every known session.
func (t *Table) All() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Deactivate marks a game inactive, e.g. on RESULT receipt or forfeit.
// Calling it twice is a no-op (spec.md §7: duplicate-state-request).
func (t *Table) Deactivate(gameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[gameID]; ok {
		s.Active = false
	}
}
