package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagonalWinScenario(t *testing.T) {
	// spec.md scenario 5: A invites B as X; moves 0,1,4,2,8; A wins the
	// {0,4,8} diagonal on the third X move.
	s := NewSession("g1", "bob@10.0.0.3", 'X')

	assert.True(t, s.ApplyMove(0, 'X'))
	assert.True(t, s.ApplyMove(1, 'O'))
	assert.True(t, s.ApplyMove(4, 'X'))
	assert.True(t, s.ApplyMove(2, 'O'))
	assert.True(t, s.ApplyMove(8, 'X'))

	winner, line, done := s.CheckWinner()
	assert.True(t, done)
	assert.Equal(t, byte('X'), winner)
	assert.Equal(t, []int{0, 4, 8}, line)

	assert.Equal(t, ResultWin, s.ResultFor(winner))
	assert.Equal(t, ResultLoss, Mirror(s.ResultFor(winner)))
}

func TestDrawDetection(t *testing.T) {
	s := NewSession("g2", "bob@10.0.0.3", 'X')
	moves := []struct {
		pos int
		sym byte
	}{
		{0, 'X'}, {1, 'O'}, {2, 'X'},
		{4, 'O'}, {3, 'X'}, {5, 'O'},
		{7, 'X'}, {6, 'O'}, {8, 'X'},
	}
	for _, m := range moves {
		require := s.ApplyMove(m.pos, m.sym)
		assert.True(t, require)
	}
	winner, _, done := s.CheckWinner()
	assert.True(t, done)
	assert.Equal(t, byte(0), winner)
	assert.Equal(t, ResultDraw, s.ResultFor(winner))
}

func TestOccupiedCellRejected(t *testing.T) {
	s := NewSession("g3", "bob@10.0.0.3", 'X')
	assert.True(t, s.ApplyMove(0, 'X'))
	assert.False(t, s.ApplyMove(0, 'O'))
}

func TestOpponentSymbolAssignment(t *testing.T) {
	assert.Equal(t, byte('O'), OpponentSymbol('X'))
	assert.Equal(t, byte('X'), OpponentSymbol('O'))
}

func TestForfeitDeactivatesIdempotently(t *testing.T) {
	tbl := New()
	s := NewSession("g4", "bob@10.0.0.3", 'X')
	tbl.Put(s)

	tbl.Deactivate("g4")
	tbl.Deactivate("g4")

	got, _ := tbl.Get("g4")
	assert.False(t, got.Active)
}
