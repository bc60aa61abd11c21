package game

import "fmt"

// MatchStatus represents the lifecycle state of a match
type MatchStatus string

const (
	StatusPending MatchStatus = "pending"
	StatusActive  MatchStatus = "active"
	StatusEnded   MatchStatus = "ended"
)

// Team is the side a tile is assigned to when it is resolved
type Team string

const (
	TeamA    Team = "A"
	TeamB    Team = "B"
	TeamNone Team = "none"
)

// ParseTeam accepts "A", "B" or "none"
func ParseTeam(s string) (Team, error) {
	switch Team(s) {
	case TeamA, TeamB, TeamNone:
		return Team(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTeam, s)
}

// Other returns the opposing side. TeamNone has no opponent.
func (t Team) Other() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	}
	return TeamNone
}

// Board shape
const (
	MinCategories      = 1
	MaxCategories      = 6
	TilesPerCategory   = 6
	QuestionsPerBucket = 2
)

// PointValues are the question values every category must stock
var PointValues = [3]int{200, 400, 600}

// RowValues maps rowIndex 1..6 to its point value
var RowValues = [TilesPerCategory]int{200, 200, 400, 400, 600, 600}

// rowSlot returns the value of a 1-based row and which of the bucket's two
// sampled questions it takes.
func rowSlot(row int) (value, index int) {
	return RowValues[row-1], (row - 1) % QuestionsPerBucket
}
