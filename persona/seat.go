package persona

// Seat is a position in percentage coordinates of the stage layout.
type Seat struct {
	X, Y int
}

var (
	centre = Seat{50, 50}

	layouts = map[int][]Seat{
		1: {{50, 40}},
		2: {{35, 30}, {65, 30}},
		3: {{25, 30}, {50, 25}, {75, 30}},
	}

	grid = []Seat{
		{25, 30}, {50, 25}, {75, 30},
		{25, 70}, {50, 75}, {75, 70},
	}
)

// SeatFor returns the seat of the index-th persona out of count.
func SeatFor(index, count int) Seat {
	if index < 0 || index >= count {
		return centre
	}
	seats, ok := layouts[count]
	if !ok {
		seats = grid
	}
	if index >= len(seats) {
		return centre
	}
	return seats[index]
}
