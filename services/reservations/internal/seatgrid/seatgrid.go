// Package seatgrid maps seat numbers to row-major labels (A1..A10, B1..).
package seatgrid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	SeatsPerRow = 10
	// Rows is bounded by the single-letter row names A..Z.
	Rows     = 26
	MaxSeats = Rows * SeatsPerRow
)

var (
	ErrInvalidLabel = errors.New("invalid seat label")
	ErrOutOfRange   = errors.New("seat out of range")
	ErrDuplicate    = errors.New("duplicate seat")
)

var labelPattern = regexp.MustCompile(`^([A-Z])(\d+)$`)

// SeatError names the offending label.
type SeatError struct {
	Label string
	Err   error
	Total int
}

func (e *SeatError) Error() string {
	switch e.Err {
	case ErrOutOfRange:
		return fmt.Sprintf("Seat %s is out of range (1-%d)", e.Label, e.Total)
	case ErrDuplicate:
		return fmt.Sprintf("Seat %s is selected more than once", e.Label)
	default:
		return fmt.Sprintf("Invalid seat label: %s", e.Label)
	}
}

func (e *SeatError) Unwrap() error { return e.Err }

type Seat struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
}

// LabelForNumber is only meaningful for n >= 1.
func LabelForNumber(n int) string {
	row := (n - 1) / SeatsPerRow
	inRow := (n-1)%SeatsPerRow + 1
	return fmt.Sprintf("%c%d", rune('A'+row), inRow)
}

func NumberForLabel(label string) (int, error) {
	row, inRow, err := parse(label)
	if err != nil {
		return 0, err
	}
	return row*SeatsPerRow + inRow, nil
}

func parse(label string) (row, inRow int, err error) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, 0, &SeatError{Label: label, Err: ErrInvalidLabel}
	}
	inRow, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, &SeatError{Label: label, Err: ErrInvalidLabel}
	}
	return int(m[1][0] - 'A'), inRow, nil
}

// ValidateSelection resolves labels against a grid of total seats and
// returns them in canonical form ("B03" becomes "B3"). A column past
// SeatsPerRow ("A11") is invalid, and labels must be distinct.
func ValidateSelection(labels []string, total int) ([]int, []string, error) {
	numbers := make([]int, 0, len(labels))
	out := make([]string, 0, len(labels))
	seen := make(map[int]bool, len(labels))

	for _, label := range labels {
		row, inRow, err := parse(label)
		if err != nil {
			return nil, nil, err
		}
		if inRow > SeatsPerRow {
			return nil, nil, &SeatError{Label: label, Err: ErrInvalidLabel}
		}
		n := row*SeatsPerRow + inRow
		if n < 1 || n > total || inRow == 0 {
			return nil, nil, &SeatError{Label: label, Err: ErrOutOfRange, Total: total}
		}
		if seen[n] {
			return nil, nil, &SeatError{Label: label, Err: ErrDuplicate}
		}
		seen[n] = true
		numbers = append(numbers, n)
		out = append(out, LabelForNumber(n))
	}
	return numbers, out, nil
}

// All lists every seat of a grid with total seats.
func All(total int) []Seat {
	seats := make([]Seat, 0, total)
	for i := 1; i <= total; i++ {
		seats = append(seats, Seat{Number: i, Label: LabelForNumber(i)})
	}
	return seats
}

// Labels maps numbers to their labels, preserving order.
func Labels(numbers []int) []string {
	out := make([]string, len(numbers))
	for i, n := range numbers {
		out[i] = LabelForNumber(n)
	}
	return out
}
