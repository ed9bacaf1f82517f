package advisory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRegistrationNumber = errors.New("invalid registration number")

// RegistrationNumber is "NNN/category/year", sequential per category and year.
type RegistrationNumber struct {
	Seq      int
	Category string
	Year     int
}

func (n RegistrationNumber) String() string {
	return fmt.Sprintf("%03d/%s/%d", n.Seq, n.Category, n.Year)
}

// FallbackRegistrationNumber is offered when the counter cannot be read.
func FallbackRegistrationNumber(category string, year int) RegistrationNumber {
	return RegistrationNumber{Seq: 1, Category: category, Year: year}
}

func ParseRegistrationNumber(value string) (RegistrationNumber, error) {
	parts := strings.Split(strings.TrimSpace(value), "/")
	if len(parts) != 3 {
		return RegistrationNumber{}, ErrInvalidRegistrationNumber
	}
	seq, err := strconv.Atoi(parts[0])
	if err != nil || seq < 1 || len(parts[0]) < 3 {
		return RegistrationNumber{}, ErrInvalidRegistrationNumber
	}
	if !IsCategory(parts[1]) {
		return RegistrationNumber{}, ErrInvalidRegistrationNumber
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) != 4 {
		return RegistrationNumber{}, ErrInvalidRegistrationNumber
	}
	return RegistrationNumber{Seq: seq, Category: parts[1], Year: year}, nil
}
