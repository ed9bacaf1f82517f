package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"advisory/api/internal/advisory"
)

// A counter row is seeded from answers already numbered for the same
// category and year so imported data keeps its sequence.
const seedFromAnswers = `(SELECT COUNT(*) FROM answers WHERE no_registrasi LIKE $3)`

func nextSequence(ctx context.Context, tx *sqlx.Tx, category string, year int) (int, error) {
	var seq int
	err := tx.GetContext(ctx, &seq, `
		INSERT INTO registration_counters (category, year, last_seq)
		VALUES ($1, $2, `+seedFromAnswers+` + 1)
		ON CONFLICT (category, year)
		DO UPDATE SET last_seq = registration_counters.last_seq + 1, updated_at = NOW()
		RETURNING last_seq`, category, year, numberSuffixPattern(category, year))
	if err != nil {
		return 0, fmt.Errorf("allocate registration number: %w", err)
	}
	return seq, nil
}

// PeekRegistrationNumber previews the number the next answer in category and
// year would receive. It reserves nothing.
func (s *PostgresStore) PeekRegistrationNumber(ctx context.Context, category string, year int) (advisory.RegistrationNumber, error) {
	var seq int
	err := s.db.GetContext(ctx, &seq, `
		SELECT COALESCE(
			(SELECT last_seq FROM registration_counters WHERE category=$1 AND year=$2),
			`+seedFromAnswers+`
		) + 1`, category, year, numberSuffixPattern(category, year))
	if err != nil {
		return advisory.RegistrationNumber{}, fmt.Errorf("peek registration number: %w", err)
	}
	return advisory.RegistrationNumber{Seq: seq, Category: category, Year: year}, nil
}

func numberSuffixPattern(category string, year int) string {
	return "%/" + category + "/" + strconv.Itoa(year)
}
