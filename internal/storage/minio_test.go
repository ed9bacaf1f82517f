package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "exports/2025/03/abc.csv", objectName(now, "abc", "advisory_questions_2025-03-09.csv"))
	assert.Equal(t, "exports/2025/03/abc.pdf", objectName(now, "abc", "advisory_001-05-2025.PDF"))
	assert.Equal(t, "exports/2025/03/abc", objectName(now, "abc", "noext"))
}
