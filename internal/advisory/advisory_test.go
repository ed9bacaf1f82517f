package advisory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoriesAreNineteenTwoDigitCodes(t *testing.T) {
	list := Categories()
	require.Len(t, list, 19)
	for i, c := range list {
		assert.Len(t, c.Code, 2)
		assert.True(t, IsCategory(c.Code))
		if i > 0 {
			assert.Less(t, list[i-1].Code, c.Code)
		}
	}
	assert.False(t, IsCategory("20"))
	assert.False(t, IsCategory("1"))
	assert.Equal(t, "KA ANDAL", CategoryLabel("02"))
	assert.Equal(t, "99", CategoryLabel("99"))
}

func TestCategoriesReturnsCopy(t *testing.T) {
	list := Categories()
	list[0].Label = "changed"
	assert.Equal(t, "Penapisan/S.Arahan/PIL", CategoryLabel("01"))
}

func TestNormalizeCategories(t *testing.T) {
	got := NormalizeCategories([]string{" 05", "02", "", "05", "01"})
	assert.Equal(t, []string{"01", "02", "05"}, got)
	assert.Empty(t, NormalizeCategories(nil))
}

func TestJoinSplitCategories(t *testing.T) {
	assert.Equal(t, "01,02", JoinCategories([]string{"01", "02"}))
	assert.Equal(t, []string{"01", "02"}, SplitCategories("01,02"))
	assert.Empty(t, SplitCategories(""))
	assert.Equal(t, "01. Penapisan/S.Arahan/PIL; 11. Andalalin", DescribeCategories([]string{"01", "11"}))
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusUnanswered.Mutable())
	assert.False(t, StatusAnswered.Mutable())
	assert.True(t, StatusAnswered.Valid())
	assert.False(t, Status("closed").Valid())
}

func TestRegistrationNumberFormat(t *testing.T) {
	assert.Equal(t, "001/02/2025", RegistrationNumber{Seq: 1, Category: "02", Year: 2025}.String())
	assert.Equal(t, "002/02/2025", RegistrationNumber{Seq: 2, Category: "02", Year: 2025}.String())
	assert.Equal(t, "1234/19/2026", RegistrationNumber{Seq: 1234, Category: "19", Year: 2026}.String())
	assert.Equal(t, "001/07/2024", FallbackRegistrationNumber("07", 2024).String())
}

func TestParseRegistrationNumber(t *testing.T) {
	n, err := ParseRegistrationNumber(" 012/05/2025 ")
	require.NoError(t, err)
	assert.Equal(t, RegistrationNumber{Seq: 12, Category: "05", Year: 2025}, n)

	for _, bad := range []string{"", "12/05/2025", "001/5/2025", "001/20/2025", "abc/05/2025", "001/05/25", "000/05/2025", "001-05-2025"} {
		_, err := ParseRegistrationNumber(bad)
		assert.ErrorIs(t, err, ErrInvalidRegistrationNumber, "input %q", bad)
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Search: "  tambang  ", Page: -2}.Normalize()
	assert.Equal(t, StatusAll, f.Status)
	assert.Equal(t, SortNewest, f.SortBy)
	assert.Equal(t, "tambang", f.Search)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 0, f.Offset())
	assert.Equal(t, 10, Filter{Page: 3}.Offset())
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{Status: StatusFilterDone, SortBy: SortOldest}.Validate())
	assert.ErrorIs(t, Filter{Status: "closed"}.Validate(), ErrInvalidStatusFilter)
	assert.ErrorIs(t, Filter{SortBy: "alpha"}.Validate(), ErrInvalidSortOrder)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0))
	assert.Equal(t, 1, TotalPages(5))
	assert.Equal(t, 2, TotalPages(6))
	assert.Equal(t, 3, TotalPages(12))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate(" ")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDate("01/02/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
