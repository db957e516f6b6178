package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForPath(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &CSVExtractor{}, ForPath("leads.csv"))
	assert.IsType(t, &CSVExtractor{}, ForPath("LEADS.CSV"))
	assert.IsType(t, &XLSXExtractor{}, ForPath("leads.xlsx"))
	assert.Nil(t, ForPath("leads.txt"))
	assert.Nil(t, ForPath("leads"))
}

func TestUniquifyHeader(t *testing.T) {
	t.Parallel()

	t.Run("trims and fills blanks", func(t *testing.T) {
		t.Parallel()
		got := uniquifyHeader([]string{" Name ", "", "Phone"})
		assert.Equal(t, []string{"Name", "col_2", "Phone"}, got)
	})

	t.Run("suffixes duplicates", func(t *testing.T) {
		t.Parallel()
		got := uniquifyHeader([]string{"Phone", "Phone", "Phone"})
		assert.Equal(t, []string{"Phone", "Phone_2", "Phone_3"}, got)
	})
}

func TestRowFromCells(t *testing.T) {
	t.Parallel()

	header := []string{"Name", "Email", "Phone"}

	t.Run("pads short rows", func(t *testing.T) {
		t.Parallel()
		row := rowFromCells(header, []string{"Acme"})
		assert.Equal(t, Row{"Name": "Acme", "Email": "", "Phone": ""}, row)
	})

	t.Run("drops extra cells", func(t *testing.T) {
		t.Parallel()
		row := rowFromCells(header, []string{"Acme", "a@b.com", "555", "extra"})
		assert.Len(t, row, 3)
		assert.Equal(t, "555", row["Phone"])
	})
}
