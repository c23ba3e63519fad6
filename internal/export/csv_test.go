package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockbudget/internal/core"
)

func TestWriteCSV(t *testing.T) {
	categories := []core.Category{
		{ID: "c1", Name: "RENT"},
		{ID: "c2", Name: "OLD", Archived: true},
	}
	expenses := []core.Expense{
		{ID: "e1", CategoryID: "c1", Amount: core.Money{Cents: 100000}, Note: "march", Date: "2024-03-01"},
		{ID: "e2", CategoryID: "c2", Amount: core.Money{Cents: 5}, Note: `the "good" one`, Date: "2024-03-02"},
		{ID: "e3", CategoryID: "gone", Amount: core.Money{Cents: 1250}, Note: "a, b", Date: "2024-03-03"},
		{ID: "e4", CategoryID: "c1", Amount: core.Money{Cents: 700}, Date: "2024-04-01"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Rows(categories, expenses)))

	want := "date,category,amount,note\n" +
		"2024-03-01,RENT,1000.00,march\n" +
		"2024-03-02,OLD,0.05,\"the \"\"good\"\" one\"\n" +
		"2024-03-03,UNKNOWN,12.50,\"a, b\"\n" +
		"2024-04-01,RENT,7.00,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_EmptyHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "date,category,amount,note\n", buf.String())
}

func TestRowFor_UnknownCategory(t *testing.T) {
	row := RowFor(core.Expense{Date: "2024-03-01", Amount: core.Money{Cents: 1}}, "")
	assert.Equal(t, UnknownCategory, row.Category)
}
