package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Region,Product,Revenue
North,Widget,100.5
South,Gadget,200
North,Widget,
East,Sprocket,300.25
West,Widget,150
`

func TestAnalyzeCSV(t *testing.T) {
	a, err := AnalyzeCSV(strings.NewReader(sampleCSV), "sales.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Rows)
	require.Len(t, a.Columns, 3)

	region := a.Columns[0]
	assert.Equal(t, "Region", region.Name)
	assert.Equal(t, "categorical", region.Type)
	assert.ElementsMatch(t, []string{"North", "South", "East", "West"}, region.Members)
	assert.Equal(t, 4, region.UniqueCount)
	assert.Equal(t, 0, region.NullCount)
	assert.Nil(t, region.Statistics)

	revenue := a.Columns[2]
	assert.Equal(t, "numeric", revenue.Type)
	assert.Equal(t, 1, revenue.NullCount)
	require.NotNil(t, revenue.Statistics)
	assert.Equal(t, 100.5, revenue.Statistics.Min)
	assert.Equal(t, 300.25, revenue.Statistics.Max)
	assert.InDelta(t, 187.6875, revenue.Statistics.Mean, 1e-9)
}

func TestAnalyzeCSVMemberCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("ID\n")
	for i := 0; i < 50; i++ {
		b.WriteString(strings.Repeat("x", i+1) + "\n")
	}
	a, err := AnalyzeCSV(strings.NewReader(b.String()), "ids.csv", nil)
	require.NoError(t, err)
	require.Len(t, a.Columns, 1)
	assert.Equal(t, 50, a.Columns[0].UniqueCount)
	assert.Len(t, a.Columns[0].Members, maxSampleMembers)
}

func TestAnalyzeCSVMixedColumnIsCategorical(t *testing.T) {
	csv := "Code\n100\nA100\n200\n"
	a, err := AnalyzeCSV(strings.NewReader(csv), "codes.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, "categorical", a.Columns[0].Type)
	assert.Nil(t, a.Columns[0].Statistics)
}

func TestAnalyzeCSVRejectsNonCSV(t *testing.T) {
	_, err := AnalyzeCSV(strings.NewReader("x"), "book.xlsx", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestAnalyzeCSVEmptyFile(t *testing.T) {
	_, err := AnalyzeCSV(strings.NewReader(""), "empty.csv", nil)
	require.Error(t, err)
}

func TestAnalysisDimensions(t *testing.T) {
	a, err := AnalyzeCSV(strings.NewReader(sampleCSV), "sales.csv", nil)
	require.NoError(t, err)
	dims := a.Dimensions()
	require.Len(t, dims, 3)
	assert.Equal(t, "Region", dims[0].Name)
	assert.NotEmpty(t, dims[0].Members)
}
