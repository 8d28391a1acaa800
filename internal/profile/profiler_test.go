package profile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-agent/backend/internal/dataset"
)

func financeDataset() *dataset.Dataset {
	regions := []string{"East", "West", "North"}
	rows := make([]dataset.Row, 12)
	for i := range rows {
		rows[i] = dataset.Row{
			"Date":    fmt.Sprintf("2024-%02d-01", i+1),
			"Revenue": fmt.Sprintf("%d", 1000+i*37),
			"Budget":  fmt.Sprintf("%d", 1100+i*25),
			"Region":  regions[i%len(regions)],
		}
	}
	return dataset.NewWithColumns([]string{"Date", "Revenue", "Budget", "Region"}, rows)
}

func profileByName(t *testing.T, profiles []ColumnProfile, name string) ColumnProfile {
	t.Helper()
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no profile for column %q", name)
	return ColumnProfile{}
}

func TestProfileContentTypes(t *testing.T) {
	profiles := Profile(financeDataset())
	require.Len(t, profiles, 4)

	assert.Equal(t, Date, profileByName(t, profiles, "Date").ContentType)
	assert.Equal(t, Numeric, profileByName(t, profiles, "Revenue").ContentType)
	assert.Equal(t, Numeric, profileByName(t, profiles, "Budget").ContentType)
	assert.Equal(t, Categorical, profileByName(t, profiles, "Region").ContentType)
}

func TestProfileRoleScores(t *testing.T) {
	profiles := Profile(financeDataset())

	date := profileByName(t, profiles, "Date")
	assert.Greater(t, date.RoleScores[RoleDate], 50.0)

	revenue := profileByName(t, profiles, "Revenue")
	assert.Greater(t, revenue.RoleScores[RoleValue], 50.0)
	assert.Zero(t, revenue.RoleScores[RoleBudget])

	budget := profileByName(t, profiles, "Budget")
	assert.Greater(t, budget.RoleScores[RoleBudget], 50.0)

	region := profileByName(t, profiles, "Region")
	assert.Greater(t, region.RoleScores[RolePrimaryCategory], 50.0)
}

func TestProfileDeterministic(t *testing.T) {
	ds := financeDataset()
	assert.Equal(t, Profile(ds), Profile(ds))
}

func TestProfileNeverFails(t *testing.T) {
	// A column the profiler cannot place scores zero everywhere but still
	// gets a profile.
	ds := dataset.NewWithColumns([]string{"xyz"}, []dataset.Row{
		{"xyz": "foo"}, {"xyz": "bar"},
	})
	profiles := Profile(ds)
	require.Len(t, profiles, 1)
	assert.Equal(t, Categorical, profiles[0].ContentType)
	assert.Empty(t, profiles[0].RoleScores)
}

func TestClassifyContentBareYears(t *testing.T) {
	// Bare years parse as both numeric and date; the name hint decides.
	rows := make([]dataset.Row, 6)
	for i := range rows {
		rows[i] = dataset.Row{"Year": fmt.Sprintf("%d", 2019+i), "Code": fmt.Sprintf("%d", 3001+i)}
	}
	ds := dataset.NewWithColumns([]string{"Year", "Code"}, rows)
	profiles := Profile(ds)

	assert.Equal(t, Date, profileByName(t, profiles, "Year").ContentType)
	assert.Equal(t, Numeric, profileByName(t, profiles, "Code").ContentType)
}

func TestTypeMismatchPenalty(t *testing.T) {
	// "budget" as a categorical column (text values) scores lower than the
	// same name on numbers.
	text := dataset.NewWithColumns([]string{"budget"}, []dataset.Row{
		{"budget": "approved"}, {"budget": "pending"}, {"budget": "approved"},
	})
	numeric := dataset.NewWithColumns([]string{"budget"}, []dataset.Row{
		{"budget": "100"}, {"budget": "200"}, {"budget": "300"},
	})

	textScore := Profile(text)[0].RoleScores[RoleBudget]
	numericScore := Profile(numeric)[0].RoleScores[RoleBudget]
	assert.Less(t, textScore, numericScore)
}

func TestBestColumnTieResolvesToEarliest(t *testing.T) {
	profiles := []ColumnProfile{
		{Name: "a", RoleScores: map[Role]float64{RoleValue: 60}},
		{Name: "b", RoleScores: map[Role]float64{RoleValue: 60}},
	}
	name, score := BestColumn(profiles, RoleValue)
	assert.Equal(t, "a", name)
	assert.Equal(t, 60.0, score)
}

func TestFirstOfTypeAndColumnsOfType(t *testing.T) {
	profiles := Profile(financeDataset())

	assert.Equal(t, "Revenue", FirstOfType(profiles, Numeric))
	assert.Equal(t, []string{"Revenue", "Budget"}, ColumnsOfType(profiles, Numeric))
	assert.Equal(t, "", FirstOfType(nil, Date))
}
