package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	base := PlanStep{
		Object:      "Contact",
		TargetTable: "stg_sf_contact",
		Columns: []PlanColumn{
			{Field: "Id", Column: "sf_id"},
			{Field: "Email", Column: "email"},
		},
	}
	insert := "INSERT INTO `stg_sf_contact` (`sf_id`, `email`) VALUES (?, ?)"

	tests := []struct {
		strategy LoadStrategy
		matchKey string
		want     []string
	}{
		{StrategyInsert, "", []string{insert}},
		{StrategyOverwrite, "", []string{"TRUNCATE TABLE `stg_sf_contact`", insert}},
		{StrategyUpsert, "email", []string{insert + " ON DUPLICATE KEY UPDATE `sf_id` = VALUES(`sf_id`)"}},
		{StrategyBulkLoad, "", []string{
			"LOAD DATA LOCAL INFILE 'contact.csv' INTO TABLE `stg_sf_contact` FIELDS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '\"' (`sf_id`, `email`)",
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			st := base
			st.Strategy, st.MatchKey = tt.strategy, tt.matchKey
			assert.Equal(t, tt.want, Statements(st))
		})
	}
}

func TestStatements_UpsertOnlyKeyColumn(t *testing.T) {
	st := PlanStep{TargetTable: "t", Strategy: StrategyUpsert, MatchKey: "k", Columns: []PlanColumn{{Field: "K", Column: "k"}}}
	assert.Equal(t, []string{"INSERT INTO `t` (`k`) VALUES (?) ON DUPLICATE KEY UPDATE `k` = `k`"}, Statements(st))
}

func TestEngine_RunWithDryRunLoader(t *testing.T) {
	plan := &LoadPlan{ID: "p1", BatchSize: 10, Steps: []PlanStep{{
		Object: "Account", TargetTable: "stg_sf_account", Strategy: StrategyInsert,
		Columns: []PlanColumn{{Field: "Name", Column: "name"}},
	}}}

	engine := &Engine{Loader: &DryRunLoader{}}
	report, err := engine.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "success", report.Status)
	assert.Equal(t, "p1", report.PlanID)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, []string{"INSERT INTO `stg_sf_account` (`name`) VALUES (?)"}, report.Steps[0].Statements)

	_, err = engine.Run(context.Background(), &LoadPlan{})
	assert.True(t, IsValidation(err))
	_, err = (&Engine{}).Run(context.Background(), plan)
	assert.Error(t, err)
}

func TestEngine_PreviewNeedsSourceAndFields(t *testing.T) {
	_, err := (&Engine{}).Preview(context.Background(), "Account", []string{"Id"}, 5)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestStatements_BulkLoadFileNameIsQuoted(t *testing.T) {
	st := PlanStep{Object: `Bob's/..\Data`, TargetTable: "t", Strategy: StrategyBulkLoad, Columns: []PlanColumn{{Field: "A", Column: "a"}}}
	stmts := Statements(st)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `LOAD DATA LOCAL INFILE 'bob\'s_.._data.csv' INTO TABLE`)
}
