package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgtask/orgtask/internal/platform/httpx"
	_ "github.com/orgtask/orgtask/testing"
)

func TestAssignmentSpecMutualExclusivity(t *testing.T) {
	var spec AssignmentSpec

	assert.Equal(t, TargetNone, spec.Kind())

	spec.SelectUser("dev1")
	assert.Equal(t, TargetUser, spec.Kind())
	assert.Equal(t, "dev1", spec.Value())

	// Selecting a role clears the user selection.
	spec.SelectRole("DEV")
	assert.Equal(t, TargetRole, spec.Kind())
	assert.Equal(t, "DEV", spec.Value())

	spec.SelectUsersWithRole("DEV")
	assert.Equal(t, TargetUsersWithRole, spec.Kind())

	// Selection is idempotent across repeated switches.
	spec.SelectUser("dev2")
	spec.SelectUser("dev3")
	assert.Equal(t, TargetUser, spec.Kind())
	assert.Equal(t, "dev3", spec.Value())

	spec.Clear()
	assert.Equal(t, TargetNone, spec.Kind())
	assert.Empty(t, spec.Value())
}

func TestAssignmentSpecEmptyValueIsNoSelection(t *testing.T) {
	var spec AssignmentSpec
	spec.SelectUser("")
	assert.Equal(t, TargetNone, spec.Kind())
}

func TestAssignmentSpecJSONRoundTrip(t *testing.T) {
	var spec AssignmentSpec
	spec.SelectUsersWithRole("DEV")

	data, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"USERS_WITH_ROLE","value":"DEV"}`, string(data))

	var decoded AssignmentSpec
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, spec, decoded)
}

func TestAssignmentSpecRejectsUnknownKind(t *testing.T) {
	var spec AssignmentSpec
	err := json.Unmarshal([]byte(`{"kind":"GROUP","value":"DEV"}`), &spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDraftValidate(t *testing.T) {
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	valid := Draft{Name: "Prepare report", Description: "Quarterly numbers", DueDate: due}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name  string
		draft Draft
	}{
		{"missing name", Draft{Description: "d", DueDate: due}},
		{"missing description", Draft{Name: "n", DueDate: due}},
		{"missing due date", Draft{Name: "n", Description: "d"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
}
