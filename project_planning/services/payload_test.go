package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestCoerceDecimalRoundsHalfUp(t *testing.T) {
	cases := []struct {
		input    string
		scale    int32
		expected string
	}{
		{`12.345`, schema.AmountScale, "12.35"},
		{`"12.344"`, schema.AmountScale, "12.34"},
		{`0.005`, schema.AmountScale, "0.01"},
		{`1.0005`, schema.QuantityScale, "1.001"},
		{`7`, schema.QuantityScale, "7.000"},
	}

	for _, tc := range cases {
		d, err := coerceDecimal(raw(tc.input), tc.scale)
		require.NoError(t, err)
		require.True(t, d.Valid)
		assert.Equal(t, tc.expected, d.Decimal.StringFixed(tc.scale), tc.input)
	}

	d, err := coerceDecimal(raw(`null`), schema.AmountScale)
	require.NoError(t, err)
	assert.False(t, d.Valid)

	d, err = coerceDecimal(raw(`""`), schema.AmountScale)
	require.NoError(t, err)
	assert.False(t, d.Valid)

	_, err = coerceDecimal(raw(`"abc"`), schema.AmountScale)
	assert.Error(t, err)
}

func TestCoerceInt(t *testing.T) {
	cases := []struct {
		input    string
		expected int
	}{
		{`3`, 3},
		{`"7"`, 7},
		{`1.0`, 1},
		{`"2.00"`, 2},
		{`null`, 5},
		{`""`, 5},
	}
	for _, c := range cases {
		i, err := coerceInt(raw(c.input), 5)
		require.NoError(t, err, c.input)
		assert.Equal(t, c.expected, i, c.input)
	}

	for _, input := range []string{`1.5`, `"abc"`, `1e30`} {
		_, err := coerceInt(raw(input), 0)
		assert.Error(t, err, input)
	}
}

func TestCoerceBool(t *testing.T) {
	for _, input := range []string{`true`, `"1"`, `1`, `"yes"`, `"Y"`} {
		b, err := coerceBool(raw(input), false)
		require.NoError(t, err, input)
		assert.True(t, b, input)
	}
	for _, input := range []string{`false`, `"0"`, `0`, `"no"`, `"n"`} {
		b, err := coerceBool(raw(input), true)
		require.NoError(t, err, input)
		assert.False(t, b, input)
	}

	b, err := coerceBool(nil, true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = coerceBool(raw(`"maybe"`), false)
	assert.Error(t, err)
}

func TestCoerceDate(t *testing.T) {
	for _, input := range []string{`"2025-03-01"`, `"2025-03-01T10:30:00Z"`, `"2025-03-01T10:30:00"`, `"2025-03-01T23:30:00-03:00"`} {
		d, err := coerceDate(raw(input))
		require.NoError(t, err, input)
		require.NotNil(t, d)
		assert.Equal(t, "2025-03-01", d.Format(dateFormat), input)
	}

	d, err := coerceDate(nil)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = coerceDate(raw(`"01/03/2025"`))
	assert.Error(t, err)
}

func TestParseRequestType(t *testing.T) {
	cases := map[string]schema.RequestType{
		"economic":     schema.Economic,
		"MONETARIO":    schema.Economic,
		"materiales":   schema.Materials,
		"Mano de obra": schema.Labor,
		"OTHER":        schema.Other,
		"otro":         schema.Other,
	}
	for input, expected := range cases {
		actual, err := parseRequestType(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, actual, input)
	}

	_, err := parseRequestType("dinero")
	assert.Error(t, err)
}

func TestNormalizeRegistration(t *testing.T) {
	var payload registerHelpRequestPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"project_id": 42,
		"orgId": "org-1",
		"bonitaCaseId": 1001,
		"stages": [
			{"stageId": "s1", "name": "Uno", "order": "2", "requests": [
				{"id": "r1", "type": "OTRO", "description": "x", "isComplete": "1"},
				{"id": "r2", "description": "no type"}
			]},
			{"name": "Dos", "requests": [{"description": "no id", "type": "economic"}]}
		]
	}`), &payload))

	project, err := payload.normalize()
	require.NoError(t, err)

	assert.Equal(t, "42", project.Id)
	require.NotNil(t, project.BonitaCaseId)
	assert.Equal(t, "1001", *project.BonitaCaseId)
	assert.Equal(t, lifecycle.Pending, project.Status)
	require.Len(t, project.Stages, 1)

	stage := project.Stages[0]
	assert.Equal(t, "42", stage.ProjectId)
	assert.Equal(t, 2, stage.Order)
	require.Len(t, stage.Requests, 1)
	assert.Equal(t, lifecycle.Done, stage.Requests[0].State)
	assert.Equal(t, "s1", stage.Requests[0].StageId)
}

func TestNormalizeRegistrationErrors(t *testing.T) {
	for _, body := range []string{
		`{"orgId": "o", "stages": []}`,
		`{"projectId": "p", "orgId": "o"}`,
		`{"projectId": "p", "orgId": "o", "stages": {}}`,
		`{"projectId": "p", "orgId": "o", "stages": [1]}`,
		`{"projectId": "p", "orgId": "o", "stages": [{"id": "s1", "name": "a", "requests": "r1"}]}`,
		`{"projectId": "p", "orgId": "o", "stages": [{"id": "s1", "name": "a", "requests": ["r0", {"id": "r1", "type": "economic", "description": "x"}]}]}`,
		`{"projectId": "p", "orgId": "o", "stages": [{"id": "s1", "name": "a", "order": 1.5, "requests": [{"id": "r1", "type": "economic", "description": "x"}]}]}`,
		`{"projectId": "p", "orgId": "o", "stages": [{"id": "s1", "requests": [{"id": "r1", "type": "other", "description": "x"}]}]}`,
		`{"projectId": "p", "orgId": "o", "stages": [{"id": "s1", "name": "a", "requests": [{"id": "r1", "type": "other", "description": "x", "currency": "PESO"}]}]}`,
	} {
		var payload registerHelpRequestPayload
		require.NoError(t, json.Unmarshal([]byte(body), &payload))

		_, err := payload.normalize()
		require.Error(t, err, body)
		assert.Equal(t, http.StatusBadRequest, GetResponseCode(err), body)
	}
}
