package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumApprovedEffect(t *testing.T) {
	incidents := []Incident{
		{ID: 1, Category: IncidentShortage, Status: IncidentStatusApproved, AffectedAmount: decimal.NewFromInt(200)},
		{ID: 2, Category: IncidentOverage, Status: IncidentStatusApproved, AffectedAmount: decimal.NewFromInt(200)},
		{ID: 3, Category: IncidentDamaged, Status: IncidentStatusApproved, AffectedAmount: decimal.NewFromInt(900)},
		{ID: 4, Category: IncidentFake, Status: IncidentStatusReported, AffectedAmount: decimal.NewFromInt(50)},
		{ID: 5, Category: IncidentMixedOverage, Status: IncidentStatusRejected, AffectedAmount: decimal.NewFromInt(75)},
	}

	total, err := SumApprovedEffect(incidents)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), total.String())

	total, err = SumApprovedEffect(incidents[:1])
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(200)))

	total, err = SumApprovedEffect(incidents[1:2])
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(-200)))
}

func TestSumApprovedEffectUnknownCategory(t *testing.T) {
	_, err := SumApprovedEffect([]Incident{
		{ID: 9, Category: "Theft", Status: IncidentStatusApproved, AffectedAmount: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestValidateIncidentResolution(t *testing.T) {
	cases := []struct {
		from, to IncidentStatus
		ok       bool
	}{
		{IncidentStatusReported, IncidentStatusAdjusted, true},
		{IncidentStatusReported, IncidentStatusApproved, true},
		{IncidentStatusReported, IncidentStatusRejected, true},
		{IncidentStatusAdjusted, IncidentStatusApproved, true},
		{IncidentStatusAdjusted, IncidentStatusRejected, true},
		{IncidentStatusAdjusted, IncidentStatusReported, false},
		{IncidentStatusApproved, IncidentStatusRejected, false},
		{IncidentStatusRejected, IncidentStatusApproved, false},
		{IncidentStatusReported, IncidentStatusReported, false},
	}
	for _, tc := range cases {
		err := ValidateIncidentResolution(5, tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
	}

	err := ValidateIncidentResolution(5, IncidentStatusApproved, IncidentStatusRejected)
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "incident", invalid.Entity)
	assert.Empty(t, invalid.Allowed)
	assert.Contains(t, err.Error(), "allowed: none")
}
