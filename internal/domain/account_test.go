package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlan(t *testing.T) {
	testCases := []struct {
		raw     string
		want    Plan
		wantErr bool
	}{
		{raw: "", want: PlanFree},
		{raw: "free", want: PlanFree},
		{raw: " PAID ", want: PlanPaid},
		{raw: "enterprise", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParsePlan(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		assert.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
