package process

import (
	"math"
	"testing"

	"warpmine/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParameters_Valid(t *testing.T) {
	p, err := NewParameters(2.5, 8, 1.5, 65, 2.2, "")
	require.NoError(t, err)
	assert.Equal(t, CopperOxide, p.MineralType)
	assert.Equal(t, []float64{2.5, 8, 1.5, 65, 2.2}, p.Vector())
}

func TestNewParameters_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Parameters, error)
		field string
	}{
		{"grade above 100", func() (Parameters, error) { return NewParameters(120, 8, 1.5, 65, 2.2, CopperOxide) }, FieldOreGrade},
		{"negative grade", func() (Parameters, error) { return NewParameters(-1, 8, 1.5, 65, 2.2, CopperOxide) }, FieldOreGrade},
		{"zero leaching time", func() (Parameters, error) { return NewParameters(2, 0, 1.5, 65, 2.2, CopperOxide) }, FieldLeachingTime},
		{"negative acid", func() (Parameters, error) { return NewParameters(2, 8, -0.1, 65, 2.2, CopperOxide) }, FieldAcidConcentration},
		{"temperature beyond physical", func() (Parameters, error) { return NewParameters(2, 8, 1.5, 400, 2.2, CopperOxide) }, FieldTemperature},
		{"negative voltage", func() (Parameters, error) { return NewParameters(2, 8, 1.5, 65, -2, CopperOxide) }, FieldVoltage},
		{"nan", func() (Parameters, error) { return NewParameters(math.NaN(), 8, 1.5, 65, 2, CopperOxide) }, FieldOreGrade},
		{"unknown mineral", func() (Parameters, error) { return NewParameters(2, 8, 1.5, 65, 2, "gold") }, FieldMineralType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build()
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			assert.Equal(t, tc.field, core.FieldOf(err))
		})
	}
}

func TestNewParameters_ClampsOperationalEnvelope(t *testing.T) {
	p, err := NewParameters(3, 500, 25, 150, 9, CobaltSulfide)
	require.NoError(t, err)
	assert.Equal(t, MaxLeachingTime, p.LeachingTime)
	assert.Equal(t, MaxAcidConcentration, p.AcidConcentration)
	assert.Equal(t, MaxTemperature, p.Temperature)
	assert.Equal(t, MaxVoltage, p.Voltage)

	cold, err := NewParameters(3, 8, 1, -10, 2, CopperOxide)
	require.NoError(t, err)
	assert.Equal(t, MinTemperature, cold.Temperature)
}

func TestFromVector_RoundTrip(t *testing.T) {
	p, err := NewParameters(1.8, 12, 1.4, 70, 2.3, CopperSulfide)
	require.NoError(t, err)

	back, err := FromVector(p.Vector(), p.MineralType)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = FromVector([]float64{1, 2}, CopperOxide)
	assert.Error(t, err)
}

func TestSweetSpot(t *testing.T) {
	band, ok := SweetSpot(FieldTemperature)
	require.True(t, ok)
	assert.True(t, band.Contains(60))
	assert.True(t, band.Contains(75))
	assert.False(t, band.Contains(76))

	_, ok = SweetSpot("pressure")
	assert.False(t, ok)
}
