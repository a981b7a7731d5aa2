package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	row := Row{
		Time: 1622548800,
		Date: "20210601",
		Fields: map[string]string{
			"Temperatur Sensor 1": "61.5",
			"Drehzahl Relais 1":   "0",
			"Temperatur Sensor 4": "",
		},
	}

	t.Run("numeric comparison", func(t *testing.T) {
		pred, err := Compile(`num(fields["Temperatur Sensor 1"]) > 60`)
		require.NoError(t, err)
		assert.True(t, pred(row))

		pred, err = Compile(`num(fields["Temperatur Sensor 1"]) > 70`)
		require.NoError(t, err)
		assert.False(t, pred(row))
	})

	t.Run("absent value is zero", func(t *testing.T) {
		pred, err := Compile(`num(fields["Temperatur Sensor 4"]) == 0`)
		require.NoError(t, err)
		assert.True(t, pred(row))
	})

	t.Run("date and string match", func(t *testing.T) {
		pred, err := Compile(`date == "20210601" and fields["Drehzahl Relais 1"] == "0"`)
		require.NoError(t, err)
		assert.True(t, pred(row))
	})

	t.Run("missing field fails the row", func(t *testing.T) {
		pred, err := Compile(`fields["No Such Field"] == "1"`)
		require.NoError(t, err)
		assert.False(t, pred(row))
	})

	t.Run("compile error", func(t *testing.T) {
		_, err := Compile(`fields[`)
		assert.Error(t, err)
	})

	t.Run("non boolean expression rejected", func(t *testing.T) {
		_, err := Compile(`time`)
		assert.Error(t, err)
	})
}
