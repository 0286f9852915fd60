package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "comma decimal with dot thousands", raw: "1.234,56", want: "1234.56"},
		{name: "dot decimal with comma thousands", raw: "1,234.56", want: "1234.56"},
		{name: "trailing three digits are thousands", raw: "45.000", want: "45000"},
		{name: "two digit fraction", raw: "500.00", want: "500"},
		{name: "one digit fraction", raw: "45.000,5", want: "45000.5"},
		{name: "multiple thousands groups", raw: "1.234.567", want: "1234567"},
		{name: "currency sign and spaces", raw: "$ 45.000", want: "45000"},
		{name: "plain integer", raw: "12000", want: "12000"},
		{name: "extra precision truncated", raw: "12,345.678", want: "12345.67"},
		{name: "sign dropped", raw: "-120.50", want: "120.5"},
		{name: "garbage", raw: "12a4", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "separator only", raw: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFindSpanishDate(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		d, found, err := findSpanishDate("el 5 de enero de 2026 a las 7:42")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2026-01-05", d.String())
	})

	t.Run("del variant", func(t *testing.T) {
		d, found, err := findSpanishDate("el 14 de Diciembre del 2025")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2025-12-14", d.String())
	})

	t.Run("no token", func(t *testing.T) {
		_, found, err := findSpanishDate("sin fecha alguna")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("impossible date is an error not a fallback", func(t *testing.T) {
		_, found, err := findSpanishDate("el 31 de febrero de 2026")
		assert.True(t, found)
		assert.Error(t, err)
	})

	t.Run("unknown month", func(t *testing.T) {
		_, found, err := findSpanishDate("el 5 de eneroo de 2026")
		assert.True(t, found)
		assert.Error(t, err)
	})
}

func TestFindNumericDate(t *testing.T) {
	t.Run("day month year", func(t *testing.T) {
		d, found, err := findNumericDate("el 05/01/2026 a las 19:42")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2026-01-05", d.String())
	})

	t.Run("unpadded", func(t *testing.T) {
		d, found, err := findNumericDate("el 5/1/2026")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2026-01-05", d.String())
	})

	t.Run("no token", func(t *testing.T) {
		_, found, err := findNumericDate("2026/01/05 19:42 is not day-first")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("impossible date is an error", func(t *testing.T) {
		_, found, err := findNumericDate("el 35/01/2026")
		assert.True(t, found)
		assert.Error(t, err)
	})
}
