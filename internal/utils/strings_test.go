package utils

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"varied spacing", "a ,  b,c ", []string{"a", "b", "c"}},
		{"empty segments", ",,a,,b,,", []string{"a", "b"}},
		{"case preserved", "Bond, equity", []string{"Bond", "equity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParseSymbols(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"upper-cased", "spy, aapl", []string{"SPY", "AAPL"}},
		{"duplicates dropped", "SPY,spy, TLT ,SPY", []string{"SPY", "TLT"}},
		{"only separators", " , ,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSymbols(tt.input))
		})
	}
}

func TestOperationTimer(t *testing.T) {
	stop := OperationTimer("test", zerolog.Nop())
	assert.GreaterOrEqual(t, int64(stop()), int64(0))
}
