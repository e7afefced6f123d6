package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "he..."},
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"", 5, ""},
		{"abc", 2, "ab"},
		{"abc", 3, "abc"},
	}

	for _, tt := range tests {
		result := TruncateString(tt.input, tt.length)
		if result != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q; want %q", tt.input, tt.length, result, tt.expected)
		}
	}
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0xAb58...eC9B", ShortAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"))
	assert.Equal(t, "0x1234", ShortAddress("0x1234"))
}

func TestAddCommas(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123", "123"},
		{"1234", "1,234"},
		{"123456", "123,456"},
		{"1234567", "1,234,567"},
		{"1234.56", "1,234.56"},
		{"1234567.000001", "1,234,567.000001"},
		{"-1234", "-1,234"},
		{"", ""},
	}

	for _, tt := range tests {
		result := AddCommas(tt.input)
		if result != tt.expected {
			t.Errorf("AddCommas(%q) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"0", "0 KAI"},
		{"1000000000000000000", "1 KAI"},
		{"1234560000000000000", "1.23456 KAI"},
		{"1", "0.000000000000000001 KAI"},
		{"1234567000000000000000000", "1,234,567 KAI"},
		{"123456789012345678901234567890", "123,456,789,012.34567890123456789 KAI"},
		{" 2500000000000000000 ", "2.5 KAI"},
		{"not-a-number", ""},
		{"1.5", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatBalance(tt.input), "FormatBalance(%q)", tt.input)
	}
}

func TestFormatUnits(t *testing.T) {
	s, err := FormatUnits("1500000", 6, " USDC")
	require.NoError(t, err)
	assert.Equal(t, "1.5 USDC", s)

	s, err = FormatUnits("", 6, " USDC")
	require.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = FormatUnits("0xff", 18, UnitSuffix)
	assert.Error(t, err)
}

func TestParseUnits(t *testing.T) {
	d, err := ParseUnits("1234560000000000000", BaseUnitDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1.23456", d.String())
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		decimals int
		expected string
	}{
		{1234.5678, 2, "1,234.57"},
		{1234.5, 2, "1,234.50"},
		{0, 2, "0.00"},
	}

	for _, tt := range tests {
		result := FormatFloat(tt.input, tt.decimals)
		if result != tt.expected {
			t.Errorf("FormatFloat(%f, %d) = %q; want %q", tt.input, tt.decimals, result, tt.expected)
		}
	}
}
