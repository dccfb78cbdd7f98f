package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "", expected: ""},
		{input: "   ", expected: ""},
		{input: "12", expected: "12"},
		{input: "  John\n  Smith\t", expected: "John Smith"},
		{input: "Mateus\r\n[Crystal]", expected: "Mateus [Crystal]"},
		{input: "1,234\n\n\n+56", expected: "1,234 +56"},
	}

	for _, row := range table {
		cleaned := Clean(row.input)
		require.Equal(t, row.expected, cleaned)
		require.Equal(t, cleaned, Clean(cleaned), "clean must be idempotent")
		require.NotContains(t, cleaned, "  ")
		require.Equal(t, strings.TrimSpace(cleaned), cleaned)
	}
}

func TestSplitHeadTokens(t *testing.T) {
	table := []struct {
		input string
		head  string
		tail  string
	}{
		{input: "John Smith Mateus [Crystal]", head: "John Smith", tail: "Mateus [Crystal]"},
		{input: "John Smith Mateus", head: "John Smith", tail: "Mateus"},
		{input: "John Smith", head: "John Smith", tail: ""},
		{input: "John", head: "John", tail: ""},
		{input: "", head: "", tail: ""},
	}

	for _, row := range table {
		head, tail := SplitHeadTokens(row.input)
		require.Equal(t, row.head, head, row.input)
		require.Equal(t, row.tail, tail, row.input)
	}
}

func TestSplitBracketed(t *testing.T) {
	table := []struct {
		input  string
		before string
		inside string
	}{
		{input: "Mateus [Crystal]", before: "Mateus", inside: "Crystal"},
		{input: "Mateus", before: "Mateus", inside: ""},
		{input: "Mateus [Crystal", before: "Mateus [Crystal", inside: ""},
		{input: "Mateus [ Crystal ] extra", before: "Mateus", inside: "Crystal"},
		{input: "[Crystal]", before: "", inside: "Crystal"},
		{input: "", before: "", inside: ""},
	}

	for _, row := range table {
		before, inside := SplitBracketed(row.input)
		require.Equal(t, row.before, before, row.input)
		require.Equal(t, row.inside, inside, row.input)
	}
}

func TestSplitMetricPair(t *testing.T) {
	table := []struct {
		input   string
		primary string
		delta   string
	}{
		{input: "1234 +56", primary: "1234", delta: "+56"},
		{input: "1234", primary: "1234", delta: ""},
		{input: "", primary: "", delta: ""},
		{input: "1,500 +20 extra", primary: "1,500", delta: "+20"},
	}

	for _, row := range table {
		primary, delta := SplitMetricPair(row.input)
		require.Equal(t, row.primary, primary, row.input)
		require.Equal(t, row.delta, delta, row.input)
	}

	primary, delta := SplitMetricPair("1234 +56")
	require.Equal(t, "1234", primary)
	require.Equal(t, "56", StripSign(delta))
}

func TestStripSign(t *testing.T) {
	require.Equal(t, "56", StripSign("+56"))
	require.Equal(t, "56", StripSign("56"))
	require.Equal(t, "-3", StripSign("-3"))
	require.Equal(t, "", StripSign("+"))
	require.Equal(t, "", StripSign(""))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "johnsmith", NormalizeName(" John\tSmith\n"))
	require.Equal(t, NormalizeName("JOHN SMITH"), NormalizeName("john smith"))
}
