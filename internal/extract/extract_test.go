package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeobfuscate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"html entities", "a&nbsp;b &amp; c", "a b & c"},
		{"bracketed at dot", "name [at] example [dot] com", "name@example.com"},
		{"parenthesized", "name (at) example (dot) com", "name@example.com"},
		{"braced", "name {at} example {dot} com", "name@example.com"},
		{"spelled out", "name at example dot com", "name@example.com"},
		{"hyphen spacing", "foo - bar", "foo-bar"},
		{"whitespace collapse", "a \t\n  b", "a b"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Deobfuscate(tc.input))
		})
	}
}

func TestEmailsExtractsObfuscated(t *testing.T) {
	t.Parallel()

	got := Emails("contact me at name [at] example [dot] com for details")
	require.Equal(t, []string{"name@example.com"}, got)
}

func TestEmailsRejectRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "noreply dropped",
			input: "write to 12345+user@noreply.example.com or NOREPLY@shop.com",
			want:  nil,
		},
		{
			name:  "github noreply dropped",
			input: "author 9876+bot@users.noreply.github.com pushed", // .com TLD, still noreply
			want:  nil,
		},
		{
			name:  "asset filename dropped",
			input: `<img src="photo@example.com.jpg">`,
			want:  nil,
		},
		{
			name:  "asset filename with query dropped",
			input: "logo@cdn.shop.com.png?v=2",
			want:  nil,
		},
		{
			name:  "underscore label dropped",
			input: "bad@my_host.com is not routable",
			want:  nil,
		},
		{
			name:  "hyphen-edged label dropped",
			input: "bad@-example.com and worse@example-.com",
			want:  nil,
		},
		{
			name:  "non-com ignored",
			input: "eu person@example.org and us person@example.com",
			want:  []string{"person@example.com"},
		},
		{
			name:  "survivor next to asset",
			input: "ok@example.com and pic@example.com.svg",
			want:  []string{"ok@example.com"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Emails(tc.input))
		})
	}
}

func TestEmailsDedupPreservesOrder(t *testing.T) {
	t.Parallel()

	text := "b@example.com a@example.com b@example.com c@shop.com a@example.com"
	got := Emails(text)
	require.Equal(t, []string{"b@example.com", "a@example.com", "c@shop.com"}, got)
}

func TestEmailsIdempotent(t *testing.T) {
	t.Parallel()

	text := "x@one.com y@two.com x@one.com and name [at] three [dot] com"
	first := Emails(text)
	second := Emails(text)
	require.Equal(t, first, second)
}

func TestFilterCandidates(t *testing.T) {
	t.Parallel()

	in := []string{
		"dev@example.com",
		"12345+dev@users.noreply.github.com",
		"dev@example.com",
		"someone@example.org",
		"other@shop.com",
	}
	got := FilterCandidates(in)
	require.Equal(t, []string{"dev@example.com", "other@shop.com"}, got)
}

func TestEmailsEmptyInput(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Emails(""))
	assert.Nil(t, Emails("   \n\t "))
	assert.Nil(t, FilterCandidates(nil))
}
