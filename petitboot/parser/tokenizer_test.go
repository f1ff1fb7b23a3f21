package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
)

func TestTokenizeKeyValue(t *testing.T) {
	buf := []byte("default=linux\nroot=/dev/sda2\n# a comment\nlinux='/vmlinux root=LABEL=boot initrd=/initrd'\n")
	tokens := parser.Tokenize(buf, "=")

	require.Equal(t, []parser.Token{
		{Name: "default", Value: "linux"},
		{Name: "root", Value: "/dev/sda2"},
		{Name: "linux", Value: "/vmlinux root=LABEL=boot initrd=/initrd"},
	}, tokens)
}

func TestTokenizeSpaceDelimited(t *testing.T) {
	buf := []byte("LABEL linux\nKERNEL /vmlinuz\n")
	tokens := parser.Tokenize(buf, " \t")

	require.Equal(t, []parser.Token{
		{Name: "LABEL", Value: "linux"},
		{Name: "KERNEL", Value: "/vmlinuz"},
	}, tokens)
}

func TestTokenizeIgnoresHashComments(t *testing.T) {
	buf := []byte("#default=linux\nroot=#notreally\n")
	tokens := parser.Tokenize(buf, "=")

	require.Equal(t, []parser.Token{
		{Name: "root", Value: ""},
	}, tokens)
}

func TestGlobalOptionsMostRecentWins(t *testing.T) {
	g := parser.NewGlobalOptions()
	g.Set("root", "/dev/sda1")
	g.Set("root", "/dev/sda2")

	require.Equal(t, "/dev/sda2", g.Get("root"))
	require.Equal(t, "fallback", g.GetOr("missing", "fallback"))
}
