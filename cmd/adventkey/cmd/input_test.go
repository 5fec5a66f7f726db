package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubTerminal(t *testing.T, terminal bool, password string) {
	t.Helper()
	prevRead, prevIs := readPassword, isTerminal
	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { readPassword, isTerminal = prevRead, prevIs })
}

func TestPrompterLine(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("  first \nsecond"), &out)

	got, err := p.line("Birthdate")
	require.NoError(t, err)
	assert.Equal(t, "first", got)
	assert.Equal(t, "Birthdate: ", out.String())

	got, err = p.line("Again")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = p.line("Empty")
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrompterSecret(t *testing.T) {
	t.Run("terminal", func(t *testing.T) {
		stubTerminal(t, true, " grace janin ")
		var out bytes.Buffer
		p := newPrompter(strings.NewReader("ignored\n"), &out)

		got, err := p.secret("Access code")
		require.NoError(t, err)
		assert.Equal(t, "grace janin", got)
		assert.Equal(t, "Access code: \n", out.String())
	})

	t.Run("piped", func(t *testing.T) {
		stubTerminal(t, false, "unused")
		p := newPrompter(strings.NewReader("guestmoir\n"), io.Discard)

		got, err := p.secret("Access code")
		require.NoError(t, err)
		assert.Equal(t, "guestmoir", got)
	})
}
