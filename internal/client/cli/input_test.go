package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.Error(t, err)
}

func TestGetMultiline(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"double enter", "a\nb\n\n\n", "a\nb"},
		{"CRLF", "a\r\nb\r\n\r\n", "a\nb"},
		{"EOF without blank line", "a\nb", "a\nb"},
		{"immediate blank", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetMultiline(rdr(tt.input), "Enter text", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stubTerminal(t *testing.T, tty bool, pw []byte, err error) {
	t.Helper()
	origRead, origTTY := readPassword, isTerminal
	readPassword = func(int) ([]byte, error) { return pw, err }
	isTerminal = func(int) bool { return tty }
	t.Cleanup(func() { readPassword, isTerminal = origRead, origTTY })
}

func TestGetPassword_Terminal(t *testing.T) {
	stubTerminal(t, true, []byte("s3cret"), nil)

	var out bytes.Buffer
	pw, err := GetPassword(rdr("ignored\n"), "Master password", &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Master password: \n", out.String())
}

func TestGetPassword_TerminalError(t *testing.T) {
	stubTerminal(t, true, nil, errors.New("boom"))

	var out bytes.Buffer
	_, err := GetPassword(rdr(""), "Master password", &out)
	assert.Error(t, err)
}

func TestGetPassword_PipedInput(t *testing.T) {
	stubTerminal(t, false, nil, errors.New("must not be called"))

	var out bytes.Buffer
	pw, err := GetPassword(rdr("piped-pw\n"), "Master password", &out)
	require.NoError(t, err)
	assert.Equal(t, "piped-pw", string(pw))
}
