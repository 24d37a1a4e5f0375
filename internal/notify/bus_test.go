package notify

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvFromProc(t *testing.T) {
	if _, err := os.Stat("/proc/self/environ"); err != nil {
		t.Skip("no /proc on this system")
	}
	value, err := getEnvFromProc(os.Getpid(), "PATH")
	require.NoError(t, err)
	assert.Equal(t, os.Getenv("PATH"), value)

	_, err = getEnvFromProc(os.Getpid(), "FOCUSWARDEN_SURELY_UNSET_VARIABLE")
	assert.ErrorContains(t, err, "not found")

	_, err = getEnvFromProc(999999999, "PATH")
	assert.Error(t, err)
}

func TestLookupEnv(t *testing.T) {
	environ := []byte("HOME=/home/me\x00DBUS_SESSION_BUS_ADDRESS=unix:path=/run/user/1000/bus\x00LANG=zh_CN.UTF-8")

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"DBUS_SESSION_BUS_ADDRESS", "unix:path=/run/user/1000/bus", false},
		{"LANG", "zh_CN.UTF-8", false},
		{"HOM", "", true},
		{"MISSING", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := lookupEnv(environ, tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanNullTerminated(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		atEOF   bool
		wantAdv int
		wantTok []byte
	}{
		{"single entry", []byte("FOO=bar\x00"), false, 8, []byte("FOO=bar")},
		{"multiple entries", []byte("FOO=bar\x00BAZ=qux\x00"), false, 8, []byte("FOO=bar")},
		{"eof without terminator", []byte("FOO=bar"), true, 7, []byte("FOO=bar")},
		{"eof with empty input", []byte{}, true, 0, nil},
		{"needs more data", []byte("FOO=bar"), false, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv, tok, err := scanNullTerminated(tt.input, tt.atEOF)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdv, adv)
			assert.Equal(t, tt.wantTok, tok)
		})
	}
}
