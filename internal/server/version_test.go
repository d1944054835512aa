package server

import (
	"testing"

	"github.com/eternalApril/moonmock/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    version
		wantErr bool
	}{
		{"7.2.0", version{7, 2, 0}, false},
		{"6.2", version{6, 2, 0}, false},
		{"7", version{7, 0, 0}, false},
		{"7.x.0", version{}, true},
		{"1.2.3.4", version{}, true},
		{"-1.0.0", version{}, true},
		{"", version{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := parseVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestVersionOrdering(t *testing.T) {
	v := mustParseVersion("6.2.7")
	assert.True(t, v.atLeast(mustParseVersion("6.2.7")))
	assert.True(t, v.atLeast(mustParseVersion("6.0.16")))
	assert.False(t, v.atLeast(mustParseVersion("6.10.0")))
	assert.False(t, v.atLeast(mustParseVersion("7.0.0")))
	assert.Equal(t, "6.2.7", v.String())
}

func TestSupports(t *testing.T) {
	e, _ := setupEngine(t)
	older, _ := setupEngine(t, withVersion("6.0.0"))

	assert.Equal(t, "7.2.0", e.Version())
	assert.Equal(t, "6.0.0", older.Version())

	for _, feature := range []string{"GETDEL", "lmpop", "SET GET", "zrank withscore", "XADD NOMKSTREAM"} {
		assert.True(t, e.Supports(feature), feature)
	}
	for _, feature := range []string{"GETDEL", "LMPOP", "SET GET", "ZRANK WITHSCORE", "XADD NOMKSTREAM", "RESET"} {
		assert.False(t, older.Supports(feature), feature)
	}
	assert.True(t, older.Supports("SET KEEPTTL"))
	assert.True(t, older.Supports("HELLO"))
	assert.False(t, e.Supports("NOSUCH"))
}

func TestNewEngineRejectsBadVersion(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Version = "seven"
	_, err := NewEngine(cfg, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}
