package datatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLCS(t *testing.T) {
	got, matches := LCS([]byte("ohmytext"), []byte("mynewtext"), 0)
	assert.Equal(t, "mytext", string(got))
	assert.Equal(t, []LCSMatch{
		{AStart: 4, AEnd: 7, BStart: 5, BEnd: 8},
		{AStart: 2, AEnd: 3, BStart: 0, BEnd: 1},
	}, matches)
	assert.Equal(t, 4, matches[0].Len())
}

func TestLCSMinLen(t *testing.T) {
	_, matches := LCS([]byte("ohmytext"), []byte("mynewtext"), 4)
	assert.Equal(t, []LCSMatch{{AStart: 4, AEnd: 7, BStart: 5, BEnd: 8}}, matches)
}

func TestLCSNoCommon(t *testing.T) {
	got, matches := LCS([]byte("abc"), []byte("xyz"), 0)
	assert.Empty(t, got)
	assert.Empty(t, matches)

	got, _ = LCS(nil, []byte("xyz"), 0)
	assert.Empty(t, got)
}
