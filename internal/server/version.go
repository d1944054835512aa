package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// version is an emulated server version, major.minor.patch
type version [3]int

func parseVersion(s string) (version, error) {
	var v version
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return v, errors.Errorf("invalid version %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, errors.Errorf("invalid version %q", s)
		}
		v[i] = n
	}
	return v, nil
}

func mustParseVersion(s string) version {
	v, err := parseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v version) atLeast(other version) bool {
	for i := range v {
		if v[i] != other[i] {
			return v[i] > other[i]
		}
	}
	return true
}

func (v version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// optionSince lists command options that appeared after their command
var optionSince = map[string]string{
	"SET GET":            "6.2.0",
	"SET EXAT":           "6.2.0",
	"SET PXAT":           "6.2.0",
	"SET KEEPTTL":        "6.0.0",
	"EXPIRE NX":          "7.0.0",
	"BITCOUNT BIT":       "7.0.0",
	"BITPOS BIT":         "7.0.0",
	"ZADD GT":            "6.2.0",
	"ZRANGE BYSCORE":     "6.2.0",
	"ZRANK WITHSCORE":    "7.2.0",
	"XADD NOMKSTREAM":    "6.2.0",
	"XADD MINID":         "6.2.0",
	"XADD LIMIT":         "6.2.0",
	"XPENDING IDLE":      "6.2.0",
	"XGROUP ENTRIESREAD": "7.0.0",
	"LPOP COUNT":         "6.2.0",
	"SPOP COUNT":         "3.2.0",
	"SCAN TYPE":          "6.0.0",
}

// Supports reports whether the emulated version knows a command, or an option
// written as "COMMAND OPTION"
func (e *Engine) Supports(feature string) bool {
	feature = strings.ToUpper(feature)
	if since, ok := optionSince[feature]; ok {
		return e.version.atLeast(mustParseVersion(since))
	}
	_, ok := e.registry.lookup(feature)
	return ok
}

// Version returns the emulated server version
func (e *Engine) Version() string {
	return e.version.String()
}
