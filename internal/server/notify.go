package server

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// notifyFlags is the parsed notify-keyspace-events setting
type notifyFlags uint16

const (
	notifyKeyspace notifyFlags = 1 << iota // K
	notifyKeyevent                         // E
	notifyGeneric                          // g
	notifyString                           // $
	notifyList                             // l
	notifySet                              // s
	notifyHash                             // h
	notifyZSet                             // z
	notifyExpired                          // x
	notifyEvicted                          // e
	notifyStream                           // t
	notifyKeyMiss                          // m
	notifyModule                           // d
	notifyNew                              // n

	// notifyAll is the A alias: every class except key misses and new keys
	notifyAll = notifyGeneric | notifyString | notifyList | notifySet | notifyHash |
		notifyZSet | notifyExpired | notifyEvicted | notifyStream | notifyModule
)

var notifyLetters = []struct {
	letter byte
	flag   notifyFlags
}{
	{'g', notifyGeneric},
	{'$', notifyString},
	{'l', notifyList},
	{'s', notifySet},
	{'h', notifyHash},
	{'z', notifyZSet},
	{'x', notifyExpired},
	{'e', notifyEvicted},
	{'t', notifyStream},
	{'d', notifyModule},
	{'n', notifyNew},
	{'K', notifyKeyspace},
	{'E', notifyKeyevent},
	{'m', notifyKeyMiss},
}

func parseNotifyFlags(s string) (notifyFlags, error) {
	var f notifyFlags
	for i := 0; i < len(s); i++ {
		if s[i] == 'A' {
			f |= notifyAll
			continue
		}
		found := false
		for _, l := range notifyLetters {
			if l.letter == s[i] {
				f |= l.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("invalid keyspace event class %q", s[i])
		}
	}
	return f, nil
}

// String renders the flags the way CONFIG GET reports them
func (f notifyFlags) String() string {
	var b strings.Builder
	classes := notifyLetters[:11]
	if f&notifyAll == notifyAll {
		b.WriteByte('A')
		// n is not part of A
		classes = notifyLetters[10:11]
	}
	for _, l := range classes {
		if f&l.flag != 0 {
			b.WriteByte(l.letter)
		}
	}
	for _, l := range notifyLetters[11:] {
		if f&l.flag != 0 {
			b.WriteByte(l.letter)
		}
	}
	return b.String()
}

// notify publishes a keyspace event when its class is enabled
func (e *Engine) notify(class notifyFlags, event, key string, db int) {
	if e.notifyOn&class == 0 || e.notifyOn&(notifyKeyspace|notifyKeyevent) == 0 {
		return
	}
	dbTag := strconv.Itoa(db)
	if e.notifyOn&notifyKeyspace != 0 {
		e.publish("__keyspace@"+dbTag+"__:"+key, event)
	}
	if e.notifyOn&notifyKeyevent != 0 {
		e.publish("__keyevent@"+dbTag+"__:"+event, key)
	}
}

// publish fans a message out through the broker and accounts for it
func (e *Engine) publish(channel, payload string) int {
	n := e.broker.Publish(channel, payload)
	e.stats.published += int64(n)
	e.metrics.Published(n)
	return n
}
