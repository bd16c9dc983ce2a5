package pack

import (
	"strings"

	"github.com/sidkik/packsync/pkg/errors"
)

// Side is the kind of installation that a file is meant for.
type Side string

const (
	// Client files are only installed on clients.
	Client Side = "client"
	// Server files are only installed on servers.
	Server Side = "server"
	// Both files are installed everywhere. Files that don't declare a side
	// are treated the same way.
	Both Side = "both"
)

// ParseSide parses a side name.
func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToLower(strings.TrimSpace(s))); side {
	case Client, Server, Both:
		return side, nil
	case "":
		return Both, nil
	default:
		return "", errors.NewFriendlyError("Unknown side %q. "+
			"Expected one of client, server or both.", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Has returns whether a file declared for side `s` should be installed on
// `target`.
func (s Side) Has(target Side) bool {
	if s == "" || s == Both || target == Both {
		return true
	}
	return s == target
}
