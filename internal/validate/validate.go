// Package validate holds the field validators applied at the edge of every
// endpoint. Each validator returns nil on success or a single short
// diagnostic suitable for a 400 body.
package validate

import "errors"

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func isKeyID(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// Key validates a raw API key credential.
func Key(v string) error {
	switch {
	case v == "":
		return errors.New("key is required")
	case len(v) > 50:
		return errors.New("key is too long")
	case len(v) < 5:
		return errors.New("key is too short")
	case !isAlnum(v):
		return errors.New("key has invalid format")
	}
	return nil
}

// KeyID validates a key identifier (uuid-like: hex digits and dashes).
func KeyID(v string) error {
	switch {
	case v == "":
		return errors.New("key id is required")
	case len(v) > 50:
		return errors.New("key id is too long")
	case len(v) < 5:
		return errors.New("key id is too short")
	case !isKeyID(v):
		return errors.New("key id has invalid format")
	}
	return nil
}

// KeyName validates a key's free-form label.
func KeyName(v string) error {
	switch {
	case v == "":
		return errors.New("key name is required")
	case len(v) > 1024:
		return errors.New("key name is too long")
	}
	return nil
}

// CueName validates a single cue name.
func CueName(v string) error {
	switch {
	case v == "":
		return errors.New("cue name is required")
	case len(v) > 1024:
		return errors.New("cue name is too long")
	}
	return nil
}

// CuePattern validates a subscription or key glob pattern.
func CuePattern(v string) error {
	switch {
	case v == "":
		return errors.New("cue pattern is required")
	case len(v) > 1024:
		return errors.New("cue pattern is too long")
	}
	return nil
}
