/*
Package randx generates identifiers: base62 room and invite ids from crypto/rand, and UUIDs
for messages and sessions.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// RoomIDLength is the fixed length of generated room ids.
	RoomIDLength = 10

	// InviteIDLength is the fixed length of generated invite ids.
	InviteIDLength = 12
)

func base62(length int) (string, error) {
	result := make([]byte, length)

	for i := range length {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// RoomID generates a random Base62 room id of RoomIDLength characters.
func RoomID() (string, error) {
	return base62(RoomIDLength)
}

// InviteID generates a random Base62 invite id of InviteIDLength characters.
func InviteID() (string, error) {
	return base62(InviteIDLength)
}

// MessageID generates a UUID v4 string used as a message identifier.
func MessageID() string {
	return uuid.New().String()
}

// SessionID generates a UUID v4 string used as a session identifier.
func SessionID() string {
	return uuid.New().String()
}

// IsValidID reports whether id has the given length and only Base62 characters.
func IsValidID(id string, length int) bool {
	if len(id) != length {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
