// Package common holds small helpers shared by the admin tooling.
package common

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	tenantCodeLen = 6
	letters       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits        = "0123456789"
	alphanum      = letters + digits
)

// secureRandomInt generates a cryptographically secure random number between 0 and max
func secureRandomInt(max int) (int, error) {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}

	n := binary.BigEndian.Uint64(buf[:])
	return int(n % uint64(max)), nil
}

// GenerateTenantCode produces a short random alphanumeric code, first
// character alphabetic. Codes are random, not guaranteed unique; the tenant
// table's uniqueness constraint is the arbiter, so retry on a duplicate.
func GenerateTenantCode() (string, error) {
	result := make([]byte, tenantCodeLen)

	idx, err := secureRandomInt(len(letters))
	if err != nil {
		return "", fmt.Errorf("failed to generate tenant code: %w", err)
	}
	result[0] = letters[idx]

	for i := 1; i < tenantCodeLen; i++ {
		idx, err := secureRandomInt(len(alphanum))
		if err != nil {
			return "", fmt.Errorf("failed to generate tenant code: %w", err)
		}
		result[i] = alphanum[idx]
	}
	return string(result), nil
}
