// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"
)

// FromEnv reads a secret from the named environment variable into a
// protected Buffer and unsets the variable so that child processes and
// later environment dumps do not see it. The environment string itself
// cannot be zeroed (Go strings are immutable), but after this call the
// mmap-backed buffer is the durable copy.
//
// Returns an error if the variable is unset or empty.
func FromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}

	buffer, err := NewFromBytes([]byte(value))
	if err != nil {
		return nil, err
	}

	if err := os.Unsetenv(name); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("secret: unsetting %s: %w", name, err)
	}
	return buffer, nil
}
