package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	requestCodePrefix   = "REQ"
	requestCodeSize     = 5
	requestCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// RequestCode returns a candidate short code like REQ-7K2QX. Uniqueness
// is the caller's problem: check the store and regenerate on collision.
func RequestCode() string {
	return fmt.Sprintf("%s-%s", requestCodePrefix, gonanoid.MustGenerate(requestCodeAlphabet, requestCodeSize))
}
