package model

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	for _, err := range []error{
		&TransportError{Host: "logger.local", Op: "get", Err: cause},
		&ProtocolError{Host: "logger.local", DateCode: "20210601", Err: cause},
		&FilesystemError{Op: "write", Path: "/tmp/x", Err: cause},
		&ParseError{Input: "2021060", Err: cause},
	} {
		assert.True(t, errors.Is(err, cause), "%T", err)
		assert.NotEmpty(t, err.Error())
	}
}
