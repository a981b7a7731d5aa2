package model

import "fmt"

// The pipeline surfaces exactly four error kinds. Each carries its underlying
// cause so operators can tell a refused connection from a short read without
// losing which host and datecode were being processed.

// TransportError reports a connection failure or a non-success HTTP status.
type TransportError struct {
	Host string
	Op   string // "list", "head", "get"
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed remote response or an undecodable
// capture: a missing or unparseable content-length header, or a decoder
// failure inside a capture stream.
type ProtocolError struct {
	Host     string
	DateCode string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.DateCode != "" {
		return fmt.Sprintf("protocol %s/%s: %v", e.Host, e.DateCode, e.Err)
	}
	return fmt.Sprintf("protocol %s: %v", e.Host, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// FilesystemError reports a local read, write, or metadata failure.
type FilesystemError struct {
	Op   string // "mkdir", "stat", "read", "write", "scan"
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// ParseError reports a malformed datecode.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse datecode %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
