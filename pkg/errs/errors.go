// Package errs declares the sentinel error kinds shared across almanac's
// packages. Each kind is a value callers can compare against with
// errors.Is; packages wrap it with fmt.Errorf("...: %w", ...) to attach
// context without losing the kind.
package errs

import "errors"

var (
	// ErrIO marks a backend read or write failure.
	ErrIO = errors.New("io error")

	// ErrHashParse marks a hex ref or in-memory hash with the wrong
	// length or invalid hex encoding.
	ErrHashParse = errors.New("hash parse error")

	// ErrRefNotFound marks a store opened before init.
	ErrRefNotFound = errors.New("ref not found")

	// ErrNodeNotFound marks a dangling hash reference: corruption, or a
	// GC/pull race against a concurrent writer.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCorrupt marks a backend row that is structurally wrong for its
	// namespace, e.g. a ref or node hash of the wrong byte length.
	ErrCorrupt = errors.New("corrupt backend record")

	// ErrCodec marks a node or value that failed to decode.
	ErrCodec = errors.New("codec error")

	// ErrCompression marks a frame that failed to decompress.
	ErrCompression = errors.New("compression error")

	// ErrUnknownRecordType marks a path the façade could not classify.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrInvalidPath marks a path whose segments failed to parse (bad
	// date, unknown contact kind, wrong segment count).
	ErrInvalidPath = errors.New("invalid path")

	// ErrUncommittedChanges marks a pull refused because working and
	// committed have diverged locally.
	ErrUncommittedChanges = errors.New("uncommitted changes")

	// ErrSync marks a protocol or network error during sync.
	ErrSync = errors.New("sync error")

	// ErrSecretNotFound marks a missing sync identity secret at startup.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrInvalidSecret marks a sync identity secret of the wrong length.
	ErrInvalidSecret = errors.New("invalid secret")
)
