package store

import "errors"

var (
	// ErrTableNotFound is returned when no loaded schema declares the table OID.
	ErrTableNotFound = errors.New("mibstate: table not found")

	// ErrInstanceNotFound is returned when the addressed instance does not exist.
	ErrInstanceNotFound = errors.New("mibstate: instance not found")

	// ErrMissingIndexColumn is returned when an add omits a declared index column.
	ErrMissingIndexColumn = errors.New("mibstate: missing index column")

	// ErrInvalidOID is returned when an OID string cannot be parsed.
	ErrInvalidOID = errors.New("mibstate: invalid oid")

	// ErrLinkNotFound is returned when no link carries the given id.
	ErrLinkNotFound = errors.New("mibstate: link not found")

	// ErrLinkExists is returned when creating a link whose id is already taken.
	ErrLinkExists = errors.New("mibstate: link already exists")

	// ErrSchemaLink is returned when mutating a schema-origin link. Those are
	// owned by the schema documents and only change with them.
	ErrSchemaLink = errors.New("mibstate: link is schema-defined")
)
