// Package schema holds the per-entity column contracts and the
// enforcement function every payload passes through before it can move
// to the next warehouse layer.
package schema

import (
	"admart/pkg/errors"
)

// Type is the closed set of semantic column types a contract may declare.
type Type int

const (
	Text Type = iota
	Integer
	Decimal
	Boolean
	TimestampUTC
)

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Boolean:
		return "boolean"
	case TimestampUTC:
		return "timestamp_utc"
	default:
		return "unknown"
	}
}

// Column is one entry of a contract: a name and its declared type.
type Column struct {
	Name string
	Type Type
}

// Contract is the ordered column contract for one (layer, entity) pair.
// Contracts are immutable at runtime; the registry below is the single
// source of truth consulted by every layer.
type Contract struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the contract's column names in declared order.
func (c Contract) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Lookup resolves a contract by its logical name. An unregistered name
// yields ErrCodeUnknownSchema; callers must treat that as a failure of
// the containing operation, never ignore it.
func Lookup(name string) (Contract, error) {
	c, ok := registry[name]
	if !ok {
		return Contract{}, errors.Newf(errors.ErrCodeUnknownSchema, "unknown schema contract %q", name)
	}
	return c, nil
}
