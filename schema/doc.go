// Package schema holds the type table a provider is built on.
//
// A Table maps type names to their declared reflection records and
// invariants, and resolves the effective shape of a type by walking its base
// chain. The table is an explicit directed lookup: inheritance is data, and
// overriding is decided by merge order, ancestors first.
package schema
