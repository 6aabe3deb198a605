// Package catalog talks to the external media catalog: a read-only SQLite
// index for membership lookups and an opaque import command for adding files.
// The catalog's own database is never written; imports go through the
// configured command so the catalog application stays the only writer.
package catalog
