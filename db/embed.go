// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the idempotent DDL for every table the services use.
//
//go:embed migrations/001_schema.sql
var Schema string
