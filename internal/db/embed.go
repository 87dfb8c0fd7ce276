package db

import "embed"

// EmbedMigrations holds the goose migrations that create and seed the sample star.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// SampleSchema is the schema document describing the tables created by EmbedMigrations.
//
//go:embed foodmart.yaml
var SampleSchema []byte
