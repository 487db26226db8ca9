// Package catalog holds the region, tour and attraction entities used by the
// optimizer, together with the Provider interface that concrete data sources
// (YAML files, SQLite, Postgres) implement. A Catalog is built once by Load and
// is read-only afterwards, so it can be shared between concurrent searches.
package catalog
