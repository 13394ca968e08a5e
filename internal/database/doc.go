// Package database opens PostgreSQL connection pools for the postgres
// warehouse backend, used for local development and self-hosted deployments
// in place of BigQuery.
package database
