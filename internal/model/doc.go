// Package model defines the records exchanged between fetchers, jobs and
// warehouse writers.
package model
