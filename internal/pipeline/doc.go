// Package pipeline implements the stock price batch jobs.
//
// The extractor reads active assets from the warehouse, downloads daily bars
// for each from Alpha Vantage and writes one CSV per symbol plus a run
// manifest to the object store. The loader reads the manifest (or lists the
// raw prefix when it is missing) and appends each CSV to the prices table.
//
// Both jobs count successes and fail only when nothing succeeded.
package pipeline
