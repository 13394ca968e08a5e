// Package server exposes the ingestion endpoints over HTTP with gin.
//
// Routes:
//
//	GET  /                  liveness text
//	GET  /health            warehouse ping and build info
//	GET  /iol               IOL mutual fund list
//	GET  /iol/quotes        IOL daily quotes by category
//	GET  /alpha-vantage     latest daily close of ?symbol=
//	POST /alpha-vantage     latest daily close of {"symbols": [...]}
//	POST /bq-batch-load     CSV load of [ticker, value, market, datetime] records
//	POST /bq-stream-write   Storage Write API batch commit
//	GET  /lecaps            scrape the IAMC report, load it unless ?dry_run=true
//	GET  /lecaps/test       scrape the IAMC report and render HTML, never loads
//
// A dependency left nil in Deps makes its routes answer 500 with a
// configuration error, so the server starts with partial credentials.
package server
