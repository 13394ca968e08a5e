// Package scraper downloads the latest IAMC LECAP/BONCAP report, extracts
// its treasury tables from the PDF text and writes them to the warehouse.
//
// The flow is site -> PDF bytes -> text lines -> tables -> report -> writer.
// Each stage is exposed separately so handlers can stop after parsing.
package scraper
