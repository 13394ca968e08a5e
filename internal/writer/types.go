package writer

import "fmt"

// BatchDateLayout is the datetime format accepted in batch load records.
// Fractional seconds are accepted on input.
const BatchDateLayout = "2006-01-02T15:04:05"

// quoteRowLayout is how batch datetimes are written to the quotes table.
const quoteRowLayout = "2006-01-02T15:04:05.999999"

// StreamDateLayout is the datetime format written through the stream API,
// matching BigQuery's canonical DATETIME text form.
const StreamDateLayout = "2006-01-02 15:04:05.999999"

// ValidationError reports a request payload that cannot be written.
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Message, e.Details)
}

// Validation messages returned to API clients.
const (
	MsgInvalidStructure = "Invalid record structure."
	MsgInvalidData      = "Invalid data."
	MsgInvalidDate      = "Invalid date format."
)

// quoteRow is one line of the quotes table CSV load.
type quoteRow struct {
	Ticker   string `csv:"ticker"`
	Value    string `csv:"value"`
	Market   string `csv:"market"`
	DateTime string `csv:"datetime"`
}

// WriterMetrics holds counters for a writer.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}
