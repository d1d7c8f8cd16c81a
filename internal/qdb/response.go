package qdb

// Column describes one column of a query result: its name and the
// server-side type (e.g. "SYMBOL", "BOOLEAN", "TIMESTAMP").
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Response is a parsed query result. Every row in Dataset has exactly
// one value per entry in Columns; Query rejects payloads that violate
// this.
type Response struct {
	Columns []Column `json:"columns"`
	Dataset [][]any  `json:"dataset"`
}

// ScrubTimestamp returns the dataset with the last value of each row
// dropped. Ingested rows carry a server-generated trailing timestamp
// column; scenario assertions compare everything before it.
func (r *Response) ScrubTimestamp() [][]any {
	scrubbed := make([][]any, len(r.Dataset))
	for i, row := range r.Dataset {
		if len(row) == 0 {
			scrubbed[i] = row
			continue
		}
		scrubbed[i] = row[:len(row)-1]
	}
	return scrubbed
}
