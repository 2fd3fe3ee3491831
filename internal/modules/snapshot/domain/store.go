package domain

// RecordBatch is the decoded content of one ingestion file. Malformed counts
// lines that could not be decoded at all.
type RecordBatch struct {
	Records   []Record
	Malformed int
}

type StoreStats struct {
	Snapshots      int64
	Timestamps     int64
	UsagePeriods   int64
	First          int64
	Last           int64
	LastFullCharge int64
}
