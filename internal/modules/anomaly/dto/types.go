package dto

type EventOutput struct {
	Key         string
	Kind        string
	Score       float64
	EntryKey    string
	PackageName string
	Hint        string
}

type TopOutput struct {
	Event     EventOutput
	Found     bool
	Candidate int
	Dismissed int
}
