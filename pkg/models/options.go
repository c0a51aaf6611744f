package models

// PathOptions controls path discovery and annotation for one run
type PathOptions struct {
	MaxLength       int // Maximum vertices per search half
	IterationFactor int // Search budget is IterationFactor * MaxLength

	CallerAnnotations bool   // Emit CALLER_<fn> <call> records
	ErrorAnnotations  bool   // Emit ERR_/NO_ERR_ records and RETURN_ tokens
	ReturnMarker      string // Suffix of RETURN_ tokens outside handlers

	Workers int // Seeds processed concurrently
}

// RunSummary describes what a run produced
type RunSummary struct {
	Seeds         int
	Records       int
	ThresholdHits int
}
