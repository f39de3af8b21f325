package tle

import "time"

// Entry represents a single satellite's two-line element set.
// Line1 and Line2 are the raw 69-column element lines; Epoch is the
// element epoch extracted from line 1. Elements are only accurate near
// their epoch; callers should treat sets older than a day or two as
// degraded.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset represents a complete set of elements from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}
