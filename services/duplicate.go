package services

import (
	"math"
	"strings"

	"sonora/types"
)

// duplicateTolerance is the duration window, in seconds, inside which two
// records with the same normalized title and artist count as the same track.
const duplicateTolerance = 2.0

// DuplicateDetector collapses duplicate tracks before album assembly.
//
// Equality policy: case-insensitive trimmed (title, artist) with durations
// within duplicateTolerance seconds. The first-encountered record in input
// order is the kept representative, which is deterministic because the
// scanner's walk order is sorted.
type DuplicateDetector struct{}

// NewDuplicateDetector creates a detector.
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{}
}

// duplicateKey is the metadata portion of the equality policy.
func duplicateKey(r *types.SongRecord) string {
	title := strings.ToLower(strings.TrimSpace(r.Title))
	artist := strings.ToLower(strings.TrimSpace(r.Artist))
	return title + "\x00" + artist
}

// Filter returns the input with duplicates removed, plus the duplicate groups
// (representative first) for diagnostics. Records are only ever compared
// against kept representatives, so the filtered set never contains two records
// the policy considers equal.
func (d *DuplicateDetector) Filter(records []*types.SongRecord) ([]*types.SongRecord, [][]*types.SongRecord) {
	kept := make([]*types.SongRecord, 0, len(records))
	reps := make(map[string][]*types.SongRecord)
	members := make(map[*types.SongRecord][]*types.SongRecord)

	for _, record := range records {
		key := duplicateKey(record)

		var rep *types.SongRecord
		for _, candidate := range reps[key] {
			if math.Abs(candidate.Duration-record.Duration) <= duplicateTolerance {
				rep = candidate
				break
			}
		}

		if rep != nil {
			members[rep] = append(members[rep], record)
			continue
		}

		kept = append(kept, record)
		reps[key] = append(reps[key], record)
	}

	var duplicateGroups [][]*types.SongRecord
	for _, rep := range kept {
		if dups := members[rep]; len(dups) > 0 {
			group := append([]*types.SongRecord{rep}, dups...)
			duplicateGroups = append(duplicateGroups, group)
		}
	}

	return kept, duplicateGroups
}
