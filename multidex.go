package dex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/halvard/dex/internal/archive"
)

// PrimaryEntryName is the archive entry holding the primary segment.
const PrimaryEntryName = "classes.dex"

// Secondary segments append their entry name to the base location after
// this separator.
const multiDexSeparator = ":"

// MultiDexName returns the archive entry name for a 1-based multidex
// ordinal: classes.dex for the primary segment, classesN.dex after that.
func MultiDexName(ordinal int) string {
	if ordinal <= 1 {
		return PrimaryEntryName
	}
	return fmt.Sprintf("classes%d.dex", ordinal)
}

// MultiDexLocation returns the location string for a 1-based multidex
// ordinal: the base location itself for the primary segment,
// base:classesN.dex after that.
func MultiDexLocation(ordinal int, base string) string {
	if ordinal <= 1 {
		return base
	}
	return base + multiDexSeparator + MultiDexName(ordinal)
}

// BaseLocation strips the multidex suffix from a location string.
func BaseLocation(location string) string {
	if i := strings.LastIndex(location, multiDexSeparator); i >= 0 {
		return location[:i]
	}
	return location
}

// MultiDexSuffix returns the entry name part of a location string, or ""
// for a primary location.
func MultiDexSuffix(location string) string {
	if i := strings.LastIndex(location, multiDexSeparator); i >= 0 {
		return location[i+1:]
	}
	return ""
}

// forEachSegment walks an archive's multidex sequence in ordinal order
// and calls fn for each entry found.
//
// The sequence rule has two phases: classes.dex must exist
// (ErrMissingClassesDex otherwise), then classesN.dex is probed for
// N = 2, 3, ... until the first absent ordinal, which terminates the walk
// successfully. A duplicate entry name is ErrCorruptArchive. Any error
// from fn aborts the walk.
func forEachSegment(ar *archive.Archive, base string, fn func(ordinal int, e *archive.Entry) error) error {
	for ordinal := 1; ; ordinal++ {
		entry, err := ar.Entry(MultiDexName(ordinal))
		switch {
		case errors.Is(err, archive.ErrNotFound):
			if ordinal == 1 {
				return fmt.Errorf("%s: %w", base, ErrMissingClassesDex)
			}
			return nil
		case err != nil:
			return fmt.Errorf("%s: %w: %v", base, ErrCorruptArchive, err)
		}
		if err := fn(ordinal, entry); err != nil {
			return err
		}
	}
}
