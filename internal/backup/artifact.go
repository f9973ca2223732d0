// Package backup creates immutable versioned copies of changed files.
package backup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Artifact names follow a fixed grammar:
//
//	{stem}_v{version}_backup_{YYYYMMDD_HHMMSS}{ext}
//
// where stem/ext come from splitting the source base name on its last dot and
// the timestamp is artifact-creation time at second resolution. Version 1 is
// never backed up; it denotes the original.

const TimestampLayout = "20060102_150405"

var artifactPattern = regexp.MustCompile(`^(.+)_v([0-9]+)_backup_([0-9]{8}_[0-9]{6})(\.[^.]*)?$`)

// Artifact is the parsed form of an artifact file name.
type Artifact struct {
	Stem    string
	Ext     string
	Version int
	Stamp   string
}

// Name returns the parsed artifact's file name.
func (a Artifact) Name() string {
	return fmt.Sprintf("%s_v%d_backup_%s%s", a.Stem, a.Version, a.Stamp, a.Ext)
}

// SplitName splits a base name into stem and extension on the last dot.
// The extension keeps its leading dot; names without one get an empty ext.
func SplitName(base string) (stem, ext string) {
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i], base[i:]
	}
	return base, ""
}

// ArtifactName builds the artifact file name for one confirmed change.
func ArtifactName(base string, version int, ts time.Time) string {
	stem, ext := SplitName(base)
	return Artifact{
		Stem:    stem,
		Ext:     ext,
		Version: version,
		Stamp:   ts.Format(TimestampLayout),
	}.Name()
}

// ParseArtifactName parses name against the artifact grammar. The second
// return value reports whether name is an artifact at all.
func ParseArtifactName(name string) (Artifact, bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}

	version, err := strconv.Atoi(m[2])
	if err != nil {
		return Artifact{}, false
	}

	return Artifact{
		Stem:    m[1],
		Ext:     m[4],
		Version: version,
		Stamp:   m[3],
	}, true
}

// IsArtifactName reports whether name matches the artifact grammar. The
// scanner uses this to keep the engine from tracking its own output.
func IsArtifactName(name string) bool {
	_, ok := ParseArtifactName(name)
	return ok
}
