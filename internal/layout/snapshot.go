package layout

import (
	"strconv"
	"strings"
)

const versionMarker = "_v"

// SnapshotName returns "<id>_v<N>.json".
func SnapshotName(id string, version int) string {
	return id + versionMarker + strconv.Itoa(version) + jsonExt
}

// ParseSnapshotName extracts the version from a snapshot file name that
// belongs to chapter id. It rejects names of other chapters, including ids
// that merely share a prefix ("1" vs "1_v2_v3.json").
func ParseSnapshotName(id, name string) (int, bool) {
	prefix := id + versionMarker
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, jsonExt) {
		return 0, false
	}
	digits := name[len(prefix) : len(name)-len(jsonExt)]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
