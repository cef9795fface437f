package sync

import (
	"path"
	"strconv"
	"strings"
)

// nameSeparator joins the fingerprint and playlist id in unique names.
const nameSeparator = "_"

// maxDestNameLen is the longest item name the destination stores; longer
// names are truncated server-side, so local matching must truncate too.
const maxDestNameLen = 64

// DeriveName maps a (fingerprint, playlist) pair to the destination item
// name. Non-unique playlists share the bare fingerprint, so one upload
// serves every such playlist. Unique playlists get a playlist-id suffix,
// guaranteeing a distinct destination item whose later deletion cannot
// remove a copy a shared playlist still shows.
//
// The function is pure: the engine re-derives names every cycle to match
// existing ledger and destination rows instead of storing permutations.
func DeriveName(fingerprint string, uniqueUpload bool, playlistID int) string {
	if !uniqueUpload {
		return fingerprint
	}

	return fingerprint + nameSeparator + strconv.Itoa(playlistID)
}

// StagedFilename returns the local staging filename for a derived name,
// carrying over the original photo's extension so the destination can
// sniff the content type on upload.
func StagedFilename(derivedName, originalName string) string {
	return derivedName + strings.ToLower(path.Ext(originalName))
}

// destNameKey normalizes a name the way the destination stores item
// names: extension stripped, truncated to maxDestNameLen runes. Derived
// names are hex checksums, but alien items can carry arbitrary names, so
// truncation must not split a multibyte rune.
func destNameKey(name string) string {
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}

	if runes := []rune(name); len(runes) > maxDestNameLen {
		name = string(runes[:maxDestNameLen])
	}

	return name
}
