package sync

import "testing"

func TestTag_EncodeParse(t *testing.T) {
	t.Parallel()

	tag := Tag{AlbumID: "B0abcDEF", Checksum: "01ab23cd", PlaylistName: "Bedroom"}

	encoded, err := tag.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	parsed, ok := ParseTag(encoded)
	if !ok {
		t.Fatal("ParseTag rejected an encoded tag")
	}

	if parsed != tag {
		t.Errorf("roundtrip = %+v, want %+v", parsed, tag)
	}
}

func TestTag_EncodeFieldNames(t *testing.T) {
	t.Parallel()

	encoded, err := Tag{AlbumID: "a", Checksum: "c"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := `{"icloud_album_id":"a","checksum":"c","playlist_name":""}`
	if encoded != want {
		t.Errorf("encoded = %s, want %s", encoded, want)
	}
}

func TestParseTag_AlienDescriptions(t *testing.T) {
	t.Parallel()

	// Items uploaded by other clients carry arbitrary descriptions; none
	// of these should parse as sync tags.
	for _, desc := range []string{
		"",
		"A lovely sunset",
		"{}",
		`{"checksum":"c"}`,
		`{"icloud_album_id":"a"}`,
		`{"icloud_album_id":"","checksum":""}`,
		"not json at all {",
	} {
		if _, ok := ParseTag(desc); ok {
			t.Errorf("ParseTag(%q) accepted an alien description", desc)
		}
	}
}
