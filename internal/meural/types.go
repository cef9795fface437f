package meural

// Playlist is a Meural gallery: an ordered collection of uploaded items.
type Playlist struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	ItemIDs []int  `json:"itemIds"`
}

// Item is an uploaded image. Description carries the sync tag (JSON)
// for items this tool uploaded; items uploaded by other clients have
// arbitrary descriptions.
type Item struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
