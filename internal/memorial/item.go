package memorial

import "strings"

// PlaceholderKey is used when a slug collapses to nothing.
const PlaceholderKey = "memorial-item"

// Item is one tribute entry. The set of items is read-only for the
// process lifetime; it is decoded once from the boot-time data source.
type Item struct {
	Title   string   `json:"title"`
	Year    string   `json:"year"`
	Short   string   `json:"short"`
	Cover   string   `json:"cover"`
	Gallery []string `json:"gallery"`
	Story   string   `json:"story"`
}

// Key derives the deterministic slug identifying this item for comment and
// like association. Two items with identical title and year collide; that is
// a property of the data, not something the key tries to repair.
func (i Item) Key() string {
	return Slugify(i.Title + "-" + i.Year)
}

// GalleryOrCover returns the item's declared gallery, or a single-element
// sequence holding the cover image when the gallery is empty.
func (i Item) GalleryOrCover() []string {
	if len(i.Gallery) > 0 {
		return append([]string(nil), i.Gallery...)
	}
	return []string{i.Cover}
}

// Slugify lowercases the input, collapses every non-alphanumeric run into a
// single separator and trims leading/trailing separators. An empty result
// falls back to PlaceholderKey.
func Slugify(raw string) string {
	var builder strings.Builder
	pendingSeparator := false
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSeparator && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingSeparator = false
			builder.WriteRune(r)
			continue
		}
		pendingSeparator = true
	}
	slug := builder.String()
	if slug == "" {
		return PlaceholderKey
	}
	return slug
}
