package memorial

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// monthOrder maps the Indonesian month names used in year labels to their
// position. Labels look like "Agustus 2022".
var monthOrder = map[string]int{
	"Januari":   0,
	"Februari":  1,
	"Maret":     2,
	"April":     3,
	"Mei":       4,
	"Juni":      5,
	"Juli":      6,
	"Agustus":   7,
	"September": 8,
	"Oktober":   9,
	"November":  10,
	"Desember":  11,
}

// Catalog holds the boot-time memorial items in declaration order.
type Catalog struct {
	items []Item
}

// LoadCatalog decodes the embedded JSON array of items. Boot data is static,
// so malformed input is a startup error rather than a tolerated default.
func LoadCatalog(data []byte) (*Catalog, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("memorial: decode catalog: %w", err)
	}
	return &Catalog{items: items}, nil
}

// LoadCatalogFile reads and decodes the catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memorial: read catalog: %w", err)
	}
	return LoadCatalog(data)
}

// Items returns the catalog in declaration order, as shown in the photo grid.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Timeline returns the items sorted by their parsed year label ascending.
func (c *Catalog) Timeline() []Item {
	sorted := append([]Item(nil), c.items...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return yearLabelRank(sorted[a].Year) < yearLabelRank(sorted[b].Year)
	})
	return sorted
}

// ItemByKey resolves a memorial key back to its item. The second return is
// false when no item carries the key.
func (c *Catalog) ItemByKey(key string) (Item, bool) {
	for _, item := range c.items {
		if item.Key() == key {
			return item, true
		}
	}
	return Item{}, false
}

// Covers returns the non-blank cover images in declaration order, feeding the
// hero rotation.
func (c *Catalog) Covers() []string {
	covers := make([]string, 0, len(c.items))
	for _, item := range c.items {
		if strings.TrimSpace(item.Cover) != "" {
			covers = append(covers, item.Cover)
		}
	}
	return covers
}

// yearLabelRank orders "<Month> <year>" labels chronologically. Unknown month
// names rank as January, matching how the page sorts its timeline.
func yearLabelRank(label string) int {
	monthName, yearText, _ := strings.Cut(strings.TrimSpace(label), " ")
	year, err := strconv.Atoi(strings.TrimSpace(yearText))
	if err != nil {
		year = 0
	}
	return year*12 + monthOrder[monthName]
}
