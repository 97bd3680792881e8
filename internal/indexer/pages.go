package indexer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kura/internal/models"
)

// AssignPageNumbers sets PageNumber on every chunk of src from the raw page
// texts the source content was built from. Pages are located in order in the
// normalized content; a page that cannot be found inherits the previous page's
// span. A chunk gets the page containing its start offset.
func AssignPageNumbers(src *models.Source, pages []string) {
	if len(pages) == 0 || len(src.Chunks) == 0 {
		return
	}
	type pageStart struct {
		number int
		offset int
	}
	var starts []pageStart
	pos := 0
	for i, page := range pages {
		needle := Normalize(page)
		if needle == "" {
			continue
		}
		idx := strings.Index(src.Content[pos:], needle)
		if idx < 0 {
			continue
		}
		b := pos + idx
		starts = append(starts, pageStart{
			number: i + 1,
			offset: utf8.RuneCountInString(src.Content[:b]),
		})
		pos = b + len(needle)
	}
	if len(starts) == 0 {
		return
	}
	for _, ch := range src.Chunks {
		i := sort.Search(len(starts), func(i int) bool { return starts[i].offset > ch.StartIndex })
		if i == 0 {
			ch.PageNumber = starts[0].number
			continue
		}
		ch.PageNumber = starts[i-1].number
	}
}
