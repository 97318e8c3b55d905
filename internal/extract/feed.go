package extract

import (
	"strings"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/mmcdole/gofeed"
)

// FindBulletinInFeed scans an RSS or Atom feed for the newest item linking
// to a bulletin PDF, either directly or through an enclosure.
func FindBulletinInFeed(data string, layout ListingLayout) (string, error) {
	feed, err := gofeed.NewParser().ParseString(data)
	if err != nil {
		return "", &entities.ParseError{Source: "feed", Reason: "unreadable feed", Err: err}
	}

	var newest *gofeed.Item
	var link string
	for _, item := range feed.Items {
		candidate := ""
		if strings.Contains(item.Link, layout.LinkMarker) {
			candidate = item.Link
		}
		for _, enc := range item.Enclosures {
			if candidate == "" && strings.Contains(enc.URL, layout.LinkMarker) {
				candidate = enc.URL
			}
		}
		if candidate == "" {
			continue
		}
		if newest == nil || newer(item, newest) {
			newest, link = item, candidate
		}
	}
	if link == "" {
		return "", &entities.ParseError{Source: "feed", Reason: "no bulletin item"}
	}
	return link, nil
}

func newer(a, b *gofeed.Item) bool {
	if a.PublishedParsed == nil || b.PublishedParsed == nil {
		return false
	}
	return a.PublishedParsed.After(*b.PublishedParsed)
}
