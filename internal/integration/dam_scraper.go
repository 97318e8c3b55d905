package integration

import (
	"context"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
)

// allDamsForm is the form submission selecting every dam on the basin
// authority page
var allDamsForm = map[string]string{
	"listadighe": "0",
	"Submit":     "Visualizza",
}

// DamScraper reads the water availability page of the basin authority
type DamScraper struct {
	fetcher *Fetcher
	damsURL string
	layout  extract.DamLayout
}

// NewDamScraper creates a dam scraper
func NewDamScraper(fetcher *Fetcher, damsURL string, layout extract.DamLayout) *DamScraper {
	return &DamScraper{
		fetcher: fetcher,
		damsURL: damsURL,
		layout:  layout,
	}
}

// FetchReservoirs returns one record per dam. runDate (DD/MM/YYYY) is used
// when the page does not print its own date.
func (s *DamScraper) FetchReservoirs(ctx context.Context, runDate string) ([]entities.Reservoir, error) {
	resp, err := s.fetcher.PostForm(ctx, s.damsURL, allDamsForm)
	if err != nil {
		return nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}
	return extract.ParseReservoirs(doc, s.layout, runDate)
}
