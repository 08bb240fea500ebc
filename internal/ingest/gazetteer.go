package ingest

import "strings"

// Place is a locality keyword with a reference position.
type Place struct {
	Keyword string  `yaml:"keyword" json:"keyword"`
	Lat     float64 `yaml:"lat" json:"lat"`
	Lng     float64 `yaml:"lng" json:"lng"`
}

// Gazetteer is an ordered keyword table; the first keyword contained in an
// address wins.
type Gazetteer []Place

func DefaultGazetteer() Gazetteer {
	return Gazetteer{
		{Keyword: "sathy road", Lat: 11.3500, Lng: 77.7300},
		{Keyword: "veerappan", Lat: 11.3600, Lng: 77.7200},
		{Keyword: "surampatti", Lat: 11.3344, Lng: 77.7144},
		{Keyword: "erode", Lat: 11.3270, Lng: 77.7100},
		{Keyword: "bhavani", Lat: 11.4456, Lng: 77.6820},
		{Keyword: "perundurai", Lat: 11.2756, Lng: 77.5831},
		{Keyword: "chennimalai", Lat: 11.1690, Lng: 77.6080},
	}
}

// Lookup matches the address case-insensitively against each keyword.
func (g Gazetteer) Lookup(address string) (Place, bool) {
	addr := strings.ToLower(address)
	for _, p := range g {
		kw := strings.ToLower(strings.TrimSpace(p.Keyword))
		if kw != "" && strings.Contains(addr, kw) {
			return p, true
		}
	}
	return Place{}, false
}
