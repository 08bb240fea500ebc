// Package ingest turns raw tabular rows into canonical orders.
package ingest

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fairroute/internal/model"
)

// ErrMalformedRow marks a row that cannot become an order. Such rows are
// skipped, never fatal.
var ErrMalformedRow = errors.New("malformed row")

// DefaultJitter is the full width of the uniform noise added to each axis of
// a gazetteer position, i.e. +/- DefaultJitter/2.
const DefaultJitter = 0.01

// Header aliases per logical field, in precedence order.
var (
	AddressAliases   = []string{"address", "delivery address", "location"}
	LatitudeAliases  = []string{"latitude", "lat"}
	LongitudeAliases = []string{"longitude", "lng", "long"}
	OrderIDAliases   = []string{"orderid", "order id", "id", "order no", "no", "s.no", "#"}
	WeightAliases    = []string{"weight"}
	ModeAliases      = []string{"mode"}
	PriorityAliases  = []string{"priority"}
	StatusAliases    = []string{"status"}
)

// SkippedRow reports a row dropped during normalization.
type SkippedRow struct {
	Index int   `json:"index"`
	Err   error `json:"-"`
}

func (s SkippedRow) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Orders     []model.Order
	Skipped    []SkippedRow
	Unresolved int // orders left without coordinates
}

// Normalizer converts raw rows to orders. It is not safe for concurrent use;
// build one per batch.
type Normalizer struct {
	gazetteer Gazetteer
	jitter    float64
	rng       *rand.Rand
	now       func() time.Time
	status    func(string) (model.OrderStatus, bool)
}

type Option func(*Normalizer)

// WithRand injects the random source used for jitter and generated ids.
func WithRand(r *rand.Rand) Option { return func(n *Normalizer) { n.rng = r } }

// WithSeed is WithRand over a deterministic source.
func WithSeed(seed int64) Option { return WithRand(rand.New(rand.NewSource(seed))) }

func WithClock(now func() time.Time) Option { return func(n *Normalizer) { n.now = now } }

func WithGazetteer(g Gazetteer) Option { return func(n *Normalizer) { n.gazetteer = g } }

// WithStatusMapper replaces the status parser, e.g. to accept carrier codes.
// Values the mapper does not recognize become pending.
func WithStatusMapper(f func(string) (model.OrderStatus, bool)) Option {
	return func(n *Normalizer) { n.status = f }
}

// WithJitter sets the jitter width; 0 disables it.
func WithJitter(width float64) Option { return func(n *Normalizer) { n.jitter = width } }

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		gazetteer: DefaultGazetteer(),
		jitter:    DefaultJitter,
		now:       time.Now,
		status:    parseStatus,
	}
	for _, o := range opts {
		o(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return n
}

// Normalize consumes the row sequence once and returns the orders it yields.
// Rows without a usable address are reported in Result.Skipped.
func (n *Normalizer) Normalize(rows iter.Seq[Row]) Result {
	var res Result
	used := map[string]struct{}{}
	idx := 0
	for raw := range rows {
		i := idx
		idx++
		o, err := n.order(canonical(raw), used)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Index: i, Err: fmt.Errorf("row %d: %w", i, err)})
			continue
		}
		if o.Coordinates == nil {
			res.Unresolved++
		}
		res.Orders = append(res.Orders, o)
	}
	return res
}

func (n *Normalizer) order(row Row, used map[string]struct{}) (model.Order, error) {
	address := lookup(row, AddressAliases)
	if address == "" {
		return model.Order{}, fmt.Errorf("%w: no address", ErrMalformedRow)
	}

	o := model.Order{
		Address:  address,
		Weight:   parseWeight(lookup(row, WeightAliases)),
		Mode:     model.ModeNotMentioned,
		Priority: model.PriorityNormal,
		Status:   model.OrderPending,
	}
	if v := lookup(row, ModeAliases); v != "" {
		o.Mode = model.ParseMode(strings.ToLower(v))
	}
	if v := lookup(row, PriorityAliases); v != "" {
		o.Priority = model.ParsePriority(strings.ToLower(v))
	}
	if v := lookup(row, StatusAliases); v != "" {
		if st, ok := n.status(v); ok {
			o.Status = st
		}
	}

	o.Coordinates, o.CoordSource = n.coordinates(row, address)

	o.OrderID = lookup(row, OrderIDAliases)
	if o.OrderID == "" {
		o.OrderID = n.generateID(used)
	}
	used[o.OrderID] = struct{}{}
	return o, nil
}

func (n *Normalizer) coordinates(row Row, address string) (*model.GeoPoint, model.CoordSource) {
	lat, latOK := parseCoord(lookup(row, LatitudeAliases), 90)
	lng, lngOK := parseCoord(lookup(row, LongitudeAliases), 180)
	if latOK && lngOK {
		return &model.GeoPoint{Lat: lat, Lng: lng}, model.CoordExplicit
	}
	if p, ok := n.gazetteer.Lookup(address); ok {
		return &model.GeoPoint{Lat: p.Lat + n.noise(), Lng: p.Lng + n.noise()}, model.CoordGazetteer
	}
	return nil, ""
}

func (n *Normalizer) noise() float64 {
	if n.jitter == 0 {
		return 0
	}
	return (n.rng.Float64() - 0.5) * n.jitter
}

// generateID returns GEN-<unix millis>-<0..999>, avoiding ids already used
// in the batch.
func (n *Normalizer) generateID(used map[string]struct{}) string {
	ts := n.now().UnixMilli()
	for range 1000 {
		id := fmt.Sprintf("GEN-%d-%d", ts, n.rng.Intn(1000))
		if _, taken := used[id]; !taken {
			return id
		}
	}
	base := fmt.Sprintf("GEN-%d-%d", ts, n.rng.Intn(1000))
	for k := 2; ; k++ {
		id := fmt.Sprintf("%s-%d", base, k)
		if _, taken := used[id]; !taken {
			return id
		}
	}
}

// canonical re-keys a row by normalized header. When two headers normalize to
// the same key a non-empty value is kept over an empty one.
func canonical(raw Row) Row {
	out := make(Row, len(raw))
	for k, v := range raw {
		key := NormalizeHeader(k)
		v = strings.TrimSpace(v)
		if prev, ok := out[key]; ok && prev != "" {
			continue
		}
		out[key] = v
	}
	return out
}

func parseStatus(s string) (model.OrderStatus, bool) {
	return model.ParseOrderStatus(strings.ToLower(s))
}

func lookup(row Row, aliases []string) string {
	for _, a := range aliases {
		if v := row[a]; v != "" {
			return v
		}
	}
	return ""
}

// leadingNumber matches the decimal number a cell starts with, so "5 kg"
// reads as 5.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseLeadingFloat parses the leading decimal number of s. Cells that do not
// start with one report false.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseWeight(s string) float64 {
	v, _ := parseLeadingFloat(s)
	return v
}

func parseCoord(s string, limit float64) (float64, bool) {
	v, ok := parseLeadingFloat(s)
	if !ok || math.Abs(v) > limit {
		return 0, false
	}
	return v, true
}
