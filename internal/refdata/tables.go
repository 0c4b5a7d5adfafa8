// Package refdata holds the read-only reference data the rating engine runs
// against: an immutable in-memory snapshot of the reference tables plus a
// per-country prefix cache.
package refdata

import (
	"sort"
	"strconv"
	"time"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/history"
)

// Rows is the raw reference data as loaded from storage.
type Rows struct {
	Locations          []models.Location
	Operators          []models.Operator
	TelephonyTypes     []models.TelephonyType
	TypeConfigs        []models.TelephonyTypeConfig
	Prefixes           []models.PrefixInfo
	Indicators         []models.Indicator
	Series             []models.Series
	Bands              []models.Band
	Trunks             []models.Trunk
	TrunkRules         []models.TrunkRule
	SpecialRates       []models.SpecialRate
	SpecialServices    []models.SpecialService
	PbxRules           []models.PbxRule
	Transforms         []models.NumberTransform
	Employees          []models.Employee
	ExtensionRanges    []models.ExtensionRange
	LocalExtendedZones []models.LocalExtendedZone
}

type typeCountry struct {
	typeID    int64
	countryID int64
}

type ndcRange struct {
	min, max int
}

type trunkKey struct {
	locationID int64
	name       string
}

type zoneKey struct {
	origin int64
	ndc    string
}

// Tables is an immutable, indexed snapshot of Rows. Every method is safe for
// concurrent use.
type Tables struct {
	locations     map[int64]models.Location
	operators     map[int64]string
	typeNames     map[int64]string
	typeConfigs   map[typeCountry]models.TelephonyTypeConfig
	prefixes      map[int64][]models.PrefixInfo
	indicators    map[int64]models.Indicator
	seriesByType  map[typeCountry][]models.SeriesCandidate
	ndcRanges     map[typeCountry]ndcRange
	dominantNDC   map[int64]int64
	bandsByPrefix map[int64][]models.Band
	bandByID      map[int64]models.Band
	trunks        map[trunkKey]*models.Trunk
	trunkRules    map[int64][]models.TrunkRule
	specialRates  []models.SpecialRate
	specialByNum  map[string][]models.SpecialService
	pbxRules      map[int64][]models.PbxRule
	transforms    map[int64][]models.NumberTransform
	localExtended map[zoneKey]bool
	limits        map[int64]models.ExtensionLimits
	employees     *history.Index[models.Employee]
	ranges        map[int64]*history.Index[models.ExtensionRange]
	rangeRows     map[int64][]models.ExtensionRange
	employeeCount int
}

// NewTables indexes rows into a snapshot.
func NewTables(rows Rows) *Tables {
	t := &Tables{
		locations:     make(map[int64]models.Location, len(rows.Locations)),
		operators:     make(map[int64]string, len(rows.Operators)),
		typeNames:     make(map[int64]string, len(rows.TelephonyTypes)),
		typeConfigs:   make(map[typeCountry]models.TelephonyTypeConfig, len(rows.TypeConfigs)),
		prefixes:      make(map[int64][]models.PrefixInfo),
		indicators:    make(map[int64]models.Indicator, len(rows.Indicators)),
		seriesByType:  make(map[typeCountry][]models.SeriesCandidate),
		ndcRanges:     make(map[typeCountry]ndcRange),
		dominantNDC:   make(map[int64]int64),
		bandsByPrefix: make(map[int64][]models.Band),
		bandByID:      make(map[int64]models.Band, len(rows.Bands)),
		trunks:        make(map[trunkKey]*models.Trunk, len(rows.Trunks)),
		trunkRules:    make(map[int64][]models.TrunkRule),
		specialRates:  rows.SpecialRates,
		specialByNum:  make(map[string][]models.SpecialService),
		pbxRules:      make(map[int64][]models.PbxRule),
		transforms:    make(map[int64][]models.NumberTransform),
		localExtended: make(map[zoneKey]bool, len(rows.LocalExtendedZones)),
		limits:        make(map[int64]models.ExtensionLimits),
		ranges:        make(map[int64]*history.Index[models.ExtensionRange]),
		rangeRows:     make(map[int64][]models.ExtensionRange),
		employeeCount: len(rows.Employees),
	}

	for _, l := range rows.Locations {
		t.locations[l.ID] = l
	}
	for _, o := range rows.Operators {
		t.operators[o.ID] = o.Name
	}
	for _, tt := range rows.TelephonyTypes {
		t.typeNames[tt.ID] = tt.Name
	}
	for _, c := range rows.TypeConfigs {
		t.typeConfigs[typeCountry{c.TelephonyTypeID, c.CountryID}] = c
	}
	for _, b := range rows.Bands {
		t.bandsByPrefix[b.PrefixID] = append(t.bandsByPrefix[b.PrefixID], b)
		t.bandByID[b.ID] = b
	}
	for _, p := range rows.Prefixes {
		t.prefixes[p.CountryID] = append(t.prefixes[p.CountryID], t.completePrefix(p))
	}
	for _, ind := range rows.Indicators {
		t.indicators[ind.ID] = ind
	}
	t.indexSeries(rows.Series)

	for i := range rows.Trunks {
		tr := rows.Trunks[i]
		t.trunks[trunkKey{tr.LocationID, tr.Name}] = &tr
	}
	for _, r := range rows.TrunkRules {
		t.trunkRules[r.TrunkID] = append(t.trunkRules[r.TrunkID], r)
	}
	for _, s := range rows.SpecialServices {
		t.specialByNum[s.Number] = append(t.specialByNum[s.Number], s)
	}
	for _, r := range rows.PbxRules {
		t.pbxRules[r.LocationID] = append(t.pbxRules[r.LocationID], r)
	}
	for _, tr := range rows.Transforms {
		t.transforms[tr.LocationID] = append(t.transforms[tr.LocationID], tr)
	}
	for _, z := range rows.LocalExtendedZones {
		t.localExtended[zoneKey{z.OriginIndicatorID, z.NDC}] = true
	}

	t.employees = history.NewIndex(rows.Employees,
		func(e models.Employee) int64 { return e.HistoryGroup },
		func(e models.Employee) time.Time { return e.ValidFrom },
		func(e models.Employee) []string { return []string{e.Extension, AuthKey(e.AuthCode)} },
	)

	for _, r := range rows.ExtensionRanges {
		t.rangeRows[r.LocationID] = append(t.rangeRows[r.LocationID], r)
	}
	for loc, rs := range t.rangeRows {
		t.ranges[loc] = history.NewIndex(rs,
			func(r models.ExtensionRange) int64 { return r.HistoryGroup },
			func(r models.ExtensionRange) time.Time { return r.ValidFrom },
			func(r models.ExtensionRange) []string { return []string{strconv.FormatInt(r.HistoryGroup, 10)} },
		)
	}

	byLocation := make(map[int64][]models.Employee)
	for _, e := range rows.Employees {
		byLocation[e.LocationID] = append(byLocation[e.LocationID], e)
	}
	for _, l := range rows.Locations {
		t.limits[l.ID] = DeriveLimits(byLocation[l.ID], t.rangeRows[l.ID])
	}

	return t
}

// AuthKey is the employee index key of an authorization code.
func AuthKey(code string) string {
	if code == "" {
		return ""
	}
	return "auth:" + code
}

// completePrefix fills names and length bounds a loader may leave empty.
func (t *Tables) completePrefix(p models.PrefixInfo) models.PrefixInfo {
	if p.OperatorName == "" {
		p.OperatorName = t.operators[p.OperatorID]
	}
	if p.TelephonyTypeName == "" {
		p.TelephonyTypeName = t.TypeName(p.TelephonyTypeID)
	}
	if p.BandCount == 0 {
		p.BandCount = len(t.bandsByPrefix[p.ID])
	}
	if p.MinLength == 0 && p.MaxLength == 0 {
		if c, ok := t.typeConfigs[typeCountry{p.TelephonyTypeID, p.CountryID}]; ok {
			p.MinLength, p.MaxLength = c.MinLength, c.MaxLength
		}
	}
	return p
}

func (t *Tables) indexSeries(series []models.Series) {
	counts := make(map[int64]map[int64]int)
	for _, s := range series {
		ind, ok := t.indicators[s.IndicatorID]
		if !ok {
			continue
		}
		key := typeCountry{ind.TelephonyTypeID, ind.CountryID}
		t.seriesByType[key] = append(t.seriesByType[key], models.SeriesCandidate{Series: s, Indicator: ind})

		l := NDCLength(s.NDC)
		r, seen := t.ndcRanges[key]
		if !seen {
			r = ndcRange{min: l, max: l}
		}
		if l < r.min {
			r.min = l
		}
		if l > r.max {
			r.max = l
		}
		t.ndcRanges[key] = r

		if s.NDC > 0 && s.Kind == models.SeriesExact {
			if counts[s.IndicatorID] == nil {
				counts[s.IndicatorID] = make(map[int64]int)
			}
			counts[s.IndicatorID][s.NDC]++
		}
	}

	for ind, byNDC := range counts {
		var best int64
		bestCount := 0
		for ndc, c := range byNDC {
			if c > bestCount || (c == bestCount && ndc < best) {
				best, bestCount = ndc, c
			}
		}
		t.dominantNDC[ind] = best
	}
}

// NDCLength returns the digit count of an NDC. The NDC 0 means "no area
// code" and has length 0.
func NDCLength(ndc int64) int {
	if ndc <= 0 {
		return 0
	}
	return len(strconv.FormatInt(ndc, 10))
}

// Location returns a location by id.
func (t *Tables) Location(id int64) (models.Location, bool) {
	l, ok := t.locations[id]
	return l, ok
}

// OperatorName returns the name of an operator.
func (t *Tables) OperatorName(id int64) string {
	return t.operators[id]
}

// TypeName returns the configured name of a telephony type, falling back to
// the built-in name.
func (t *Tables) TypeName(id int64) string {
	if n, ok := t.typeNames[id]; ok {
		return n
	}
	return models.TelephonyTypeName(id)
}

// TypeConfig returns the subscriber-length bounds of a type in a country.
func (t *Tables) TypeConfig(typeID, countryID int64) (models.TelephonyTypeConfig, bool) {
	c, ok := t.typeConfigs[typeCountry{typeID, countryID}]
	return c, ok
}

// Indicator returns an indicator by id.
func (t *Tables) Indicator(id int64) (models.Indicator, bool) {
	ind, ok := t.indicators[id]
	return ind, ok
}

// DominantNDC returns the area code most series of an indicator live under.
func (t *Tables) DominantNDC(indicatorID int64) (int64, bool) {
	ndc, ok := t.dominantNDC[indicatorID]
	return ndc, ok
}

// NDCLengthRange returns the shortest and longest NDC among the series of a
// type in a country.
func (t *Tables) NDCLengthRange(typeID, countryID int64) (int, int, bool) {
	r, ok := t.ndcRanges[typeCountry{typeID, countryID}]
	return r.min, r.max, ok
}

// SeriesCandidates returns the series of a type in a country whose NDC is in
// ndcs. When prefixID has bands only series whose indicator is covered by a
// band of that prefix for originIndicatorID (or the global band 0) are
// returned. Rows are ordered by band origin match, NDC descending, then
// series lower bound ascending.
func (t *Tables) SeriesCandidates(typeID, countryID int64, ndcs map[int64]bool, prefixID int64, withBands bool, originIndicatorID int64) []models.SeriesCandidate {
	all := t.seriesByType[typeCountry{typeID, countryID}]
	out := make([]models.SeriesCandidate, 0, 16)

	var bands []models.Band
	if withBands {
		bands = t.bandsByPrefix[prefixID]
	}

	for _, c := range all {
		if !ndcs[c.Series.NDC] {
			continue
		}
		if withBands {
			bandID, originMatch, ok := coveringBand(bands, c.Indicator.ID, originIndicatorID)
			if !ok {
				continue
			}
			c.BandID = bandID
			c.BandOriginMatch = originMatch
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BandOriginMatch != b.BandOriginMatch {
			return a.BandOriginMatch
		}
		if a.Series.NDC != b.Series.NDC {
			return a.Series.NDC > b.Series.NDC
		}
		return a.Series.Initial < b.Series.Initial
	})
	return out
}

func coveringBand(bands []models.Band, indicatorID, originIndicatorID int64) (int64, bool, bool) {
	var global int64
	found := false
	for _, b := range bands {
		if b.OriginIndicatorID != originIndicatorID && b.OriginIndicatorID != 0 {
			continue
		}
		if !containsID(b.IndicatorIDs, indicatorID) {
			continue
		}
		if b.OriginIndicatorID == originIndicatorID && originIndicatorID != 0 {
			return b.ID, true, true
		}
		if !found {
			global, found = b.ID, true
		}
	}
	return global, false, found
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Band returns a band by id.
func (t *Tables) Band(id int64) (models.Band, bool) {
	b, ok := t.bandByID[id]
	return b, ok
}

// BandFor returns the band of a prefix covering destination indicator for
// an origin indicator, preferring an origin-scoped band over the global one.
func (t *Tables) BandFor(prefixID, destinationIndicatorID, originIndicatorID int64) (models.Band, bool) {
	id, _, ok := coveringBand(t.bandsByPrefix[prefixID], destinationIndicatorID, originIndicatorID)
	if !ok {
		return models.Band{}, false
	}
	return t.bandByID[id], true
}

// Trunk returns the trunk of a location by device name.
func (t *Tables) Trunk(locationID int64, name string) (*models.Trunk, bool) {
	if name == "" {
		return nil, false
	}
	tr, ok := t.trunks[trunkKey{locationID, name}]
	return tr, ok
}

// TrunkRules returns the rules of a trunk followed by the rules that apply to
// every trunk.
func (t *Tables) TrunkRules(trunkID int64) []models.TrunkRule {
	own := t.trunkRules[trunkID]
	if trunkID == 0 {
		return own
	}
	out := make([]models.TrunkRule, 0, len(own)+len(t.trunkRules[0]))
	out = append(out, own...)
	return append(out, t.trunkRules[0]...)
}

// SpecialRates returns every special rate.
func (t *Tables) SpecialRates() []models.SpecialRate {
	return t.specialRates
}

// SpecialService returns the special service dialed as number, preferring one
// scoped to the indicator over a country-wide one.
func (t *Tables) SpecialService(number string, indicatorID, countryID int64) (models.SpecialService, bool) {
	var fallback *models.SpecialService
	for i, s := range t.specialByNum[number] {
		if s.CountryID != countryID {
			continue
		}
		if s.IndicatorID == indicatorID {
			return s, true
		}
		if s.IndicatorID == 0 && fallback == nil {
			fallback = &t.specialByNum[number][i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return models.SpecialService{}, false
}

// PbxRules returns the PBX special rules of a location.
func (t *Tables) PbxRules(locationID int64) []models.PbxRule {
	return t.pbxRules[locationID]
}

// Transforms returns the number transforms of a location.
func (t *Tables) Transforms(locationID int64) []models.NumberTransform {
	return t.transforms[locationID]
}

// IsLocalExtended reports whether ndc is local-extended from an origin
// indicator.
func (t *Tables) IsLocalExtended(originIndicatorID int64, ndc string) bool {
	return t.localExtended[zoneKey{originIndicatorID, ndc}]
}

// ExtensionLimits returns the derived limits of a location.
func (t *Tables) ExtensionLimits(locationID int64) models.ExtensionLimits {
	if l, ok := t.limits[locationID]; ok {
		return l
	}
	return DeriveLimits(nil, nil)
}

// Employees returns the employee history index.
func (t *Tables) Employees() *history.Index[models.Employee] {
	return t.employees
}

// ExtensionRanges returns the extension-range history index of a location.
func (t *Tables) ExtensionRanges(locationID int64) *history.Index[models.ExtensionRange] {
	return t.ranges[locationID]
}

// RangeGroups returns the distinct history groups of a location's ranges.
func (t *Tables) RangeGroups(locationID int64) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, r := range t.rangeRows[locationID] {
		if !seen[r.HistoryGroup] {
			seen[r.HistoryGroup] = true
			out = append(out, r.HistoryGroup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Prefixes returns the prefixes of a country as loaded, without caching.
func (t *Tables) Prefixes(countryID int64) []models.PrefixInfo {
	return t.prefixes[countryID]
}

// Stats summarizes the snapshot for logging.
func (t *Tables) Stats() map[string]int {
	series := 0
	for _, s := range t.seriesByType {
		series += len(s)
	}
	return map[string]int{
		"locations":  len(t.locations),
		"indicators": len(t.indicators),
		"series":     series,
		"bands":      len(t.bandByID),
		"trunks":     len(t.trunks),
		"employees":  t.employeeCount,
	}
}
