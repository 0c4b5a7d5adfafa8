package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CallRecord is a normalized call-detail record. Vendor parsers fill the raw
// party fields; the classifier and tariff resolver fill the rest in place.
type CallRecord struct {
	ID string

	CallingNumber    string
	CallingPartition string

	// CalledNumber is the originally dialed number. FinalCalledNumber, when
	// set, is where the call actually ended up.
	CalledNumber         string
	CalledPartition      string
	FinalCalledNumber    string
	FinalCalledPartition string

	// EffectiveDestination is derived: FinalCalledNumber if set, else
	// CalledNumber. Refreshed after every swap.
	EffectiveDestination string

	RedirectNumber    string
	RedirectPartition string
	RedirectReason    int

	FinalMobileCalledNumber    string
	FinalMobileCalledPartition string

	JoinOnBehalfOf        int
	TerminationOnBehalfOf int

	OriginDevice      string
	DestinationDevice string

	// AuthCode is the forced authorization code dialed, if any.
	AuthCode string

	StartTime time.Time
	Duration  int // seconds

	Direction CallDirection
	Internal  bool
	// InternalMarked means the vendor parser already decided internality.
	InternalMarked bool

	TransferCause   TransferCause
	AssignmentCause AssignmentCause

	// Extension is "our" side of the call, Dial the other party as billed.
	Extension             string
	Dial                  string
	EmployeeID            int64
	DestinationEmployeeID int64

	TelephonyTypeID        int64
	TelephonyTypeName      string
	OperatorID             int64
	OperatorName           string
	IndicatorID            int64
	DestinationDescription string
	TrunkID                int64

	PricePerMinute        decimal.Decimal
	InitialPricePerMinute decimal.Decimal
	VATIncluded           bool
	VATRate               decimal.Decimal
	ChargeBySecond        bool
	BilledAmount          decimal.Decimal
}

// RefreshDerived recomputes EffectiveDestination from the party fields.
func (r *CallRecord) RefreshDerived() {
	if r.FinalCalledNumber != "" {
		r.EffectiveDestination = r.FinalCalledNumber
		return
	}
	r.EffectiveDestination = r.CalledNumber
}

// Location is the plant/site context a record is rated in.
type Location struct {
	ID          int64
	Name        string
	IndicatorID int64
	CountryID   int64

	// PbxPrefixes are the PBX access codes dialed to reach an outside line.
	PbxPrefixes []string

	// ConferencePrefix identifies conference bridge ids ("b" + digits).
	ConferencePrefix string

	// InternalPrefixes maps a literal destination prefix to an internal
	// telephony type, used when the destination employee is unknown.
	InternalPrefixes    map[string]int64
	DefaultInternalType int64

	// IgnoreForeignBoth quarantines internal calls whose two employees both
	// belong to other locations. IgnoreForeignDestination quarantines them
	// when only the destination does.
	IgnoreForeignBoth        bool
	IgnoreForeignDestination bool
}

// ExtensionLimits describes what a possible extension looks like for one
// location. Min and Max are numeric bounds, not digit counts.
type ExtensionLimits struct {
	Min       int64
	Max       int64
	MaxLength int
	Specials  map[string]bool
}

// PrefixInfo is an operator's dialable access code for one telephony type.
type PrefixInfo struct {
	ID                int64
	CountryID         int64
	OperatorID        int64
	OperatorName      string
	TelephonyTypeID   int64
	TelephonyTypeName string
	Code              string
	BaseValue         decimal.Decimal
	VATIncluded       bool
	VATRate           decimal.Decimal
	BandCount         int
	MinLength         int
	MaxLength         int
	// Synthesized marks a prefix built on the fly rather than loaded.
	Synthesized bool
}

// Indicator is a geographic/operator zone.
type Indicator struct {
	ID              int64
	TelephonyTypeID int64
	CountryID       int64
	Department      string
	City            string
	OperatorID      int64
}

// SeriesKind tells exact series from catch-all ones.
type SeriesKind uint8

const (
	SeriesExact SeriesKind = iota
	SeriesApproximate
)

// Series is a numeric subscriber range under an NDC.
type Series struct {
	ID          int64
	IndicatorID int64
	NDC         int64
	Initial     int64
	Final       int64
	Kind        SeriesKind
}

// Band overrides a prefix's base rate for a set of destination indicators.
// OriginIndicatorID 0 is the global band.
type Band struct {
	ID                int64
	PrefixID          int64
	OriginIndicatorID int64
	Value             decimal.Decimal
	VATIncluded       bool
	IndicatorIDs      []int64
}

// SeriesCandidate is a series row joined with its indicator and, when the
// prefix has bands, the band that covers the indicator.
type SeriesCandidate struct {
	Series          Series
	Indicator       Indicator
	BandID          int64
	BandOriginMatch bool
}

// MatchKind replaces the legacy negative-NDC sentinel.
type MatchKind uint8

const (
	MatchExact MatchKind = iota
	MatchApproximate
)

// DestinationMatch is the outcome of a destination lookup.
type DestinationMatch struct {
	IndicatorID   int64
	NDC           string
	Description   string
	OperatorID    int64
	PrefixID      int64
	BandID        int64
	Kind          MatchKind
	SeriesInitial int64
	SeriesFinal   int64
	// Lower and Upper are the full comparable bounds (NDC + padded series).
	Lower string
	Upper string
}

// Approximate reports whether the match came from a catch-all series.
func (m *DestinationMatch) Approximate() bool {
	return m.Kind == MatchApproximate
}

// TariffValue is one rate layer.
type TariffValue struct {
	Value       decimal.Decimal
	VATIncluded bool
	VATRate     decimal.Decimal
}

// Trunk is a network circuit identified by device name.
type Trunk struct {
	ID         int64
	LocationID int64
	Name       string
	// NoPrefix keeps operator access codes on the dialed number.
	NoPrefix bool
	// NoPbxPrefix exempts the trunk from PBX cleaning on the normalization path.
	NoPbxPrefix bool
	Celufijo    bool
	Rates       []TrunkRate
}

// AllowedTypes returns the telephony types the trunk has rates for.
func (t *Trunk) AllowedTypes() map[int64]bool {
	types := make(map[int64]bool, len(t.Rates))
	for _, r := range t.Rates {
		types[r.TelephonyTypeID] = true
	}
	return types
}

// TrunkRate overrides the rate for a (type, operator) pair on a trunk.
// OperatorID 0 applies to every operator.
type TrunkRate struct {
	TrunkID         int64
	TelephonyTypeID int64
	OperatorID      int64
	Value           decimal.Decimal
	VATIncluded     bool
	SecondsBilling  bool
	NoPrefix        bool
}

// TrunkRule rewrites type, operator or rate for calls to given indicators.
type TrunkRule struct {
	ID                 int64
	TrunkID            int64
	TelephonyTypeID    int64
	IndicatorIDs       []int64
	OriginIndicatorID  int64
	NewTelephonyTypeID int64
	NewOperatorID      int64
	Value              decimal.Decimal
	VATIncluded        bool
	SecondsBilling     bool
}

// SpecialRate is a time-windowed rate override. WeekdayMask bit n is
// time.Weekday n; zero means every day. Hours are [HourFrom, HourTo]; both
// zero means all day.
type SpecialRate struct {
	ID                int64
	ValidFrom         time.Time
	ValidTo           *time.Time
	WeekdayMask       uint8
	HourFrom          int
	HourTo            int
	OriginIndicatorID int64
	TelephonyTypeID   int64
	OperatorID        int64
	BandID            int64
	Value             decimal.Decimal
	Percentage        bool
	VATIncluded       bool
}

// SpecialService is an emergency/information line billed at a fixed value.
type SpecialService struct {
	ID          int64
	Number      string
	IndicatorID int64
	CountryID   int64
	Value       decimal.Decimal
	VATIncluded bool
	VATRate     decimal.Decimal
	Description string
}

// RuleDirection scopes PBX rules and number transforms.
type RuleDirection uint8

const (
	RuleAny RuleDirection = iota
	RuleInbound
	RuleOutbound
	RuleInternal
)

// PbxRule is a search/replace rewrite applied to dialed or incoming numbers.
type PbxRule struct {
	ID          int64
	LocationID  int64
	Direction   RuleDirection
	Search      string
	Ignore      []string
	Replacement string
	MinLength   int
	Order       int
}

// NumberTransform is a carrier-format rewrite that may hint a telephony type.
type NumberTransform struct {
	ID              int64
	LocationID      int64
	Direction       RuleDirection
	Search          string
	Replacement     string
	MinLength       int
	MaxLength       int
	TelephonyTypeID int64
}

// Employee is one version of an employee/extension assignment.
type Employee struct {
	ID            int64
	HistoryGroup  int64
	Extension     string
	AuthCode      string
	LocationID    int64
	SubdivisionID int64
	ValidFrom     time.Time
}

// ExtensionRange is one version of a range of extensions assigned to a
// subdivision.
type ExtensionRange struct {
	ID            int64
	HistoryGroup  int64
	LocationID    int64
	SubdivisionID int64
	From          int64
	To            int64
	ValidFrom     time.Time
}

// Contains reports whether ext falls in the range.
func (r *ExtensionRange) Contains(ext int64) bool {
	return ext >= r.From && ext <= r.To
}

// LocalExtendedZone marks an NDC as local-extended from an origin indicator.
type LocalExtendedZone struct {
	OriginIndicatorID int64
	NDC               string
}

// TelephonyTypeConfig bounds the subscriber-number length of a type in a
// country.
type TelephonyTypeConfig struct {
	TelephonyTypeID int64
	CountryID       int64
	MinLength       int
	MaxLength       int
}

// Operator is a carrier.
type Operator struct {
	ID   int64
	Name string
}

// TelephonyType is a named call category.
type TelephonyType struct {
	ID   int64
	Name string
}
