package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

const colombia = 57

var (
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
	longAgo  = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	callTime = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
)

func testTables() *refdata.Tables {
	return refdata.NewTables(refdata.Rows{
		Locations: []models.Location{
			{ID: 1, Name: "BOGOTA HQ", IndicatorID: 1, CountryID: colombia, PbxPrefixes: []string{"9"}, ConferencePrefix: "b"},
			{ID: 2, Name: "MEDELLIN", IndicatorID: 5, CountryID: colombia},
			{ID: 3, Name: "MIAMI", IndicatorID: 9, CountryID: 1},
		},
		TypeConfigs: []models.TelephonyTypeConfig{
			{TelephonyTypeID: models.TypeLocal, CountryID: colombia, MinLength: 7, MaxLength: 7},
			{TelephonyTypeID: models.TypeNational, CountryID: colombia, MinLength: 10, MaxLength: 10},
		},
		Prefixes: []models.PrefixInfo{
			{ID: 1, CountryID: colombia, OperatorID: 3, TelephonyTypeID: models.TypeLocal},
			{ID: 2, CountryID: colombia, OperatorID: 3, TelephonyTypeID: models.TypeNational, Code: "09"},
		},
		Operators: []models.Operator{{ID: 3, Name: "ETB"}},
		Indicators: []models.Indicator{
			{ID: 1, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "BOGOTA", Department: "CUNDINAMARCA"},
			{ID: 2, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "SOACHA", Department: "CUNDINAMARCA"},
			{ID: 5, TelephonyTypeID: models.TypeNational, CountryID: colombia, City: "MEDELLIN", Department: "ANTIOQUIA"},
		},
		Series: []models.Series{
			{ID: 1, IndicatorID: 1, NDC: 601, Initial: 2000000, Final: 2999999},
			{ID: 2, IndicatorID: 2, NDC: 601, Initial: 7200000, Final: 7299999},
			{ID: 3, IndicatorID: 5, NDC: 604, Initial: 4000000, Final: 4999999},
		},
		LocalExtendedZones: []models.LocalExtendedZone{{OriginIndicatorID: 1, NDC: "601"}},
		SpecialServices: []models.SpecialService{
			{ID: 1, Number: "123", CountryID: colombia, Description: "POLICIA"},
		},
		PbxRules: []models.PbxRule{
			{ID: 1, LocationID: 1, Direction: models.RuleOutbound, Search: "5", Replacement: "55"},
		},
		Transforms: []models.NumberTransform{
			{ID: 1, LocationID: 1, Direction: models.RuleInbound, Search: "+57", TelephonyTypeID: models.TypeNational},
		},
		Employees: []models.Employee{
			{ID: 11, HistoryGroup: 11, Extension: "1001", LocationID: 1, SubdivisionID: 1, ValidFrom: longAgo},
			{ID: 12, HistoryGroup: 12, Extension: "1002", LocationID: 1, SubdivisionID: 1, ValidFrom: longAgo},
			{ID: 13, HistoryGroup: 13, Extension: "1003", LocationID: 1, SubdivisionID: 2, ValidFrom: longAgo},
			{ID: 14, HistoryGroup: 14, Extension: "2060", LocationID: 1, SubdivisionID: 1, ValidFrom: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 15, HistoryGroup: 15, Extension: "1500", AuthCode: "4321", LocationID: 1, SubdivisionID: 3, ValidFrom: longAgo},
			{ID: 21, HistoryGroup: 21, Extension: "5001", LocationID: 2, SubdivisionID: 1, ValidFrom: longAgo},
			{ID: 31, HistoryGroup: 31, Extension: "7001", LocationID: 3, SubdivisionID: 1, ValidFrom: longAgo},
		},
		ExtensionRanges: []models.ExtensionRange{
			{ID: 1, HistoryGroup: 1, LocationID: 1, SubdivisionID: 9, From: 2000, To: 2099, ValidFrom: longAgo},
		},
	})
}

func newTestClassifier(t *testing.T) (*Classifier, models.Location) {
	t.Helper()
	tables := testTables()
	loc, ok := tables.Location(1)
	require.True(t, ok)
	return New(tables, refdata.NewPrefixCache(tables, time.Minute, discard), 2, discard), loc
}

func outboundCall(calling, called string) *models.CallRecord {
	return &models.CallRecord{
		ID:            "rec-1",
		CallingNumber: calling,
		CalledNumber:  called,
		StartTime:     callTime,
		Duration:      60,
		Direction:     models.DirectionOutbound,
	}
}

func requireQuarantine(t *testing.T, err error, kind models.QuarantineKind) *models.QuarantineError {
	t.Helper()
	var q *models.QuarantineError
	require.True(t, errors.As(err, &q), "expected quarantine, got %v", err)
	assert.Equal(t, kind, q.Kind)
	return q
}

func TestSelfCallIsQuarantinedInEitherDirection(t *testing.T) {
	c, loc := newTestClassifier(t)

	for _, dir := range []models.CallDirection{models.DirectionOutbound, models.DirectionInbound} {
		rec := outboundCall("1001", "1001")
		rec.Direction = dir
		_, err := c.Classify(context.Background(), loc, rec)
		q := requireQuarantine(t, err, models.QuarantineSelfCall)
		assert.Equal(t, StepInternal, q.Step)
	}
}

func TestInternalSubtypes(t *testing.T) {
	c, loc := newTestClassifier(t)

	tests := []struct {
		name   string
		called string
		want   int64
		destID int64
	}{
		{"same subdivision", "1002", models.TypeInternalSimple, 12},
		{"other subdivision", "1003", models.TypeLocalInternal, 13},
		{"other indicator", "5001", models.TypeNationalInternal, 21},
		{"other country", "7001", models.TypeInternationalInternal, 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := outboundCall("1001", tt.called)
			d, err := c.Classify(context.Background(), loc, rec)
			require.NoError(t, err)
			assert.Equal(t, PathInternal, d.Path)
			assert.True(t, rec.Internal)
			assert.Equal(t, tt.want, rec.TelephonyTypeID)
			assert.Equal(t, models.TelephonyTypeName(tt.want), rec.TelephonyTypeName)
			assert.Equal(t, "1001", rec.Extension)
			assert.Equal(t, tt.called, rec.Dial)
			assert.Equal(t, int64(11), rec.EmployeeID)
			assert.Equal(t, tt.destID, rec.DestinationEmployeeID)
			assert.Equal(t, models.AssignmentExtension, rec.AssignmentCause)
		})
	}
}

func TestInternalInboundIsProcessedAsOutbound(t *testing.T) {
	c, loc := newTestClassifier(t)

	rec := outboundCall("1002", "1001")
	rec.Direction = models.DirectionInbound
	rec.OriginDevice = "SEP001"
	rec.DestinationDevice = "SEP002"

	_, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionOutbound, rec.Direction)
	assert.Equal(t, "1001", rec.CallingNumber)
	assert.Equal(t, "1002", rec.EffectiveDestination)
	assert.Equal(t, "SEP002", rec.OriginDevice)
	assert.Equal(t, int64(11), rec.EmployeeID)
}

func TestInternalForeignDestinationPolicy(t *testing.T) {
	c, loc := newTestClassifier(t)
	loc.IgnoreForeignDestination = true

	_, err := c.Classify(context.Background(), loc, outboundCall("1001", "5001"))
	requireQuarantine(t, err, models.QuarantineIgnoredCall)

	_, err = c.Classify(context.Background(), loc, outboundCall("1001", "1002"))
	assert.NoError(t, err)
}

func TestInternalForeignBothPolicy(t *testing.T) {
	c, loc := newTestClassifier(t)
	loc.IgnoreForeignBoth = true

	_, err := c.Classify(context.Background(), loc, outboundCall("5001", "7001"))
	requireQuarantine(t, err, models.QuarantineIgnoredCall)

	_, err = c.Classify(context.Background(), loc, outboundCall("1001", "7001"))
	assert.NoError(t, err)
}

func TestInternalUnknownOriginIsReadFromDestination(t *testing.T) {
	c, loc := newTestClassifier(t)

	rec := outboundCall("1999", "1002")
	_, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)

	assert.Equal(t, models.DirectionInbound, rec.Direction)
	assert.Equal(t, "1002", rec.Extension)
	assert.Equal(t, "1999", rec.Dial)
	assert.Equal(t, int64(12), rec.EmployeeID)
	assert.Equal(t, "1999", rec.CallingNumber, "raw parties are left alone")
}

func TestInternalUnknownDestinationUsesPrefixTable(t *testing.T) {
	c, loc := newTestClassifier(t)
	loc.InternalPrefixes = map[string]int64{"8": models.TypeNationalInternal, "88": models.TypeInternationalInternal}

	rec := outboundCall("1001", "8801")
	_, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)
	assert.Equal(t, models.TypeInternationalInternal, rec.TelephonyTypeID)

	loc.InternalPrefixes = nil
	loc.DefaultInternalType = models.TypeLocalInternal
	rec = outboundCall("1001", "8801")
	_, err = c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)
	assert.Equal(t, models.TypeLocalInternal, rec.TelephonyTypeID)
}

func TestOutboundAttribution(t *testing.T) {
	c, loc := newTestClassifier(t)

	tests := []struct {
		name     string
		calling  string
		authCode string
		employee int64
		cause    models.AssignmentCause
	}{
		{"extension", "1001", "", 11, models.AssignmentExtension},
		{"auth code", "1001", "4321", 15, models.AssignmentAuthCode},
		{"unknown auth code", "1001", "0000", 11, models.AssignmentIgnoredAuthCode},
		{"extension range", "2050", "", 0, models.AssignmentRanges},
		{"history blocks range", "2060", "", 0, models.AssignmentNotAssigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := outboundCall(tt.calling, "93001234567")
			rec.AuthCode = tt.authCode
			d, err := c.Classify(context.Background(), loc, rec)
			require.NoError(t, err)
			assert.Equal(t, PathOutbound, d.Path)
			assert.False(t, rec.Internal)
			assert.Equal(t, "93001234567", d.Number)
			assert.Equal(t, "3001234567", rec.Dial)
			assert.Equal(t, tt.employee, rec.EmployeeID)
			assert.Equal(t, tt.cause, rec.AssignmentCause)
		})
	}
}

func TestOutboundSpecialService(t *testing.T) {
	c, loc := newTestClassifier(t)

	rec := outboundCall("1001", "123")
	d, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)
	assert.Equal(t, PathSpecialService, d.Path)
	assert.Equal(t, int64(1), d.Special.ID)
	assert.Equal(t, models.TypeSpecialServices, rec.TelephonyTypeID)
	assert.Equal(t, "POLICIA", rec.DestinationDescription)
	assert.Equal(t, int64(1), rec.IndicatorID)
}

func TestOutboundRewriteIsBounded(t *testing.T) {
	c, loc := newTestClassifier(t)

	d, err := c.Classify(context.Background(), loc, outboundCall("1001", "512345678"))
	require.NoError(t, err)
	assert.Equal(t, PathOutbound, d.Path)
	assert.Equal(t, "55512345678", d.Number)
}

func TestInboundOrigin(t *testing.T) {
	c, loc := newTestClassifier(t)

	tests := []struct {
		name      string
		calling   string
		typeID    int64
		indicator int64
		desc      string
	}{
		{"same indicator", "6012345100", models.TypeLocal, 1, "BOGOTA, CUNDINAMARCA"},
		{"local extended zone", "6017212345", models.TypeLocalExtended, 2, "SOACHA, CUNDINAMARCA"},
		{"transform hint", "+576017212345", models.TypeLocalExtended, 2, "SOACHA, CUNDINAMARCA"},
		{"national", "6044441234", models.TypeNational, 5, "MEDELLIN, ANTIOQUIA"},
		{"unidentified", "999", models.TypeInbound, 0, OriginNotIdentified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := outboundCall(tt.calling, "1001")
			rec.Direction = models.DirectionInbound

			d, err := c.Classify(context.Background(), loc, rec)
			require.NoError(t, err)
			assert.Equal(t, PathInbound, d.Path)
			assert.Equal(t, models.DirectionInbound, rec.Direction)
			assert.Equal(t, tt.typeID, rec.TelephonyTypeID)
			assert.Equal(t, tt.indicator, rec.IndicatorID)
			assert.Equal(t, tt.desc, rec.DestinationDescription)
			assert.Equal(t, "1001", rec.Extension)
			assert.Equal(t, int64(11), rec.EmployeeID)
		})
	}
}

func TestInvalidRecord(t *testing.T) {
	c, loc := newTestClassifier(t)

	_, err := c.Classify(context.Background(), loc, &models.CallRecord{StartTime: callTime})
	requireQuarantine(t, err, models.QuarantineInvalidRecord)
}

func TestPrepareTransferCauses(t *testing.T) {
	loc := models.Location{ConferencePrefix: "b"}

	tests := []struct {
		name string
		rec  models.CallRecord
		want models.TransferCause
	}{
		{"none", models.CallRecord{CallingNumber: "1001", CalledNumber: "1002"}, models.TransferNone},
		{"redirect equals destination", models.CallRecord{CallingNumber: "1001", CalledNumber: "1002", RedirectNumber: "1002"}, models.TransferNone},
		{"normal", models.CallRecord{CallingNumber: "1001", CalledNumber: "1002", RedirectNumber: "1005", RedirectReason: 5}, models.TransferNormal},
		{"pre conference", models.CallRecord{CallingNumber: "1001", CalledNumber: "1002", RedirectNumber: "1005", TerminationOnBehalfOf: 10}, models.TransferPreConferenceNow},
		{"auto", models.CallRecord{CallingNumber: "1001", CalledNumber: "1002", RedirectNumber: "1005", RedirectReason: 130}, models.TransferAuto},
		{"conference end", models.CallRecord{CallingNumber: "1001", CalledNumber: "3001234567", RedirectNumber: "b0012345"}, models.TransferConferenceEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			rec.RefreshDerived()
			prepareTransfer(loc, &rec)
			assert.Equal(t, tt.want, rec.TransferCause)
		})
	}
}

func TestPrepareTransferMobileRedirect(t *testing.T) {
	rec := models.CallRecord{CallingNumber: "1001", CalledNumber: "1002", FinalMobileCalledNumber: "3001234567"}
	rec.RefreshDerived()
	prepareTransfer(models.Location{}, &rec)

	assert.Equal(t, models.TransferAuto, rec.TransferCause)
	assert.Equal(t, "3001234567", rec.EffectiveDestination)
}

func TestPrepareTransferConferenceEndKeepsTrunks(t *testing.T) {
	rec := models.CallRecord{
		CallingNumber:     "1001",
		CalledNumber:      "3001234567",
		RedirectNumber:    "b0012345",
		OriginDevice:      "SEP001",
		DestinationDevice: "TRUNK01",
	}
	rec.RefreshDerived()
	prepareTransfer(models.Location{ConferencePrefix: "b"}, &rec)

	assert.Equal(t, "3001234567", rec.CallingNumber)
	assert.Equal(t, "1001", rec.EffectiveDestination)
	assert.Equal(t, "SEP001", rec.OriginDevice)
	assert.Equal(t, "TRUNK01", rec.DestinationDevice)
}

func TestConferenceStartLeg(t *testing.T) {
	c, loc := newTestClassifier(t)

	rec := outboundCall("3001234567", "b0012345")
	rec.RedirectNumber = "1001"
	d, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)

	assert.Equal(t, models.TransferConference, rec.TransferCause)
	assert.Equal(t, PathOutbound, d.Path)
	assert.Equal(t, "3001234567", d.Number)
	assert.Equal(t, "1001", rec.Extension)
	assert.Equal(t, int64(11), rec.EmployeeID)
	assert.Equal(t, models.AssignmentConference, rec.AssignmentCause)
}

func TestConferenceJoinedByController(t *testing.T) {
	c, loc := newTestClassifier(t)

	rec := outboundCall("1002", "B0012345")
	rec.RedirectNumber = "1001"
	rec.JoinOnBehalfOf = 7
	d, err := c.Classify(context.Background(), loc, rec)
	require.NoError(t, err)

	assert.Equal(t, PathInternal, d.Path)
	assert.Equal(t, "1002", rec.CallingNumber)
	assert.Equal(t, "1001", rec.Dial)
	assert.Equal(t, models.TypeInternalSimple, rec.TelephonyTypeID)
}

func TestIsConference(t *testing.T) {
	assert.True(t, IsConference("b0012345", "b"))
	assert.True(t, IsConference("B0012345", "b"))
	assert.False(t, IsConference("b", "b"))
	assert.False(t, IsConference("b00x", "b"))
	assert.False(t, IsConference("0012345", ""))
}
