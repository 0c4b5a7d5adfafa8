package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/refdata"
)

// refRepo implements RefRepository.
type refRepo struct {
	db *DB
}

// NewRefRepository creates a new RefRepository.
func NewRefRepository(db *DB) RefRepository {
	return &refRepo{db: db}
}

// scanner is the common surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](ctx context.Context, db *DB, what, query string, scan func(scanner) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", what, err)
	}
	return out, nil
}

// LoadTables reads every reference table.
func (r *refRepo) LoadTables(ctx context.Context) (refdata.Rows, error) {
	var (
		rows refdata.Rows
		err  error
	)

	if rows.TelephonyTypes, err = queryAll(ctx, r.db, "telephony types",
		`SELECT id, name FROM telephony_types ORDER BY id`,
		func(s scanner) (models.TelephonyType, error) {
			var t models.TelephonyType
			err := s.Scan(&t.ID, &t.Name)
			return t, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Operators, err = queryAll(ctx, r.db, "operators",
		`SELECT id, name FROM operators ORDER BY id`,
		func(s scanner) (models.Operator, error) {
			var o models.Operator
			err := s.Scan(&o.ID, &o.Name)
			return o, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.TypeConfigs, err = queryAll(ctx, r.db, "telephony type configs",
		`SELECT telephony_type_id, country_id, min_length, max_length FROM telephony_type_configs`,
		func(s scanner) (models.TelephonyTypeConfig, error) {
			var c models.TelephonyTypeConfig
			err := s.Scan(&c.TelephonyTypeID, &c.CountryID, &c.MinLength, &c.MaxLength)
			return c, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Prefixes, err = r.prefixes(ctx, ""); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Indicators, err = queryAll(ctx, r.db, "indicators",
		`SELECT id, telephony_type_id, country_id, department, city, operator_id FROM indicators ORDER BY id`,
		func(s scanner) (models.Indicator, error) {
			var i models.Indicator
			err := s.Scan(&i.ID, &i.TelephonyTypeID, &i.CountryID, &i.Department, &i.City, &i.OperatorID)
			return i, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Series, err = queryAll(ctx, r.db, "series",
		`SELECT id, indicator_id, ndc, initial_number, final_number, approximate FROM series ORDER BY id`,
		func(s scanner) (models.Series, error) {
			var (
				sr     models.Series
				approx bool
			)
			err := s.Scan(&sr.ID, &sr.IndicatorID, &sr.NDC, &sr.Initial, &sr.Final, &approx)
			if approx {
				sr.Kind = models.SeriesApproximate
			}
			return sr, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Bands, err = r.bands(ctx); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Locations, err = r.locations(ctx); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Trunks, err = r.trunks(ctx); err != nil {
		return refdata.Rows{}, err
	}

	if rows.TrunkRules, err = queryAll(ctx, r.db, "trunk rules",
		`SELECT id, trunk_id, telephony_type_id, indicator_ids, origin_indicator_id,
		 new_telephony_type_id, new_operator_id, value, vat_included, seconds_billing
		 FROM trunk_rules ORDER BY id`,
		func(s scanner) (models.TrunkRule, error) {
			var (
				tr  models.TrunkRule
				ids string
			)
			if err := s.Scan(&tr.ID, &tr.TrunkID, &tr.TelephonyTypeID, &ids, &tr.OriginIndicatorID,
				&tr.NewTelephonyTypeID, &tr.NewOperatorID, &tr.Value, &tr.VATIncluded, &tr.SecondsBilling); err != nil {
				return tr, err
			}
			var err error
			tr.IndicatorIDs, err = parseIDs(ids)
			return tr, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.SpecialRates, err = queryAll(ctx, r.db, "special rates",
		`SELECT id, valid_from, valid_to, weekday_mask, hour_from, hour_to, origin_indicator_id,
		 telephony_type_id, operator_id, band_id, value, percentage, vat_included
		 FROM special_rates ORDER BY id`,
		func(s scanner) (models.SpecialRate, error) {
			var (
				sr      models.SpecialRate
				validTo sql.NullTime
			)
			err := s.Scan(&sr.ID, &sr.ValidFrom, &validTo, &sr.WeekdayMask, &sr.HourFrom, &sr.HourTo,
				&sr.OriginIndicatorID, &sr.TelephonyTypeID, &sr.OperatorID, &sr.BandID,
				&sr.Value, &sr.Percentage, &sr.VATIncluded)
			if validTo.Valid {
				sr.ValidTo = &validTo.Time
			}
			return sr, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.SpecialServices, err = queryAll(ctx, r.db, "special services",
		`SELECT id, number, indicator_id, country_id, value, vat_included, vat_rate, description
		 FROM special_services ORDER BY id`,
		func(s scanner) (models.SpecialService, error) {
			var ss models.SpecialService
			err := s.Scan(&ss.ID, &ss.Number, &ss.IndicatorID, &ss.CountryID,
				&ss.Value, &ss.VATIncluded, &ss.VATRate, &ss.Description)
			return ss, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.PbxRules, err = queryAll(ctx, r.db, "pbx rules",
		`SELECT id, location_id, direction, search, ignore_prefixes, replacement, min_length, rule_order
		 FROM pbx_rules ORDER BY location_id, rule_order, id`,
		func(s scanner) (models.PbxRule, error) {
			var (
				pr     models.PbxRule
				ignore string
			)
			err := s.Scan(&pr.ID, &pr.LocationID, &pr.Direction, &pr.Search, &ignore,
				&pr.Replacement, &pr.MinLength, &pr.Order)
			pr.Ignore = splitList(ignore)
			return pr, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Transforms, err = queryAll(ctx, r.db, "number transforms",
		`SELECT id, location_id, direction, search, replacement, min_length, max_length, telephony_type_id
		 FROM number_transforms ORDER BY location_id, id`,
		func(s scanner) (models.NumberTransform, error) {
			var nt models.NumberTransform
			err := s.Scan(&nt.ID, &nt.LocationID, &nt.Direction, &nt.Search, &nt.Replacement,
				&nt.MinLength, &nt.MaxLength, &nt.TelephonyTypeID)
			return nt, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.Employees, err = queryAll(ctx, r.db, "employees",
		`SELECT id, history_group, extension, auth_code, location_id, subdivision_id, valid_from
		 FROM employees ORDER BY id`,
		func(s scanner) (models.Employee, error) {
			var e models.Employee
			err := s.Scan(&e.ID, &e.HistoryGroup, &e.Extension, &e.AuthCode, &e.LocationID,
				&e.SubdivisionID, &e.ValidFrom)
			return e, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.ExtensionRanges, err = queryAll(ctx, r.db, "extension ranges",
		`SELECT id, history_group, location_id, subdivision_id, range_from, range_to, valid_from
		 FROM extension_ranges ORDER BY id`,
		func(s scanner) (models.ExtensionRange, error) {
			var er models.ExtensionRange
			err := s.Scan(&er.ID, &er.HistoryGroup, &er.LocationID, &er.SubdivisionID,
				&er.From, &er.To, &er.ValidFrom)
			return er, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	if rows.LocalExtendedZones, err = queryAll(ctx, r.db, "local extended zones",
		`SELECT origin_indicator_id, ndc FROM local_extended_zones`,
		func(s scanner) (models.LocalExtendedZone, error) {
			var z models.LocalExtendedZone
			err := s.Scan(&z.OriginIndicatorID, &z.NDC)
			return z, err
		}); err != nil {
		return refdata.Rows{}, err
	}

	return rows, nil
}

// LoadPrefixes reads the operator prefixes of one country.
func (r *refRepo) LoadPrefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error) {
	return r.prefixes(ctx, "WHERE p.country_id = ?", countryID)
}

func (r *refRepo) prefixes(ctx context.Context, where string, args ...any) ([]models.PrefixInfo, error) {
	return queryAll(ctx, r.db, "prefixes",
		`SELECT p.id, p.country_id, p.operator_id, COALESCE(o.name, ''), p.telephony_type_id,
		 COALESCE(t.name, ''), p.code, p.base_value, p.vat_included, p.vat_rate,
		 (SELECT COUNT(*) FROM bands b WHERE b.prefix_id = p.id),
		 COALESCE(c.min_length, 0), COALESCE(c.max_length, 0)
		 FROM prefixes p
		 LEFT JOIN operators o ON o.id = p.operator_id
		 LEFT JOIN telephony_types t ON t.id = p.telephony_type_id
		 LEFT JOIN telephony_type_configs c
		   ON c.telephony_type_id = p.telephony_type_id AND c.country_id = p.country_id
		 `+where+` ORDER BY p.id`,
		func(s scanner) (models.PrefixInfo, error) {
			var p models.PrefixInfo
			err := s.Scan(&p.ID, &p.CountryID, &p.OperatorID, &p.OperatorName, &p.TelephonyTypeID,
				&p.TelephonyTypeName, &p.Code, &p.BaseValue, &p.VATIncluded, &p.VATRate,
				&p.BandCount, &p.MinLength, &p.MaxLength)
			if p.TelephonyTypeName == "" {
				p.TelephonyTypeName = models.TelephonyTypeName(p.TelephonyTypeID)
			}
			return p, err
		}, args...)
}

func (r *refRepo) bands(ctx context.Context) ([]models.Band, error) {
	bands, err := queryAll(ctx, r.db, "bands",
		`SELECT id, prefix_id, origin_indicator_id, value, vat_included FROM bands ORDER BY id`,
		func(s scanner) (models.Band, error) {
			var b models.Band
			err := s.Scan(&b.ID, &b.PrefixID, &b.OriginIndicatorID, &b.Value, &b.VATIncluded)
			return b, err
		})
	if err != nil {
		return nil, err
	}

	type link struct{ bandID, indicatorID int64 }
	links, err := queryAll(ctx, r.db, "band indicators",
		`SELECT band_id, indicator_id FROM band_indicators ORDER BY band_id, indicator_id`,
		func(s scanner) (link, error) {
			var l link
			err := s.Scan(&l.bandID, &l.indicatorID)
			return l, err
		})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(bands))
	for i, b := range bands {
		byID[b.ID] = i
	}
	for _, l := range links {
		if i, ok := byID[l.bandID]; ok {
			bands[i].IndicatorIDs = append(bands[i].IndicatorIDs, l.indicatorID)
		}
	}
	return bands, nil
}

func (r *refRepo) locations(ctx context.Context) ([]models.Location, error) {
	locations, err := queryAll(ctx, r.db, "locations",
		`SELECT id, name, indicator_id, country_id, pbx_prefixes, conference_prefix,
		 default_internal_type, ignore_foreign_both, ignore_foreign_destination
		 FROM locations ORDER BY id`,
		func(s scanner) (models.Location, error) {
			var (
				l        models.Location
				prefixes string
			)
			err := s.Scan(&l.ID, &l.Name, &l.IndicatorID, &l.CountryID, &prefixes, &l.ConferencePrefix,
				&l.DefaultInternalType, &l.IgnoreForeignBoth, &l.IgnoreForeignDestination)
			l.PbxPrefixes = splitList(prefixes)
			return l, err
		})
	if err != nil {
		return nil, err
	}

	type internalPrefix struct {
		locationID int64
		prefix     string
		typeID     int64
	}
	internal, err := queryAll(ctx, r.db, "location internal prefixes",
		`SELECT location_id, prefix, telephony_type_id FROM location_internal_prefixes`,
		func(s scanner) (internalPrefix, error) {
			var p internalPrefix
			err := s.Scan(&p.locationID, &p.prefix, &p.typeID)
			return p, err
		})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(locations))
	for i, l := range locations {
		byID[l.ID] = i
	}
	for _, p := range internal {
		i, ok := byID[p.locationID]
		if !ok {
			continue
		}
		if locations[i].InternalPrefixes == nil {
			locations[i].InternalPrefixes = make(map[string]int64)
		}
		locations[i].InternalPrefixes[p.prefix] = p.typeID
	}
	return locations, nil
}

func (r *refRepo) trunks(ctx context.Context) ([]models.Trunk, error) {
	trunks, err := queryAll(ctx, r.db, "trunks",
		`SELECT id, location_id, name, no_prefix, no_pbx_prefix, celufijo FROM trunks ORDER BY id`,
		func(s scanner) (models.Trunk, error) {
			var t models.Trunk
			err := s.Scan(&t.ID, &t.LocationID, &t.Name, &t.NoPrefix, &t.NoPbxPrefix, &t.Celufijo)
			return t, err
		})
	if err != nil {
		return nil, err
	}

	rates, err := queryAll(ctx, r.db, "trunk rates",
		`SELECT trunk_id, telephony_type_id, operator_id, value, vat_included, seconds_billing, no_prefix
		 FROM trunk_rates ORDER BY trunk_id, telephony_type_id, operator_id`,
		func(s scanner) (models.TrunkRate, error) {
			var tr models.TrunkRate
			err := s.Scan(&tr.TrunkID, &tr.TelephonyTypeID, &tr.OperatorID, &tr.Value,
				&tr.VATIncluded, &tr.SecondsBilling, &tr.NoPrefix)
			return tr, err
		})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]int, len(trunks))
	for i, t := range trunks {
		byID[t.ID] = i
	}
	for _, rate := range rates {
		if i, ok := byID[rate.TrunkID]; ok {
			trunks[i].Rates = append(trunks[i].Rates, rate)
		}
	}
	return trunks, nil
}

// splitList splits a comma-separated column into its non-empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	items := splitList(s)
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing id list %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
