package kinds

import (
	"cmp"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/netip"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// FilePrefix marks a binary default loaded from disk.
const FilePrefix = "file:"

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05.999999"
	dateTimeLayout = "2006-01-02 15:04:05.999999"
)

var (
	telPattern   = regexp.MustCompile(`^\+?[0-9 ().\-]{3,32}$`)
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

func scalarKinds() []*Kind {
	return []*Kind{
		{
			Name:       Binary,
			sqlType:    fixed("bytea"),
			coerce:     coerceBytes,
			parse:      parseBytes,
			literal:    func(v any) string { return `'\x` + hex.EncodeToString(v.([]byte)) + `'::bytea` },
			fromDriver: coerceBytes,
			sliceOf:    sliceOf[[]byte],
		},
		{
			Name:    Boolean,
			sqlType: fixed("boolean"),
			coerce:  func(v any) (any, error) { return jsonutil.FlexibleBool(v) },
			literal: func(v any) string { return strings.ToUpper(strconv.FormatBool(v.(bool))) },
			sliceOf: sliceOf[bool],
		},
		textKind(Char, func(f models.TypeField) string { return fmt.Sprintf("char(%d)", lengthOr(f, 1)) }, nil),
		textKind(String, varchar(0), nil),
		textKind(Text, fixed("text"), nil),
		textKind(HTML, fixed("text"), nil),
		textKind(XML, fixed("text"), nil),
		textKind(Email, varchar(254), checkEmail),
		textKind(URL, varchar(2048), checkURL),
		textKind(Tel, varchar(32), checkPattern(telPattern)),
		textKind(Color, fixed("char(7)"), checkPattern(colorPattern)),
		textKind(TimeZone, varchar(64), checkTimeZone),
		{
			Name:    Password,
			sqlType: fixed("text"),
			coerce:  coerceString,
			literal: quoteString,
			sliceOf: sliceOf[string],
		},
		{
			Name:       JSON,
			sqlType:    fixed("jsonb"),
			coerce:     coerceJSON,
			fromDriver: normalizeJSON,
			literal:    func(v any) string { return pq.QuoteLiteral(string(v.(json.RawMessage))) + "::jsonb" },
			sliceOf:    sliceOf[json.RawMessage],
		},
		intKind(Int16, "smallint", math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) }),
		intKind(Int32, "integer", math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) }),
		intKind(Int64, "bigint", math.MinInt64, math.MaxInt64, func(n int64) any { return n }),
		{
			Name:    Float32,
			Ranged:  true,
			sqlType: fixed("real"),
			coerce: func(v any) (any, error) {
				f, err := jsonutil.FlexibleFloat64(v)
				return float32(f), err
			},
			fromDriver: func(v any) (any, error) {
				f, err := jsonutil.FlexibleFloat64(v)
				return float32(f), err
			},
			literal: func(v any) string { return strconv.FormatFloat(float64(v.(float32)), 'g', -1, 32) },
			compare: func(a, b any) int { return cmp.Compare(a.(float32), b.(float32)) },
			sliceOf: sliceOf[float32],
		},
		{
			Name:       Float64,
			Ranged:     true,
			sqlType:    fixed("double precision"),
			coerce:     func(v any) (any, error) { return jsonutil.FlexibleFloat64(v) },
			fromDriver: func(v any) (any, error) { return jsonutil.FlexibleFloat64(v) },
			literal:    func(v any) string { return strconv.FormatFloat(v.(float64), 'g', -1, 64) },
			compare:    func(a, b any) int { return cmp.Compare(a.(float64), b.(float64)) },
			sliceOf:    sliceOf[float64],
		},
		{
			Name:       Numeric,
			Ranged:     true,
			sqlType:    numericType,
			coerce:     coerceDecimal,
			toDriver:   func(v any) any { return decimalToNumeric(v.(decimal.Decimal)) },
			fromDriver: coerceDecimal,
			literal:    func(v any) string { return v.(decimal.Decimal).String() },
			compare:    func(a, b any) int { return a.(decimal.Decimal).Cmp(b.(decimal.Decimal)) },
			sliceOf:    sliceOfDriver(func(v any) pgtype.Numeric { return decimalToNumeric(v.(decimal.Decimal)) }),
		},
		{
			Name:       Date,
			Ranged:     true,
			sqlType:    fixed("date"),
			coerce:     coerceDate,
			parse:      withNow(coerceDate),
			fromDriver: coerceDate,
			literal:    func(v any) string { return "'" + v.(time.Time).Format(dateLayout) + "'::date" },
			compare:    compareTime,
			sliceOf:    sliceOf[time.Time],
		},
		{
			Name:       Time,
			Ranged:     true,
			sqlType:    fixed("time"),
			coerce:     coerceTimeOfDay,
			toDriver:   func(v any) any { return durationToTime(v.(time.Duration)) },
			fromDriver: coerceTimeOfDay,
			literal:    func(v any) string { return "'" + formatTimeOfDay(v.(time.Duration)) + "'::time" },
			compare:    func(a, b any) int { return cmp.Compare(a.(time.Duration), b.(time.Duration)) },
			sliceOf:    sliceOfDriver(func(v any) pgtype.Time { return durationToTime(v.(time.Duration)) }),
		},
		{
			Name:       DateTime,
			Ranged:     true,
			sqlType:    fixed("timestamp"),
			coerce:     coerceDateTime,
			parse:      withNow(coerceDateTime),
			fromDriver: coerceDateTime,
			literal:    func(v any) string { return "'" + v.(time.Time).Format(dateTimeLayout) + "'::timestamp" },
			compare:    compareTime,
			sliceOf:    sliceOf[time.Time],
		},
		{
			Name:       DateTimeTZ,
			Ranged:     true,
			sqlType:    fixed("timestamptz"),
			coerce:     coerceDateTimeTZ,
			parse:      withNow(coerceDateTimeTZ),
			fromDriver: coerceDateTimeTZ,
			literal:    func(v any) string { return "'" + v.(time.Time).Format(time.RFC3339Nano) + "'::timestamptz" },
			compare:    compareTime,
			sliceOf:    sliceOf[time.Time],
		},
		{
			Name:       UUID,
			sqlType:    fixed("uuid"),
			coerce:     coerceUUID,
			toDriver:   func(v any) any { return [16]byte(uuid.MustParse(v.(string))) },
			fromDriver: coerceUUID,
			literal:    func(v any) string { return quoteString(v) + "::uuid" },
			sliceOf:    sliceOfDriver(func(v any) [16]byte { return [16]byte(uuid.MustParse(v.(string))) }),
		},
		{
			Name:       Inet,
			sqlType:    fixed("inet"),
			coerce:     coerceInet,
			toDriver:   func(v any) any { return netip.MustParsePrefix(toPrefixText(v.(string))) },
			fromDriver: coerceInet,
			literal:    func(v any) string { return quoteString(v) + "::inet" },
			sliceOf:    sliceOfDriver(func(v any) netip.Prefix { return netip.MustParsePrefix(toPrefixText(v.(string))) }),
		},
	}
}

func fixed(sqlType string) func(models.TypeField) string {
	return func(models.TypeField) string { return sqlType }
}

func varchar(defaultLength int) func(models.TypeField) string {
	return func(f models.TypeField) string {
		if n := lengthOr(f, defaultLength); n > 0 {
			return fmt.Sprintf("varchar(%d)", n)
		}
		return "varchar"
	}
}

func lengthOr(f models.TypeField, n int) int {
	if f.Length != nil && *f.Length > 0 {
		return *f.Length
	}
	return n
}

func numericType(f models.TypeField) string {
	switch {
	case f.Precision != nil && f.Scale != nil:
		return fmt.Sprintf("numeric(%d,%d)", *f.Precision, *f.Scale)
	case f.Precision != nil:
		return fmt.Sprintf("numeric(%d)", *f.Precision)
	}
	return "numeric"
}

func textKind(name string, sqlType func(models.TypeField) string, check func(string) error) *Kind {
	coerce := coerceString
	if check != nil {
		coerce = func(v any) (any, error) {
			s, err := coerceString(v)
			if err != nil {
				return nil, err
			}
			return s, check(s.(string))
		}
	}
	return &Kind{
		Name:    name,
		Sized:   true,
		Text:    true,
		sqlType: sqlType,
		coerce:  coerce,
		literal: quoteString,
		sliceOf: sliceOf[string],
	}
}

func intKind(name, sqlType string, lo, hi int64, narrow func(int64) any) *Kind {
	coerce := func(v any) (any, error) {
		n, err := jsonutil.FlexibleInt64(v)
		if err != nil {
			return nil, err
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("%w: %d does not fit %s", ErrOutOfRange, n, name)
		}
		return narrow(n), nil
	}
	k := &Kind{
		Name:       name,
		Ranged:     true,
		sqlType:    fixed(sqlType),
		coerce:     coerce,
		fromDriver: coerce,
		literal:    func(v any) string { return fmt.Sprintf("%d", v) },
		compare: func(a, b any) int {
			x, _ := jsonutil.FlexibleInt64(a)
			y, _ := jsonutil.FlexibleInt64(b)
			return cmp.Compare(x, y)
		},
	}
	switch name {
	case Int16:
		k.sliceOf = sliceOf[int16]
	case Int32:
		k.sliceOf = sliceOf[int32]
	default:
		k.sliceOf = sliceOf[int64]
	}
	return k
}

func quoteString(v any) string {
	return pq.QuoteLiteral(v.(string))
}

func coerceString(v any) (any, error) {
	if s, ok := jsonutil.FlexibleString(v); ok {
		return s, nil
	}
	return nil, fmt.Errorf("cannot convert %T to text", v)
}

func checkEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("not an e-mail address")
	}
	return nil
}

func checkURL(s string) error {
	u, err := url.ParseRequestURI(s)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("not an absolute URL")
	}
	return nil
}

func checkPattern(re *regexp.Regexp) func(string) error {
	return func(s string) error {
		if !re.MatchString(s) {
			return fmt.Errorf("does not match %s", re.String())
		}
		return nil
	}
}

func checkTimeZone(s string) error {
	_, err := time.LoadLocation(s)
	return err
}

func coerceBytes(v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return base64.StdEncoding.DecodeString(v)
	}
	return nil, fmt.Errorf("cannot convert %T to bytes", v)
}

func parseBytes(s string) (any, error) {
	if path, ok := strings.CutPrefix(s, FilePrefix); ok {
		return os.ReadFile(path)
	}
	return base64.StdEncoding.DecodeString(s)
}

func coerceJSON(v any) (any, error) {
	switch v := v.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("malformed JSON")
		}
		return v, nil
	case []byte:
		return coerceJSON(json.RawMessage(v))
	case string:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v), nil
		}
	}
	return normalizeJSON(v)
}

// normalizeJSON marshals a decoded JSON value back to its text.
func normalizeJSON(v any) (any, error) {
	switch v := v.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return coerceJSON(json.RawMessage(v))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func coerceDecimal(v any) (any, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case pgtype.Numeric:
		if !v.Valid || v.NaN || v.InfinityModifier != pgtype.Finite {
			return nil, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromBigInt(v.Int, v.Exp), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}
	s, ok := jsonutil.FlexibleString(v)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to numeric", v)
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func parseTimeString(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}

func coerceDate(v any) (any, error) {
	var t time.Time
	switch v := v.(type) {
	case time.Time:
		t = v
	case string:
		var err error
		if t, err = parseTimeString(v, dateLayout, time.RFC3339Nano); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to date", v)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func coerceDateTime(v any) (any, error) {
	var t time.Time
	switch v := v.(type) {
	case time.Time:
		t = v
	case string:
		var err error
		if t, err = parseTimeString(v, time.RFC3339Nano, dateTimeLayout, "2006-01-02T15:04:05.999999", dateLayout); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to datetime", v)
	}
	// Wall clock is kept; the column carries no zone.
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC).Truncate(time.Microsecond), nil
}

func coerceDateTimeTZ(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Truncate(time.Microsecond), nil
	case string:
		t, err := parseTimeString(v, time.RFC3339Nano, "2006-01-02 15:04:05.999999Z07:00", dateTimeLayout, dateLayout)
		if err != nil {
			return nil, err
		}
		return t.UTC().Truncate(time.Microsecond), nil
	}
	return nil, fmt.Errorf("cannot convert %T to datetimetz", v)
}

func withNow(coerce func(any) (any, error)) func(string) (any, error) {
	return func(s string) (any, error) {
		if strings.EqualFold(s, "now") || strings.EqualFold(s, "today") {
			return coerce(time.Now())
		}
		return coerce(s)
	}
}

func compareTime(a, b any) int {
	return a.(time.Time).Compare(b.(time.Time))
}

const day = 24 * time.Hour

func coerceTimeOfDay(v any) (any, error) {
	switch v := v.(type) {
	case time.Duration:
		if v < 0 || v > day {
			return nil, fmt.Errorf("%w: %s is not a time of day", ErrOutOfRange, v)
		}
		return v.Truncate(time.Microsecond), nil
	case pgtype.Time:
		if !v.Valid {
			return nil, fmt.Errorf("invalid time")
		}
		return time.Duration(v.Microseconds) * time.Microsecond, nil
	case time.Time:
		h, m, s := v.Clock()
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second +
			time.Duration(v.Nanosecond()).Truncate(time.Microsecond), nil
	case string:
		t, err := parseTimeString(v, "15:04:05.999999", "15:04")
		if err != nil {
			return nil, err
		}
		return coerceTimeOfDay(t)
	case int64:
		return coerceTimeOfDay(time.Duration(v))
	}
	return nil, fmt.Errorf("cannot convert %T to time", v)
}

func durationToTime(d time.Duration) pgtype.Time {
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

func formatTimeOfDay(d time.Duration) string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format(timeLayout)
}

func coerceUUID(v any) (any, error) {
	switch v := v.(type) {
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case uuid.UUID:
		return v.String(), nil
	case []byte:
		u, err := uuid.FromBytes(v)
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		return u.String(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to uuid", v)
}

func coerceInet(v any) (any, error) {
	switch v := v.(type) {
	case netip.Prefix:
		if v.Bits() == v.Addr().BitLen() {
			return v.Addr().String(), nil
		}
		return v.String(), nil
	case netip.Addr:
		return v.String(), nil
	case string:
		s := strings.TrimSpace(v)
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, err
			}
			return coerceInet(p)
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, err
		}
		return a.String(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to inet", v)
}

func toPrefixText(s string) string {
	if strings.Contains(s, "/") {
		return s
	}
	a := netip.MustParseAddr(s)
	return netip.PrefixFrom(a, a.BitLen()).String()
}

// sliceOf builds a typed pointer slice so null elements survive encoding.
func sliceOf[T any](vals []any) any {
	out := make([]*T, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		t := v.(T)
		out[i] = &t
	}
	return out
}

func sliceOfDriver[T any](conv func(any) T) func([]any) any {
	return func(vals []any) any {
		out := make([]*T, len(vals))
		for i, v := range vals {
			if v == nil {
				continue
			}
			t := conv(v)
			out[i] = &t
		}
		return out
	}
}
