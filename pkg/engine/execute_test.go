package engine

import (
	"context"
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
)

func TestNormalizeDriver(t *testing.T) {
	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", -7200))

	got := normalizeDriver(local)
	assert.Equal(t, local.UTC(), got)

	n, ok := normalizeDriver(pgtype.Numeric{Int: big.NewInt(125), Exp: -1, Valid: true}).(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12.5", n.String())

	id := [16]byte{0x12, 0x34}
	assert.Equal(t, "12340000-0000-0000-0000-000000000000", normalizeDriver(id))

	assert.Equal(t, "10.0.0.1", normalizeDriver(netip.MustParsePrefix("10.0.0.1/32")))

	arr := normalizeDriver([]any{local, "x", int64(1)})
	assert.Equal(t, []any{local.UTC(), "x", int64(1)}, arr)

	assert.Equal(t, "plain", normalizeDriver("plain"))
	assert.Nil(t, normalizeDriver(nil))
}

func TestDDLPattern(t *testing.T) {
	for _, stmt := range []string{
		"CREATE TABLE x (a int)",
		"  alter table x add column b int",
		"DROP VIEW v",
		"comment on table x is 'y'",
		"TRUNCATE x",
	} {
		assert.True(t, ddlPattern.MatchString(stmt), stmt)
	}
	for _, stmt := range []string{
		"INSERT INTO created (a) VALUES (1)",
		"UPDATE x SET dropped = true",
		"SELECT 'CREATE' AS word",
	} {
		assert.False(t, ddlPattern.MatchString(stmt), stmt)
	}
}

func TestCheckParameters_AuditsRejection(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	e := New(nil, nil, nil, zap.New(core))

	require.NoError(t, e.checkParameters(context.Background(), "query", []any{"ACME", 42}))
	assert.Zero(t, recorded.Len())

	err := e.checkParameters(context.Background(), "query", []any{"ok", "' OR '1'='1"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	key, args, _ := apperrors.KeyOf(err)
	assert.Equal(t, apperrors.KeySuspiciousParameter, key)
	assert.Equal(t, 2, args[0])

	logs := recorded.FilterLoggerName("security_audit").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "query", logs[0].ContextMap()["operation"])
	assert.Equal(t, "2", logs[0].ContextMap()["param"])
}
