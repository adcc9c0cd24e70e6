package mssql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func TestFromMap(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		want    *Config
		wantErr string
	}{
		{
			name:   "sql auth with defaults",
			config: map[string]any{"host": "db", "database": "app", "user": "sa", "password": "pw"},
			want: &Config{Host: "db", Port: 1433, Database: "app", AuthMethod: "sql", Username: "sa", Password: "pw",
				Encrypt: true, ConnectionTimeout: 30},
		},
		{
			name: "service principal detected from client id",
			config: map[string]any{"host": "db", "port": float64(1444), "database": "app", "encrypt": "false",
				"tenant_id": "t", "client_id": "c", "client_secret": "s"},
			want: &Config{Host: "db", Port: 1444, Database: "app", AuthMethod: "service_principal",
				TenantID: "t", ClientID: "c", ClientSecret: "s", ConnectionTimeout: 30},
		},
		{name: "missing host", config: map[string]any{"database": "app"}, wantErr: "host is required"},
		{name: "missing user", config: map[string]any{"host": "db", "database": "app"}, wantErr: "user is required"},
		{name: "unknown auth", config: map[string]any{"host": "db", "database": "app", "auth_method": "kerberos"}, wantErr: "invalid auth method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromMap(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := &Config{Host: "db", Port: 1433, Database: "app", AuthMethod: "sql", Username: "sa", Password: "p@ss", ConnectionTimeout: 5}
	assert.Equal(t, "sqlserver", cfg.driverName())
	assert.Equal(t, "sqlserver://sa:p%40ss@db:1433?connection+timeout=5&database=app&encrypt=false", cfg.connectionString())

	sp := &Config{Host: "db", Port: 1433, Database: "app", AuthMethod: "service_principal", TenantID: "t", ClientID: "c", ClientSecret: "s"}
	assert.Equal(t, "azuresql", sp.driverName())
	assert.Contains(t, sp.connectionString(), "fedauth=ActiveDirectoryServicePrincipal")
}

func TestConvertParams(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = @p1 AND b = @p12", convertParams("SELECT * FROM t WHERE a = $1 AND b = $12"))
	assert.Equal(t, "SELECT 1", convertParams("SELECT 1"))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "abc", normalizeValue("NVARCHAR", []byte("abc")))
	assert.Equal(t, []byte{1, 2}, normalizeValue("VARBINARY", []byte{1, 2}))

	d, ok := normalizeValue("DECIMAL", []byte("12.50")).(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12.5", d.String())

	local := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, local.UTC(), normalizeValue("DATETIMEOFFSET", local))
	assert.Equal(t, int64(7), normalizeValue("BIGINT", int64(7)))
}

func TestNode_DeclinesTypeOperations(t *testing.T) {
	n := New(nil, nil)
	ctx := context.Background()

	_, err := n.Insert(ctx, models.NewObject("invoice", "i1"))
	assert.ErrorIs(t, err, apperrors.ErrNotImplemented)
	_, err = n.Select(ctx, "invoice", models.Query{})
	assert.ErrorIs(t, err, apperrors.ErrNotImplemented)
	_, err = n.CreateType(ctx, models.NewType("invoice"))
	assert.ErrorIs(t, err, apperrors.ErrNotImplemented)
	_, err = n.ImportObjects(ctx, models.NewSliceObjectStream(), models.ObjectAbort)
	assert.ErrorIs(t, err, apperrors.ErrNotImplemented)
}

func TestNode_RejectsSuspiciousParameters(t *testing.T) {
	n := New(nil, nil)

	_, err := n.Execute(context.Background(), "UPDATE t SET a = $1", "x' OR 1=1 --")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
