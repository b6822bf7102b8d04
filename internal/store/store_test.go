package store

import (
	"context"
	"testing"

	"github.com/JonMunkholm/palletload/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		url     string
		want    Driver
		wantErr bool
	}{
		{url: "postgres://localhost/parcels", want: DriverPostgres},
		{url: "postgresql://localhost/parcels", want: DriverPostgres},
		{url: "sqlite::memory:", want: DriverSQLite},
		{url: "file:parcels.db?_pragma=busy_timeout(5000)", want: DriverSQLite},
		{url: "mysql://localhost/parcels", wantErr: true},
		{url: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DriverFor(tt.url)
		if tt.wantErr {
			require.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		require.Equal(t, tt.want, got, tt.url)
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{URL: "sqlite::memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InitSchema(ctx))
	parcels, err := s.ListParcels(ctx)
	require.NoError(t, err)
	require.Empty(t, parcels)
}
