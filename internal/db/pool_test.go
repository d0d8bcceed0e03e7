package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		input     string
		want      pgx.Identifier
		sanitized string
		wantErr   bool
	}{
		{input: "segments", want: pgx.Identifier{"segments"}, sanitized: `"segments"`},
		{input: "traffic.segments", want: pgx.Identifier{"traffic", "segments"}, sanitized: `"traffic"."segments"`},
		{input: " _roads2 ", want: pgx.Identifier{"_roads2"}, sanitized: `"_roads2"`},
		{input: "", wantErr: true},
		{input: "a.b.c", wantErr: true},
		{input: "roads; DROP TABLE x", wantErr: true},
		{input: "2roads", wantErr: true},
		{input: "traffic.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTable(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.sanitized, got.Sanitize())
		})
	}
}

func TestConnect_BadConnString(t *testing.T) {
	_, err := Connect(context.Background(), "://not a dsn", PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: parse config")
}
