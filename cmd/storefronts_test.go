package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/impression-cli/internal/geo"
)

func TestReadStorefronts(t *testing.T) {
	in := "\ufeffStore_ID,Latitude,Longitude\n" +
		"s1,40.7484,-73.9857\n" +
		"\n" +
		",40.7,-74.0\n"

	got, err := readStorefronts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, geo.Location{Lat: 40.7484, Lon: -73.9857}, got[0].Location)
	assert.Equal(t, "row-2", got[1].ID)
}

func TestReadStorefronts_NoID(t *testing.T) {
	got, err := readStorefronts(strings.NewReader("lat,lon\n1,2\n3,4\n"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "row-1", got[0].ID)
	assert.Equal(t, 4.0, got[1].Location.Lon)
}

func TestReadStorefronts_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty input"},
		{"no lon column", "id,lat\na,1\n", "lat and lon"},
		{"bad number", "id,lat,lon\na,north,1\n", "line 2 lat"},
		{"missing value", "id,lat,lon\na,1\n", "line 2 lon"},
		{"out of range", "id,lat,lon\na,91,1\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readStorefronts(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadStorefrontsFile_Missing(t *testing.T) {
	_, err := readStorefrontsFile("/nonexistent/storefronts.csv")
	assert.Error(t, err)
}
