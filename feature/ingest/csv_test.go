package ingest

import (
	"testing"

	"turnover-sync/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csvFeed = Feed{ID: "pms-exports", Kind: KindCSV, Object: "pms/", DefaultServiceType: "Turnover"}

func TestCSVParser_Parse(t *testing.T) {
	body := "\xEF\xBB\xBFProperty ID,Reservation-ID,Check In,check_out,Type,Service\n" +
		"beach-house,R-100,2025-07-20,2025-07-25,Reservation,Deep Clean\n" +
		"cabin,R-200,07/28/2025,08/02/2025,block,\n" +
		" , , , , , \n" +
		"cabin,R-300,2025-08-10,2025-08-14,,\n"

	events, malformed, err := NewCSVParser().Parse(csvFeed, "pms/july.csv", []byte(body))
	require.NoError(t, err)
	assert.Empty(t, malformed)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "pms-exports", first.Source)
	assert.Equal(t, "beach-house", first.PropertyID)
	assert.Equal(t, "R-100", first.ExternalUID)
	assert.Equal(t, date("2025-07-20"), first.Checkin)
	assert.Equal(t, date("2025-07-25"), first.Checkout)
	assert.Equal(t, reconcile.EntryReservation, first.EntryType)
	assert.Equal(t, "Deep Clean", first.ServiceType)
	assert.Equal(t, map[string]string{"object": "pms/july.csv", "line": "2"}, first.Raw)

	assert.Equal(t, reconcile.EntryBlock, events[1].EntryType)
	assert.Equal(t, date("2025-07-28"), events[1].Checkin)
	assert.Equal(t, "Turnover", events[1].ServiceType, "Feed default service")
	assert.Equal(t, reconcile.EntryReservation, events[2].EntryType, "Feed default entry type")
}

func TestCSVParser_MalformedRows(t *testing.T) {
	body := "property_id,uid,checkin,checkout,entry_type\n" +
		"P,ok,2025-07-20,2025-07-25,\n" +
		"P,bad-date,2025-13-40,2025-07-25,\n" +
		"P,backwards,2025-07-25,2025-07-20,\n" +
		"P,odd-type,2025-07-20,2025-07-25,tentative\n" +
		",no-property,2025-07-20,2025-07-25,\n"

	events, malformed, err := NewCSVParser().Parse(csvFeed, "pms/bad.csv", []byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ExternalUID)

	require.Len(t, malformed, 4)
	fields := make([]string, 0, len(malformed))
	for _, m := range malformed {
		var me *reconcile.MalformedEventError
		require.ErrorAs(t, m, &me)
		fields = append(fields, me.Field)
	}
	assert.Equal(t, []string{"checkin", "checkout", "entry_type", "property_id"}, fields)
	assert.Contains(t, malformed[0].Error(), "pms/bad.csv line 3")
}

func TestCSVParser_PropertyFromFeed(t *testing.T) {
	feed := Feed{ID: "cabin-export", Kind: KindCSV, Object: "cabin.csv", PropertyID: "cabin"}
	body := "uid,checkin,checkout\nR-1,2025-07-20,2025-07-25\n"

	events, _, err := NewCSVParser().Parse(feed, "cabin.csv", []byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cabin", events[0].PropertyID)
}

func TestCSVParser_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Empty file", ""},
		{"Missing checkout column", "property_id,uid,checkin\nP,a,2025-07-20\n"},
		{"No property anywhere", "uid,checkin,checkout\na,2025-07-20,2025-07-25\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewCSVParser().Parse(csvFeed, "pms/x.csv", []byte(tt.body))
			assert.Error(t, err)
		})
	}
}
