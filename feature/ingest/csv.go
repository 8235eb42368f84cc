package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"turnover-sync/core/reconcile"
)

// Canonical CSV columns.
const (
	colProperty    = "property_id"
	colUID         = "uid"
	colCheckin     = "checkin"
	colCheckout    = "checkout"
	colEntryType   = "entry_type"
	colServiceType = "service_type"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var headerAliases = map[string]string{
	"property_id":    colProperty,
	"property":       colProperty,
	"listing_id":     colProperty,
	"uid":            colUID,
	"reservation_id": colUID,
	"confirmation":   colUID,
	"checkin":        colCheckin,
	"check_in":       colCheckin,
	"arrival":        colCheckin,
	"checkout":       colCheckout,
	"check_out":      colCheckout,
	"departure":      colCheckout,
	"type":           colEntryType,
	"entry_type":     colEntryType,
	"service_type":   colServiceType,
	"service":        colServiceType,
}

// CSVParser normalizes reservation exports into events.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads one export. Rows that cannot be normalized are returned as
// malformed; the rest of the file is still read.
func (p *CSVParser) Parse(feed Feed, object string, body []byte) ([]reconcile.Event, []error, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: empty export", object)
		}
		return nil, nil, fmt.Errorf("%s: failed to read header: %w", object, err)
	}

	cols := make(map[string]int)
	for i, name := range header {
		if canonical, ok := headerAliases[normalizeHeader(name)]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	for _, required := range []string{colUID, colCheckin, colCheckout} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("%s: missing %s column", object, required)
		}
	}
	if _, ok := cols[colProperty]; !ok && feed.PropertyID == "" {
		return nil, nil, fmt.Errorf("%s: missing %s column and the feed has no property", object, colProperty)
	}

	var (
		events    []reconcile.Event
		malformed []error
	)
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			malformed = append(malformed, &reconcile.MalformedEventError{
				Field:  "row",
				Reason: fmt.Sprintf("%s line %d: %v", object, line, err),
			})
			continue
		}
		if blankRow(record) {
			continue
		}

		ev, err := p.row(feed, object, line, cols, record)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		events = append(events, ev)
	}
	return events, malformed, nil
}

func (p *CSVParser) row(feed Feed, object string, line int, cols map[string]int, record []string) (reconcile.Event, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	bad := func(field, reason string) error {
		return &reconcile.MalformedEventError{Field: field, Reason: fmt.Sprintf("%s line %d: %s", object, line, reason)}
	}

	ev := reconcile.Event{
		Source:      feed.ID,
		PropertyID:  get(colProperty),
		ExternalUID: get(colUID),
		EntryType:   feed.entryType(),
		ServiceType: get(colServiceType),
		Raw:         map[string]string{"object": object, "line": fmt.Sprint(line)},
	}
	if ev.PropertyID == "" {
		ev.PropertyID = feed.PropertyID
	}
	if ev.ServiceType == "" {
		ev.ServiceType = feed.DefaultServiceType
	}

	if raw := get(colEntryType); raw != "" {
		et, ok := reconcile.ParseEntryType(raw)
		if !ok {
			return ev, bad("entry_type", "unknown value "+raw)
		}
		ev.EntryType = et
	}

	var err error
	if ev.Checkin, err = reconcile.ParseDate(get(colCheckin)); err != nil {
		return ev, bad("checkin", err.Error())
	}
	if ev.Checkout, err = reconcile.ParseDate(get(colCheckout)); err != nil {
		return ev, bad("checkout", err.Error())
	}

	if err := ev.Validate(); err != nil {
		var me *reconcile.MalformedEventError
		if errors.As(err, &me) {
			return ev, bad(me.Field, me.Reason)
		}
		return ev, err
	}
	return ev, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return name
}

func blankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
