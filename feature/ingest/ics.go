package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"turnover-sync/core/reconcile"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	icsDateLayout     = "20060102"
	icsDateTimeLayout = "20060102T150405"
)

// ICSParser normalizes iCalendar feeds into reservation events.
type ICSParser struct {
	loc      *time.Location
	keywords []string
	horizon  int
}

// NewICSParser creates a parser converting timed values into loc.
func NewICSParser(loc *time.Location, cfg Config) *ICSParser {
	cfg = cfg.withDefaults()
	if loc == nil {
		loc = time.UTC
	}
	keywords := make([]string, 0, len(cfg.BlockKeywords))
	for _, kw := range cfg.BlockKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &ICSParser{loc: loc, keywords: keywords, horizon: cfg.HorizonDays}
}

// Parse reads every VEVENT of body. Events that cannot be normalized are
// returned as malformed and do not stop the rest of the calendar.
// today anchors the expansion window of recurring events.
func (p *ICSParser) Parse(feed Feed, body []byte, today time.Time) ([]reconcile.Event, []error, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, errors.New("empty calendar")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var (
		events    []reconcile.Event
		malformed []error
	)
	for _, ve := range cal.Events() {
		evs, err := p.vevent(feed, ve, today)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		for _, ev := range evs {
			if err := ev.Validate(); err != nil {
				malformed = append(malformed, err)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, malformed, nil
}

func (p *ICSParser) vevent(feed Feed, ve *ical.VEvent, today time.Time) ([]reconcile.Event, error) {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return nil, &reconcile.MalformedEventError{Field: "external_uid", Reason: "missing UID"}
	}
	// Cancelled entries are treated as absent; the removal tracker confirms it.
	if strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED") {
		return nil, nil
	}

	start, allDay, err := p.date(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		return nil, &reconcile.MalformedEventError{Field: "checkin", Reason: uid + ": " + err.Error()}
	}
	end, _, err := p.date(ve, ical.ComponentPropertyDtEnd)
	if err != nil {
		return nil, &reconcile.MalformedEventError{Field: "checkout", Reason: uid + ": " + err.Error()}
	}
	if end.IsZero() && allDay && !start.IsZero() {
		end = start.AddDate(0, 0, 1)
	}

	summary := propValue(ve, ical.ComponentPropertySummary)
	base := reconcile.Event{
		Source:      feed.ID,
		PropertyID:  feed.PropertyID,
		ExternalUID: uid,
		Checkin:     start,
		Checkout:    end,
		EntryType:   p.entryType(feed, summary),
		ServiceType: feed.DefaultServiceType,
		Raw:         map[string]string{"summary": summary},
	}

	raw := propValue(ve, ical.ComponentPropertyRrule)
	if raw == "" {
		return []reconcile.Event{base}, nil
	}
	if start.IsZero() || end.IsZero() {
		return []reconcile.Event{base}, nil
	}
	return p.expand(base, raw, p.exdates(ve), today)
}

// expand turns a recurring event into one event per occurrence inside the
// horizon. Each occurrence gets its own identifier so it reconciles on its own.
func (p *ICSParser) expand(base reconcile.Event, raw string, exdates []time.Time, today time.Time) ([]reconcile.Event, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, &reconcile.MalformedEventError{Field: "rrule", Reason: base.ExternalUID + ": " + err.Error()}
	}
	opt.Dtstart = base.Checkin
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, &reconcile.MalformedEventError{Field: "rrule", Reason: base.ExternalUID + ": " + err.Error()}
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	nights := reconcile.DaysBetween(base.Checkin, base.Checkout)
	from := reconcile.ToDate(today).AddDate(0, 0, -nights)
	to := reconcile.ToDate(today).AddDate(0, 0, p.horizon)

	var out []reconcile.Event
	for _, occ := range set.Between(from, to, true) {
		day := reconcile.ToDate(occ)
		ev := base
		ev.ExternalUID = base.ExternalUID + "_" + day.Format(icsDateLayout)
		ev.Checkin = day
		ev.Checkout = day.AddDate(0, 0, nights)
		out = append(out, ev)
	}
	return out, nil
}

// date reads a DTSTART or DTEND property as a calendar date in the parser's
// location. It reports whether the value was a bare date.
func (p *ICSParser) date(ve *ical.VEvent, prop ical.ComponentProperty) (time.Time, bool, error) {
	pr := ve.GetProperty(prop)
	if pr == nil || strings.TrimSpace(pr.Value) == "" {
		return time.Time{}, false, nil
	}
	v := strings.TrimSpace(pr.Value)

	if !strings.Contains(v, "T") {
		t, err := time.Parse(icsDateLayout, v)
		return t, true, err
	}

	_, hasTZ := pr.ICalParameters["TZID"]
	if !hasTZ && !strings.HasSuffix(v, "Z") {
		// Floating time: the property's own wall clock.
		t, err := time.ParseInLocation(icsDateTimeLayout, v, p.loc)
		if err != nil {
			return time.Time{}, false, err
		}
		return reconcile.ToDate(t), false, nil
	}

	var (
		t   time.Time
		err error
	)
	if prop == ical.ComponentPropertyDtStart {
		t, err = ve.GetStartAt()
	} else {
		t, err = ve.GetEndAt()
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return reconcile.ToDate(t.In(p.loc)), false, nil
}

func (p *ICSParser) exdates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, pr := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(pr.Value, ",") {
			part = strings.TrimSpace(part)
			var (
				t   time.Time
				err error
			)
			switch {
			case part == "":
				continue
			case !strings.Contains(part, "T"):
				t, err = time.Parse(icsDateLayout, part)
			case strings.HasSuffix(part, "Z"):
				t, err = time.Parse(icsDateTimeLayout+"Z", part)
				t = t.In(p.loc)
			default:
				t, err = time.ParseInLocation(icsDateTimeLayout, part, p.loc)
			}
			if err == nil {
				out = append(out, reconcile.ToDate(t))
			}
		}
	}
	return out
}

func (p *ICSParser) entryType(feed Feed, summary string) reconcile.EntryType {
	s := strings.ToLower(summary)
	for _, kw := range p.keywords {
		if strings.Contains(s, kw) {
			return reconcile.EntryBlock
		}
	}
	return feed.entryType()
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if pr := ve.GetProperty(prop); pr != nil {
		return strings.TrimSpace(pr.Value)
	}
	return ""
}
