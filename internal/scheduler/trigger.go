package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"sailboat/internal/model"

	"github.com/robfig/cron/v3"
)

// Trigger computes fire times for one armed schedule.
type Trigger interface {
	cron.Schedule
	Mode() model.TriggerMode
	String() string
}

var cronFieldParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type IntervalRule struct {
	Weeks   int `json:"weeks"`
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// maxInterval bounds interval rules so the period fits a time.Duration.
const maxInterval = 100 * 365 * 24 * time.Hour

// Period sums the rule's fields. A rule whose fields are all zero fires
// every second.
func (r IntervalRule) Period() (time.Duration, error) {
	fields := []struct {
		name string
		n    int
		unit time.Duration
	}{
		{"weeks", r.Weeks, 7 * 24 * time.Hour},
		{"days", r.Days, 24 * time.Hour},
		{"hours", r.Hours, time.Hour},
		{"minutes", r.Minutes, time.Minute},
		{"seconds", r.Seconds, time.Second},
	}

	var total time.Duration
	for _, f := range fields {
		if f.n < 0 {
			return 0, fmt.Errorf("%s must be non-negative", f.name)
		}
		if int64(f.n) > int64(maxInterval/f.unit) {
			return 0, fmt.Errorf("%s %d is out of range", f.name, f.n)
		}
		total += time.Duration(f.n) * f.unit
		if total > maxInterval {
			return 0, fmt.Errorf("interval period is longer than %s", maxInterval)
		}
	}
	if total == 0 {
		return time.Second, nil
	}
	return total, nil
}

// CronField holds one cron field. JSON integers are accepted as well as strings.
type CronField string

func (f *CronField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = CronField(strings.TrimSpace(s))
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("cron field must be a string or an integer, got %s", string(data))
	}
	*f = CronField(strconv.Itoa(n))
	return nil
}

type CronRule struct {
	Second    *CronField `json:"second"`
	Minute    *CronField `json:"minute"`
	Hour      *CronField `json:"hour"`
	Day       *CronField `json:"day"`
	Month     *CronField `json:"month"`
	DayOfWeek *CronField `json:"day_of_week"`
}

// Spec renders the rule as a six-field cron spec. Fields finer than the
// finest given field default to their minimum, coarser ones to "*".
// day_of_week is numbered from Monday (0 = mon) and is rewritten as an
// explicit list of cron weekday numbers.
func (r CronRule) Spec() (string, error) {
	fields := []struct {
		name  string
		value *CronField
		rank  int
		min   string
	}{
		{"second", r.Second, 0, "0"},
		{"minute", r.Minute, 1, "0"},
		{"hour", r.Hour, 2, "0"},
		{"day", r.Day, 3, "1"},
		{"month", r.Month, 4, "1"},
		{"day_of_week", r.DayOfWeek, 3, "*"},
	}

	finest := -1
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := validateCronField(f.name, string(*f.value)); err != nil {
			return "", err
		}
		if finest == -1 || f.rank < finest {
			finest = f.rank
		}
	}
	if finest == -1 {
		return "", fmt.Errorf("at least one of second, minute, hour, day, month, day_of_week is required")
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.value != nil && f.name == "day_of_week":
			days, err := weekdays(string(*f.value))
			if err != nil {
				return "", err
			}
			parts = append(parts, renderWeekdays(days))
		case f.value != nil:
			parts = append(parts, string(*f.value))
		case f.rank < finest:
			parts = append(parts, f.min)
		default:
			parts = append(parts, "*")
		}
	}
	return strings.Join(parts, " "), nil
}

func validateCronField(name, value string) error {
	if value == "" {
		return fmt.Errorf("field %s is empty", name)
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '*' || r == '-' || r == '/' || r == ',' || r == '?':
		default:
			return fmt.Errorf("field %s has invalid character %q", name, r)
		}
	}
	return nil
}

// weekdayNames lists day_of_week names by their rule number.
var weekdayNames = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// weekdays expands a day_of_week expression into the weekdays it matches.
// Terms are "*", "n", "a-b", any of those with "/step", and comma lists.
func weekdays(expr string) (map[time.Weekday]bool, error) {
	set := map[time.Weekday]bool{}
	for _, term := range strings.Split(strings.ToLower(expr), ",") {
		base, step, stepped := term, 1, false
		if b, s, ok := strings.Cut(term, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("day_of_week step %q is invalid", s)
			}
			base, step, stepped = b, n, true
		}

		first, last := 0, 6
		switch {
		case base == "*" || base == "?":
		case strings.Contains(base, "-"):
			lo, hi, _ := strings.Cut(base, "-")
			var err error
			if first, err = weekdayNumber(lo); err != nil {
				return nil, err
			}
			if last, err = weekdayNumber(hi); err != nil {
				return nil, err
			}
			if first > last {
				return nil, fmt.Errorf("day_of_week range %q runs backwards", base)
			}
		default:
			n, err := weekdayNumber(base)
			if err != nil {
				return nil, err
			}
			first = n
			if !stepped {
				last = n
			}
		}

		for d := first; d <= last; d += step {
			set[time.Weekday((d+1)%7)] = true
		}
	}
	return set, nil
}

func weekdayNumber(s string) (int, error) {
	for i, name := range weekdayNames {
		if s == name {
			return i, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("day_of_week value %q must be 0-6 or mon-sun", s)
	}
	return n, nil
}

// renderWeekdays writes days in cron numbering (0 = Sunday).
func renderWeekdays(days map[time.Weekday]bool) string {
	if len(days) == 7 {
		return "*"
	}
	nums := make([]int, 0, len(days))
	for d := range days {
		nums = append(nums, int(d))
	}
	sort.Ints(nums)
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.Itoa(n)
	}
	return strings.Join(out, ",")
}

type DateRule struct {
	RunDate string `json:"run_date"`
}

func (r DateRule) Time(loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.RunDate)
	if raw == "" {
		return time.Time{}, fmt.Errorf("run_date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("run_date %q is not a recognised timestamp", raw)
}

// ParseTrigger validates rule against mode and builds the trigger. anchor is
// the reference point of interval triggers; loc is used for cron and date rules.
func ParseTrigger(mode model.TriggerMode, rule []byte, anchor time.Time, loc *time.Location) (Trigger, error) {
	if loc == nil {
		loc = time.Local
	}
	switch mode {
	case model.TriggerModeInterval:
		var r IntervalRule
		if err := decodeRule(rule, &r); err != nil {
			return nil, invalid(mode, err)
		}
		every, err := r.Period()
		if err != nil {
			return nil, invalid(mode, err)
		}
		if anchor.IsZero() {
			anchor = time.Now()
		}
		return &intervalTrigger{anchor: anchor, every: every}, nil

	case model.TriggerModeCron:
		var r CronRule
		if err := decodeRule(rule, &r); err != nil {
			return nil, invalid(mode, err)
		}
		trigger, err := r.compile(loc)
		if err != nil {
			return nil, invalid(mode, err)
		}
		return trigger, nil

	case model.TriggerModeDate:
		var r DateRule
		if err := decodeRule(rule, &r); err != nil {
			return nil, invalid(mode, err)
		}
		at, err := r.Time(loc)
		if err != nil {
			return nil, invalid(mode, err)
		}
		return &dateTrigger{at: at}, nil
	}
	return nil, fmt.Errorf("%w: unknown trigger mode %q", ErrInvalidTrigger, mode)
}

// compile parses the rule into a schedule. When both day and day_of_week
// are restricted a fire time must match both of them.
func (r CronRule) compile(loc *time.Location) (*cronTrigger, error) {
	spec, err := r.Spec()
	if err != nil {
		return nil, err
	}
	parts := strings.Fields(spec)
	both := parts[3] != "*" && parts[3] != "?" && parts[5] != "*"
	if both {
		parts[5] = "*"
	}
	sched, err := cronFieldParser.Parse(strings.Join(parts, " "))
	if err != nil {
		return nil, err
	}
	if s, ok := sched.(*cron.SpecSchedule); ok {
		s.Location = loc
	}
	if !both {
		return &cronTrigger{spec: spec, sched: sched}, nil
	}
	days, err := weekdays(string(*r.DayOfWeek))
	if err != nil {
		return nil, err
	}
	return &cronTrigger{spec: spec, sched: &dayAndWeekday{days: sched, weekdays: days, loc: loc}}, nil
}

func invalid(mode model.TriggerMode, err error) error {
	return fmt.Errorf("%w: %s rule: %v", ErrInvalidTrigger, mode, err)
}

func decodeRule(rule []byte, dst interface{}) error {
	trimmed := bytes.TrimSpace(rule)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("rule must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after rule object")
	}
	return nil
}

type dateTrigger struct {
	at time.Time
}

func (t *dateTrigger) Next(now time.Time) time.Time {
	if now.Before(t.at) {
		return t.at
	}
	return time.Time{}
}

func (t *dateTrigger) Mode() model.TriggerMode { return model.TriggerModeDate }

func (t *dateTrigger) String() string { return "date[" + t.at.Format(time.RFC3339) + "]" }

// RunAt is the single fire time of the trigger.
func (t *dateTrigger) RunAt() time.Time { return t.at }

// intervalTrigger fires at anchor + k*every for k >= 1.
type intervalTrigger struct {
	anchor time.Time
	every  time.Duration
}

func (t *intervalTrigger) Next(now time.Time) time.Time {
	if now.Before(t.anchor) {
		return t.anchor.Add(t.every)
	}
	k := now.Sub(t.anchor)/t.every + 1
	return t.anchor.Add(k * t.every)
}

func (t *intervalTrigger) Mode() model.TriggerMode { return model.TriggerModeInterval }

func (t *intervalTrigger) String() string { return "interval[" + t.every.String() + "]" }

// dayAndWeekday narrows a day-of-month schedule to the given weekdays.
type dayAndWeekday struct {
	days     cron.Schedule
	weekdays map[time.Weekday]bool
	loc      *time.Location
}

func (s *dayAndWeekday) Next(t time.Time) time.Time {
	limit := t.AddDate(5, 0, 0)
	for {
		next := s.days.Next(t)
		if next.IsZero() || next.After(limit) {
			return time.Time{}
		}
		local := next.In(s.loc)
		if s.weekdays[local.Weekday()] {
			return next
		}
		y, m, d := local.Date()
		t = time.Date(y, m, d+1, 0, 0, 0, 0, s.loc).Add(-time.Second)
	}
}

type cronTrigger struct {
	spec  string
	sched cron.Schedule
}

func (t *cronTrigger) Next(now time.Time) time.Time { return t.sched.Next(now) }

func (t *cronTrigger) Mode() model.TriggerMode { return model.TriggerModeCron }

func (t *cronTrigger) String() string { return "cron[" + t.spec + "]" }
