package form

import (
	"time"

	"evdialog/internal/timeutil"
)

// PeriodType is the unit of a reminder period.
type PeriodType string

const (
	PeriodMinute PeriodType = "Minute"
	PeriodHour   PeriodType = "Hour"
	PeriodDay    PeriodType = "Day"
	PeriodWeek   PeriodType = "Week"
)

// PeriodTypes lists the units in display order.
var PeriodTypes = []PeriodType{PeriodMinute, PeriodHour, PeriodDay, PeriodWeek}

// Millis returns the length of one unit in milliseconds, or 0 for an unknown unit.
func (p PeriodType) Millis() int64 {
	switch p {
	case PeriodMinute:
		return 60 * 1000
	case PeriodHour:
		return 60 * 60 * 1000
	case PeriodDay:
		return 24 * 60 * 60 * 1000
	case PeriodWeek:
		return 7 * 24 * 60 * 60 * 1000
	}
	return 0
}

// Valid reports whether p is one of the known units.
func (p PeriodType) Valid() bool {
	return p.Millis() > 0
}

// SentinelUserID marks a reminder row whose recipient has not been chosen yet.
// Such rows are dropped on submit.
const SentinelUserID = "none"

// NotificationItem is one editable reminder row: notify UserID Period
// PeriodType-units before the event starts. Period stays textual because it is
// bound to a free-form input.
type NotificationItem struct {
	UserID     string     `json:"userId"`
	Period     string     `json:"period"`
	PeriodType PeriodType `json:"periodType"`
}

// newNotificationItem is the row appended by the "add" action.
func newNotificationItem() NotificationItem {
	return NotificationItem{UserID: SentinelUserID, Period: "1", PeriodType: PeriodHour}
}

// NotificationFromMillis converts a persisted notify-before duration into a row
// using the largest unit that divides it exactly.
func NotificationFromMillis(userID string, ms int64) NotificationItem {
	v, unit := timeutil.SplitDuration(ms)
	pt := PeriodMinute
	switch unit {
	case timeutil.Week:
		pt = PeriodWeek
	case 24 * time.Hour:
		pt = PeriodDay
	case time.Hour:
		pt = PeriodHour
	}
	return NotificationItem{UserID: userID, Period: formatInt(v), PeriodType: pt}
}

// Notifications is the ordered reminder list. Order is display order and is
// what index-addressed actions refer to.
type Notifications []NotificationItem

func (n Notifications) clone() Notifications {
	if n == nil {
		return Notifications{}
	}
	out := make(Notifications, len(n))
	copy(out, n)
	return out
}

func (n Notifications) inBounds(i int) bool {
	return i >= 0 && i < len(n)
}

// appended returns a copy with a fresh unset row at the end.
func (n Notifications) appended() Notifications {
	return append(n.clone(), newNotificationItem())
}

// without returns a copy with row i removed; out-of-range indexes return an
// unchanged copy.
func (n Notifications) without(i int) Notifications {
	if !n.inBounds(i) {
		return n.clone()
	}
	out := make(Notifications, 0, len(n)-1)
	out = append(out, n[:i]...)
	return append(out, n[i+1:]...)
}

// edited returns a copy with one attribute of row i replaced.
func (n Notifications) edited(i int, op NotificationOp, value string) Notifications {
	out := n.clone()
	if !out.inBounds(i) {
		return out
	}
	switch op {
	case OpPeriod:
		out[i].Period = value
	case OpPeriodType:
		pt := PeriodType(value)
		if !pt.Valid() {
			return out
		}
		out[i].PeriodType = pt
	case OpUserID:
		out[i].UserID = value
	}
	return out
}
