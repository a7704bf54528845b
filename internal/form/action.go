package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is a single edit of the draft. The set of implementations is closed;
// Reduce switches over every one of them.
type Action interface {
	// Kind is a short stable label, used for metrics and logs.
	Kind() string
	action()
}

// Reset reinstates the initial snapshot.
type Reset struct{}

// SetField assigns Value to Field. Start date and start time cascade to the
// end of the event; every other field is assigned as-is.
type SetField struct {
	Field Field
	Value string
}

// SetStartTime moves the start time and shifts the end time by the same amount.
type SetStartTime struct{ Value string }

// SetStartDate moves the start date and shifts the end date by the same
// number of days.
type SetStartDate struct{ Value string }

// AddNotification appends an unset reminder row. Index is carried for
// symmetry with the other row actions but is not used: rows are always
// appended.
type AddNotification struct{ Index int }

// RemoveNotification deletes the row at Index.
type RemoveNotification struct{ Index int }

// NotificationOp names the row attribute an EditNotification replaces.
type NotificationOp string

const (
	OpPeriod     NotificationOp = "period"
	OpPeriodType NotificationOp = "periodType"
	OpUserID     NotificationOp = "userId"
)

// EditNotification replaces one attribute of the row at Index.
type EditNotification struct {
	Index int
	Op    NotificationOp
	Value string
}

func (Reset) Kind() string              { return "reset" }
func (a SetField) Kind() string         { return "set:" + string(a.Field) }
func (SetStartTime) Kind() string       { return "startTime" }
func (SetStartDate) Kind() string       { return "startDate" }
func (AddNotification) Kind() string    { return "notification:add" }
func (RemoveNotification) Kind() string { return "notification:remove" }
func (a EditNotification) Kind() string { return "notification:" + string(a.Op) }

func (Reset) action()              {}
func (SetField) action()           {}
func (SetStartTime) action()       {}
func (SetStartDate) action()       {}
func (AddNotification) action()    {}
func (RemoveNotification) action() {}
func (EditNotification) action()   {}

// ErrUnknownAction is returned by ParseAction for names it cannot map.
var ErrUnknownAction = errors.New("form: unknown action")

const notificationPrefix = "notification:"

// ParseAction maps the textual action names used by the web client
// ("reset", "title", "startTime", "notification:<index>:<op>", ...) onto an
// Action.
func ParseAction(field, value string) (Action, error) {
	if field == "reset" {
		return Reset{}, nil
	}

	if strings.HasPrefix(field, notificationPrefix) {
		parts := strings.Split(strings.TrimPrefix(field, notificationPrefix), ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, field)
		}
		idx, idxErr := strconv.Atoi(parts[0])
		switch op := parts[1]; op {
		case "add":
			return AddNotification{Index: idx}, nil
		case "remove", string(OpPeriod), string(OpPeriodType), string(OpUserID):
			if idxErr != nil {
				return nil, fmt.Errorf("%w: bad index in %q", ErrUnknownAction, field)
			}
			if op == "remove" {
				return RemoveNotification{Index: idx}, nil
			}
			return EditNotification{Index: idx, Op: NotificationOp(op), Value: value}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, field)
		}
	}

	f := Field(field)
	switch {
	case f == FieldStartTime:
		return SetStartTime{Value: value}, nil
	case f == FieldStartDate:
		return SetStartDate{Value: value}, nil
	case f.valid():
		return SetField{Field: f, Value: value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, field)
}
