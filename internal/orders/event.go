// Package orders holds the order event model and the pure selection
// logic behind the bot's read commands.
package orders

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EventType identifies what happened to an order.
type EventType string

const (
	EventOrderCreated      EventType = "ORDER_CREATED"
	EventStatusChanged     EventType = "STATUS_CHANGED"
	EventContainerArrived  EventType = "CONTAINER_ARRIVED"
	EventContainerDeparted EventType = "CONTAINER_DEPARTED"
	EventMissingPhoto      EventType = "MISSING_PHOTO"
	EventUpcomingDeadline  EventType = "UPCOMING_DEADLINE"
	EventOrderDeleted      EventType = "ORDER_DELETED"
)

// Order statuses along the China → Iran → Turkmenistan route.
const (
	StatusNew            = "New"
	StatusInProgressCHN  = "In Progress CHN"
	StatusInTransitCHNIR = "In Transit CHN-IR"
	StatusInProgressIR   = "In Progress IR"
	StatusInTransitIRTKM = "In Transit IR-TKM"
	StatusCompleted      = "Completed"
	StatusCancelled      = "Cancelled"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []string{
	StatusNew,
	StatusInProgressCHN,
	StatusInTransitCHNIR,
	StatusInProgressIR,
	StatusInTransitIRTKM,
	StatusCompleted,
	StatusCancelled,
}

// Event is one row of the sync log.
type Event struct {
	ID          int64
	OrderID     string
	OrderNumber string
	Type        EventType
	Data        EventData
	CreatedAt   time.Time
}

// Number returns the human order number, falling back to the order id.
func (e Event) Number() string {
	if e.OrderNumber != "" {
		return e.OrderNumber
	}
	return e.OrderID
}

// EventData is the decoded event payload. Unknown keys land in Extra.
type EventData struct {
	Client      string
	Containers  int
	Weight      float64
	Status      string
	Title       string
	Description string
	Extra       map[string]any
}

// ParseEventData decodes a payload leniently. It accepts a JSON object,
// a JSON string holding an object (double-encoded rows), and numbers
// sent as strings. Anything else yields empty data.
func ParseEventData(raw []byte) EventData {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return EventData{}
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return EventData{}
		}
		raw = []byte(strings.TrimSpace(inner))
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return EventData{}
	}

	d := EventData{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "client":
			d.Client = asString(v)
		case "containers":
			d.Containers = int(asFloat(v))
		case "weight":
			d.Weight = asFloat(v)
		case "status":
			d.Status = asString(v)
		case "title":
			d.Title = asString(v)
		case "description":
			d.Description = asString(v)
		default:
			d.Extra[k] = v
		}
	}
	return d
}

// Marshal encodes the payload back to the JSON object form.
func (d EventData) Marshal() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+6)
	for k, v := range d.Extra {
		m[k] = v
	}
	if d.Client != "" {
		m["client"] = d.Client
	}
	if d.Containers != 0 {
		m["containers"] = d.Containers
	}
	if d.Weight != 0 {
		m["weight"] = d.Weight
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if d.Title != "" {
		m["title"] = d.Title
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	return json.Marshal(m)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
