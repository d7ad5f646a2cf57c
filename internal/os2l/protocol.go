package os2l

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Decode parses a single framed message text into a typed Message. The text
// is treated as a flat key/value object whose mandatory evt field selects
// the variant. Field values are coerced where the sender is sloppy about
// types (numeric strings are accepted for numbers).
//
// Any parse or validation failure is returned as an error; callers are
// expected to log it and drop the message, never to abort the stream.
func Decode(text string) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, errors.Wrap(err, "malformed message")
	}

	evtRaw, ok := fields["evt"]
	if !ok {
		return nil, ErrMissingEvent
	}
	var evt string
	if err := json.Unmarshal(evtRaw, &evt); err != nil {
		return nil, errors.Wrap(err, "malformed evt field")
	}

	var msg Message
	switch evt {
	case "beat":
		pos, err := intField(fields, "pos", true, 0)
		if err != nil {
			return nil, err
		}
		bpm, err := floatField(fields, "bpm", true, 0)
		if err != nil {
			return nil, err
		}
		strength, err := floatField(fields, "strength", false, 100)
		if err != nil {
			return nil, err
		}
		change, err := boolField(fields, "change", false)
		if err != nil {
			return nil, err
		}
		msg = Beat{Pos: pos, BPM: bpm, Strength: strength, Change: change}

	case "btn":
		name, err := stringField(fields, "name", true)
		if err != nil {
			return nil, err
		}
		state, err := stringField(fields, "state", true)
		if err != nil {
			return nil, err
		}
		page, err := stringField(fields, "page", false)
		if err != nil {
			return nil, err
		}
		msg = Button{Name: name, State: state, Page: page}

	case "cmd":
		id, err := intField(fields, "id", true, 0)
		if err != nil {
			return nil, err
		}
		param, err := floatField(fields, "param", true, 0)
		if err != nil {
			return nil, err
		}
		msg = Command{ID: id, Param: param}

	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", evt)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeFeedback serializes a feedback message with deterministic field
// order {evt, name, state, page?}. The page field is omitted when empty.
// The result carries no trailing framing; the connection appends the record
// separator when writing. An invalid message is a programming error and is
// returned to the caller rather than silently dropped.
func EncodeFeedback(m Feedback) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	// Field order on the wire follows struct order.
	wire := struct {
		Evt   string `json:"evt"`
		Name  string `json:"name"`
		State string `json:"state"`
		Page  string `json:"page,omitempty"`
	}{
		Evt:   m.Event(),
		Name:  m.Name,
		State: m.State,
		Page:  m.Page,
	}

	out, err := json.Marshal(wire)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode feedback")
	}
	return string(out), nil
}

func floatField(fields map[string]json.RawMessage, key string, required bool, def float64) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		if required {
			return 0, errors.Errorf("missing %q field", key)
		}
		return def, nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "malformed %q field", key)
		}
		return f, nil
	}
	return 0, errors.Errorf("malformed %q field: %s", key, raw)
}

func intField(fields map[string]json.RawMessage, key string, required bool, def int) (int, error) {
	f, err := floatField(fields, key, required, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func stringField(fields map[string]json.RawMessage, key string, required bool) (string, error) {
	raw, ok := fields[key]
	if !ok {
		if required {
			return "", errors.Errorf("missing %q field", key)
		}
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Tolerate bare scalars for senders that skip quoting.
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '[' {
			return string(trimmed), nil
		}
		return "", errors.Wrapf(err, "malformed %q field", key)
	}
	return s, nil
}

func boolField(fields map[string]json.RawMessage, key string, def bool) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return def, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, errors.Wrapf(err, "malformed %q field", key)
		}
		return b, nil
	}
	return false, errors.Errorf("malformed %q field: %s", key, raw)
}
