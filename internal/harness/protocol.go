package harness

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Protocol string

const (
	ProtocolText Protocol = "text"
	ProtocolJSON Protocol = "json"
)

func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(s))); p {
	case ProtocolText, ProtocolJSON:
		return p, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

type eventKind int

const (
	eventNone eventKind = iota
	eventStart
	eventPass
	eventFail
	eventSkip
	eventFinish
)

// event is one decoded output line. Test and Class are set only when the
// producer named the test explicitly.
type event struct {
	kind    eventKind
	test    string
	class   string
	message string
	line    string
}

type decoder interface {
	decode(line string) event
}

func newDecoder(p Protocol) decoder {
	if p == ProtocolJSON {
		return jsonDecoder{}
	}

	return textDecoder{}
}

// textDecoder reads the console output of a test runner. The checks are
// ordered: a line carrying both markers counts as a pass.
type textDecoder struct{}

func (textDecoder) decode(line string) event {
	switch {
	case strings.Contains(line, markerPass):
		return event{kind: eventPass, line: line}
	case strings.Contains(line, markerFail):
		return event{kind: eventFail, line: line, message: "test failed: " + strings.TrimSpace(line)}
	case strings.Contains(line, "Starting:"):
		return event{kind: eventStart, line: line}
	case strings.Contains(line, "Finished:"):
		return event{kind: eventFinish, line: line}
	default:
		return event{line: line}
	}
}

type jsonEvent struct {
	Event   string `json:"event"`
	Test    string `json:"test"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

// jsonDecoder reads one object per line. Lines that are not objects are ignored.
type jsonDecoder struct{}

func (jsonDecoder) decode(line string) event {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return event{line: line}
	}

	var row jsonEvent
	if err := json.Unmarshal([]byte(trimmed), &row); err != nil {
		return event{line: line}
	}

	ev := event{test: row.Test, class: row.Class, message: row.Message, line: line}

	switch strings.ToLower(row.Event) {
	case "start":
		ev.kind = eventStart
	case "pass":
		ev.kind = eventPass
	case "fail":
		ev.kind = eventFail
		if ev.message == "" {
			ev.message = "test failed"
		}
	case "skip":
		ev.kind = eventSkip
	case "finish":
		ev.kind = eventFinish
	}

	return ev
}
