package events

import (
	"fmt"
	"strings"
)

type Summary struct {
	ErrorCount int

	Errors []Event

	Full []Event
}

func (s Summary) String() string {
	lines := make([]string, len(s.Errors))
	for i, ev := range s.Errors {
		label := ev.Kind.String()
		if ev.Cell != "" {
			label = ev.Cell + " " + label
		}
		if ev.Error != nil {
			lines[i] = fmt.Sprintf("- %s: %s (%s)", label, ev.Message, ev.Error.Error())
		} else {
			lines[i] = fmt.Sprintf("- %s: %s", label, ev.Message)
		}
	}

	return fmt.Sprintf("Errors (%d):\n%s", s.ErrorCount, strings.Join(lines, "\n"))
}
