package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a watermill handler printing a run's stream to w:
// text deltas as they arrive, tool progress as YAML, errors inline.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	lastText := ""

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventText:
			if isFirst && name != "" {
				isFirst = false
				if _, err = fmt.Fprintf(w, "\n%s: \n", name); err != nil {
					return err
				}
			}
			lastText = p_.Content
			if _, err = fmt.Fprintf(w, "%s", p_.Content); err != nil {
				return err
			}

		case *EventToolsStarted:
			if lastText != "" && !strings.HasSuffix(lastText, "\n") {
				if _, err = fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}
			lastText = ""
			v_, err := yaml.Marshal(map[string]interface{}{"tool_start": p_.Tools})
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintf(w, "%s", v_); err != nil {
				return err
			}

		case *EventToolCompleted:
			status := "ok"
			if !p_.Success {
				status = "failed"
			}
			if _, err = fmt.Fprintf(w, "  %s: %s\n", p_.Name, status); err != nil {
				return err
			}

		case *EventDone:
			if !strings.HasSuffix(lastText, "\n") {
				if _, err = fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}

		case *EventError:
			if _, err = fmt.Fprintf(w, "\n[error] %s\n", p_.Message); err != nil {
				return err
			}
		}

		return nil
	}
}
