package domain

import (
	"fmt"
	"strings"
)

// Completion is a decoded LLM response. The concrete type is one of
// TextCompletion, ChoicesCompletion or UnknownCompletion.
type Completion interface {
	completion()
}

// TextCompletion carries a direct text field.
type TextCompletion struct {
	Text string
}

// Choice is one candidate answer. MessageContent is preferred over Text.
type Choice struct {
	MessageContent string
	Text           string
}

// ChoicesCompletion carries a list of candidate answers.
type ChoicesCompletion struct {
	Choices []Choice
}

// UnknownCompletion holds a response body whose shape was not recognized.
type UnknownCompletion struct {
	Raw string
}

func (TextCompletion) completion()    {}
func (ChoicesCompletion) completion() {}
func (UnknownCompletion) completion() {}

// RenderCompletion turns any completion into display text.
func RenderCompletion(c Completion) string {
	switch v := c.(type) {
	case TextCompletion:
		return v.Text
	case ChoicesCompletion:
		for _, choice := range v.Choices {
			if strings.TrimSpace(choice.MessageContent) != "" {
				return choice.MessageContent
			}
			if strings.TrimSpace(choice.Text) != "" {
				return choice.Text
			}
		}
		return ""
	case UnknownCompletion:
		if strings.TrimSpace(v.Raw) == "" {
			return ""
		}
		return fmt.Sprintf("unrecognized LLM response: %s", v.Raw)
	case nil:
		return ""
	default:
		return fmt.Sprintf("unsupported completion type %T", c)
	}
}
