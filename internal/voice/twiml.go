package voice

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// TwiML document types for the voice webhook responses. Only the verbs the
// bot actually speaks are modeled.
type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Gather  *twimlGather `xml:"Gather,omitempty"`
	Say     []twimlSay   `xml:"Say,omitempty"`
	Hangup  *struct{}    `xml:"Hangup,omitempty"`
}

type twimlGather struct {
	NumDigits int        `xml:"numDigits,attr"`
	Timeout   int        `xml:"timeout,attr"`
	Say       []twimlSay `xml:"Say"`
}

type twimlSay struct {
	Language string `xml:"language,attr,omitempty"`
	Voice    string `xml:"voice,attr,omitempty"`
	Text     string `xml:",chardata"`
}

const sayLanguage = "en-US"

// PromptTwiML renders the call greeting: announce the due medications and
// gather one DTMF digit (1 take all, 2 snooze, 3 skip).
func PromptTwiML(medicationNames []string) ([]byte, error) {
	med := "your medication"
	if len(medicationNames) > 0 {
		med = strings.Join(medicationNames, ", ")
	}

	doc := twimlResponse{
		Gather: &twimlGather{
			NumDigits: 1,
			Timeout:   10,
			Say: []twimlSay{{
				Language: sayLanguage,
				Text: fmt.Sprintf(
					"Hello! This is your medication reminder. It is time to take %s. "+
						"Press 1 if you already took it. Press 2 to be reminded later. Press 3 to skip this dose.",
					med),
			}},
		},
		// Spoken only when no digit arrives before the timeout.
		Say: []twimlSay{{Language: sayLanguage, Text: "No answer received. I will call again later. Goodbye!"}},
	}
	return marshalTwiML(doc)
}

// FarewellTwiML renders a closing message followed by hangup.
func FarewellTwiML(text string) ([]byte, error) {
	doc := twimlResponse{
		Say:    []twimlSay{{Language: sayLanguage, Text: text}},
		Hangup: &struct{}{},
	}
	return marshalTwiML(doc)
}

func marshalTwiML(doc twimlResponse) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
