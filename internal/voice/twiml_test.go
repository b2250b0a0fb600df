package voice

import (
	"strings"
	"testing"
)

func TestPromptTwiML(t *testing.T) {
	t.Parallel()

	body, err := PromptTwiML([]string{"Losartan", "Metformin"})
	if err != nil {
		t.Fatalf("PromptTwiML failed: %v", err)
	}
	doc := string(body)

	for _, want := range []string{
		"<?xml",
		"<Response>",
		`numDigits="1"`,
		`timeout="10"`,
		"Losartan, Metformin",
		"Press 1",
		"Press 2",
		"Press 3",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("prompt twiml missing %q:\n%s", want, doc)
		}
	}
}

func TestPromptTwiMLWithoutNames(t *testing.T) {
	t.Parallel()

	body, err := PromptTwiML(nil)
	if err != nil {
		t.Fatalf("PromptTwiML failed: %v", err)
	}
	if !strings.Contains(string(body), "your medication") {
		t.Errorf("prompt without names should fall back to a generic phrase:\n%s", body)
	}
}

func TestFarewellTwiML(t *testing.T) {
	t.Parallel()

	body, err := FarewellTwiML("Goodbye!")
	if err != nil {
		t.Fatalf("FarewellTwiML failed: %v", err)
	}
	doc := string(body)
	if !strings.Contains(doc, "Goodbye!") {
		t.Errorf("farewell twiml missing message:\n%s", doc)
	}
	if !strings.Contains(doc, "<Hangup") {
		t.Errorf("farewell twiml must hang up:\n%s", doc)
	}
}

func TestTwiMLEscapesText(t *testing.T) {
	t.Parallel()

	body, err := FarewellTwiML(`Dose "A & B" <skipped>`)
	if err != nil {
		t.Fatalf("FarewellTwiML failed: %v", err)
	}
	doc := string(body)
	if strings.Contains(doc, "<skipped>") {
		t.Errorf("say text must be xml escaped:\n%s", doc)
	}
	if !strings.Contains(doc, "&amp;") {
		t.Errorf("ampersand must be escaped:\n%s", doc)
	}
}
