package notify

import (
	"fmt"
	"time"

	"courierval/internal"
)

type Message struct {
	Type        string       `json:"type"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  any    `json:"contentUrl"`
	Content     Card   `json:"content"`
}

type Card struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
}

// Element covers the three adaptive card elements the summary uses:
// TextBlock, Container and FactSet.
type Element struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Weight   string    `json:"weight,omitempty"`
	Size     string    `json:"size,omitempty"`
	IsSubtle bool      `json:"isSubtle,omitempty"`
	Wrap     bool      `json:"wrap,omitempty"`
	Spacing  string    `json:"spacing,omitempty"`
	Style    string    `json:"style,omitempty"`
	Items    []Element `json:"items,omitempty"`
	Facts    []Fact    `json:"facts,omitempty"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// BuildCard renders the run summary: a headline, the execution time, one fact
// per client and a totals line.
func BuildCard(entries []internal.NotificationEntry, at time.Time) Message {
	ok, divergent := 0, 0
	facts := make([]Fact, 0, len(entries))
	for _, e := range entries {
		if e.Status == internal.StatusOK {
			ok++
		} else {
			divergent++
		}
		facts = append(facts, FactFor(e))
	}

	style, headline := "good", "✅ Todas Validações OK"
	if divergent > 0 {
		style, headline = "attention", "⚠️ DIVERGÊNCIAS DETECTADAS"
	}

	return Message{
		Type: "message",
		Attachments: []Attachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: Card{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body: []Element{
					{Type: "TextBlock", Weight: "Bolder", Size: "Medium", Text: "📊 Validação Correios - " + headline},
					{Type: "TextBlock", IsSubtle: true, Wrap: true, Spacing: "None", Text: "**Execução:** " + at.Format("02/01/2006 15:04:05")},
					{Type: "Container", Style: style, Items: []Element{{Type: "FactSet", Facts: facts}}},
					{Type: "TextBlock", Wrap: true, Text: fmt.Sprintf(
						"**Total de clientes:** %d | **✅ OK:** %d | **❌ Divergências:** %d",
						len(entries), ok, divergent)},
				},
			},
		}},
	}
}

func FactFor(e internal.NotificationEntry) Fact {
	if e.Status != internal.StatusOK {
		return Fact{
			Title: "❌ " + e.ClientKey,
			Value: fmt.Sprintf("Email: %d | GA: %d ⚠️", e.DisplayValue, e.ObservedTotal),
		}
	}
	value := fmt.Sprintf("Email: %d | GA: %d", e.DisplayValue, e.ObservedTotal)
	if e.Method == internal.MethodSummed {
		value = fmt.Sprintf("Email: %d (SOMA corrigida) | GA: %d", e.DisplayValue, e.ObservedTotal)
	}
	return Fact{Title: "✅ " + e.ClientKey, Value: value}
}
