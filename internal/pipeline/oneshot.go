package pipeline

import (
	"bytes"
	"io"
	"os"

	"courierval/internal"
)

type Analysis struct {
	Subject    string
	Qualifies  bool
	Variant    internal.ClientVariant
	ClientKey  string
	Totals     Totals
	Record     internal.EmailRecord
	Diagnostic internal.Diagnostic
	Recorded   bool
}

// AnalyzeInput reads a message from a file path, or stdin when input is "-",
// and runs the collect stage on it alone. Raw RFC 822 messages are parsed;
// anything else is treated as a plain body under the given subject.
func AnalyzeInput(input, subject string) (Analysis, error) {
	var blob []byte
	var err error
	if input == "-" {
		blob, err = io.ReadAll(os.Stdin)
	} else {
		blob, err = os.ReadFile(input)
	}
	if err != nil {
		return Analysis{}, err
	}
	return Analyze(blob, subject), nil
}

func Analyze(blob []byte, subject string) Analysis {
	msg := internal.InboxMessage{Subject: subject, Body: string(blob)}
	if looksLikeRFC822(blob) {
		if rawSubject, body, err := BodyFromRaw(blob); err == nil {
			msg.Body = body
			msg.Subject = firstNonEmpty(subject, rawSubject)
		}
	}

	totals := ExtractTotals(msg.Body)
	rec, diag, ok := BuildRecord(msg)
	return Analysis{
		Subject:    msg.Subject,
		Qualifies:  IsValidationRequest(msg.Subject),
		Variant:    ClassifyVariant(msg.Subject, msg.Body),
		ClientKey:  ResolveClientKey(msg.Subject, msg.Body),
		Totals:     totals,
		Record:     rec,
		Diagnostic: diag,
		Recorded:   ok,
	}
}

func looksLikeRFC822(blob []byte) bool {
	head := blob
	if len(head) > 2048 {
		head = head[:2048]
	}
	head = bytes.ToLower(head)
	return bytes.Contains(head, []byte("\nsubject:")) || bytes.HasPrefix(head, []byte("subject:")) ||
		bytes.HasPrefix(head, []byte("from:")) || bytes.HasPrefix(head, []byte("received:")) ||
		bytes.HasPrefix(head, []byte("return-path:")) || bytes.HasPrefix(head, []byte("mime-version:"))
}
