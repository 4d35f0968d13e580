package inbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is an inbound email reduced to what the processor needs.
type Message struct {
	From        string
	Subject     string
	Text        string
	Attachments []Part
}

type Part struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Parse reads a raw RFC 5322 message. Plain text parts are concatenated
// into Text.
func Parse(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	out := &Message{}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		out.From = from[0].Address
	} else {
		out.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	out.Subject, _ = mr.Header.Subject()

	var text strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("reading part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
				continue
			}
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			text.Write(body)

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			out.Attachments = append(out.Attachments, Part{
				Filename: filename,
				MIMEType: contentType,
				Data:     body,
			})
		}
	}
	out.Text = text.String()
	return out, nil
}
