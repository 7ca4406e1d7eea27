package mimesvc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/satori/uuid"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

var (
	ErrBuild = fmt.Errorf("build mime message error")
)

type Placement string

const (
	PlacementInline     Placement = "inline"
	PlacementAttachment Placement = "attachment"
)

func (p Placement) Valid() bool {
	return p == PlacementInline || p == PlacementAttachment
}

const (
	crlf = "\r\n"

	// base64 line length per RFC 2045
	lineLength = 76

	// raw bytes per encoded-word, keeps every word under 75 chars
	wordChunk = 45
)

type Config struct {
	Now func() time.Time
}

// Builder assembles RFC 5322 documents. It is safe for concurrent use.
type Builder struct {
	now func() time.Time
}

func NewBuilder(cfg Config) *Builder {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Builder{now: cfg.Now}
}

type InputBuild struct {
	To        string `validate:"required,simplemail"`
	Subject   string `validate:"-"`
	Body      string `validate:"-"`
	FromName  string `validate:"-"`
	FromEmail string `validate:"required,simplemail"`

	// Attachment is optional. Base64 holds standard (padded) base64.
	Attachment *htmlrender.Attachment `validate:"-"`
	Placement  Placement              `validate:"omitempty,oneof=inline attachment"`
}

// Build return raw MIME bytes. Inline placement is honored only for image attachment,
// anything else ends up as multipart/mixed.
func (b *Builder) Build(in InputBuild) (raw []byte, err error) {
	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrBuild, err)
		return
	}

	var attachment []byte
	if in.Attachment != nil {
		attachment, err = base64.StdEncoding.DecodeString(in.Attachment.Base64)
		if err != nil {
			err = fmt.Errorf("%w: attachment %q is not base64: %s", ErrBuild, in.Attachment.Filename, err)
			return
		}
	}

	buf := &bytes.Buffer{}
	b.writeEnvelope(buf, in)

	switch {
	case in.Attachment == nil:
		err = writeSinglePart(buf, in.Body)

	case in.Placement == PlacementInline && strings.HasPrefix(in.Attachment.MimeType, "image"):
		err = writeRelated(buf, in.Body, in.Attachment, attachment)

	default:
		err = writeMixed(buf, in.Body, in.Attachment, attachment)
	}

	if err != nil {
		err = fmt.Errorf("%w: %s", ErrBuild, err)
		return
	}

	raw = buf.Bytes()
	return
}

func (b *Builder) writeEnvelope(buf *bytes.Buffer, in InputBuild) {
	writeHeader(buf, "From", fmt.Sprintf("%s <%s>", EncodeWord(in.FromName), in.FromEmail))
	writeHeader(buf, "To", in.To)
	writeHeader(buf, "Subject", EncodeWord(in.Subject))
	writeHeader(buf, "Date", b.now().Format(time.RFC1123Z))
	writeHeader(buf, "Message-ID", messageID(in.FromEmail))
	writeHeader(buf, "MIME-Version", "1.0")
}

func writeSinglePart(buf *bytes.Buffer, body string) error {
	writeHeader(buf, "Content-Type", `text/html; charset="UTF-8"`)
	writeHeader(buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString(crlf)

	return writeQuotedPrintable(buf, body)
}

func writeRelated(buf *bytes.Buffer, body string, att *htmlrender.Attachment, content []byte) error {
	mw := multipart.NewWriter(buf)
	writeHeader(buf, "Content-Type", mime.FormatMediaType("multipart/related", map[string]string{
		"boundary": mw.Boundary(),
		"type":     "text/html",
	}))
	buf.WriteString(crlf)

	cid := ContentID()
	err := writeHTMLPart(mw, fmt.Sprintf(`%s<br/><img src="cid:%s">`, body, cid))
	if err != nil {
		return err
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", att.MimeType)
	h.Set("Content-Transfer-Encoding", "base64")
	h["Content-ID"] = []string{"<" + cid + ">"}
	h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": att.Filename}))
	err = writeBase64Part(mw, h, content)
	if err != nil {
		return err
	}

	return mw.Close()
}

func writeMixed(buf *bytes.Buffer, body string, att *htmlrender.Attachment, content []byte) error {
	mw := multipart.NewWriter(buf)
	writeHeader(buf, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{
		"boundary": mw.Boundary(),
	}))
	buf.WriteString(crlf)

	err := writeHTMLPart(mw, body)
	if err != nil {
		return err
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", att.MimeType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	err = writeBase64Part(mw, h, content)
	if err != nil {
		return err
	}

	return mw.Close()
}

func writeHTMLPart(mw *multipart.Writer, html string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", `text/html; charset="UTF-8"`)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	qp := quotedprintable.NewWriter(w)
	if _, err = qp.Write([]byte(html)); err != nil {
		return err
	}

	return qp.Close()
}

func writeBase64Part(mw *multipart.Writer, h textproto.MIMEHeader, content []byte) error {
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > lineLength {
		if _, err = fmt.Fprint(w, encoded[:lineLength], crlf); err != nil {
			return err
		}

		encoded = encoded[lineLength:]
	}

	_, err = fmt.Fprint(w, encoded, crlf)
	return err
}

func writeQuotedPrintable(buf *bytes.Buffer, s string) error {
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}

	return qp.Close()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString(crlf)
}

// EncodeWord always produce RFC 2047 UTF-8 B-encoded words, even for plain ASCII.
// Long value is split on rune boundary into several words joined by folding whitespace.
func EncodeWord(s string) string {
	if s == "" {
		return s
	}

	words := make([]string, 0, len(s)/wordChunk+1)
	for len(s) > 0 {
		n := 0
		for n < len(s) {
			_, size := utf8.DecodeRuneInString(s[n:])
			if n+size > wordChunk && n > 0 {
				break
			}

			n += size
		}

		words = append(words, "=?UTF-8?B?"+base64.StdEncoding.EncodeToString([]byte(s[:n]))+"?=")
		s = s[n:]
	}

	return strings.Join(words, crlf+" ")
}

// ContentID is unpredictable per call.
func ContentID() string {
	return "attachment_" + strings.ReplaceAll(uuid.NewV4().String(), "-", "")
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}

	return fmt.Sprintf("<%s@%s>", uuid.NewV4().String(), domain)
}
