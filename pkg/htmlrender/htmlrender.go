package htmlrender

import (
	"context"
	"fmt"
)

var (
	ErrRender = fmt.Errorf("render attachment error")
)

type Format string

const (
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
)

func (f Format) Valid() bool {
	return f == FormatImage || f == FormatPDF
}

// Extension return file extension without dot.
func (f Format) Extension() string {
	if f == FormatPDF {
		return "pdf"
	}

	return "png"
}

// MimeType return the content type of rendered output.
func (f Format) MimeType() string {
	if f == FormatPDF {
		return "application/pdf"
	}

	return "image/png"
}

// Renderer turns arbitrary HTML into an image or PDF blob.
// Implementation must clean up any staging resources itself.
type Renderer interface {
	Render(ctx context.Context, in InputRender) (out Attachment, err error)
}

type InputRender struct {
	HTML     string `validate:"-"`
	Format   Format `validate:"required,oneof=image pdf"`
	Filename string `validate:"required"`
}

// Attachment is rendered file ready to be embedded in the MIME message.
type Attachment struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

// FinalFilename appends the format extension into filename.
func FinalFilename(filename string, format Format) string {
	return fmt.Sprintf("%s.%s", filename, format.Extension())
}
