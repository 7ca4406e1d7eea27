package htmlrender

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	gotenbergPathPDF        = "/forms/chromium/convert/html"
	gotenbergPathScreenshot = "/forms/chromium/screenshot/html"

	// renderWidth mimics an off-screen 800px wide container.
	renderWidth = "800"
)

type GotenbergConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"min=0"`
	Client  *http.Client  `validate:"-"`
}

// Gotenberg renders HTML using a Gotenberg (headless chromium) server.
type Gotenberg struct {
	conf   GotenbergConfig
	client *http.Client
}

var _ Renderer = (*Gotenberg)(nil)

func NewGotenberg(conf GotenbergConfig) (*Gotenberg, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("gotenberg renderer config error: %w", err)
		return nil, err
	}

	client := conf.Client
	if client == nil {
		client = &http.Client{Timeout: conf.Timeout}
	}

	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	return &Gotenberg{
		conf:   conf,
		client: client,
	}, nil
}

func (g *Gotenberg) Render(ctx context.Context, in InputRender) (out Attachment, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "htmlrender.Gotenberg.Render")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrRender, err)
		return
	}

	span.SetAttributes(attribute.String("format", string(in.Format)))

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	fileWriter, err := form.CreateFormFile("files", "index.html")
	if err != nil {
		err = fmt.Errorf("%w: create form file: %s", ErrRender, err)
		return
	}

	if _, err = io.WriteString(fileWriter, in.HTML); err != nil {
		err = fmt.Errorf("%w: write html: %s", ErrRender, err)
		return
	}

	path := gotenbergPathPDF
	fields := map[string]string{
		"printBackground": "true",
	}

	if in.Format == FormatImage {
		path = gotenbergPathScreenshot
		fields = map[string]string{
			"format": "png",
			"width":  renderWidth,
		}
	}

	for k, v := range fields {
		if err = form.WriteField(k, v); err != nil {
			err = fmt.Errorf("%w: write field %s: %s", ErrRender, k, err)
			return
		}
	}

	if err = form.Close(); err != nil {
		err = fmt.Errorf("%w: close form: %s", ErrRender, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.conf.BaseURL+path, body)
	if err != nil {
		err = fmt.Errorf("%w: prepare request: %s", ErrRender, err)
		return
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrRender, err)
		return
	}

	defer func() {
		if _err := resp.Body.Close(); _err != nil {
			ylog.Error(ctx, "gotenberg: cannot close response body", ylog.KV("error", _err))
		}
	}()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: read response: %s", ErrRender, err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("%w: gotenberg status %d: %s", ErrRender, resp.StatusCode, string(content))
		return
	}

	out = Attachment{
		Base64:   base64.StdEncoding.EncodeToString(content),
		MimeType: in.Format.MimeType(),
		Filename: FinalFilename(in.Filename, in.Format),
	}
	return
}
