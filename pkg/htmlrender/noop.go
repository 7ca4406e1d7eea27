package htmlrender

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

// Noop does not rasterize anything, it embeds the HTML source as the attachment bytes.
// Useful for dry-run campaign and tests.
type Noop struct{}

var _ Renderer = (*Noop)(nil)

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Render(_ context.Context, in InputRender) (out Attachment, err error) {
	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrRender, err)
		return
	}

	out = Attachment{
		Base64:   base64.StdEncoding.EncodeToString([]byte(in.HTML)),
		MimeType: in.Format.MimeType(),
		Filename: FinalFilename(in.Filename, in.Format),
	}
	return
}
