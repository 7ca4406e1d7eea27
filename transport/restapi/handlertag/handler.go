package handlertag

import (
	"net/http"
	"strings"

	"github.com/gorilla/schema"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

type HandlerConfig struct {
	Tags             *tagsvc.Engine       `validate:"required"`
	RecipientService recipientsvc.Service `validate:"required"`
}

type Handler struct {
	Config HandlerConfig
}

func NewHandler(conf HandlerConfig) (*Handler, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	return &Handler{Config: conf}, nil
}

type TagsResp struct {
	SystemTags []string `json:"system_tags"`
	CustomTags []string `json:"custom_tags"`
}

// Tags lists every placeholder which is always available in templates,
// plus one tag per column of the stored recipient list.
// Path         : GET /api/v1/tags
// Response     : TagsResp
func (h *Handler) Tags() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tags := make([]string, len(tagsvc.SystemTags))
		copy(tags, tagsvc.SystemTags)

		list, err := h.Config.RecipientService.List(ctx)
		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		custom := make([]string, 0, len(list.Headers))
		for _, header := range list.Headers {
			custom = append(custom, tagsvc.Tag(header))
		}

		resp := respbuilder.Success(ctx, TagsResp{SystemTags: tags, CustomTags: custom})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type RandomNameReq struct {
	Kind string `schema:"kind"`
}

type RandomNameResp struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// RandomName generates one display name, kind is NAME, FNAME or UNAME (default FNAME).
// Path         : GET /api/v1/names/random?kind=FNAME
// Response     : RandomNameResp
func (h *Handler) RandomName() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqQuery RandomNameReq
		if err := schema.NewDecoder().Decode(&reqQuery, r.URL.Query()); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		kind := tagsvc.NameKind(strings.ToUpper(strings.TrimSpace(reqQuery.Kind)))
		switch kind {
		case tagsvc.KindName, tagsvc.KindFName, tagsvc.KindUName:
		default:
			kind = tagsvc.KindFName
		}

		resp := respbuilder.Success(ctx, RandomNameResp{
			Kind: string(kind),
			Name: h.Config.Tags.GenerateRandomDisplayName(kind),
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}
