package handlerrecipient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/emailer/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

type HandlerConfig struct {
	RecipientService recipientsvc.Service `validate:"required"`
	CampaignService  campaignsvc.Service  `validate:"required"`
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

type IngestReq struct {
	Raw string `json:"raw"`
}

type IngestResp struct {
	Headers    []string                    `json:"headers"`
	Total      int                         `json:"total"`
	Recipients []httptyped.RecipientEntity `json:"recipients"`
}

// Ingest replaces the stored recipients with parsed raw text (CSV, TSV or email per line).
// Path         : POST /api/v1/recipients
// Request Body : IngestReq
// Response     : IngestResp
func (h *Handler) Ingest() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody IngestReq
		if err := decodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		out, err := h.Config.RecipientService.Ingest(ctx, recipientsvc.InputIngest{Raw: reqBody.Raw})
		if errors.Is(err, recipientsvc.ErrIngest) {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		resp := respbuilder.Success(ctx, IngestResp{
			Headers:    out.Headers,
			Total:      len(out.Records),
			Recipients: httptyped.RecipientEntitiesFromSvc(out.Records),
		})
		respbuilder.WriteJSON(http.StatusCreated, w, r, resp)
	}
}

type ListResp struct {
	Headers     []string                    `json:"headers"`
	SentCount   int                         `json:"sent_count"`
	UnsentCount int                         `json:"unsent_count"`
	Recipients  []httptyped.RecipientEntity `json:"recipients"`
}

// List shows every stored recipient with sent flag.
// Path         : GET /api/v1/recipients
// Response     : ListResp
func (h *Handler) List() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		out, err := h.Config.RecipientService.List(ctx)
		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		resp := respbuilder.Success(ctx, ListResp{
			Headers:     out.Headers,
			SentCount:   out.SentCount,
			UnsentCount: out.UnsentCount,
			Recipients:  httptyped.RecipientEntitiesFromSvc(out.Records),
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type ClearReq struct {
	Confirm bool `schema:"confirm"`
}

type ClearResp struct {
	Cleared bool `json:"cleared"`
}

// Clear removes every stored recipient and the queue. Query confirm=true is mandatory.
// Path         : DELETE /api/v1/recipients?confirm=true
// Response     : ClearResp
func (h *Handler) Clear() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqQuery ClearReq
		if err := schema.NewDecoder().Decode(&reqQuery, r.URL.Query()); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		if !reqQuery.Confirm {
			err := fmt.Errorf("clearing all recipients needs confirm=true")
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		if h.Config.CampaignService.Status(ctx).State == campaignsvc.StateSending {
			respbuilder.WriteError(w, r, respbuilder.ErrConflict, campaignsvc.ErrBusy)
			return
		}

		err := h.Config.RecipientService.Clear(ctx)
		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		resp := respbuilder.Success(ctx, ClearResp{Cleared: true})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

type CheckerResp struct {
	Total  int      `json:"total"`
	Emails []string `json:"emails"`
}

// IngestChecker replaces the checker email list.
// Path         : POST /api/v1/checker
// Request Body : IngestReq
// Response     : CheckerResp
func (h *Handler) IngestChecker() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody IngestReq
		if err := decodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		out, err := h.Config.RecipientService.IngestChecker(ctx, recipientsvc.InputIngestChecker{Raw: reqBody.Raw})
		if errors.Is(err, recipientsvc.ErrIngest) {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		resp := respbuilder.Success(ctx, CheckerResp{Total: len(out.Emails), Emails: out.Emails})
		respbuilder.WriteJSON(http.StatusCreated, w, r, resp)
	}
}

// Checker lists the checker emails.
// Path         : GET /api/v1/checker
// Response     : CheckerResp
func (h *Handler) Checker() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		out, err := h.Config.RecipientService.CheckerEmails(ctx)
		if err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
			return
		}

		resp := respbuilder.Success(ctx, CheckerResp{Total: len(out.Emails), Emails: out.Emails})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

func decodeBody(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is nil")
	}

	defer func() {
		if _err := r.Body.Close(); _err != nil {
			ylog.Error(r.Context(), "cannot close request body", ylog.KV("error", _err))
		}
	}()

	return json.NewDecoder(r.Body).Decode(out)
}
