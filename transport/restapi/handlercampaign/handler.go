package handlercampaign

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/emailer/transport/restapi/httptyped"
	"github.com/yusufsyaifudin/ylog"
)

type HandlerConfig struct {
	CampaignService campaignsvc.Service `validate:"required"`
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

type QueueResp struct {
	Total   int                          `json:"total"`
	Entries []httptyped.QueueEntryEntity `json:"entries"`
}

// Queue shows the current sending queue.
// Path         : GET /api/v1/queue
// Response     : QueueResp
func (h *Handler) Queue() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out := h.Config.CampaignService.Queue(ctx)
		writeQueue(w, r, http.StatusOK, out)
	}
}

type LoadUnsentReq struct {
	Limit int `schema:"limit"`
}

// LoadUnsent fills the queue with the first unsent stored recipients.
// Path         : POST /api/v1/queue/unsent?limit=50
// Response     : QueueResp
func (h *Handler) LoadUnsent() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqQuery LoadUnsentReq
		if err := schema.NewDecoder().Decode(&reqQuery, r.URL.Query()); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		if reqQuery.Limit == 0 {
			reqQuery.Limit = campaignsvc.DefaultLoadCount
		}

		out, err := h.Config.CampaignService.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: reqQuery.Limit})
		if err != nil {
			writeErr(w, r, err)
			return
		}

		writeQueue(w, r, http.StatusOK, out)
	}
}

// LoadChecker fills the queue with the checker emails.
// Path         : POST /api/v1/queue/checker
// Response     : QueueResp
func (h *Handler) LoadChecker() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		out, err := h.Config.CampaignService.LoadChecker(ctx)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		writeQueue(w, r, http.StatusOK, out)
	}
}

type SetQueueReq struct {
	Text string `json:"text"`
}

// SetQueue replaces the queue with one email per line.
// Path         : PUT /api/v1/queue
// Request Body : SetQueueReq
// Response     : QueueResp
func (h *Handler) SetQueue() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody SetQueueReq
		if err := decodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		out, err := h.Config.CampaignService.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: reqBody.Text})
		if err != nil {
			writeErr(w, r, err)
			return
		}

		writeQueue(w, r, http.StatusOK, out)
	}
}

// ClearQueue empties the queue.
// Path         : DELETE /api/v1/queue
// Response     : QueueResp
func (h *Handler) ClearQueue() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		err := h.Config.CampaignService.ClearQueue(ctx)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		writeQueue(w, r, http.StatusOK, campaignsvc.OutQueue{})
	}
}

type StartReq struct {
	SenderName     string `json:"sender_name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentHTML string `json:"attachment_html"`

	Attachment struct {
		Enabled   bool   `json:"enabled"`
		Format    string `json:"format"`
		Placement string `json:"placement"`
		Filename  string `json:"filename"`
	} `json:"attachment"`

	Rotation struct {
		Enabled  bool `json:"enabled"`
		Interval int  `json:"interval"`
	} `json:"rotation"`
}

func (s StartReq) toInput() campaignsvc.InputStart {
	return campaignsvc.InputStart{
		Template: campaignsvc.Template{
			SenderName:     s.SenderName,
			Subject:        s.Subject,
			Body:           s.Body,
			AttachmentHTML: s.AttachmentHTML,
		},
		Attachment: campaignsvc.AttachmentPolicy{
			Enabled:   s.Attachment.Enabled,
			Format:    htmlrender.Format(s.Attachment.Format),
			Placement: mimesvc.Placement(s.Attachment.Placement),
			Filename:  s.Attachment.Filename,
		},
		Rotation: campaignsvc.RotationPolicy{
			Enabled:  s.Rotation.Enabled,
			Interval: s.Rotation.Interval,
		},
	}
}

// Start begins sending the queue in background and return the initial progress.
// Path         : POST /api/v1/campaign/start
// Request Body : StartReq
// Response     : httptyped.ProgressEntity
func (h *Handler) Start() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var reqBody StartReq
		if err := decodeBody(r, &reqBody); err != nil {
			respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
			return
		}

		err := h.Config.CampaignService.Start(ctx, reqBody.toInput())
		if err != nil {
			writeErr(w, r, err)
			return
		}

		progress := h.Config.CampaignService.Status(ctx)
		resp := respbuilder.Success(ctx, httptyped.ProgressEntityFromSvc(progress))
		respbuilder.WriteJSON(http.StatusAccepted, w, r, resp)
	}
}

type StopResp struct {
	WasSending bool                     `json:"was_sending"`
	Progress   httptyped.ProgressEntity `json:"progress"`
}

// Stop requests the running campaign to stop after the current message.
// Path         : POST /api/v1/campaign/stop
// Response     : StopResp
func (h *Handler) Stop() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		out := h.Config.CampaignService.Stop(ctx)
		progress := h.Config.CampaignService.Status(ctx)

		resp := respbuilder.Success(ctx, StopResp{
			WasSending: out.WasSending,
			Progress:   httptyped.ProgressEntityFromSvc(progress),
		})
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

// Status shows the progress of the current or last run.
// Path         : GET /api/v1/campaign/status
// Response     : httptyped.ProgressEntity
func (h *Handler) Status() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		progress := h.Config.CampaignService.Status(ctx)
		resp := respbuilder.Success(ctx, httptyped.ProgressEntityFromSvc(progress))
		respbuilder.WriteJSON(http.StatusOK, w, r, resp)
	}
}

func writeQueue(w http.ResponseWriter, r *http.Request, status int, out campaignsvc.OutQueue) {
	resp := respbuilder.Success(r.Context(), QueueResp{
		Total:   len(out.Entries),
		Entries: httptyped.QueueEntitiesFromSvc(out.Entries),
	})
	respbuilder.WriteJSON(status, w, r, resp)
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, campaignsvc.ErrValidation):
		respbuilder.WriteError(w, r, respbuilder.ErrValidation, err)
	case errors.Is(err, campaignsvc.ErrBusy):
		respbuilder.WriteError(w, r, respbuilder.ErrConflict, err)
	default:
		respbuilder.WriteError(w, r, respbuilder.ErrUnhandled, err)
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
