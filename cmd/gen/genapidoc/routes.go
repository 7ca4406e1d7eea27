package genapidoc

import (
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlercampaign"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlerrecipient"
	"github.com/yusufsyaifudin/emailer/transport/restapi/handlertag"
	"github.com/yusufsyaifudin/emailer/transport/restapi/httptyped"
)

// Route describes one endpoint. Request and Response are example values,
// the schema is generated from their type and the example from their content.
type Route struct {
	Method      string
	Path        string
	OperationID string
	Tag         string
	Summary     string
	Description string

	Query    []*openapi3.Parameter
	Request  interface{}
	Status   int
	Response interface{}

	// Errors lists documented error statuses, all share the error envelope.
	Errors []int
}

func queryParam(name, typ, desc string, example interface{}) *openapi3.Parameter {
	p := openapi3.NewQueryParameter(name).WithDescription(desc)
	p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: typ}}
	p.Example = example
	p.Required = false
	return p
}

func exampleRecipients() []httptyped.RecipientEntity {
	return []httptyped.RecipientEntity{
		{ID: "ann@example.com-1700000000000-0", Data: map[string]string{"email": "ann@example.com", "name": "Ann"}, Sent: true},
		{ID: "bob@example.com-1700000000000-1", Data: map[string]string{"email": "bob@example.com", "name": "Bob"}},
	}
}

func exampleQueue() handlercampaign.QueueResp {
	return handlercampaign.QueueResp{
		Total: 1,
		Entries: []httptyped.QueueEntryEntity{
			{ID: "bob@example.com-1700000000000-1", Email: "bob@example.com", Data: map[string]string{"email": "bob@example.com", "name": "Bob"}},
		},
	}
}

func exampleProgress() httptyped.ProgressEntity {
	started := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	return httptyped.ProgressEntity{
		State:      "sending",
		SentCount:  1,
		TotalCount: 2,
		SenderName: "Support Team",
		StartedAt:  &started,
	}
}

func exampleStart() handlercampaign.StartReq {
	req := handlercampaign.StartReq{
		SenderName:     "Support Team",
		Subject:        "Invoice #INV# for #NAME#",
		Body:           "<p>Hi #FNAME#, see attached.</p>",
		AttachmentHTML: "<h1>#INV#</h1><p>#ADDRESS1#</p>",
	}
	req.Attachment.Enabled = true
	req.Attachment.Format = "pdf"
	req.Attachment.Placement = "attachment"
	req.Attachment.Filename = "invoice-#SNUM#"
	req.Rotation.Enabled = true
	req.Rotation.Interval = 10
	return req
}

// Routes must be kept in line with restapi.NewHTTPTransport.
func Routes() []Route {
	return []Route{
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/recipients",
			OperationID: "RecipientIngest",
			Tag:         "Recipient",
			Summary:     "Replace recipient list",
			Description: "Parse raw text (one email per line or a delimited table with an email column) and replace the stored list.",
			Request:     handlerrecipient.IngestReq{Raw: "email,name\nann@example.com,Ann\nbob@example.com,Bob"},
			Status:      http.StatusCreated,
			Response: handlerrecipient.IngestResp{
				Headers:    []string{"email", "name"},
				Total:      2,
				Recipients: exampleRecipients(),
			},
			Errors: []int{http.StatusBadRequest},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/recipients",
			OperationID: "RecipientList",
			Tag:         "Recipient",
			Summary:     "List stored recipients",
			Status:      http.StatusOK,
			Response: handlerrecipient.ListResp{
				Headers:     []string{"email", "name"},
				SentCount:   1,
				UnsentCount: 1,
				Recipients:  exampleRecipients(),
			},
		},
		{
			Method:      http.MethodDelete,
			Path:        "/api/v1/recipients",
			OperationID: "RecipientClear",
			Tag:         "Recipient",
			Summary:     "Clear stored recipients",
			Description: "Checker emails are kept. Refused while a campaign is sending.",
			Query:       []*openapi3.Parameter{queryParam("confirm", "boolean", "Must be true", true)},
			Status:      http.StatusOK,
			Response:    handlerrecipient.ClearResp{Cleared: true},
			Errors:      []int{http.StatusBadRequest, http.StatusConflict},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/checker",
			OperationID: "CheckerIngest",
			Tag:         "Checker",
			Summary:     "Replace checker email list",
			Description: "Only valid emails are kept, one per line.",
			Request:     handlerrecipient.IngestReq{Raw: "qa@example.com\nseed@example.com"},
			Status:      http.StatusCreated,
			Response:    handlerrecipient.CheckerResp{Total: 2, Emails: []string{"qa@example.com", "seed@example.com"}},
			Errors:      []int{http.StatusBadRequest},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/checker",
			OperationID: "CheckerList",
			Tag:         "Checker",
			Summary:     "List checker emails",
			Status:      http.StatusOK,
			Response:    handlerrecipient.CheckerResp{Total: 1, Emails: []string{"qa@example.com"}},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/queue",
			OperationID: "QueueGet",
			Tag:         "Queue",
			Summary:     "Current send queue",
			Status:      http.StatusOK,
			Response:    exampleQueue(),
		},
		{
			Method:      http.MethodPut,
			Path:        "/api/v1/queue",
			OperationID: "QueueSet",
			Tag:         "Queue",
			Summary:     "Rebuild queue from text",
			Description: "One email per line. Known emails reuse the queued or stored data.",
			Request:     handlercampaign.SetQueueReq{Text: "bob@example.com\nnew@example.com"},
			Status:      http.StatusOK,
			Response:    exampleQueue(),
			Errors:      []int{http.StatusBadRequest, http.StatusConflict},
		},
		{
			Method:      http.MethodDelete,
			Path:        "/api/v1/queue",
			OperationID: "QueueClear",
			Tag:         "Queue",
			Summary:     "Empty the queue",
			Status:      http.StatusOK,
			Response:    handlercampaign.QueueResp{Entries: []httptyped.QueueEntryEntity{}},
			Errors:      []int{http.StatusConflict},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/queue/unsent",
			OperationID: "QueueLoadUnsent",
			Tag:         "Queue",
			Summary:     "Queue unsent recipients",
			Query:       []*openapi3.Parameter{queryParam("limit", "number", "Maximum recipients to queue, default 50", 50)},
			Status:      http.StatusOK,
			Response:    exampleQueue(),
			Errors:      []int{http.StatusBadRequest, http.StatusConflict},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/queue/checker",
			OperationID: "QueueLoadChecker",
			Tag:         "Queue",
			Summary:     "Queue checker emails",
			Status:      http.StatusOK,
			Response:    exampleQueue(),
			Errors:      []int{http.StatusConflict},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/campaign/start",
			OperationID: "CampaignStart",
			Tag:         "Campaign",
			Summary:     "Start sending the queue",
			Description: "Returns as soon as the run starts. Poll the status route for progress.",
			Request:     exampleStart(),
			Status:      http.StatusAccepted,
			Response:    exampleProgress(),
			Errors:      []int{http.StatusBadRequest, http.StatusConflict},
		},
		{
			Method:      http.MethodPost,
			Path:        "/api/v1/campaign/stop",
			OperationID: "CampaignStop",
			Tag:         "Campaign",
			Summary:     "Stop after the in-flight message",
			Status:      http.StatusOK,
			Response:    handlercampaign.StopResp{WasSending: true, Progress: exampleProgress()},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/campaign/status",
			OperationID: "CampaignStatus",
			Tag:         "Campaign",
			Summary:     "Campaign progress",
			Status:      http.StatusOK,
			Response:    exampleProgress(),
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/tags",
			OperationID: "TagList",
			Tag:         "Tag",
			Summary:     "Available template tags",
			Status:      http.StatusOK,
			Response: handlertag.TagsResp{
				SystemTags: []string{"#EMAIL#", "#NAME#", "#DATE#"},
				CustomTags: []string{"#NAME#"},
			},
		},
		{
			Method:      http.MethodGet,
			Path:        "/api/v1/names/random",
			OperationID: "NameRandom",
			Tag:         "Tag",
			Summary:     "Random display name",
			Query:       []*openapi3.Parameter{queryParam("kind", "string", "NAME, FNAME or UNAME", "FNAME")},
			Status:      http.StatusOK,
			Response:    handlertag.RandomNameResp{Kind: "FNAME", Name: "Kim Lee"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/health",
			OperationID: "Health",
			Tag:         "System",
			Summary:     "Service health",
			Status:      http.StatusOK,
			Response:    map[string]string{"service": "emailer", "version": "1.0.0", "state": "idle"},
		},
		{
			Method:      http.MethodGet,
			Path:        "/ping",
			OperationID: "Ping",
			Tag:         "System",
			Summary:     "Liveness, answers pong in plain text",
			Status:      http.StatusOK,
		},
	}
}
