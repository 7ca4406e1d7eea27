package genapidoc_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/cmd/gen/genapidoc"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/kvstore"
	"github.com/yusufsyaifudin/emailer/pkg/uid"
	"github.com/yusufsyaifudin/emailer/transport/restapi"
)

func routerEndpoints(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	kv, err := kvstore.NewInMemory(kvstore.InMemoryConfig{})
	require.NoError(t, err)

	repo, err := recipientrepo.NewKV(recipientrepo.KVConfig{KV: kv, Namespace: "doc"})
	require.NoError(t, err)

	recipients, err := recipientsvc.New(ctx, recipientsvc.DefaultServiceConfig{
		UIDGen:        uid.NewSonyflake(),
		RecipientRepo: repo,
	})
	require.NoError(t, err)

	tags := tagsvc.New(tagsvc.Config{Generator: tagsvc.NewRandomGenerator(1)})
	campaign, err := campaignsvc.New(campaignsvc.DefaultServiceConfig{
		Recipients: recipients,
		Sender:     backend.NewNoopSender(backend.Identity{Email: "me@example.com"}),
		Renderer:   htmlrender.NewNoop(),
		Tags:       tags,
		Builder:    mimesvc.NewBuilder(mimesvc.Config{}),
	})
	require.NoError(t, err)

	transport, err := restapi.NewHTTPTransport(restapi.Config{
		AppServiceName:   "emailer",
		AppVersion:       "test",
		RecipientService: recipients,
		CampaignService:  campaign,
		Tags:             tags,
	})
	require.NoError(t, err)

	routes, ok := transport.Server().(chi.Routes)
	require.True(t, ok)

	out := make([]string, 0)
	err = chi.Walk(routes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}

		out = append(out, method+" "+route)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(out)
	return out
}

func documented() []string {
	out := make([]string, 0)
	for _, r := range genapidoc.Routes() {
		out = append(out, r.Method+" "+r.Path)
	}

	sort.Strings(out)
	return out
}

func TestRoutes_MatchRouter(t *testing.T) {
	assert.Equal(t, routerEndpoints(t), documented())
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	doc, err := genapidoc.Build(ctx, genapidoc.BuildConfig{
		Title:     "emailer",
		Version:   "test",
		ServerURL: "http://localhost:8080",
	}, genapidoc.Routes())
	require.NoError(t, err)

	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.Len(t, doc.Paths, 12)

	start := doc.Paths["/api/v1/campaign/start"]
	require.NotNil(t, start)
	require.NotNil(t, start.Post)
	assert.Equal(t, "CampaignStart", start.Post.OperationID)
	assert.NotNil(t, start.Post.RequestBody)
	assert.NotNil(t, start.Post.Responses.Get(http.StatusAccepted))
	assert.NotNil(t, start.Post.Responses.Get(http.StatusConflict))
	assert.NotNil(t, start.Post.Responses.Get(http.StatusInternalServerError))

	recipients := doc.Paths["/api/v1/recipients"]
	require.NotNil(t, recipients)
	assert.NotNil(t, recipients.Post)
	assert.NotNil(t, recipients.Get)
	require.NotNil(t, recipients.Delete)
	require.Len(t, recipients.Delete.Parameters, 1)
	assert.Equal(t, "confirm", recipients.Delete.Parameters[0].Value.Name)

	ping := doc.Paths["/ping"]
	require.NotNil(t, ping)
	require.NotNil(t, ping.Get)
	ok := ping.Get.Responses.Get(http.StatusOK)
	require.NotNil(t, ok)
	assert.NotNil(t, ok.Value.Content.Get("text/plain"))
}

func TestCmd_Run(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "apidoc")

	factory := genapidoc.NewCmd("emailer", "test")
	c, err := factory()
	require.NoError(t, err)

	cmd := c.(*genapidoc.Cmd)
	out := &bytes.Buffer{}
	cmd.Out = out

	code := cmd.Run([]string{"-out", dir, "-server", "http://example.com"})
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "swagger.json")

	j, err := os.ReadFile(filepath.Join(dir, "swagger.json"))
	require.NoError(t, err)
	assert.Contains(t, string(j), "/api/v1/queue/unsent")
	assert.Contains(t, string(j), "http://example.com")

	y, err := os.ReadFile(filepath.Join(dir, "swagger.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(y), "CampaignStart")
}
