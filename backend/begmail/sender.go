package begmail

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const defaultUserID = "me"

type Config struct {
	// CredentialsFile is OAuth client secret JSON downloaded from Google Cloud console.
	CredentialsFile string `yaml:"credentialsFile"`

	// TokenFile is the stored oauth2.Token JSON for the signed-in account.
	TokenFile string `yaml:"tokenFile"`

	UserID string `yaml:"userID"`

	// ClientOptions replace the credential files entirely, i.e. in test.
	ClientOptions []option.ClientOption `yaml:"-"`
}

// BE sends message through Gmail API users.messages.send which accepts base64url raw message as-is.
type BE struct {
	userID  string
	service *gmail.Service

	lock     sync.Mutex
	identity *backend.Identity
}

var _ backend.Sender = (*BE)(nil)

func NewBE(ctx context.Context, conf Config) (*BE, error) {
	opts := conf.ClientOptions
	if len(opts) == 0 {
		tokenSource, err := tokenSourceFromFiles(ctx, conf.CredentialsFile, conf.TokenFile)
		if err != nil {
			return nil, err
		}

		opts = []option.ClientOption{option.WithTokenSource(tokenSource)}
	}

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		err = fmt.Errorf("gmail service preparation failed: %w", err)
		return nil, err
	}

	userID := strings.TrimSpace(conf.UserID)
	if userID == "" {
		userID = defaultUserID
	}

	return &BE{
		userID:  userID,
		service: service,
	}, nil
}

// Identity calls users.getProfile once and cache the result.
func (b *BE) Identity(ctx context.Context) (identity backend.Identity, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.identity != nil {
		identity = *b.identity
		return
	}

	profile, err := b.service.Users.GetProfile(b.userID).Context(ctx).Do()
	if err != nil {
		err = fmt.Errorf("%w: gmail get profile: %s", backend.ErrNoIdentity, err)
		return
	}

	if profile.EmailAddress == "" {
		err = fmt.Errorf("%w: gmail profile has no email address", backend.ErrNoIdentity)
		return
	}

	b.identity = &backend.Identity{Email: profile.EmailAddress}
	identity = *b.identity
	return
}

func (b *BE) Send(ctx context.Context, msg *backend.Message) (report *backend.Report, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "begmail.Send")
	defer span.End()

	sent, err := b.service.Users.Messages.Send(b.userID, &gmail.Message{Raw: msg.Raw}).Context(ctx).Do()
	if err != nil {
		err = fmt.Errorf("gmail send to %s: %w", msg.To, err)
		return
	}

	ylog.Debug(ctx, "gmail: message sent", ylog.KV("id", sent.Id), ylog.KV("thread_id", sent.ThreadId))

	report = &backend.Report{
		ReferenceID:       msg.ReferenceID,
		ProviderMessageID: sent.Id,
		SentAt:            time.Now().UTC(),
	}
	return
}

func tokenSourceFromFiles(ctx context.Context, credentialsFile, tokenFile string) (oauth2.TokenSource, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		err = fmt.Errorf("cannot read gmail credentials file %s: %w", credentialsFile, err)
		return nil, err
	}

	oauthConf, err := google.ConfigFromJSON(secret, gmail.GmailSendScope, gmail.GmailMetadataScope)
	if err != nil {
		err = fmt.Errorf("cannot parse gmail credentials file: %w", err)
		return nil, err
	}

	tokenJSON, err := os.ReadFile(tokenFile)
	if err != nil {
		err = fmt.Errorf("%w: cannot read gmail token file %s: %s", backend.ErrNoIdentity, tokenFile, err)
		return nil, err
	}

	token := &oauth2.Token{}
	if err = json.Unmarshal(tokenJSON, token); err != nil {
		err = fmt.Errorf("%w: malformed gmail token file: %s", backend.ErrNoIdentity, err)
		return nil, err
	}

	return oauth2.ReuseTokenSource(token, oauthConf.TokenSource(ctx, token)), nil
}
