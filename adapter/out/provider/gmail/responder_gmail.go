// Package gmail implements the mail provider port on the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/pkg/crypto"
	"responder_server/pkg/logger"
)

const (
	maxConcurrency    = 5
	perMessageTimeout = 15 * time.Second
	searchMaxResults  = 50
)

// Config holds the OAuth client and the token directory holding one
// refresh token file per monitored account. When Encryptor is set, token
// files are sealed at rest.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenDir     string
	Encryptor    *crypto.Encryptor
}

// Adapter talks to Gmail for every monitored account. One adapter serves
// all accounts; services are built lazily from the stored tokens.
type Adapter struct {
	config    *oauth2.Config
	tokenDir  string
	encryptor *crypto.Encryptor
	cb        *gobreaker.CircuitBreaker
	log       *logger.Logger

	mu       sync.Mutex
	services map[string]*gmail.Service
	labelIDs map[string]string // account + "/" + label name -> label ID
}

func NewAdapter(cfg Config) *Adapter {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
			gmail.GmailModifyScope,
			gmail.GmailComposeScope,
		},
		Endpoint: google.Endpoint,
	}

	log := logger.WithField("component", "gmail")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &Adapter{
		config:    oauthCfg,
		tokenDir:  cfg.TokenDir,
		encryptor: cfg.Encryptor,
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
		log:       log,
		services:  make(map[string]*gmail.Service),
		labelIDs:  make(map[string]string),
	}
}

// AuthURL returns the consent URL used to provision a new account token.
func (a *Adapter) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeAndStore trades an authorization code for a token and persists
// it under the account's token file.
func (a *Adapter) ExchangeAndStore(ctx context.Context, account, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange token for %s: %w", account, err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if a.encryptor != nil {
		sealed, err := a.encryptor.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt token for %s: %w", account, err)
		}
		data = []byte(sealed)
	}
	if err := os.MkdirAll(a.tokenDir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(a.tokenPath(account), data, 0o600); err != nil {
		return fmt.Errorf("store token for %s: %w", account, err)
	}

	a.mu.Lock()
	delete(a.services, account)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) FetchUnread(ctx context.Context, account string, maxCount int) ([]domain.RawMessage, error) {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.execute("FetchUnread", func() error {
		var apiErr error
		resp, apiErr = svc.Users.Messages.List("me").
			Q("is:unread in:inbox").
			MaxResults(int64(maxCount)).
			Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, fmt.Errorf("list unread for %s: %w", account, cbErr)
	}

	return a.hydrate(ctx, svc, resp.Messages), nil
}

func (a *Adapter) Send(ctx context.Context, account string, req out.SendRequest) error {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return err
	}

	msg, err := a.buildMessage(ctx, svc, req)
	if err != nil {
		return err
	}

	cbErr := a.execute("Send", func() error {
		_, apiErr := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return fmt.Errorf("send from %s: %w", account, cbErr)
	}
	return nil
}

func (a *Adapter) CreateDraft(ctx context.Context, account string, req out.SendRequest) error {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return err
	}

	msg, err := a.buildMessage(ctx, svc, req)
	if err != nil {
		return err
	}

	cbErr := a.execute("CreateDraft", func() error {
		_, apiErr := svc.Users.Drafts.Create("me", &gmail.Draft{Message: msg}).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return fmt.Errorf("create draft for %s: %w", account, cbErr)
	}
	return nil
}

func (a *Adapter) MarkAsRead(ctx context.Context, account, messageID string) error {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return err
	}
	return a.modifyLabels(ctx, svc, messageID, nil, []string{"UNREAD"})
}

func (a *Adapter) AddLabel(ctx context.Context, account, messageID, labelName string) error {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return err
	}

	labelID, err := a.resolveLabel(ctx, svc, account, labelName)
	if err != nil {
		return err
	}
	return a.modifyLabels(ctx, svc, messageID, []string{labelID}, nil)
}

func (a *Adapter) GetSentHistory(ctx context.Context, account string, maxCount, lookbackDays int) ([]domain.RawMessage, error) {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("in:sent newer_than:%dd", lookbackDays)
	refs, err := a.listAll(ctx, svc, query, maxCount)
	if err != nil {
		return nil, fmt.Errorf("list sent for %s: %w", account, err)
	}
	return a.hydrate(ctx, svc, refs), nil
}

func (a *Adapter) GetThread(ctx context.Context, account, threadID string) ([]domain.RawMessage, error) {
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	var thread *gmail.Thread
	cbErr := a.execute("GetThread", func() error {
		var apiErr error
		thread, apiErr = svc.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, cbErr)
	}

	messages := make([]domain.RawMessage, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		messages = append(messages, a.convertMessage(msg))
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	return messages, nil
}

func (a *Adapter) SearchByKeywords(ctx context.Context, account string, keywords []string, lookbackDays int) ([]domain.RawMessage, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	svc, err := a.serviceFor(ctx, account)
	if err != nil {
		return nil, err
	}

	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = fmt.Sprintf("%q", kw)
	}
	query := fmt.Sprintf("(%s) newer_than:%dd", strings.Join(quoted, " OR "), lookbackDays)

	refs, err := a.listAll(ctx, svc, query, searchMaxResults)
	if err != nil {
		return nil, fmt.Errorf("keyword search for %s: %w", account, err)
	}
	return a.hydrate(ctx, svc, refs), nil
}

func (a *Adapter) tokenPath(account string) string {
	return filepath.Join(a.tokenDir, account+".json")
}

func (a *Adapter) serviceFor(ctx context.Context, account string) (*gmail.Service, error) {
	a.mu.Lock()
	if svc, ok := a.services[account]; ok {
		a.mu.Unlock()
		return svc, nil
	}
	a.mu.Unlock()

	data, err := os.ReadFile(a.tokenPath(account))
	if err != nil {
		return nil, fmt.Errorf("read token for %s: %w", account, err)
	}

	// Token files written before encryption was enabled stay readable.
	if a.encryptor != nil && crypto.IsEncrypted(data) {
		data, err = a.encryptor.Decrypt(string(data))
		if err != nil {
			return nil, fmt.Errorf("decrypt token for %s: %w", account, err)
		}
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token for %s: %w", account, err)
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, &token),
	))
	if err != nil {
		return nil, fmt.Errorf("gmail service for %s: %w", account, err)
	}

	a.mu.Lock()
	a.services[account] = svc
	a.mu.Unlock()
	return svc, nil
}

// listAll pages through a query up to maxCount message references.
func (a *Adapter) listAll(ctx context.Context, svc *gmail.Service, query string, maxCount int) ([]*gmail.Message, error) {
	var refs []*gmail.Message
	pageToken := ""

	for {
		req := svc.Users.Messages.List("me").Q(query).MaxResults(int64(maxCount))
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		cbErr := a.execute("List", func() error {
			var apiErr error
			resp, apiErr = req.Context(ctx).Do()
			return apiErr
		})
		if cbErr != nil {
			return nil, cbErr
		}

		refs = append(refs, resp.Messages...)
		if resp.NextPageToken == "" || len(refs) >= maxCount {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(refs) > maxCount {
		refs = refs[:maxCount]
	}
	return refs, nil
}

// hydrate fetches full message bodies in parallel with a bounded worker
// count, preserving the order the list call returned.
func (a *Adapter) hydrate(ctx context.Context, svc *gmail.Service, refs []*gmail.Message) []domain.RawMessage {
	if len(refs) == 0 {
		return nil
	}

	type result struct {
		index int
		msg   domain.RawMessage
		err   error
	}

	results := make(chan result, len(refs))
	sem := make(chan struct{}, maxConcurrency)

	for i, ref := range refs {
		go func(idx int, id string) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{index: idx, err: ctx.Err()}
				return
			}

			msgCtx, cancel := context.WithTimeout(ctx, perMessageTimeout)
			defer cancel()

			full, err := svc.Users.Messages.Get("me", id).Format("full").Context(msgCtx).Do()
			if err != nil {
				results <- result{index: idx, err: err}
				return
			}
			results <- result{index: idx, msg: a.convertMessage(full)}
		}(i, ref.Id)
	}

	messages := make([]domain.RawMessage, len(refs))
	for range refs {
		r := <-results
		if r.err != nil {
			a.log.Warn("message hydration failed: %v", r.err)
			continue
		}
		messages[r.index] = r.msg
	}

	filtered := make([]domain.RawMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.ExternalID != "" {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func (a *Adapter) modifyLabels(ctx context.Context, svc *gmail.Service, messageID string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}

	cbErr := a.execute("ModifyLabels", func() error {
		_, apiErr := svc.Users.Messages.Modify("me", messageID, req).Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return fmt.Errorf("modify labels on %s: %w", messageID, cbErr)
	}
	return nil
}

// resolveLabel maps a label name to its ID, creating the label on first
// use. Resolved IDs are cached per account.
func (a *Adapter) resolveLabel(ctx context.Context, svc *gmail.Service, account, name string) (string, error) {
	cacheKey := account + "/" + name

	a.mu.Lock()
	if id, ok := a.labelIDs[cacheKey]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	resp, err := svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			a.cacheLabel(cacheKey, l.Id)
			return l.Id, nil
		}
	}

	created, err := svc.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %s: %w", name, err)
	}

	a.cacheLabel(cacheKey, created.Id)
	return created.Id, nil
}

func (a *Adapter) cacheLabel(key, id string) {
	a.mu.Lock()
	a.labelIDs[key] = id
	a.mu.Unlock()
}

// buildMessage assembles the RFC 2822 payload. Replies carry In-Reply-To
// and References from the original so Gmail threads them correctly.
func (a *Adapter) buildMessage(ctx context.Context, svc *gmail.Service, req out.SendRequest) (*gmail.Message, error) {
	threadID := ""
	inReplyTo := ""
	if req.InReplyTo != "" {
		original, err := svc.Users.Messages.Get("me", req.InReplyTo).Format("metadata").
			MetadataHeaders("Message-ID").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get original message: %w", err)
		}
		threadID = original.ThreadId
		inReplyTo = headerValue(original.Payload, "Message-ID")
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("To: %s\r\n", req.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", req.Subject))
	if inReplyTo != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", inReplyTo))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", inReplyTo))
	}

	if req.BodyHTML != "" && req.BodyText != "" {
		boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(req.BodyText)
		buf.WriteString("\r\n")

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		buf.WriteString(req.BodyHTML)
		buf.WriteString("\r\n")

		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	} else if req.BodyHTML != "" {
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		buf.WriteString(req.BodyHTML)
	} else {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(req.BodyText)
	}

	return &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buf.String())),
		ThreadId: threadID,
	}, nil
}

func (a *Adapter) convertMessage(msg *gmail.Message) domain.RawMessage {
	result := domain.RawMessage{
		ExternalID: msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		ReceivedAt: time.Unix(0, msg.InternalDate*int64(time.Millisecond)),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				if addr, err := mail.ParseAddress(h.Value); err == nil {
					result.From = addr.Address
					result.FromName = addr.Name
				} else {
					result.From = h.Value
				}
			case "To":
				result.To = h.Value
			case "Subject":
				result.Subject = h.Value
			}
		}
		extractBody(msg.Payload, &result)
	}

	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			result.IsUnread = true
		}
	}
	return result
}

func extractBody(part *gmail.MessagePart, msg *domain.RawMessage) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			switch part.MimeType {
			case "text/plain":
				if msg.BodyText == "" {
					msg.BodyText = string(data)
				}
			case "text/html":
				if msg.BodyHTML == "" {
					msg.BodyHTML = string(data)
				}
			}
		}
	}

	for _, p := range part.Parts {
		extractBody(p, msg)
	}
}

func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// execute wraps one API call in the circuit breaker. Server-side errors
// trip the breaker; client errors pass through without counting.
func (a *Adapter) execute(operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	if err != nil {
		a.log.Error("%s failed (breaker %s): %v", operation, a.cb.State().String(), err)
	}
	return err
}

// nonCircuitError wraps errors that must not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

var _ out.MailProvider = (*Adapter)(nil)
