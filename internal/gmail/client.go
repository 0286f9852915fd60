// Package gmail adapts a Gmail mailbox into the pipeline's mail source. The
// adapter is read-only: it lists and fetches messages, never mutates labels
// or sends mail.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ncastellanos/transmail/internal/classify"
	"github.com/ncastellanos/transmail/internal/domain"
)

const (
	// gmailUser is the special user id meaning "the authorized account".
	gmailUser = "me"

	listPageSize = 100

	opNew   = "mailbox.new"
	opList  = "mailbox.list"
	opFetch = "mailbox.fetch"
)

// Client wraps the Gmail API service.
type Client struct {
	svc *gmailapi.Service
}

// New builds a Gmail client from an OAuth application credentials file and a
// previously stored token file. The token is refreshed automatically when it
// carries a refresh token.
func New(ctx context.Context, credentialsFile, tokenFile string) (*Client, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, classify.NewError(classify.KindConfiguration, opNew,
			fmt.Sprintf("read credentials file: %v", err))
	}

	cfg, err := google.ConfigFromJSON(raw, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, classify.NewError(classify.KindConfiguration, opNew,
			fmt.Sprintf("parse credentials file %s: %v", credentialsFile, err))
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, classify.NewError(classify.KindConfiguration, opNew,
			fmt.Sprintf("read token file: %v", err))
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListMatching returns the ids of every message matching the mailbox query,
// paging until the server reports no more results.
func (c *Client) ListMatching(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := c.svc.Users.Messages.List(gmailUser).
			Q(query).
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classifyAPIError(err, opList)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// Fetch retrieves one message in full format and converts it into a document.
func (c *Client) Fetch(ctx context.Context, id string) (domain.Document, error) {
	msg, err := c.svc.Users.Messages.Get(gmailUser, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Document{}, classifyAPIError(err, opFetch)
	}
	return documentFromMessage(msg), nil
}

// classifyAPIError maps Gmail API failures into the taxonomy. The API client
// reports HTTP-level failures as *googleapi.Error with the status code.
func classifyAPIError(err error, op string) *classify.Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classify.Classify(&classify.StatusError{Code: gerr.Code, Body: gerr.Message}, op)
	}
	return classify.Classify(err, op)
}

// documentFromMessage flattens a Gmail message into a document: sender and
// subject from the headers, the first text/plain and text/html bodies from
// the MIME tree, and the server-side received time.
func documentFromMessage(msg *gmailapi.Message) domain.Document {
	doc := domain.Document{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		doc.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return doc
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			doc.Sender = h.Value
		case "subject":
			doc.Subject = h.Value
		}
	}

	collectBodies(msg.Payload, &doc.PlainBody, &doc.HTMLBody)
	return doc
}

// collectBodies walks the MIME tree depth-first. The first text/plain part
// and the first text/html part win; later duplicates (forwarded copies,
// alternative renderings) are ignored.
func collectBodies(part *gmailapi.MessagePart, plain, html *string) {
	if part == nil {
		return
	}

	mime := strings.ToLower(part.MimeType)
	if part.Body != nil && part.Body.Data != "" {
		switch {
		case *plain == "" && strings.HasPrefix(mime, "text/plain"):
			if s, err := decodeBody(part.Body.Data); err == nil {
				*plain = s
			}
		case *html == "" && strings.HasPrefix(mime, "text/html"):
			if s, err := decodeBody(part.Body.Data); err == nil {
				*html = s
			}
		}
	}

	for _, child := range part.Parts {
		if *plain != "" && *html != "" {
			return
		}
		collectBodies(child, plain, html)
	}
}

// decodeBody decodes a Gmail body payload. The API documents base64url, but
// some senders produce unpadded or standard-alphabet data, so fall through
// the variants before giving up.
func decodeBody(data string) (string, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b), nil
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode message body: %w", err)
	}
	return string(b), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	return token, nil
}
