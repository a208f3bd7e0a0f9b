package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"whatsapp-course-delivery/internal/config"
	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.DeliveryClient = (*Client)(nil)

// Client implements adapter.DeliveryClient against the Cloud API messages
// endpoint. Errors are classified for the retry policy: 4xx is permanent,
// everything else is transient.
type Client struct {
	base    string // e.g., https://graph.facebook.com/v19.0
	phoneID string
	token   string
	creds   repository.CredentialStore // optional rotated-token source
	client  *http.Client
}

func NewClient(cfg config.WhatsAppConfig, creds repository.CredentialStore) (*Client, error) {
	if cfg.AccessToken == "" && creds == nil {
		return nil, errors.New("whatsapp access token empty and no credential store")
	}
	return &Client{
		base:    cfg.BaseURL,
		phoneID: cfg.PhoneNumberID,
		token:   cfg.AccessToken,
		creds:   creds,
		client:  &http.Client{Timeout: cfg.SendTimeout},
	}, nil
}

type textBody struct {
	Body string `json:"body"`
}

type documentBody struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Document         *documentBody `json:"document,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers one message. A lesson with attached material issues two
// provider calls (text, then document); the text message id identifies the
// send in the message log.
func (c *Client) Send(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
	if p.To == "" {
		return adapter.SendResult{}, domain.NewPermanentDeliveryError(errors.New("empty recipient"))
	}

	var (
		primaryID string
		err       error
	)
	if p.Text != "" {
		primaryID, err = c.post(ctx, sendRequest{
			MessagingProduct: "whatsapp",
			To:               p.To,
			Type:             "text",
			Text:             &textBody{Body: p.Text},
		})
		if err != nil {
			return adapter.SendResult{}, err
		}
	}

	if p.DocumentURL != "" {
		docID, err := c.post(ctx, sendRequest{
			MessagingProduct: "whatsapp",
			To:               p.To,
			Type:             "document",
			Document:         &documentBody{Link: p.DocumentURL, Filename: p.DocumentName},
		})
		if err != nil {
			return adapter.SendResult{}, err
		}
		if primaryID == "" {
			primaryID = docID
		}
	}

	if primaryID == "" {
		return adapter.SendResult{}, domain.NewPermanentDeliveryError(errors.New("nothing to send"))
	}
	return adapter.SendResult{ProviderMessageID: primaryID}, nil
}

func (c *Client) post(ctx context.Context, body sendRequest) (string, error) {
	token, phoneID := c.credentials(ctx)

	b, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/%s/messages", c.base, phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", domain.NewPermanentDeliveryError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors and timeouts retry.
		return "", domain.NewTransientDeliveryError(err)
	}
	defer resp.Body.Close()

	var payload sendResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil && resp.StatusCode < 300 {
		return "", domain.NewTransientDeliveryError(decodeErr)
	}

	if resp.StatusCode >= 300 {
		sendErr := fmt.Errorf("whatsapp http %d: %s", resp.StatusCode, payload.Error.Message)
		return "", domain.ClassifyHTTPStatus(resp.StatusCode, sendErr)
	}

	if len(payload.Messages) == 0 || payload.Messages[0].ID == "" {
		return "", domain.NewTransientDeliveryError(errors.New("no message id in response"))
	}
	return payload.Messages[0].ID, nil
}

// credentials prefers the newest rotated token from the store, falling back
// to the static config token.
func (c *Client) credentials(ctx context.Context) (token, phoneID string) {
	token, phoneID = c.token, c.phoneID
	if c.creds == nil {
		return token, phoneID
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cred, err := c.creds.Active(lookupCtx)
	if err != nil {
		return token, phoneID
	}
	if cred.AccessToken != "" {
		token = cred.AccessToken
	}
	if cred.PhoneID != "" {
		phoneID = cred.PhoneID
	}
	return token, phoneID
}
