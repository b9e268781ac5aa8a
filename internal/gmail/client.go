package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Message is one parsed Gmail message, trimmed to the fields triage needs.
type Message struct {
	ID               string
	ThreadID         string
	FromEmail        string
	Subject          string
	Snippet          string
	BodyText         string
	ReceivedAt       time.Time
	MessageIDHeader  string
	ReferencesHeader string
}

// TokenRefreshResult carries a refreshed access token. RefreshToken echoes
// the input unless Google rotated it.
type TokenRefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type Client struct {
	clientID     string
	clientSecret string
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// ListMessageIDs returns ids of messages received after the given time,
// newest page only.
func (c *Client) ListMessageIDs(ctx context.Context, accessToken string, after time.Time, maxResults int) ([]string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("after:%d", after.Unix())
	listResp, err := svc.Users.Messages.List("me").
		Q(query).
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(listResp.Messages))
	for _, msg := range listResp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// FetchMessage fetches and parses one message in full format.
func (c *Client) FetchMessage(ctx context.Context, accessToken, messageID string) (*Message, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	fullMsg, err := svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	parsed := parseMessage(fullMsg)
	return &parsed, nil
}

// SendReply sends a plain-text reply on the original thread, threading via
// In-Reply-To and References. Returns the sent message id.
func (c *Client) SendReply(ctx context.Context, accessToken string, original *Message, bodyText string) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	raw := buildRawReply(original.FromEmail, original.Subject, original.MessageIDHeader, original.ReferencesHeader, bodyText)
	msg := &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(raw)),
	}
	if original.ThreadID != "" {
		msg.ThreadId = original.ThreadID
	}

	sent, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return sent.Id, nil
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error) {
	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
	}

	newToken, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	result := &TokenRefreshResult{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}
	if newToken.RefreshToken != "" && newToken.RefreshToken != refreshToken {
		result.RefreshToken = newToken.RefreshToken
	} else {
		result.RefreshToken = refreshToken
	}
	return result, nil
}

// buildRawReply assembles an RFC 822 plain-text reply. Gmail fills in From.
func buildRawReply(toEmail, subject, messageIDHeader, referencesHeader, bodyText string) string {
	subj := strings.TrimSpace(subject)
	if !strings.HasPrefix(strings.ToLower(subj), "re:") {
		subj = "Re: " + subj
	}

	lines := []string{
		"To: " + toEmail,
		"Subject: " + subj,
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 7bit",
	}
	if messageIDHeader != "" {
		lines = append(lines, "In-Reply-To: "+messageIDHeader)
	}
	if referencesHeader != "" {
		lines = append(lines, "References: "+referencesHeader)
	} else if messageIDHeader != "" {
		lines = append(lines, "References: "+messageIDHeader)
	}

	lines = append(lines, "", strings.TrimRight(bodyText, " \t\r\n")+"\n")
	return strings.Join(lines, "\r\n")
}
