// Package gateway is the encryption boundary: it encrypts outgoing fields
// and batch-decrypts message lists. The Client keeps the key out of the
// calling process by delegating to the boundary service over HTTP; the Codec
// is the in-process implementation used by the service itself.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/edgeee/chathub/chat"
	"github.com/edgeee/chathub/cryptoutil"
)

// ErrEmptyField is returned when a display name or message text is empty at
// encrypt time. Encryption of empty values is rejected, not attempted.
var ErrEmptyField = errors.New("gateway: display name and text must be non-empty")

// Codec encrypts and decrypts fields in-process. It implements chat.Codec
// for deployments that hold the key.
type Codec struct {
	Cipher *cryptoutil.Cipher
}

// EncryptMessage encrypts the two outgoing fields of a send.
func (c *Codec) EncryptMessage(_ context.Context, displayName, text string) (string, string, error) {
	if displayName == "" || text == "" {
		return "", "", ErrEmptyField
	}
	nameCipher, err := c.Cipher.Encrypt(displayName)
	if err != nil {
		return "", "", fmt.Errorf("encrypt display name: %w", err)
	}
	textCipher, err := c.Cipher.Encrypt(text)
	if err != nil {
		return "", "", fmt.Errorf("encrypt text: %w", err)
	}
	return nameCipher, textCipher, nil
}

// DecryptBatch decrypts display name, body and the joined author avatar of
// every message, preserving order and length. Individual fields fail soft
// inside the cipher.
func (c *Codec) DecryptBatch(_ context.Context, msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		m.DisplayName = c.Cipher.Decrypt(m.DisplayName)
		m.Body = c.Cipher.Decrypt(m.Body)
		if m.Author != nil {
			author := *m.Author
			if author.Avatar != "" {
				author.Avatar = c.Cipher.Decrypt(author.Avatar)
			}
			m.Author = &author
		}
		out[i] = m
	}
	return out
}

// A Client calls the boundary service, so the encryption key never reaches
// this process.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// DecryptBatch posts the batch to the decrypt endpoint. On any transport or
// contract failure the input is returned unchanged: ciphertext passing
// through is the known degraded mode, not an error to surface.
func (c *Client) DecryptBatch(ctx context.Context, msgs []chat.Message) []chat.Message {
	type request struct {
		Messages []chat.Message `json:"messages"`
	}
	type response struct {
		DecryptedMessages []chat.Message `json:"decryptedMessages"`
	}

	body, err := json.Marshal(request{Messages: msgs})
	if err != nil {
		c.logger().Warn("Could not encode decrypt batch", "error", err.Error())
		return msgs
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/crypto/decrypt-messages", bytes.NewReader(body))
	if err != nil {
		c.logger().Warn("Could not build decrypt request", "error", err.Error())
		return msgs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().Warn("Decrypt gateway unavailable", "error", err.Error())
		return msgs
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger().Warn("Decrypt gateway refused batch", "status", resp.StatusCode)
		return msgs
	}

	var res response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		c.logger().Warn("Could not decode decrypt response", "error", err.Error())
		return msgs
	}
	if len(res.DecryptedMessages) != len(msgs) {
		c.logger().Warn("Decrypt response length mismatch", "got", len(res.DecryptedMessages), "want", len(msgs))
		return msgs
	}
	return res.DecryptedMessages
}

// EncryptMessage posts the outgoing fields to the encrypt endpoint. Unlike
// decryption this must succeed: a send is always sequenced encrypt first,
// insert second.
func (c *Client) EncryptMessage(ctx context.Context, displayName, text string) (string, string, error) {
	if displayName == "" || text == "" {
		return "", "", ErrEmptyField
	}
	type request struct {
		DisplayName string `json:"displayName"`
		Text        string `json:"text"`
	}
	type response struct {
		EncryptedDisplayName string `json:"encryptedDisplayName"`
		EncryptedText        string `json:"encryptedText"`
	}

	body, err := json.Marshal(request{DisplayName: displayName, Text: text})
	if err != nil {
		return "", "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/crypto/encrypt-message", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("encrypt message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("encrypt message: unexpected status %d", resp.StatusCode)
	}

	var res response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	return res.EncryptedDisplayName, res.EncryptedText, nil
}
