// Package api provides the HTTP boundary of the chat service: message
// listing and posting, privileged delete, and the encryption endpoints that
// keep the field key out of browser code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/edgeee/chathub/api/validator"
	"github.com/edgeee/chathub/chat"
	"github.com/edgeee/chathub/gateway"
)

// A DB provides the persisted message relation.
type DB interface {
	FetchAll(ctx context.Context) ([]chat.Message, error)
	FetchRecent(ctx context.Context, limit int) ([]chat.Message, error)
	Insert(ctx context.Context, draft chat.Draft) (chat.Message, error)
	Delete(ctx context.Context, id string) error
}

// A Cache provides the recent-messages preview cache.
type Cache interface {
	ListMessages(ctx context.Context) ([]chat.Message, error)
	InsertMessage(ctx context.Context, msg chat.Message) error
	DeleteMessage(ctx context.Context, id string) error
}

// A Codec encrypts outgoing fields and decrypts message batches.
type Codec interface {
	EncryptMessage(ctx context.Context, displayName, text string) (nameCipher, textCipher string, err error)
	DecryptBatch(ctx context.Context, msgs []chat.Message) []chat.Message
}

// An Auth resolves the session of a request, nil when signed out. The
// provider in front of this service is authoritative; handlers only consume
// the result.
type Auth interface {
	Session(r *http.Request) *chat.Session
}

// previewSize is the number of messages served to the home-page preview.
const previewSize = 20

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Codec  Codec
	Auth   Auth
	Val    *validator.Validator

	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /messages", a.listMessages)
	mux.HandleFunc("GET /messages/recent", a.listRecentMessages)
	mux.HandleFunc("POST /messages", a.createMessage)
	mux.HandleFunc("DELETE /messages/{messageID}", a.deleteMessage)
	mux.HandleFunc("POST /crypto/encrypt-message", a.encryptMessage)
	mux.HandleFunc("POST /crypto/decrypt-messages", a.decryptMessages)

	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []chat.Message `json:"messages"`
	}

	msgs, err := a.DB.FetchAll(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}
	msgs = a.Codec.DecryptBatch(r.Context(), msgs)
	if msgs == nil {
		msgs = []chat.Message{}
	}

	a.respond(w, http.StatusOK, response{Messages: msgs})
}

// listRecentMessages serves the preview widget: cache first, warmed from the
// database when empty.
func (a *API) listRecentMessages(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Messages []chat.Message `json:"messages"`
	}

	msgs, err := a.Cache.ListMessages(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
		return
	}
	a.Logger.Info("Got messages from cache", "count", len(msgs))

	if len(msgs) == 0 {
		msgs, err = a.DB.FetchRecent(r.Context(), previewSize)
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not list messages")
			return
		}
		for _, msg := range msgs {
			if err := a.Cache.InsertMessage(r.Context(), msg); err != nil {
				a.Logger.Error("Could not cache message", "error", err.Error())
			}
		}
	}

	msgs = a.Codec.DecryptBatch(r.Context(), msgs)
	if msgs == nil {
		msgs = []chat.Message{}
	}

	a.respond(w, http.StatusOK, response{Messages: msgs})
}

func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Text             string `json:"text" validate:"required"`
		ReplyToMessageID string `json:"reply_to_message_id"`
	}

	sess := a.Auth.Session(r)
	if sess == nil {
		a.respondError(w, http.StatusUnauthorized, chat.ErrNoSession, "Sign in to chat")
		return
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return
	}

	nameCipher, textCipher, err := a.Codec.EncryptMessage(r.Context(), sess.DisplayName, body.Text)
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyField) {
			a.respondError(w, http.StatusBadRequest, err, "Display name and text are required")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not encrypt message")
		return
	}

	msg, err := a.DB.Insert(r.Context(), chat.Draft{
		AuthorID:          sess.UserID,
		DisplayNameCipher: nameCipher,
		BodyCipher:        textCipher,
		ReplyToID:         body.ReplyToMessageID,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert message")
		return
	}

	if err := a.Cache.InsertMessage(r.Context(), msg); err != nil {
		a.Logger.Error("Could not cache message", "error", err.Error())
	}

	// Respond with the plaintext the sender already knows, not ciphertext.
	msg.DisplayName = sess.DisplayName
	msg.Body = body.Text

	a.respond(w, http.StatusCreated, msg)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageID")

	// Advisory check; the store's row-level security is authoritative.
	sess := a.Auth.Session(r)
	if sess == nil || !sess.IsPrivileged {
		a.respondError(w, http.StatusForbidden, chat.ErrNotAllowed, "Only the site author can delete messages")
		return
	}

	if err := a.DB.Delete(r.Context(), messageID); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not delete message")
		return
	}

	if err := a.Cache.DeleteMessage(r.Context(), messageID); err != nil {
		a.Logger.Error("Could not evict cached message", "error", err.Error())
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) encryptMessage(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			DisplayName string `json:"displayName" validate:"required"`
			Text        string `json:"text" validate:"required"`
		}
		response struct {
			EncryptedDisplayName string `json:"encryptedDisplayName"`
			EncryptedText        string `json:"encryptedText"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	nameCipher, textCipher, err := a.Codec.EncryptMessage(r.Context(), body.DisplayName, body.Text)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not encrypt message")
		return
	}

	a.respond(w, http.StatusOK, response{
		EncryptedDisplayName: nameCipher,
		EncryptedText:        textCipher,
	})
}

func (a *API) decryptMessages(w http.ResponseWriter, r *http.Request) {
	type (
		request struct {
			Messages []chat.Message `json:"messages"`
		}
		response struct {
			DecryptedMessages []chat.Message `json:"decryptedMessages"`
		}
	)

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	dec := a.Codec.DecryptBatch(r.Context(), body.Messages)
	if dec == nil {
		dec = []chat.Message{}
	}

	a.respond(w, http.StatusOK, response{DecryptedMessages: dec})
}
