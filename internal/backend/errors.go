package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// User-facing messages, shown as-is by the web and mobile shells.
const (
	MsgNetwork      = "Erreur de connexion. Vérifiez votre connexion internet."
	MsgServer       = "Le serveur ne répond pas. Veuillez réessayer plus tard."
	MsgTimeout      = "La requête a pris trop de temps. Veuillez réessayer."
	MsgNotFound     = "Ressource introuvable."
	MsgUnauthorized = "Accès non autorisé."
	MsgForbidden    = "Action interdite."
	MsgBadRequest   = "Requête invalide."
	MsgUnknown      = "Une erreur inattendue s'est produite."
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindValidation
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// HTTPStatus is the status the application server answers with for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// APIError is a failed call. Message is safe to show to the user.
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Validation builds a KindValidation error for input rejected before any call.
func Validation(message string) *APIError {
	return &APIError{Kind: KindValidation, Message: message}
}

// messages overrides the generic wording for one endpoint.
type messages struct {
	notFound   string
	badRequest string
	other      string
}

func pick(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}

// classify maps a non-2xx response to an APIError.
func classify(status int, body []byte, m messages) *APIError {
	e := &APIError{Status: status}
	switch {
	case status == http.StatusNotFound:
		e.Kind, e.Message = KindNotFound, pick(m.notFound, MsgNotFound)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind, e.Message = KindBadRequest, pick(bodyMessage(body), pick(m.badRequest, MsgBadRequest))
	case status == http.StatusUnauthorized:
		e.Kind, e.Message = KindUnauthorized, MsgUnauthorized
	case status == http.StatusForbidden:
		e.Kind, e.Message = KindForbidden, MsgForbidden
	case status >= 500:
		e.Kind, e.Message = KindServer, MsgServer
	default:
		e.Kind, e.Message = KindUnknown, pick(m.other, MsgUnknown)
	}
	return e
}

// bodyMessage extracts the "error" or "detail" field the backend puts in
// error bodies.
func bodyMessage(body []byte) string {
	var payload struct {
		Error  any `json:"error"`
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, v := range []any{payload.Error, payload.Detail} {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
