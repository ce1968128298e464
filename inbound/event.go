package inbound

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-noticast/core"
)

type EventKind string

const (
	EventSynchronous  EventKind = "synchronous"
	EventMail         EventKind = "mail"
	EventUnrecognized EventKind = "unrecognized"
)

// Event is one of SynchronousRequest, MailEvent or Unrecognized.
type Event interface {
	Kind() EventKind
	isEvent()
}

// SynchronousRequest is the body of a request/response invocation.
type SynchronousRequest struct {
	Target      string `json:"target"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
	VoiceID     string `json:"voice_id,omitempty"`
	Testing     bool   `json:"testing,omitempty"`

	RawBody string `json:"-"`
}

func (SynchronousRequest) Kind() EventKind { return EventSynchronous }
func (SynchronousRequest) isEvent()        {}

func (r SynchronousRequest) DispatchRequest(stage string) core.DispatchRequest {
	return core.DispatchRequest{
		Target:   r.Target,
		Message:  r.Message,
		TextType: r.MessageType,
		VoiceID:  r.VoiceID,
		Testing:  r.Testing,
		Stage:    stage,
	}
}

type MailMessage struct {
	MessageID string   `json:"message_id"`
	Subject   string   `json:"subject"`
	To        []string `json:"to"`
	Cc        []string `json:"cc"`
}

// MailEvent groups the messages delivered by a single mail trigger.
type MailEvent struct {
	Messages []MailMessage
}

func (MailEvent) Kind() EventKind { return EventMail }
func (MailEvent) isEvent()        {}

type Unrecognized struct {
	Raw json.RawMessage
}

func (Unrecognized) Kind() EventKind { return EventUnrecognized }
func (Unrecognized) isEvent()        {}

type sesEnvelope struct {
	Records []struct {
		SES struct {
			Mail struct {
				MessageID     string `json:"messageId"`
				CommonHeaders struct {
					Subject string   `json:"subject"`
					To      []string `json:"to"`
					Cc      []string `json:"cc"`
				} `json:"commonHeaders"`
			} `json:"mail"`
		} `json:"ses"`
	} `json:"Records"`
}

// DecodeEvent discriminates a raw invocation payload once, at the boundary.
// A payload with a "body" is a synchronous request, one with "Records" or a
// "subject" is a mail event and anything else is unrecognized.
func DecodeEvent(raw []byte) (Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, inboundBadInput("inbound: event payload is empty", nil)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, inboundMalformed(err, "inbound: event payload is not a json object", nil)
	}

	if body, ok := keys["body"]; ok {
		text, err := bodyText(body)
		if err != nil {
			return nil, err
		}
		return DecodeSynchronousRequest([]byte(text))
	}
	if _, ok := keys["Records"]; ok {
		return decodeSESEvent(raw)
	}
	if _, ok := keys["subject"]; ok {
		var message MailMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			return nil, inboundMalformed(err, "inbound: mail event is malformed", nil)
		}
		return MailEvent{Messages: []MailMessage{message}}, nil
	}
	return Unrecognized{Raw: append(json.RawMessage(nil), raw...)}, nil
}

// DecodeSynchronousRequest parses a request body. Field presence is checked by
// the dispatcher, so only malformed JSON fails here.
func DecodeSynchronousRequest(body []byte) (SynchronousRequest, error) {
	req := SynchronousRequest{RawBody: string(body)}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, inboundBadInput("inbound: request body is empty", nil)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return SynchronousRequest{RawBody: string(body)}, inboundMalformed(err, "inbound: request body is not valid json", nil)
	}
	req.RawBody = string(body)
	return req, nil
}

func bodyText(body json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text, nil
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	return "", inboundBadInput("inbound: body must be a json string or object", nil)
}

func decodeSESEvent(raw []byte) (Event, error) {
	var envelope sesEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, inboundMalformed(err, "inbound: mail records are malformed", nil)
	}
	event := MailEvent{Messages: make([]MailMessage, 0, len(envelope.Records))}
	for _, record := range envelope.Records {
		mail := record.SES.Mail
		event.Messages = append(event.Messages, MailMessage{
			MessageID: mail.MessageID,
			Subject:   mail.CommonHeaders.Subject,
			To:        mail.CommonHeaders.To,
			Cc:        mail.CommonHeaders.Cc,
		})
	}
	return event, nil
}
