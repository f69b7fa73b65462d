package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// CloudEvents binary-mode header names.
const (
	HeaderSpecVersion = "ce-specversion"
	HeaderType        = "ce-type"
	HeaderSource      = "ce-source"
	HeaderID          = "ce-id"
	HeaderSubject     = "ce-subject"

	contentTypeJSON       = "application/json"
	contentTypeStructured = "application/cloudevents+json"
)

// kafkaHeaderPrefix is the CloudEvents Kafka binding attribute prefix.
const kafkaHeaderPrefix = "ce_"

type structuredEvent struct {
	SpecVersion string          `json:"specversion"`
	Type        EventType       `json:"type"`
	Source      string          `json:"source"`
	ID          string          `json:"id"`
	Subject     string          `json:"subject,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// NewHTTPRequest encodes ev as a binary-mode CloudEvents POST to url.
func NewHTTPRequest(ctx context.Context, url string, ev Event) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(ev.Data))
	if err != nil {
		return nil, fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	for k, v := range attributes(ev) {
		req.Header.Set("ce-"+k, v)
	}
	return req, nil
}

// DecodeHTTP reads an event from r. Binary mode (ce-* headers) and structured
// mode are supported, as is a bare JSON body optionally wrapped in
// {"data": ...}.
func DecodeHTTP(r *http.Request) (Event, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Event{}, Wrap(KindMalformedInput, "decode", fmt.Errorf("read body: %w", err))
	}
	if r.Header.Get(HeaderType) != "" {
		return decodeBinary(r.Header, body)
	}
	if mediaType(r.Header.Get("Content-Type")) == contentTypeStructured {
		return decodeStructured(body)
	}
	return decodeBare(body)
}

func decodeBinary(h http.Header, body []byte) (Event, error) {
	for _, name := range []string{HeaderSpecVersion, HeaderType, HeaderSource, HeaderID} {
		if h.Get(name) == "" {
			return Event{}, Errorf(KindMalformedInput, "decode", "missing %s header", name)
		}
	}
	if !json.Valid(body) {
		return Event{}, Errorf(KindMalformedInput, "decode", "event body is not valid JSON")
	}
	ev := Event{
		ID:               h.Get(HeaderID),
		Type:             EventType(h.Get(HeaderType)),
		Source:           h.Get(HeaderSource),
		SourceIdentifier: h.Get(HeaderSubject),
		Data:             body,
	}
	if ev.SourceIdentifier == "" {
		ev.SourceIdentifier = ev.ID
	}
	return ev, nil
}

func decodeStructured(body []byte) (Event, error) {
	var se structuredEvent
	if err := json.Unmarshal(body, &se); err != nil {
		return Event{}, Wrap(KindMalformedInput, "decode", fmt.Errorf("structured event: %w", err))
	}
	if se.Type == "" || se.ID == "" {
		return Event{}, Errorf(KindMalformedInput, "decode", "structured event requires type and id")
	}
	ev := Event{ID: se.ID, Type: se.Type, Source: se.Source, SourceIdentifier: se.Subject, Data: se.Data}
	if ev.SourceIdentifier == "" {
		ev.SourceIdentifier = ev.ID
	}
	return ev, nil
}

func decodeBare(body []byte) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return Event{}, Wrap(KindMalformedInput, "decode", fmt.Errorf("event body: %w", err))
	}
	if data, ok := probe["data"]; ok {
		return Event{Data: data}, nil
	}
	return Event{Data: body}, nil
}

// KafkaRecord encodes ev for the Kafka binding: key is the correlation token
// so one source's events stay on one partition.
func KafkaRecord(ev Event) (key, value []byte, headers map[string]string) {
	headers = map[string]string{"content-type": contentTypeJSON}
	for k, v := range attributes(ev) {
		headers[kafkaHeaderPrefix+k] = v
	}
	return []byte(ev.SourceIdentifier), ev.Data, headers
}

// FromKafka decodes an event from Kafka binding headers and value.
func FromKafka(headers map[string]string, value []byte) (Event, error) {
	h := http.Header{}
	for k, v := range headers {
		if name, ok := strings.CutPrefix(k, kafkaHeaderPrefix); ok {
			h.Set("ce-"+name, v)
		}
	}
	return decodeBinary(h, value)
}

func attributes(ev Event) map[string]string {
	attrs := map[string]string{
		"specversion": SpecVersion,
		"type":        string(ev.Type),
		"source":      ev.Source,
		"id":          ev.ID,
	}
	if ev.SourceIdentifier != "" {
		attrs["subject"] = ev.SourceIdentifier
	}
	return attrs
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
