package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

// LogSink writes one JSON object per document, for dry runs and piping.
type LogSink struct {
	enc *json.Encoder
}

var _ ports.DocumentSink = (*LogSink)(nil)

// NewLogSink encodes documents to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{enc: json.NewEncoder(w)}
}

type jsonDocument struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Feed        string    `json:"feed"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
	Abstract    string    `json:"abstract"`
	Text        string    `json:"text"`
	Layout      string    `json:"layout"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func (s *LogSink) Save(_ context.Context, doc domain.Document) error {
	err := s.enc.Encode(jsonDocument{
		Title:       doc.Title,
		Link:        doc.Link,
		Feed:        doc.Feed,
		PublishedAt: doc.PublishedAt,
		Summary:     doc.Summary,
		Abstract:    doc.Abstract,
		Text:        doc.Text,
		Layout:      doc.Layout,
		LoadedAt:    doc.LoadedAt,
	})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

func (s *LogSink) Close(context.Context) error {
	return nil
}
