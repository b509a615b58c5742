package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowsentinel/intake/internal/models"
)

// QuestDBConfig holds connection settings for the QuestDB ILP/HTTP endpoint.
type QuestDBConfig struct {
	// URL is the QuestDB HTTP base URL, e.g. http://questdb:9000.
	URL string

	// Table receives one row per event.
	Table string

	// Timeout bounds the underlying HTTP client. Per-attempt deadlines are
	// carried on the request context by the dispatcher.
	Timeout time.Duration
}

type questdbSink struct {
	cfg    QuestDBConfig
	client *http.Client
}

// NewQuestDB returns a Sink that writes batches as InfluxDB line protocol
// over HTTP. Rows are keyed by the event receipt timestamp; the store has no
// dedup key, so a retried batch whose earlier attempt actually landed will
// produce duplicate rows.
func NewQuestDB(cfg QuestDBConfig) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	if cfg.Table == "" {
		cfg.Table = "events"
	}
	return &questdbSink{
		cfg: cfg,
		client: &http.Client{
			Timeout: to,
		},
	}
}

func (q *questdbSink) Name() string { return "questdb" }

func (q *questdbSink) Write(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, e := range events {
		// table,source=<tag> payload="<msg>",seq=<n>i <ts-nanos>
		buf.WriteString(q.cfg.Table)
		buf.WriteString(",source=")
		buf.WriteString(escapeTag(e.SourceTag))
		buf.WriteString(" payload=\"")
		buf.WriteString(escapeString(e.RawPayload))
		buf.WriteString("\",seq=")
		fmt.Fprintf(&buf, "%di", e.Seq)
		fmt.Fprintf(&buf, " %d\n", e.ReceivedAt.UnixNano())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.cfg.URL+"/write", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("questdb write failed: %s", resp.Status)
	}
	return nil
}

// escapeTag escapes the characters line protocol reserves in tag values.
func escapeTag(s string) string {
	r := strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
	return r.Replace(s)
}

// escapeString escapes a quoted string field value.
func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(s)
}
