package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"
)

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

type Client struct {
	es    *es8.Client
	index string
}

// RunDocument is the indexed form of one finished training run.
type RunDocument struct {
	Dataset    string    `json:"dataset"`
	ILType     string    `json:"iltype"`
	Split      int       `json:"split"`
	Device     int       `json:"device"`
	Alpha      float64   `json:"alpha"`
	Beta       float64   `json:"beta"`
	Gamma      float64   `json:"gamma"`
	MemorySize int       `json:"memory_size"`
	RT         float64   `json:"rt"`
	NumHead    int       `json:"num_head"`
	HiddenDim  int       `json:"hidden_dim"`
	Args       string    `json:"args"`
	ExitCode   int       `json:"exit_code"`
	Success    bool      `json:"success"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch URL is required")
	}
	index := cfg.Index
	if strings.TrimSpace(index) == "" {
		index = "lvtrun_runs"
	}

	es, err := es8.NewClient(es8.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Lightweight ping
	if _, err := es.Info(); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &Client{es: es, index: index}, nil
}

// IndexRun stores one run document.
func (c *Client) IndexRun(ctx context.Context, doc RunDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal run document: %w", err)
	}

	res, err := c.es.Index(c.index, bytes.NewReader(body), c.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to index run document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 500))
		return fmt.Errorf("elasticsearch rejected run document: %s: %s", res.Status(), string(snippet))
	}

	return nil
}
