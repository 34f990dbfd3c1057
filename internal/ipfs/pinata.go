// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package ipfs pins evidence files through the Pinata API.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
)

// BreakerName labels the Pinata breaker in metrics.
const BreakerName = "pinata-api"

var (
	// ErrUnavailable means the breaker is open.
	ErrUnavailable = errors.New("ipfs: unavailable")

	// ErrNoCredentials means neither a JWT nor a key pair is configured.
	ErrNoCredentials = errors.New("ipfs: no pinata credentials")
)

// PinResult describes a pinned file.
type PinResult struct {
	CID  string `json:"cid"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Pinner pins files. The API depends on this rather than on PinataClient.
type Pinner interface {
	PinFile(ctx context.Context, name string, r io.Reader) (*PinResult, error)
}

// pinResponse is Pinata's pinFileToIPFS answer.
type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// PinataClient uploads with pinFileToIPFS.
type PinataClient struct {
	cfg  config.IPFSConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*PinResult]
}

// NewPinataClient returns a client for cfg guarded by a breaker tuned with
// bcfg.
func NewPinataClient(cfg *config.IPFSConfig, bcfg *config.BreakerConfig) (*PinataClient, error) {
	if !cfg.HasIPFSCredentials() {
		return nil, ErrNoCredentials
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[*PinResult](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: bcfg.MaxRequests,
		Interval:    bcfg.Interval,
		Timeout:     bcfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bcfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bcfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			var v float64
			switch to {
			case gobreaker.StateHalfOpen:
				v = 1
			case gobreaker.StateOpen:
				v = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			// 4xx answers are the caller's fault, not an outage.
			return err == nil || errors.Is(err, context.Canceled) || (errors.As(err, &se) && se.Code < 500)
		},
	})

	return &PinataClient{
		cfg:  *cfg,
		http: &http.Client{Timeout: timeout},
		cb:   cb,
	}, nil
}

// StatusError is a non-2xx Pinata response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinata returned %d: %s", e.Code, e.Body)
}

// PinFile streams r to Pinata under name with CID version 0.
func (c *PinataClient) PinFile(ctx context.Context, name string, r io.Reader) (*PinResult, error) {
	res, err := c.cb.Execute(func() (*PinResult, error) {
		return c.pin(ctx, name, r)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "rejected").Inc()
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		metrics.RecordIPFSUpload(0, err)
		return nil, err
	}
	metrics.RecordIPFSUpload(res.Size, nil)
	return res, nil
}

func (c *PinataClient) pin(ctx context.Context, name string, r io.Reader) (*PinResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	var written atomic.Int64

	go func() {
		pw.CloseWithError(writeForm(mw, name, r, &written))
	}()

	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + "/pinning/pinFileToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.cfg.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.JWT)
	} else {
		req.Header.Set("pinata_api_key", c.cfg.APIKey)
		req.Header.Set("pinata_secret_api_key", c.cfg.APISecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("pin %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort detail
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return nil, errors.New("pin response has no IpfsHash")
	}

	size := out.PinSize
	if size == 0 {
		size = written.Load()
	}
	logging.Ctx(ctx).Info().Str("cid", out.IpfsHash).Str("name", name).Int64("size", size).Msg("File pinned to IPFS")

	return &PinResult{
		CID:  out.IpfsHash,
		URL:  strings.TrimRight(c.cfg.GatewayURL, "/") + "/" + out.IpfsHash,
		Size: size,
	}, nil
}

// writeForm writes the file part followed by the metadata and options
// fields Pinata expects.
func writeForm(mw *multipart.Writer, name string, r io.Reader, written *atomic.Int64) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	n, err := io.Copy(part, r)
	written.Store(n)
	if err != nil {
		return err
	}

	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
		return err
	}
	return mw.Close()
}

var _ Pinner = (*PinataClient)(nil)
