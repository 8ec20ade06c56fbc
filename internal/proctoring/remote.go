package proctoring

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const remoteMaxResponse = 1 << 20

// RemoteClient calls an inference sidecar that hosts the face and object models.
type RemoteClient struct {
	url    string
	client *http.Client
}

// NewRemoteClient creates a client posting JSON to url.
func NewRemoteClient(url string, client *http.Client) *RemoteClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteClient{url: url, client: client}
}

func (c *RemoteClient) post(ctx context.Context, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, remoteMaxResponse))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

func encodeFrame(f *Frame) string {
	if f == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(f.Encoded)
}

// RemoteFaceMatcher implements FaceMatcher over HTTP.
type RemoteFaceMatcher struct {
	*RemoteClient
}

// NewRemoteFaceMatcher creates a face matcher posting to url.
func NewRemoteFaceMatcher(url string, client *http.Client) *RemoteFaceMatcher {
	return &RemoteFaceMatcher{NewRemoteClient(url, client)}
}

type faceMatchRequest struct {
	Frame     string `json:"frame"`
	Reference string `json:"reference"`
}

type faceMatchResponse struct {
	Match *bool `json:"match"`
}

// Match implements FaceMatcher.
func (m *RemoteFaceMatcher) Match(ctx context.Context, frame, reference *Frame) (bool, error) {
	var out faceMatchResponse
	if err := m.post(ctx, faceMatchRequest{Frame: encodeFrame(frame), Reference: encodeFrame(reference)}, &out); err != nil {
		return false, fmt.Errorf("face match: %w", err)
	}
	if out.Match == nil {
		return false, fmt.Errorf("face match: missing match field")
	}
	return *out.Match, nil
}

// RemoteObjectDetector implements ObjectDetector over HTTP.
type RemoteObjectDetector struct {
	*RemoteClient
}

// NewRemoteObjectDetector creates an object detector posting to url.
func NewRemoteObjectDetector(url string, client *http.Client) *RemoteObjectDetector {
	return &RemoteObjectDetector{NewRemoteClient(url, client)}
}

type detectRequest struct {
	Frame string `json:"frame"`
}

type detectResponse struct {
	Labels []string `json:"labels"`
}

// Detect implements ObjectDetector.
func (d *RemoteObjectDetector) Detect(ctx context.Context, frame *Frame) ([]string, error) {
	var out detectResponse
	if err := d.post(ctx, detectRequest{Frame: encodeFrame(frame)}, &out); err != nil {
		return nil, fmt.Errorf("object detection: %w", err)
	}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	return out.Labels, nil
}
