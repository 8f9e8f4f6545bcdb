package policy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/viz"
)

// HTTPPlanner posts each planning request to URL + "/plan" and decodes the
// decision from the response.
type HTTPPlanner struct {
	URL    string
	Client *http.Client
	// SendImages attaches the latest frame as a base64 PNG.
	SendImages bool
}

func NewHTTPPlanner(url string, timeout time.Duration) *HTTPPlanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPlanner{
		URL:        url,
		Client:     &http.Client{Timeout: timeout},
		SendImages: true,
	}
}

func (h *HTTPPlanner) Kind() Kind { return KindPlanner }

type planRequest struct {
	T     int          `json:"t"`
	X     [][2]float64 `json:"x"`
	Xdot  [][2]float64 `json:"xdot"`
	Qpos  []float64    `json:"qpos,omitempty"`
	Qvel  []float64    `json:"qvel,omitempty"`
	Image string       `json:"image,omitempty"`
}

type planResponse struct {
	Action []float64   `json:"action"`
	Bundle *viz.Bundle `json:"bundle,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (h *HTTPPlanner) Plan(ctx context.Context, in PlanningInput) (Decision, error) {
	req := planRequest{T: in.T}
	for i := range in.X {
		req.X = append(req.X, in.X[i])
		req.Xdot = append(req.Xdot, in.Xdot[i])
	}
	if in.Model != nil {
		req.Qpos = in.Model.Position()
		req.Qvel = in.Model.Velocity()
	}
	if h.SendImages && len(in.Images) > 0 {
		enc, err := encodePNG(in.Images[len(in.Images)-1])
		if err != nil {
			return Decision{}, dynamo.Policyf("encode frame: %v", err)
		}
		req.Image = enc
	}

	var resp planResponse
	if err := postJSON(ctx, h.client(), h.URL+"/plan", req, &resp); err != nil {
		return Decision{}, dynamo.Policyf("plan step %d: %v", in.T, err)
	}
	if resp.Error != "" {
		return Decision{}, dynamo.Policyf("planner: %s", resp.Error)
	}
	return Decision{U: dynamo.Control(resp.Action), Bundle: resp.Bundle}, nil
}

func (h *HTTPPlanner) client() *http.Client {
	if h.Client == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return h.Client
}

func postJSON(ctx context.Context, client *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("planner returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
