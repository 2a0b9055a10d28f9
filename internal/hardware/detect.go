package hardware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPDetector reads the profile reported by the inference backend.
type HTTPDetector struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPDetector creates a detector for the backend at baseURL.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	return &HTTPDetector{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Detect fetches /api/system/capabilities and maps the hardware section.
func (d *HTTPDetector) Detect(ctx context.Context) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/api/system/capabilities", nil)
	if err != nil {
		return Profile{}, err
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("capabilities endpoint returned %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return Profile{}, fmt.Errorf("capabilities endpoint returned invalid JSON")
	}
	return ParseCapabilities(body), nil
}

// ParseCapabilities maps a capabilities payload into a Profile.
func ParseCapabilities(body []byte) Profile {
	hw := gjson.GetBytes(body, "hardware")
	p := Profile{
		RAMGB:     hw.Get("ram_gb").Float(),
		GPUVRAMGB: hw.Get("gpu_vram_gb").Float(),
		CPUCores:  int(hw.Get("cpu_cores").Int()),
		GPUModel:  hw.Get("gpu_model").String(),
		IsLaptop:  hw.Get("is_laptop").Bool(),
		HasGPU:    hw.Get("has_cuda").Bool(),
	}
	if p.CPUCores == 0 {
		p.CPUCores = int(hw.Get("cpu_threads").Int())
	}
	return p
}

// LocalDetector reports what the Go runtime can see. RAM and GPU stay unknown.
type LocalDetector struct{}

// Detect returns a CPU-only profile.
func (LocalDetector) Detect(context.Context) (Profile, error) {
	return Profile{CPUCores: runtime.NumCPU(), GPUModel: "CPU Only"}, nil
}

// FallbackDetector tries each detector in order and returns the first success.
type FallbackDetector []Detector

// Detect implements Detector.
func (f FallbackDetector) Detect(ctx context.Context) (Profile, error) {
	var lastErr error
	for _, d := range f {
		p, err := d.Detect(ctx)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no detectors configured")
	}
	return Profile{}, lastErr
}
