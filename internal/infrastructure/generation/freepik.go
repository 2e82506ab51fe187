package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

const (
	imageTaskPath = "/v1/ai/mystic"
	videoTaskPath = "/v1/ai/image-to-video/kling-std"

	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"

	defaultPollInterval = 2 * time.Second
)

// FreepikClient talks to the Freepik generation API. Tasks are asynchronous:
// a create call returns a task id, and the client polls until the task
// reaches a terminal status or the context expires.
type FreepikClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewFreepikClient(baseURL, apiKey string, log zerolog.Logger) *FreepikClient {
	return &FreepikClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: defaultPollInterval,
		log:          log,
	}
}

type taskEnvelope struct {
	Data taskData `json:"data"`
}

type taskData struct {
	TaskID    string   `json:"task_id"`
	Status    string   `json:"status"`
	Generated []string `json:"generated"`
}

type imageTaskRequest struct {
	Prompt              string   `json:"prompt"`
	StructureReference  string   `json:"structure_reference"`
	StyleReferences     []string `json:"style_references,omitempty"`
	NumImages           int      `json:"num_images"`
	IncludeLayoutRender bool     `json:"include_layout_render,omitempty"`
}

type videoTaskRequest struct {
	Image    string `json:"image"`
	ImageEnd string `json:"image_end"`
	Prompt   string `json:"prompt"`
	Duration string `json:"duration"`
}

// Generate submits an image generation task and waits for the renders.
func (c *FreepikClient) Generate(ctx context.Context, req ports.GenerateImagesRequest) (*ports.GeneratedImages, error) {
	body := imageTaskRequest{
		Prompt:              req.Prompt,
		StructureReference:  req.YardImage,
		StyleReferences:     req.StyleImages,
		NumImages:           3,
		IncludeLayoutRender: req.WithPlan,
	}

	task, err := c.createTask(ctx, imageTaskPath, body)
	if err != nil {
		return nil, err
	}

	done, err := c.waitForTask(ctx, imageTaskPath, task.TaskID)
	if err != nil {
		return nil, err
	}
	if len(done.Generated) == 0 {
		return nil, fmt.Errorf("freepik: task %s completed without output", task.TaskID)
	}

	out := &ports.GeneratedImages{Images: done.Generated}
	// When a layout render was requested the provider appends it last.
	if req.WithPlan && len(out.Images) > 1 {
		out.PlanImage = out.Images[len(out.Images)-1]
		out.Images = out.Images[:len(out.Images)-1]
	}
	return out, nil
}

// GenerateVideo submits an image-to-video task morphing the original yard
// into the redesign, returning the video URL.
func (c *FreepikClient) GenerateVideo(ctx context.Context, originalImage, redesignImage string) (string, error) {
	body := videoTaskRequest{
		Image:    originalImage,
		ImageEnd: redesignImage,
		Prompt:   "smooth transition from the current yard to the finished landscape design",
		Duration: "5",
	}

	task, err := c.createTask(ctx, videoTaskPath, body)
	if err != nil {
		return "", err
	}

	done, err := c.waitForTask(ctx, videoTaskPath, task.TaskID)
	if err != nil {
		return "", err
	}
	if len(done.Generated) == 0 {
		return "", fmt.Errorf("freepik: video task %s completed without output", task.TaskID)
	}
	return done.Generated[0], nil
}

func (c *FreepikClient) createTask(ctx context.Context, path string, body any) (*taskData, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("freepik: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-freepik-api-key", c.apiKey)

	var env taskEnvelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	if env.Data.TaskID == "" {
		return nil, fmt.Errorf("freepik: create task returned no task id")
	}
	return &env.Data, nil
}

func (c *FreepikClient) waitForTask(ctx context.Context, path, taskID string) (*taskData, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("freepik: task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"/"+taskID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-freepik-api-key", c.apiKey)

		var env taskEnvelope
		if err := c.do(req, &env); err != nil {
			return nil, err
		}

		switch env.Data.Status {
		case statusCompleted:
			return &env.Data, nil
		case statusFailed:
			return nil, fmt.Errorf("freepik: task %s failed", taskID)
		default:
			c.log.Debug().
				Str("task_id", taskID).
				Str("status", env.Data.Status).
				Msg("generation task in progress")
		}
	}
}

// VideoClient adapts the client's video endpoint to ports.VideoGenerator.
type VideoClient struct {
	client *FreepikClient
}

func NewVideoClient(client *FreepikClient) *VideoClient {
	return &VideoClient{client: client}
}

func (v *VideoClient) Generate(ctx context.Context, originalImage, redesignImage string) (string, error) {
	return v.client.GenerateVideo(ctx, originalImage, redesignImage)
}

func (c *FreepikClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("freepik: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("freepik: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("freepik: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("freepik: decode response: %w", err)
	}
	return nil
}
