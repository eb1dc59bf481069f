package receiptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	templatePartName      = "template"
	dataPartName          = "data"
	layoutFileName        = "template.zip"
)

// Renderer turns a template document into a PDF file inside workDir and
// returns the file path. The caller owns workDir and removes it when done.
type Renderer interface {
	Render(ctx context.Context, tpl *ReceiptTemplate, workDir string) (string, error)
}

// RenderError is a renderer failure carrying the outcome code to record on
// the work item.
type RenderError struct {
	Code    int
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("pdf engine error (%d): %s", e.Code, e.Message)
}

// PDFEngineClient renders receipts through the HTTP PDF engine. The request
// is a multipart POST: the zipped layout under "template" and the template
// JSON under "data".
type PDFEngineClient struct {
	endpoint        string
	subscriptionKey string
	layout          []byte
	httpClient      *http.Client
	logger          *zap.Logger
}

type PDFEngineOption func(*PDFEngineClient)

func WithHTTPClient(client *http.Client) PDFEngineOption {
	return func(c *PDFEngineClient) {
		c.httpClient = client
	}
}

func WithRendererLogger(logger *zap.Logger) PDFEngineOption {
	return func(c *PDFEngineClient) {
		c.logger = logger
	}
}

// NewPDFEngineClient builds a renderer client. layout is the zipped layout
// archive shipped with the host application.
func NewPDFEngineClient(endpoint, subscriptionKey string, layout []byte, opts ...PDFEngineOption) *PDFEngineClient {
	c := &PDFEngineClient{
		endpoint:        endpoint,
		subscriptionKey: subscriptionKey,
		layout:          layout,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PDFEngineClient) Render(ctx context.Context, tpl *ReceiptTemplate, workDir string) (string, error) {
	data, err := json.Marshal(tpl)
	if err != nil {
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("encoding template data: %v", err)}
	}

	body, contentType, err := c.buildRequestBody(data)
	if err != nil {
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("building multipart request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(subscriptionKeyHeader, c.subscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("calling pdf engine: %v", err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("pdf engine responded", zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.savePDF(resp.Body, workDir)
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &RenderError{Code: CodePDFEngineError, Message: "pdf engine rejected the subscription key"}
	default:
		return "", &RenderError{Code: CodePDFEngineError, Message: errorResponseMessage(resp)}
	}
}

func (c *PDFEngineClient) buildRequestBody(data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(templatePartName, layoutFileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(c.layout); err != nil {
		return nil, "", err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, dataPartName))
	header.Set("Content-Type", "application/json")
	dataPart, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := dataPart.Write(data); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *PDFEngineClient) savePDF(body io.Reader, workDir string) (string, error) {
	file, err := os.CreateTemp(workDir, "receipt-*.pdf")
	if err != nil {
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("creating temp file: %v", err)}
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		os.Remove(file.Name())
		return "", &RenderError{Code: CodePDFEngineError, Message: fmt.Sprintf("writing pdf: %v", err)}
	}
	return file.Name(), nil
}

func errorResponseMessage(resp *http.Response) string {
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(payload) == 0 {
		return fmt.Sprintf("pdf engine response KO (%d)", resp.StatusCode)
	}
	var engineErr struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(payload, &engineErr) == nil && len(engineErr.Errors) > 0 {
		return fmt.Sprintf("pdf engine response KO (%d): %s", resp.StatusCode, engineErr.Errors[0].Message)
	}
	return fmt.Sprintf("pdf engine response KO (%d): %s", resp.StatusCode, string(payload))
}
