package mistral

import (
	"context"
	"fmt"
	"strings"
)

// Document is the input of an OCR call: a PDF by URL or an image by URL
// (including data: URLs).
type Document struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// DocumentURL references a document to OCR.
func DocumentURL(url string) Document {
	return Document{Type: "document_url", DocumentURL: url}
}

// ImageURL references an image to OCR.
func ImageURL(url string) Document {
	return Document{Type: "image_url", ImageURL: url}
}

// OCRRequest asks for the text of a document.
type OCRRequest struct {
	Model              string   `json:"model"`
	Document           Document `json:"document"`
	IncludeImageBase64 bool     `json:"include_image_base64"`
}

// OCRResponse holds the recognized pages.
type OCRResponse struct {
	Pages     []Page    `json:"pages"`
	Model     string    `json:"model"`
	UsageInfo UsageInfo `json:"usage_info"`
}

// Markdown joins the markdown of every page.
func (r *OCRResponse) Markdown() string {
	parts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		parts[i] = p.Markdown
	}
	return strings.Join(parts, "\n\n")
}

// Page is one recognized page.
type Page struct {
	Index      int         `json:"index"`
	Markdown   string      `json:"markdown"`
	Images     []Image     `json:"images"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// Image is an image extracted from a page.
type Image struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64,omitempty"`
}

// Dimensions is the size of a page.
type Dimensions struct {
	DPI    int `json:"dpi"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// UsageInfo reports OCR consumption.
type UsageInfo struct {
	PagesProcessed int  `json:"pages_processed"`
	DocSizeBytes   *int `json:"doc_size_bytes,omitempty"`
}

// OCR extracts the text of a document as markdown.
func (c *Client) OCR(ctx context.Context, req *OCRRequest) (*OCRResponse, error) {
	if req == nil || (req.Document.DocumentURL == "" && req.Document.ImageURL == "") {
		return nil, fmt.Errorf("%w: OCR document URL is empty", ErrInvalidRequest)
	}
	wire := *req
	if wire.Model == "" {
		wire.Model = ModelMistralOCR
	}

	var resp OCRResponse
	if err := c.postJSON(ctx, "ocr", &wire, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
