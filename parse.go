package ocrparse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/ocrparse/internal/filetype"
	"github.com/local/ocrparse/internal/metrics"
	"github.com/local/ocrparse/internal/pagecount"
	"github.com/local/ocrparse/internal/requester"
)

// pageSeparator joins per-page markdown segments when the backend returns
// multiple entries (concatenatePages=false).
const pageSeparator = "\n\n---\n\n"

// dataImagePattern matches markdown images with inline data URIs. Replacement
// keeps the alt text and drops the embedded payload.
var dataImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(data:[^)]+\)`)

type layoutEntry struct {
	PrunedResult json.RawMessage `json:"prunedResult"`
	Markdown     struct {
		Images json.RawMessage `json:"images"`
		Text   string          `json:"text"`
	} `json:"markdown"`
}

// serviceResponse is the shared envelope of both endpoints.
type serviceResponse struct {
	Result struct {
		LayoutParsingResults []layoutEntry `json:"layoutParsingResults"`
	} `json:"result"`
}

type layoutParsingRequest struct {
	File      string `json:"file"`
	FileType  int    `json:"fileType"`
	Visualize *bool  `json:"visualize,omitempty"`
}

// pagePayload carries one page from phase 1 into phase 2 and is never
// persisted. markdownImages is only needed by the restructure call; the
// final markdown has its inline images stripped regardless.
type pagePayload struct {
	PrunedResult   json.RawMessage `json:"prunedResult"`
	MarkdownImages json.RawMessage `json:"markdownImages"`
}

type restructureRequest struct {
	Pages            []pagePayload `json:"pages"`
	ConcatenatePages bool          `json:"concatenatePages"`
}

// Parse runs a local PDF or image file through the two-phase pipeline and
// returns the merged markdown. Both phases must succeed; any requester
// failure aborts the call with no partial result. PagesLayout is populated
// only when Config.ReturnLayoutInfo is set. Pacing waits, network I/O and
// backoff sleeps all observe ctx.
func (c *Client) Parse(ctx context.Context, path string, concatenatePages bool) (*Result, error) {
	parseID := uuid.NewString()
	log.Info().
		Str("parse_id", parseID).
		Str("file", path).
		Bool("concatenate_pages", concatenatePages).
		Bool("layout_info", c.cfg.ReturnLayoutInfo).
		Msg("parsing file")

	result, err := c.parse(ctx, parseID, path, concatenatePages)
	if err != nil {
		metrics.IncParsed("failed")
		return nil, err
	}
	metrics.IncParsed("success")
	return result, nil
}

// ParseSync is the blocking variant of Parse: it occupies the calling
// goroutine for the full pipeline, with the same outcome for the same server
// responses.
func (c *Client) ParseSync(path string, concatenatePages bool) (*Result, error) {
	return c.Parse(context.Background(), path, concatenatePages)
}

func (c *Client) parse(ctx context.Context, parseID, path string, concatenatePages bool) (*Result, error) {
	fileType := filetype.Detect(path)

	if fileType == filetype.PDF && c.cfg.MaxPages > 0 {
		if n, err := pagecount.Count(path); err != nil {
			// Preflight only; let the service decide on files we cannot read.
			log.Warn().Err(err).Str("parse_id", parseID).Msg("page count preflight failed")
		} else if n > c.cfg.MaxPages {
			return nil, fmt.Errorf("document has %d pages, exceeds configured limit of %d", n, c.cfg.MaxPages)
		}
	}

	fileData, err := readFileBase64(path)
	if err != nil {
		return nil, err
	}

	// Phase 1: layout parsing.
	var layoutResp serviceResponse
	payload := layoutParsingRequest{
		File:      fileData,
		FileType:  fileType,
		Visualize: c.cfg.Visualize,
	}
	err = c.req.Do(ctx, c.cfg.BaseURL+"/layout-parsing", c.headers(), payload, &layoutResp, c.requestOptions())
	if err != nil {
		return nil, err
	}

	pages, layoutInfos := extractPages(layoutResp)
	metrics.AddPagesExtracted(len(pages))
	log.Info().Str("parse_id", parseID).Int("pages", len(pages)).Msg("layout parsing done")

	// Phase 2: restructure.
	var restructureResp serviceResponse
	err = c.req.Do(ctx, c.cfg.BaseURL+"/restructure-pages", c.headers(), restructureRequest{
		Pages:            pages,
		ConcatenatePages: concatenatePages,
	}, &restructureResp, c.requestOptions())
	if err != nil {
		return nil, err
	}

	markdown := joinMarkdown(parseID, restructureResp)
	markdown = stripEmbeddedImages(markdown)
	log.Info().Str("parse_id", parseID).Int("markdown_len", len(markdown)).Msg("parsing complete")

	result := &Result{Markdown: markdown}
	if c.cfg.ReturnLayoutInfo {
		result.PagesLayout = layoutInfos
	}
	return result, nil
}

func (c *Client) requestOptions() requester.Options {
	return requester.Options{AllowRateLimitRetry: !c.cfg.DisableRateLimitRetry}
}

// extractPages produces the phase-2 page list and the per-page layout
// projections, both preserving response order. Missing prunedResult fields
// default to an empty object; missing markdownImages stay null.
func extractPages(resp serviceResponse) ([]pagePayload, []PageLayoutInfo) {
	entries := resp.Result.LayoutParsingResults
	pages := make([]pagePayload, 0, len(entries))
	infos := make([]PageLayoutInfo, 0, len(entries))
	for _, entry := range entries {
		pruned := entry.PrunedResult
		if len(pruned) == 0 {
			pruned = json.RawMessage("{}")
		}
		pages = append(pages, pagePayload{
			PrunedResult:   pruned,
			MarkdownImages: entry.Markdown.Images,
		})
		infos = append(infos, PageLayoutInfo{PrunedResult: pruned})
	}
	return pages, infos
}

// joinMarkdown concatenates the non-empty per-entry texts in order. With
// concatenatePages=true the backend returns a single entry; either way, an
// empty result list is a valid empty document.
func joinMarkdown(parseID string, resp serviceResponse) string {
	entries := resp.Result.LayoutParsingResults
	if len(entries) == 0 {
		log.Warn().Str("parse_id", parseID).Msg("restructure-pages returned no results")
		return ""
	}
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Markdown.Text != "" {
			parts = append(parts, entry.Markdown.Text)
		}
	}
	return strings.Join(parts, pageSeparator)
}

// stripEmbeddedImages replaces inline data-URI images with empty references,
// keeping alt text and ordering.
func stripEmbeddedImages(markdown string) string {
	return dataImagePattern.ReplaceAllString(markdown, "![$1]()")
}

func readFileBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
