package adsense

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/svnbook/booktool/internal/book"
)

var (
	// ErrStylesheetMissing is returned when the book directory has no stylesheet
	ErrStylesheetMissing = errors.New("book stylesheet is missing")
	// ErrNoBodyTag is returned for a page without a <body> start tag
	ErrNoBodyTag = errors.New("never found <body> tag")
)

// marker identifies an already injected block
const marker = `<div id="adsense">`

const blockTemplate = `
<div id="adsense">
<script type="text/javascript"><!--
google_ad_client = "%s";
google_ad_width = 120;
google_ad_height = 600;
google_ad_format = "120x600_as";
google_ad_type = "text_image";
google_ad_channel ="";
google_color_border = "CC99CC";
google_color_bg = "E7C6E8";
google_color_link = "000000";
google_color_url = "00008B";
google_color_text = "663366";
//--></script>
<script type="text/javascript"
src="http://pagead2.googlesyndication.com/pagead/show_ads.js">
</script>
</div>
`

// CSS is appended to the book stylesheet to make room for the block
const CSS = `
/* Added for AdSense Support */
body
{
    margin-left: 130px;
    margin-right: 130px;
}
#adsense
{
    position: absolute;
    left: 0px; 
    top: 0.5in;
    width: 120px;
    z-index: 2;
}
`

// Block returns the advertisement markup for a publisher client id
func Block(client string) string {
	return fmt.Sprintf(blockTemplate, client)
}

// BodyOffset returns the byte offset just past the first <body> start tag
// of page, or -1 if there is none.
func BodyOffset(page []byte) int {
	z := html.NewTokenizer(bytes.NewReader(page))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return -1
		}
		offset += len(z.Raw())
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := z.TagName()
		if atom.Lookup(name) == atom.Body {
			return offset
		}
		// <script/> and <title/> in XHTML heads do not open raw text
		if tt == html.SelfClosingTagToken {
			z.NextIsNotRawText()
		}
	}
}

// Inject returns page with block inserted right after the first <body> tag
func Inject(page []byte, block string) ([]byte, error) {
	at := BodyOffset(page)
	if at < 0 {
		return nil, ErrNoBodyTag
	}
	out := make([]byte, 0, len(page)+len(block))
	out = append(out, page[:at]...)
	out = append(out, block...)
	out = append(out, page[at:]...)
	return out, nil
}

// Injector adds the advertisement block to the pages of a generated book
type Injector struct {
	client     string
	stylesheet string
	logger     *slog.Logger
}

// NewInjector creates an injector for a publisher client id; stylesheet is
// the file name of the shared stylesheet inside the book directory.
func NewInjector(client, stylesheet string, logger *slog.Logger) *Injector {
	return &Injector{
		client:     client,
		stylesheet: stylesheet,
		logger:     logger,
	}
}

// Run injects the block into every page of dir and appends the CSS to the
// stylesheet. Pages already carrying the block are skipped. A page without a
// body tag stops the run; pages handled before it keep their block. It
// returns the number of modified pages.
func (i *Injector) Run(w io.Writer, dir string) (int, error) {
	stylesheet := filepath.Join(dir, i.stylesheet)
	if _, err := os.Stat(stylesheet); err != nil {
		return 0, ErrStylesheetMissing
	}

	pages, err := book.DiscoverPages(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list pages: %w", err)
	}

	block := Block(i.client)
	modified := 0
	for _, page := range pages {
		changed, err := i.injectFile(page, block)
		if err != nil {
			return modified, err
		}
		if changed {
			modified++
			fmt.Fprintf(w, "%s\n", page)
		}
	}

	if err := i.appendCSS(stylesheet); err != nil {
		return modified, err
	}

	i.logger.Info("advertisement injected", "dir", dir, "pages", len(pages), "modified", modified)
	return modified, nil
}

func (i *Injector) injectFile(path, block string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if bytes.Contains(data, []byte(marker)) {
		i.logger.Debug("page already has advertisement", "file", path)
		return false, nil
	}

	out, err := Inject(data, block)
	if err != nil {
		return false, fmt.Errorf("%w in file '%s'", err, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

func (i *Injector) appendCSS(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(string(data), CSS) {
		i.logger.Debug("stylesheet already has advertisement rules", "file", path)
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(CSS); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
