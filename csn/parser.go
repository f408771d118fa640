package csn

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"
	"golang.org/x/net/html"

	"github.com/xeptore/csndl/errutil"
)

var (
	ErrCSRFTokenNotFound  = errors.New("csrf token not found in landing page")
	ErrAlbumTableNotFound = errors.New("album track table not found")
	ErrAlbumMetaNotFound  = errors.New("album artist or title not found")
)

// PageParser extracts the data the downloader needs from the site's pages.
// Readers passed to it yield UTF-8 HTML.
type PageParser interface {
	CSRFToken(r io.Reader) (string, error)
	Album(r io.Reader, pageURL *url.URL) (*AlbumPage, error)
	Detail(r io.Reader) (*DetailPage, error)
}

type AlbumPage struct {
	Artist string
	Title  string
	// TrackURLs are absolute, unique and in page order.
	TrackURLs []string
}

type DetailPage struct {
	Title string
	// Hrefs are the download_item links in page order, as written in the page.
	Hrefs []string
}

// HTMLParser is the PageParser for the site's current markup.
type HTMLParser struct {
	CSRFMetaSelector     string
	AlbumTableSelector   string
	TrackCellSelector    string
	ArtistLabel          string
	AlbumLabel           string
	DownloadItemSelector string
}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		CSRFMetaSelector:     `meta[name="csrf-token"]`,
		AlbumTableSelector:   "div.d-table",
		TrackCellSelector:    "div.name.d-table-cell",
		ArtistLabel:          "Ca sĩ: ",
		AlbumLabel:           "Album: ",
		DownloadItemSelector: ".download_item",
	}
}

func parseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to parse html document: %v", err)).Append(flawP)
	}
	return doc, nil
}

func (p *HTMLParser) CSRFToken(r io.Reader) (string, error) {
	doc, err := parseDocument(r)
	if nil != err {
		return "", err
	}

	token, ok := doc.Find(p.CSRFMetaSelector).First().Attr("content")
	if !ok || token == "" {
		return "", ErrCSRFTokenNotFound
	}
	return token, nil
}

func (p *HTMLParser) Album(r io.Reader, pageURL *url.URL) (*AlbumPage, error) {
	doc, err := parseDocument(r)
	if nil != err {
		return nil, err
	}

	table := doc.Find(p.AlbumTableSelector).First()
	if table.Length() == 0 {
		return nil, ErrAlbumTableNotFound
	}

	var hrefs []string
	table.Find(p.TrackCellSelector).Each(func(_ int, cell *goquery.Selection) {
		href, ok := cell.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		hrefs = append(hrefs, resolveHref(pageURL, href))
	})

	artist, ok := p.labelledLink(doc, p.ArtistLabel)
	if !ok {
		return nil, fmt.Errorf("%w: no %q label", ErrAlbumMetaNotFound, p.ArtistLabel)
	}
	title, ok := p.labelledLink(doc, p.AlbumLabel)
	if !ok {
		return nil, fmt.Errorf("%w: no %q label", ErrAlbumMetaNotFound, p.AlbumLabel)
	}

	page := AlbumPage{
		Artist:    artist,
		Title:     title,
		TrackURLs: lo.Uniq(hrefs),
	}
	return &page, nil
}

// labelledLink finds the first text node equal to label and returns the text
// of the first anchor under the node's grandparent.
func (p *HTMLParser) labelledLink(doc *goquery.Document, label string) (string, bool) {
	for _, root := range doc.Nodes {
		if node := findTextNode(root, label); nil != node {
			if nil == node.Parent || nil == node.Parent.Parent {
				return "", false
			}
			anchor := doc.FindNodes(node.Parent.Parent).Find("a").First()
			if anchor.Length() == 0 {
				return "", false
			}
			return anchor.Text(), true
		}
	}
	return "", false
}

func findTextNode(n *html.Node, text string) *html.Node {
	if n.Type == html.TextNode && n.Data == text {
		return n
	}
	for c := n.FirstChild; nil != c; c = c.NextSibling {
		if found := findTextNode(c, text); nil != found {
			return found
		}
	}
	return nil
}

func (p *HTMLParser) Detail(r io.Reader) (*DetailPage, error) {
	doc, err := parseDocument(r)
	if nil != err {
		return nil, err
	}

	page := DetailPage{
		Title: doc.Find("title").First().Text(),
		Hrefs: doc.Find(p.DownloadItemSelector).Map(func(_ int, s *goquery.Selection) string {
			return s.AttrOr("href", "")
		}),
	}
	return &page, nil
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if nil == base {
		return href
	}
	ref, err := url.Parse(href)
	if nil != err {
		return href
	}
	return base.ResolveReference(ref).String()
}

// TrackFileName derives a file name, without extension, from a detail page
// title such as "Tải nhạc Song - Artist | Download: Tải nhạc Song - Artist".
func TrackFileName(pageTitle string) string {
	name := pageTitle
	if i := strings.LastIndex(name, "Download: "); i >= 0 {
		name = name[i+len("Download: "):]
	}
	if i := strings.Index(name, " - "); i >= 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "Tải nhạc ", "")
	return SanitizeFileName(name)
}

// MatchDownloadHref picks the first href pointing at a file of quality. Both
// "downloads" and "/<quality>" must occur past the first character.
func MatchDownloadHref(hrefs []string, quality Quality) (string, bool) {
	return lo.Find(hrefs, func(href string) bool {
		return strings.Index(href, "downloads") > 0 && strings.Index(href, "/"+quality.String()) > 0
	})
}

// FileExt returns the extension of href's path without the dot, or mp3 when
// there is none.
func FileExt(href string) string {
	u, err := url.Parse(href)
	if nil != err {
		return defaultFileExt
	}
	if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
		return ext
	}
	return defaultFileExt
}
