// Package wordpress parses WordPress eXtended RSS (WXR) export files and
// adapts published posts into the normalized document record.
package wordpress

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"mdmigrate/internal/models"
)

// ErrNoChannel is returned when the export has no RSS channel element.
var ErrNoChannel = errors.New("export contains no channel element")

// Wire structs use namespace-URL xml tags so parsing holds up no matter
// which prefixes (wp:, content:, excerpt:) the export declares.

type wxrRSS struct {
	XMLName xml.Name    `xml:"rss"`
	Channel *wxrChannel `xml:"channel"`
}

type wxrChannel struct {
	Title      string        `xml:"title"`
	Items      []wxrItem     `xml:"item"`
	Categories []wxrTaxonomy `xml:"http://wordpress.org/export/1.2/ category"`
}

type wxrItem struct {
	Title         string    `xml:"title"`
	PostID        string    `xml:"http://wordpress.org/export/1.2/ post_id"`
	PostType      string    `xml:"http://wordpress.org/export/1.2/ post_type"`
	Status        string    `xml:"http://wordpress.org/export/1.2/ status"`
	PostName      string    `xml:"http://wordpress.org/export/1.2/ post_name"`
	PostDate      string    `xml:"http://wordpress.org/export/1.2/ post_date"`
	PostModified  string    `xml:"http://wordpress.org/export/1.2/ post_modified"`
	PostParent    string    `xml:"http://wordpress.org/export/1.2/ post_parent"`
	AttachmentURL string    `xml:"http://wordpress.org/export/1.2/ attachment_url"`
	Content       string    `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Excerpt       string    `xml:"http://wordpress.org/export/1.2/excerpt/ encoded"`
	Terms         []wxrTerm `xml:"category"`
}

type wxrTerm struct {
	Domain   string `xml:"domain,attr"`
	Nicename string `xml:"nicename,attr"`
	Name     string `xml:",chardata"`
}

type wxrTaxonomy struct {
	TermID string `xml:"http://wordpress.org/export/1.2/ term_id"`
	Name   string `xml:"http://wordpress.org/export/1.2/ cat_name"`
	Slug   string `xml:"http://wordpress.org/export/1.2/ category_nicename"`
	Parent string `xml:"http://wordpress.org/export/1.2/ category_parent"`
}

// Category is a site-level category declared in the export.
type Category struct {
	ID     string
	Name   string
	Slug   string
	Parent string
}

// Attachment is a media item (image, file) declared in the export.
type Attachment struct {
	ID       string
	Title    string
	URL      string
	Date     string
	ParentID string
}

// Export is a parsed WXR file.
type Export struct {
	channel *wxrChannel
}

// Parse reads a WXR document from r.
func Parse(r io.Reader) (*Export, error) {
	var doc wxrRSS
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse WordPress export: %w", err)
	}

	if doc.Channel == nil {
		return nil, ErrNoChannel
	}

	return &Export{channel: doc.Channel}, nil
}

// ParseFile reads a WXR document from a file on disk.
func ParseFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// SiteTitle returns the exported site's title.
func (e *Export) SiteTitle() string {
	return e.channel.Title
}

// Posts adapts every published post into a normalized document. Pages,
// drafts, attachments and revisions are skipped; bodies are cleaned of
// shortcodes and entity escapes but remain HTML.
func (e *Export) Posts() []*models.Document {
	var docs []*models.Document

	for i := range e.channel.Items {
		item := &e.channel.Items[i]
		if item.PostType != "post" || item.Status != "publish" {
			continue
		}

		docs = append(docs, adaptPost(item))
	}

	return docs
}

// Categories returns the site-level category declarations, useful for
// building the category→subdirectory mapping before an import.
func (e *Export) Categories() []Category {
	cats := make([]Category, 0, len(e.channel.Categories))

	for _, c := range e.channel.Categories {
		cats = append(cats, Category{
			ID:     c.TermID,
			Name:   c.Name,
			Slug:   c.Slug,
			Parent: c.Parent,
		})
	}

	return cats
}

// Attachments returns the media items declared in the export.
func (e *Export) Attachments() []Attachment {
	var atts []Attachment

	for i := range e.channel.Items {
		item := &e.channel.Items[i]
		if item.PostType != "attachment" {
			continue
		}

		atts = append(atts, Attachment{
			ID:       item.PostID,
			Title:    item.Title,
			URL:      item.AttachmentURL,
			Date:     item.PostDate,
			ParentID: item.PostParent,
		})
	}

	return atts
}

// adaptPost maps one WXR item into the normalized record, splitting the
// mixed category element by taxonomy domain.
func adaptPost(item *wxrItem) *models.Document {
	doc := &models.Document{
		SourceID:  item.PostID,
		Title:     item.Title,
		Slug:      item.PostName,
		Body:      CleanContent(item.Content),
		CreatedAt: item.PostDate,
		UpdatedAt: item.PostModified,
	}

	for _, term := range item.Terms {
		switch term.Domain {
		case "category":
			doc.Categories = append(doc.Categories, term.Name)
		case "post_tag":
			doc.Tags = append(doc.Tags, term.Name)
		}
	}

	return doc
}

var (
	shortcodePattern = regexp.MustCompile(`\[[^\[\]\n]*\]`)
	blankRunPattern  = regexp.MustCompile(`\n\s*\n`)
)

// CleanContent strips WordPress noise from a post body: HTML entities are
// decoded, shortcodes removed, and blank-line runs collapsed.
func CleanContent(content string) string {
	if content == "" {
		return ""
	}

	content = html.UnescapeString(content)
	content = shortcodePattern.ReplaceAllString(content, "")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
