package wordpress

import (
	"strings"
	"testing"
)

const sampleWXR = `<?xml version="1.0" encoding="UTF-8" ?>
<rss version="2.0"
	xmlns:content="http://purl.org/rss/1.0/modules/content/"
	xmlns:excerpt="http://wordpress.org/export/1.2/excerpt/"
	xmlns:wp="http://wordpress.org/export/1.2/">
<channel>
	<title>Example Blog</title>
	<wp:category>
		<wp:term_id>3</wp:term_id>
		<wp:cat_name>Tech</wp:cat_name>
		<wp:category_nicename>tech</wp:category_nicename>
		<wp:category_parent></wp:category_parent>
	</wp:category>
	<item>
		<title>Published Post</title>
		<wp:post_id>42</wp:post_id>
		<wp:post_type>post</wp:post_type>
		<wp:status>publish</wp:status>
		<wp:post_name>published-post</wp:post_name>
		<wp:post_date>2013-05-18 16:40:33</wp:post_date>
		<wp:post_modified>2013-06-01 09:00:00</wp:post_modified>
		<content:encoded><![CDATA[<p>Hello &amp; welcome</p>[gallery ids="1,2"]

<p>Second paragraph</p>]]></content:encoded>
		<excerpt:encoded><![CDATA[short]]></excerpt:encoded>
		<category domain="category" nicename="tech">Tech</category>
		<category domain="post_tag" nicename="go">go</category>
		<category domain="post_tag" nicename="etl">etl</category>
	</item>
	<item>
		<title>A Page</title>
		<wp:post_id>43</wp:post_id>
		<wp:post_type>page</wp:post_type>
		<wp:status>publish</wp:status>
		<wp:post_name>a-page</wp:post_name>
		<wp:post_date>2013-05-18 16:40:33</wp:post_date>
		<wp:post_modified>2013-05-18 16:40:33</wp:post_modified>
		<content:encoded><![CDATA[<p>page body</p>]]></content:encoded>
	</item>
	<item>
		<title>A Draft</title>
		<wp:post_id>44</wp:post_id>
		<wp:post_type>post</wp:post_type>
		<wp:status>draft</wp:status>
		<wp:post_name>a-draft</wp:post_name>
		<wp:post_date>2013-05-18 16:40:33</wp:post_date>
		<wp:post_modified>2013-05-18 16:40:33</wp:post_modified>
		<content:encoded><![CDATA[<p>draft body</p>]]></content:encoded>
	</item>
	<item>
		<title>photo</title>
		<wp:post_id>45</wp:post_id>
		<wp:post_type>attachment</wp:post_type>
		<wp:status>inherit</wp:status>
		<wp:post_date>2013-05-18 16:40:33</wp:post_date>
		<wp:post_parent>42</wp:post_parent>
		<wp:attachment_url>https://blog.example.com/uploads/photo.jpg</wp:attachment_url>
	</item>
</channel>
</rss>`

func parseSample(t *testing.T) *Export {
	t.Helper()

	export, err := Parse(strings.NewReader(sampleWXR))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return export
}

func TestPosts_FiltersToPublishedPosts(t *testing.T) {
	export := parseSample(t)

	posts := export.Posts()
	if len(posts) != 1 {
		t.Fatalf("Posts() returned %d documents, want 1", len(posts))
	}

	post := posts[0]

	if post.SourceID != "42" {
		t.Errorf("SourceID = %q, want 42", post.SourceID)
	}

	if post.Slug != "published-post" {
		t.Errorf("Slug = %q, want published-post", post.Slug)
	}

	if post.CreatedAt != "2013-05-18 16:40:33" {
		t.Errorf("CreatedAt = %q", post.CreatedAt)
	}
}

func TestPosts_SplitsTaxonomyDomains(t *testing.T) {
	post := parseSample(t).Posts()[0]

	if len(post.Categories) != 1 || post.Categories[0] != "Tech" {
		t.Errorf("Categories = %v, want [Tech]", post.Categories)
	}

	if len(post.Tags) != 2 || post.Tags[0] != "go" || post.Tags[1] != "etl" {
		t.Errorf("Tags = %v, want [go etl]", post.Tags)
	}
}

func TestPosts_BodyCleaned(t *testing.T) {
	post := parseSample(t).Posts()[0]

	if strings.Contains(post.Body, "[gallery") {
		t.Errorf("shortcode left in body:\n%s", post.Body)
	}

	if !strings.Contains(post.Body, "Hello & welcome") {
		t.Errorf("entities not unescaped:\n%s", post.Body)
	}
}

func TestCategories(t *testing.T) {
	cats := parseSample(t).Categories()

	if len(cats) != 1 {
		t.Fatalf("Categories() returned %d, want 1", len(cats))
	}

	if cats[0].Name != "Tech" || cats[0].Slug != "tech" {
		t.Errorf("category = %+v", cats[0])
	}
}

func TestAttachments(t *testing.T) {
	atts := parseSample(t).Attachments()

	if len(atts) != 1 {
		t.Fatalf("Attachments() returned %d, want 1", len(atts))
	}

	if atts[0].URL != "https://blog.example.com/uploads/photo.jpg" {
		t.Errorf("attachment URL = %q", atts[0].URL)
	}

	if atts[0].ParentID != "42" {
		t.Errorf("attachment parent = %q, want 42", atts[0].ParentID)
	}
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"entities", "a &amp; b", "a & b"},
		{"shortcode", "before [caption id=\"x\"] after", "before  after"},
		{"blank run squeeze", "a\n\n\n\nb", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanContent(tt.input); got != tt.want {
				t.Errorf("CleanContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
