package unfurl

import (
	"mountains-server/core"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

var client = &http.Client{Timeout: 10 * time.Second}

// Handle fetches the page behind ?url= and extracts bookmark metadata. Every
// failure mode degrades to a result with all four fields empty: callers always
// get a structurally valid bookmark record.
func Handle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		render.JSON(w, r, unfurlURL(target))
	}
}

func unfurlURL(target string) core.BookmarkMetadata {
	var meta core.BookmarkMetadata

	base, err := url.Parse(target)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		logrus.WithField("url", target).Warn("Unfurl given an unusable URL")
		return meta
	}

	resp, err := client.Get(target)
	if err != nil {
		logrus.WithField("url", target).WithError(err).Warn("Unfurl fetch failed")
		return meta
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithFields(logrus.Fields{
			"url":    target,
			"status": resp.StatusCode,
		}).Warn("Unfurl fetch returned non-OK status")
		return meta
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		logrus.WithField("url", target).WithError(err).Warn("Unfurl parse failed")
		return meta
	}

	extract(doc, base, &meta)
	return meta
}

// extract walks the parsed document collecting title, description, image and
// favicon. OpenGraph tags win over the plain HTML fallbacks.
func extract(n *html.Node, base *url.URL, meta *core.BookmarkMetadata) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if meta.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				meta.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			key := attr(n, "property")
			if key == "" {
				key = attr(n, "name")
			}
			content := strings.TrimSpace(attr(n, "content"))
			if content == "" {
				break
			}
			switch key {
			case "og:title":
				meta.Title = content
			case "og:description":
				meta.Description = content
			case "description":
				if meta.Description == "" {
					meta.Description = content
				}
			case "og:image", "twitter:image":
				if meta.Image == "" || key == "og:image" {
					meta.Image = resolve(base, content)
				}
			}
		case "link":
			rel := strings.ToLower(attr(n, "rel"))
			if strings.Contains(rel, "icon") && meta.Favicon == "" {
				if href := attr(n, "href"); href != "" {
					meta.Favicon = resolve(base, href)
				}
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extract(c, base, meta)
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
